// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package geom_test

import (
	"math"
	"testing"

	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/pointcloud/geom"
)

func TestNormalOfPlanarPatchIsUpAxis(t *testing.T) {
	pts := []pointcloud.Point{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 0.5, Y: 0.5, Z: 0},
	}
	viewpoint := pointcloud.Point{X: 0, Y: 0, Z: 10}
	n, err := geom.Normal(pts, nil, &viewpoint)
	if err != nil {
		t.Fatalf("Normal: %v", err)
	}
	if math.Abs(math.Abs(n.Z)-1) > 1e-9 || math.Abs(n.X) > 1e-9 || math.Abs(n.Y) > 1e-9 {
		t.Fatalf("Normal = %+v, want (0,0,±1)", n)
	}
	if n.Z < 0 {
		t.Fatalf("Normal = %+v, want oriented toward viewpoint (+Z)", n)
	}
}

func TestCurvatureOfPlanarPatchIsNearZero(t *testing.T) {
	pts := []pointcloud.Point{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 0.5, Y: 0.5, Z: 0},
	}
	cov := geom.Covariance(pts, nil)
	eig, err := geom.Eigen3x3Sym(cov)
	if err != nil {
		t.Fatalf("Eigen3x3Sym: %v", err)
	}
	c, err := geom.Curvature(eig)
	if err != nil {
		t.Fatalf("Curvature: %v", err)
	}
	if c > 1e-9 {
		t.Fatalf("Curvature = %v, want ~0 for a planar patch", c)
	}
}

func TestNormalDegenerateNeighborhoodFails(t *testing.T) {
	pts := []pointcloud.Point{
		{X: 1, Y: 1, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: 1, Y: 1, Z: 1},
	}
	_, err := geom.Normal(pts, nil, nil)
	if err == nil {
		t.Fatal("Normal over coincident points: want error, got nil")
	}
}

func TestCovarianceSymmetric(t *testing.T) {
	pts := []pointcloud.Point{
		{X: 0, Y: 0, Z: 1},
		{X: 2, Y: 1, Z: -1},
		{X: -1, Y: 3, Z: 0.5},
	}
	cov := geom.Covariance(pts, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(cov.At(i, j)-cov.At(j, i)) > 1e-12 {
				t.Fatalf("Covariance not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

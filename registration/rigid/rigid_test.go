// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rigid_test

import (
	"math"
	"math/rand"
	"testing"

	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/rigid"
)

func randomPoints(n int, seed int64) []pointcloud.Point {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]pointcloud.Point, n)
	for i := range pts {
		pts[i] = pointcloud.Point{X: rng.Float64()*10 - 5, Y: rng.Float64()*10 - 5, Z: rng.Float64()*10 - 5}
	}
	return pts
}

func rotateZ(theta float64) [3][3]float64 {
	c, s := math.Cos(theta), math.Sin(theta)
	return [3][3]float64{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

func applyKnown(tr [3][3]float64, t pointcloud.Point, p pointcloud.Point) pointcloud.Point {
	return pointcloud.Point{
		X: tr[0][0]*p.X + tr[0][1]*p.Y + tr[0][2]*p.Z + t.X,
		Y: tr[1][0]*p.X + tr[1][1]*p.Y + tr[1][2]*p.Z + t.Y,
		Z: tr[2][0]*p.X + tr[2][1]*p.Y + tr[2][2]*p.Z + t.Z,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestAbsoluteOrientationRecoversKnownRotationAndTranslation(t *testing.T) {
	src := randomPoints(50, 1)
	wantR := rotateZ(math.Pi / 6)
	wantT := pointcloud.Point{X: 1, Y: -2, Z: 0.5}
	tgt := make([]pointcloud.Point, len(src))
	for i, p := range src {
		tgt[i] = applyKnown(wantR, wantT, p)
	}

	tr, err := rigid.AbsoluteOrientation(src, tgt, nil)
	if err != nil {
		t.Fatalf("AbsoluteOrientation: %v", err)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !almostEqual(tr.R[i][j], wantR[i][j]) {
				t.Fatalf("R[%d][%d] = %v, want %v", i, j, tr.R[i][j], wantR[i][j])
			}
		}
	}
	if !almostEqual(tr.T.X, wantT.X) || !almostEqual(tr.T.Y, wantT.Y) || !almostEqual(tr.T.Z, wantT.Z) {
		t.Fatalf("T = %+v, want %+v", tr.T, wantT)
	}

	for i, p := range src {
		got := tr.Apply(p)
		want := tgt[i]
		if !almostEqual(got.X, want.X) || !almostEqual(got.Y, want.Y) || !almostEqual(got.Z, want.Z) {
			t.Fatalf("point %d: Apply(src) = %+v, want %+v", i, got, want)
		}
	}
}

func TestAbsoluteOrientationProducesProperRotation(t *testing.T) {
	src := randomPoints(20, 2)
	wantR := rotateZ(1.1)
	tgt := make([]pointcloud.Point, len(src))
	for i, p := range src {
		tgt[i] = applyKnown(wantR, pointcloud.Point{}, p)
	}

	tr, err := rigid.AbsoluteOrientation(src, tgt, nil)
	if err != nil {
		t.Fatalf("AbsoluteOrientation: %v", err)
	}

	det := tr.R[0][0]*(tr.R[1][1]*tr.R[2][2]-tr.R[1][2]*tr.R[2][1]) -
		tr.R[0][1]*(tr.R[1][0]*tr.R[2][2]-tr.R[1][2]*tr.R[2][0]) +
		tr.R[0][2]*(tr.R[1][0]*tr.R[2][1]-tr.R[1][1]*tr.R[2][0])
	if !almostEqual(det, 1) {
		t.Fatalf("det(R) = %v, want 1", det)
	}
}

func TestAbsoluteOrientationRejectsMismatchedLengths(t *testing.T) {
	src := randomPoints(5, 3)
	tgt := randomPoints(4, 4)
	if _, err := rigid.AbsoluteOrientation(src, tgt, nil); err == nil {
		t.Fatal("AbsoluteOrientation with mismatched lengths: want error, got nil")
	}
}

func TestAbsoluteOrientationRejectsEmptyInput(t *testing.T) {
	if _, err := rigid.AbsoluteOrientation(nil, nil, nil); err == nil {
		t.Fatal("AbsoluteOrientation with empty input: want error, got nil")
	}
}

func TestIdentityIsNoOp(t *testing.T) {
	tr := rigid.Identity()
	p := pointcloud.Point{X: 1, Y: 2, Z: 3}
	got := tr.Apply(p)
	if got != p {
		t.Fatalf("Identity().Apply(p) = %+v, want %+v", got, p)
	}
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fourpcs_test

import (
	"math"
	"math/rand"
	"testing"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/fourpcs"
)

func rotateY(theta float64) func(pointcloud.Point) pointcloud.Point {
	c, s := math.Cos(theta), math.Sin(theta)
	return func(p pointcloud.Point) pointcloud.Point {
		return pointcloud.Point{X: c*p.X + s*p.Z, Y: p.Y, Z: -s*p.X + c*p.Z}
	}
}

func randomCube(n int, seed int64) *pointcloud.PointCloud {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]pointcloud.Point, n)
	for i := range pts {
		pts[i] = pointcloud.Point{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
	}
	c, err := pointcloud.New(pts, nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}

func transformCloud(c *pointcloud.PointCloud, f func(pointcloud.Point) pointcloud.Point) *pointcloud.PointCloud {
	pts := make([]pointcloud.Point, c.Len())
	for i, p := range c.Points {
		pts[i] = f(p)
	}
	out, err := pointcloud.New(pts, nil, nil)
	if err != nil {
		panic(err)
	}
	return out
}

// TestRunFindsCongruentBaseUnderRotation mirrors spec.md's 4PCS scenario:
// a 500-point cube rotated by Ry(0.2), no correspondences given, baseline
// (non-indexed) enumeration.
func TestRunFindsCongruentBaseUnderRotation(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src := randomCube(500, 1)
	tgt := transformCloud(src, rotateY(0.2))

	params := fourpcs.Params{
		Delta:           0.02,
		Overlap:         0.8,
		SampleSize:      200,
		NumBases:        20,
		MaxIterations:   2000,
		InlierThreshold: 0.05,
		Seed:            42,
	}

	result, err := fourpcs.Run(p, src, tgt, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Converged {
		t.Fatalf("Run did not converge: %+v", result)
	}
	if len(result.InlierIndices) < 1 {
		t.Fatalf("found 0 inliers, want at least 1")
	}
	if result.FitnessScore > 0.1 {
		t.Fatalf("fitness score %v exceeds 0.1", result.FitnessScore)
	}
}

func TestRunSmartIndexingAndBaselineBothFindInliers(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src := randomCube(300, 2)
	tgt := transformCloud(src, rotateY(0.15))

	base := fourpcs.Params{
		Delta:           0.02,
		Overlap:         0.8,
		SampleSize:      150,
		NumBases:        15,
		MaxIterations:   2000,
		InlierThreshold: 0.05,
		Seed:            7,
	}
	smart := base
	smart.SmartIndexing = true

	baselineResult, err := fourpcs.Run(p, src, tgt, base)
	if err != nil {
		t.Fatalf("Run (baseline): %v", err)
	}
	smartResult, err := fourpcs.Run(p, src, tgt, smart)
	if err != nil {
		t.Fatalf("Run (smart indexing): %v", err)
	}
	if len(smartResult.InlierIndices) < 1 {
		t.Fatalf("smart indexing found 0 inliers")
	}
	if len(baselineResult.InlierIndices) < 1 {
		t.Fatalf("baseline found 0 inliers")
	}
}

func TestRunParallelAlsoConverges(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src := randomCube(300, 3)
	tgt := transformCloud(src, rotateY(0.1))

	params := fourpcs.Params{
		Delta:           0.02,
		Overlap:         0.8,
		SampleSize:      150,
		NumBases:        15,
		MaxIterations:   2000,
		InlierThreshold: 0.05,
		Seed:            9,
		Parallel:        true,
	}

	result, err := fourpcs.Run(p, src, tgt, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Converged {
		t.Fatalf("Run did not converge: %+v", result)
	}
}

func TestRunOnTooFewPointsReturnsError(t *testing.T) {
	p := pool.New(1)
	defer p.Shutdown()

	src := randomCube(3, 4)
	tgt := randomCube(3, 5)
	params := fourpcs.Params{Delta: 0.1, Overlap: 0.5, NumBases: 5, InlierThreshold: 0.1}
	if _, err := fourpcs.Run(p, src, tgt, params); err == nil {
		t.Fatal("Run with 3 points: want error, got nil")
	}
}

func TestRunRejectsInvalidParams(t *testing.T) {
	p := pool.New(1)
	defer p.Shutdown()

	src := randomCube(50, 6)
	tgt := randomCube(50, 7)
	bad := fourpcs.Params{Delta: 0, Overlap: 0.5, NumBases: 5, InlierThreshold: 0.1}
	if _, err := fourpcs.Run(p, src, tgt, bad); err == nil {
		t.Fatal("Run with Delta=0: want error, got nil")
	}
}

func TestRunOnDisjointCloudsReportsNoSolution(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	src := randomCube(100, 8)
	rng := rand.New(rand.NewSource(9))
	farPts := make([]pointcloud.Point, 100)
	for i := range farPts {
		farPts[i] = pointcloud.Point{X: rng.Float64()*2 + 1000, Y: rng.Float64()*2 + 1000, Z: rng.Float64()*2 + 1000}
	}
	tgt, err := pointcloud.New(farPts, nil, nil)
	if err != nil {
		t.Fatalf("pointcloud.New: %v", err)
	}

	params := fourpcs.Params{
		Delta: 0.01, Overlap: 0.8, SampleSize: 50, NumBases: 10,
		MaxIterations: 500, InlierThreshold: 0.01, Seed: 1,
	}
	_, err = fourpcs.Run(p, src, tgt, params)
	if err == nil {
		t.Fatal("Run on disjoint clouds: want error, got nil")
	}
}

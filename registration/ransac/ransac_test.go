// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ransac_test

import (
	"math"
	"math/rand"
	"testing"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/correspondence"
	"code.hybscloud.com/pointkit/registration/ransac"
)

func rotateZ(theta float64) func(pointcloud.Point) pointcloud.Point {
	c, s := math.Cos(theta), math.Sin(theta)
	return func(p pointcloud.Point) pointcloud.Point {
		return pointcloud.Point{X: c*p.X - s*p.Y, Y: s*p.X + c*p.Y, Z: p.Z}
	}
}

// buildScene returns srcPts, tgtPts, and a correspondence list where the
// first nInliers entries are true matches under the known transform and
// the rest are random outliers.
func buildScene(nInliers, nOutliers int, seed int64) ([]pointcloud.Point, []pointcloud.Point, []correspondence.Correspondence) {
	rng := rand.New(rand.NewSource(seed))
	rot := rotateZ(0.3)
	translate := pointcloud.Point{X: 2, Y: -1, Z: 0.5}

	src := make([]pointcloud.Point, nInliers+nOutliers)
	tgt := make([]pointcloud.Point, nInliers+nOutliers)
	corrs := make([]correspondence.Correspondence, 0, nInliers+nOutliers)

	for i := 0; i < nInliers; i++ {
		p := pointcloud.Point{X: rng.Float64()*10 - 5, Y: rng.Float64()*10 - 5, Z: rng.Float64()*10 - 5}
		src[i] = p
		tgt[i] = rot(p).Add(translate)
		corrs = append(corrs, correspondence.Correspondence{SrcIdx: i, DstIdx: i})
	}
	for i := nInliers; i < nInliers+nOutliers; i++ {
		src[i] = pointcloud.Point{X: rng.Float64()*10 - 5, Y: rng.Float64()*10 - 5, Z: rng.Float64()*10 - 5}
		tgt[i] = pointcloud.Point{X: rng.Float64()*100 - 50, Y: rng.Float64()*100 - 50, Z: rng.Float64()*100 - 50}
		corrs = append(corrs, correspondence.Correspondence{SrcIdx: i, DstIdx: i})
	}
	return src, tgt, corrs
}

func TestRunRecoversTransformFromMostlyInlierCorrespondences(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src, tgt, corrs := buildScene(40, 10, 1)
	params := ransac.Params{
		MaxIterations:   500,
		InlierThreshold: 0.05,
		MinInliers:      20,
		Confidence:      0.99,
		SampleSize:      3,
		Seed:            7,
	}

	result, err := ransac.Run(p, src, tgt, corrs, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Converged {
		t.Fatalf("Run did not converge: %+v", result)
	}
	if len(result.InlierIndices) < 40 {
		t.Fatalf("found %d inliers, want at least 40", len(result.InlierIndices))
	}
	if result.FitnessScore > 1e-6 {
		t.Fatalf("fitness score %v too high for a clean inlier set", result.FitnessScore)
	}
}

func TestRunParallelAlsoConverges(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src, tgt, corrs := buildScene(40, 10, 2)
	params := ransac.Params{
		MaxIterations:   500,
		InlierThreshold: 0.05,
		MinInliers:      20,
		Confidence:      0.99,
		SampleSize:      3,
		Seed:            11,
		Parallel:        true,
	}

	result, err := ransac.Run(p, src, tgt, corrs, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Converged {
		t.Fatalf("Run did not converge: %+v", result)
	}
	if len(result.InlierIndices) < 40 {
		t.Fatalf("found %d inliers, want at least 40", len(result.InlierIndices))
	}
}

func TestRunFailsWhenInliersBelowMinimum(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	src, tgt, corrs := buildScene(2, 30, 3)
	params := ransac.Params{
		MaxIterations:   200,
		InlierThreshold: 0.05,
		MinInliers:      20,
		Confidence:      0.99,
		SampleSize:      3,
		Seed:            3,
	}

	_, err := ransac.Run(p, src, tgt, corrs, params)
	if err == nil {
		t.Fatal("Run with too few true inliers: want error, got nil")
	}
}

func TestRunRejectsInvalidParams(t *testing.T) {
	p := pool.New(1)
	defer p.Shutdown()

	src, tgt, corrs := buildScene(10, 0, 4)
	bad := ransac.Params{MaxIterations: 10, InlierThreshold: 0.1, MinInliers: 3, Confidence: 0.99, SampleSize: 5}
	if _, err := ransac.Run(p, src, tgt, corrs, bad); err == nil {
		t.Fatal("Run with SampleSize=5: want error, got nil")
	}
}

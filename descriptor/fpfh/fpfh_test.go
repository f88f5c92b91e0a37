// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fpfh_test

import (
	"math"
	"math/rand"
	"testing"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/descriptor/fpfh"
	"code.hybscloud.com/pointkit/knn"
	"code.hybscloud.com/pointkit/pointcloud"
)

func planarCloud(n int, seed int64) *pointcloud.PointCloud {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]pointcloud.Point, n)
	for i := range pts {
		pts[i] = pointcloud.Point{X: rng.Float64() * 5, Y: rng.Float64() * 5, Z: 0}
	}
	c, err := pointcloud.New(pts, nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}

func TestComputeProducesLength33FiniteSignatures(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	cloud := planarCloud(300, 1)
	searcher := knn.NewKDTree()
	if err := searcher.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	e, err := fpfh.New(cloud, searcher, 1.0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keypoints := pointcloud.KeypointIndexSet{10, 50, 100, 200}
	sigs, err := e.Compute(p, keypoints)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(sigs) != len(keypoints) {
		t.Fatalf("got %d signatures, want %d", len(sigs), len(keypoints))
	}
	for i, sig := range sigs {
		if len(sig) != fpfh.Len {
			t.Fatalf("signature %d has length %d, want %d", i, len(sig), fpfh.Len)
		}
		for b, v := range sig {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("signature %d bin %d is not finite: %v", i, b, v)
			}
			if v < 0 {
				t.Fatalf("signature %d bin %d is negative: %v", i, b, v)
			}
		}
	}
}

func TestComputeFastAlsoProducesLength33FiniteSignatures(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	cloud := planarCloud(300, 2)
	searcher := knn.NewKDTree()
	if err := searcher.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	e, err := fpfh.New(cloud, searcher, 1.0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keypoints := pointcloud.KeypointIndexSet{10, 50, 100, 200}
	sigs, err := e.ComputeFast(p, keypoints)
	if err != nil {
		t.Fatalf("ComputeFast: %v", err)
	}
	if len(sigs) != len(keypoints) {
		t.Fatalf("got %d signatures, want %d", len(sigs), len(keypoints))
	}
	for i, sig := range sigs {
		if len(sig) != fpfh.Len {
			t.Fatalf("signature %d has length %d, want %d", i, len(sig), fpfh.Len)
		}
		for b, v := range sig {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("signature %d bin %d is not finite: %v", i, b, v)
			}
		}
	}
}

func TestDistanceIsZeroForIdenticalSignatures(t *testing.T) {
	var a fpfh.Signature
	for i := range a {
		a[i] = float64(i)
	}
	if d := fpfh.Distance(a, a); d != 0 {
		t.Fatalf("Distance(a, a) = %v, want 0", d)
	}
}

func TestNewRejectsNonPositiveRadius(t *testing.T) {
	cloud := planarCloud(10, 3)
	searcher := knn.NewKDTree()
	_ = searcher.SetInput(cloud)
	if _, err := fpfh.New(cloud, searcher, 0); err == nil {
		t.Fatal("New with radius=0: want error, got nil")
	}
}

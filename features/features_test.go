// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features_test

import (
	"math/rand"
	"testing"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/features"
	"code.hybscloud.com/pointkit/knn"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/pointcloud/geom"
)

// planeWithBump returns a mostly-flat patch with a protruding cluster of
// points near the center, so curvature/eigenratio/density-based saliency
// metrics all have something genuine to single out.
func planeWithBump(n int, seed int64) *pointcloud.PointCloud {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]pointcloud.Point, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, pointcloud.Point{X: rng.Float64() * 10, Y: rng.Float64() * 10, Z: 0})
	}
	for i := 0; i < 20; i++ {
		pts = append(pts, pointcloud.Point{
			X: 5 + rng.Float64()*0.3,
			Y: 5 + rng.Float64()*0.3,
			Z: rng.Float64() * 2,
		})
	}
	c, err := pointcloud.New(pts, nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}

func withNormals(t *testing.T, c *pointcloud.PointCloud, radius float64, searcher knn.Searcher) *pointcloud.PointCloud {
	t.Helper()
	normals := make([]pointcloud.Point, c.Len())
	for i, p := range c.Points {
		idx, _, err := searcher.RadiusSearch(p, radius)
		if err != nil || len(idx) < 3 {
			normals[i] = pointcloud.Point{X: 0, Y: 0, Z: 1}
			continue
		}
		pts := make([]pointcloud.Point, len(idx))
		for j, ix := range idx {
			pts[j] = c.Points[ix]
		}
		n, err := geom.Normal(pts, nil, nil)
		if err != nil {
			n = pointcloud.Point{X: 0, Y: 0, Z: 1}
		}
		normals[i] = n
	}
	out, err := c.WithNormals(normals)
	if err != nil {
		t.Fatalf("WithNormals: %v", err)
	}
	return out
}

func setUp(t *testing.T, e features.Extractor, c *pointcloud.PointCloud, searcher knn.Searcher) {
	t.Helper()
	if err := e.SetInput(c); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if err := e.SetKNN(searcher); err != nil {
		t.Fatalf("SetKNN: %v", err)
	}
}

func TestExtractorsProduceValidIndexSets(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	cloud := planeWithBump(300, 1)
	searcher := knn.NewKDTree()
	if err := searcher.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	normalCloud := withNormals(t, cloud, 1.0, searcher)
	normalSearcher := knn.NewKDTree()
	if err := normalSearcher.SetInput(normalCloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	cases := []struct {
		name string
		e    features.Extractor
		c    *pointcloud.PointCloud
		s    knn.Searcher
	}{
		{"Curvature", features.NewCurvature(p, 1.0, 0.01), cloud, searcher},
		{"ISS", features.NewISS(p, 1.0, 0.7, 0.7), cloud, searcher},
		{"Harris3D", features.NewHarris3D(p, 1.0, 0.04, 1e-4), cloud, searcher},
		{"SUSAN", features.NewSUSAN(p, 1.0, 0.5, 0.9, 0.5), normalCloud, normalSearcher},
		{"AGAST", features.NewAGAST(p, 1.0, 0.1, 9), cloud, searcher},
		{"SIFT3D", features.NewSIFT3D(p, 0.5, 1.6, 4, 0.01, 10), cloud, searcher},
		{"MLS", features.NewMLS(p, 1.0, features.MLSOrder1, 0.001), normalCloud, normalSearcher},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setUp(t, tc.e, tc.c, tc.s)
			keys, err := tc.e.Extract()
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !keys.Valid(tc.c.Len()) {
				t.Fatalf("Extract returned out-of-range indices: %v", keys)
			}
		})
	}
}

func TestExtractorsEnableParallelMatchesSerial(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	cloud := planeWithBump(200, 2)
	searcher := knn.NewKDTree()
	if err := searcher.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	serial := features.NewCurvature(p, 1.0, 0.01)
	setUp(t, serial, cloud, searcher)
	serialKeys, err := serial.Extract()
	if err != nil {
		t.Fatalf("Extract (serial): %v", err)
	}

	parallelExt := features.NewCurvature(p, 1.0, 0.01)
	setUp(t, parallelExt, cloud, searcher)
	parallelExt.EnableParallel(true)
	parallelKeys, err := parallelExt.Extract()
	if err != nil {
		t.Fatalf("Extract (parallel): %v", err)
	}

	if len(serialKeys) != len(parallelKeys) {
		t.Fatalf("serial found %d keypoints, parallel found %d", len(serialKeys), len(parallelKeys))
	}
	for i := range serialKeys {
		if serialKeys[i] != parallelKeys[i] {
			t.Fatalf("serial and parallel diverge at %d: %d vs %d", i, serialKeys[i], parallelKeys[i])
		}
	}
}

func TestExtractRequiresSetInputAndSetKNN(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	e := features.NewCurvature(p, 1.0, 0.01)
	if _, err := e.Extract(); err == nil {
		t.Fatal("Extract before SetInput/SetKNN: want error, got nil")
	}

	cloud := planeWithBump(10, 3)
	if err := e.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if _, err := e.Extract(); err == nil {
		t.Fatal("Extract before SetKNN: want error, got nil")
	}
}

func TestExtractOnEmptyCloudReturnsEmptyNoError(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	empty, err := pointcloud.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("pointcloud.New: %v", err)
	}

	e := features.NewCurvature(p, 1.0, 0.01)
	if err := e.SetInput(empty); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if err := e.SetKNN(knn.NewBruteForce()); err != nil {
		t.Fatalf("SetKNN: %v", err)
	}
	keys, err := e.Extract()
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Extract on empty cloud: got %d keypoints, want 0", len(keys))
	}
}

func TestMLSRequiresNormals(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	cloud := planeWithBump(50, 4)
	searcher := knn.NewKDTree()
	if err := searcher.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	m := features.NewMLS(p, 1.0, features.MLSOrder0, 0.001)
	setUp(t, m, cloud, searcher)
	if _, err := m.Extract(); err == nil {
		t.Fatal("Extract without normals: want error, got nil")
	}
}

func TestLOAMDualInterface(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	cloud := planeWithBump(300, 5)
	searcher := knn.NewKDTree()
	if err := searcher.SetInput(cloud); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	l := features.NewLOAM(p, 1.0, 0.9, 0.01)
	setUp(t, l, cloud, searcher)

	lc, err := l.ExtractLabeledCloud()
	if err != nil {
		t.Fatalf("ExtractLabeledCloud: %v", err)
	}
	if len(lc.Labels) != cloud.Len() {
		t.Fatalf("got %d labels, want %d", len(lc.Labels), cloud.Len())
	}

	union := lc.Extract()
	edges := lc.EdgeIndices()
	planar := lc.PlanarIndices()
	if len(union) != len(edges)+len(planar) {
		t.Fatalf("Extract() union length %d != edge(%d)+planar(%d)", len(union), len(edges), len(planar))
	}

	keys, err := l.Extract()
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(keys) != len(union) {
		t.Fatalf("Extract() via Extractor interface length %d != ExtractLabeledCloud union length %d", len(keys), len(union))
	}
}

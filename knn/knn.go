// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package knn implements the nearest-neighbor search capability (C4)
// FPFH and the keypoint extractors bind to a cloud and query through:
// KDTree, BruteForce, and ParallelBruteForce, all behind the Searcher
// interface (spec.md §4.4).
package knn

import (
	"fmt"
	"sort"

	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// Searcher is the capability every KNN backend exposes: bind a cloud
// once, then answer k-nearest and radius queries against it
// (spec.md §4.4). Returned indices are unique and, within a single
// result, sorted by increasing squared distance; squared Euclidean
// distance is returned unless documented otherwise.
type Searcher interface {
	// SetInput binds (and, for backends that need it, preprocesses) the
	// cloud subsequent queries run against.
	SetInput(cloud *pointcloud.PointCloud) error

	// KNearest returns up to k nearest neighbors of query, sorted by
	// increasing squared distance. If fewer than k points exist, all
	// available are returned.
	KNearest(query pointcloud.Point, k int) (indices []int, sqDistances []float64, err error)

	// RadiusSearch returns every point within radius of query, sorted by
	// increasing squared distance.
	RadiusSearch(query pointcloud.Point, radius float64) (indices []int, sqDistances []float64, err error)
}

func sqDist(a, b pointcloud.Point) float64 {
	d := a.Sub(b)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

// neighborHit is a candidate result shared by every backend: a point
// index paired with its squared distance to the query.
type neighborHit struct {
	idx    int
	sqDist float64
}

func validateRadius(radius float64) error {
	if radius <= 0 {
		return fmt.Errorf("knn: radius must be positive, got %v: %w", radius, perr.InvalidArgument)
	}
	return nil
}

func validateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("knn: k must be positive, got %d: %w", k, perr.InvalidArgument)
	}
	return nil
}

// sortHitsByDistance sorts hits ascending by sqDist, breaking ties by
// index so output is deterministic.
func sortHitsByDistance(hits []neighborHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sqDist != hits[j].sqDist {
			return hits[i].sqDist < hits[j].sqDist
		}
		return hits[i].idx < hits[j].idx
	})
}

func splitHits(hits []neighborHit) (indices []int, sqDistances []float64) {
	indices = make([]int, len(hits))
	sqDistances = make([]float64, len(hits))
	for i, h := range hits {
		indices[i] = h.idx
		sqDistances[i] = h.sqDist
	}
	return indices, sqDistances
}

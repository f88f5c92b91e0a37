// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package knn

import (
	"fmt"

	"code.hybscloud.com/pointkit/concurrent/parallel"
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// ParallelBruteForce is BruteForce with the distance sweep dispatched
// across a thread pool via concurrent/parallel (spec.md §4.4 "Parallel
// brute force"). Selection (top-k) and radius filtering remain serial;
// only the O(n) distance computation is parallelized.
type ParallelBruteForce struct {
	pool  *pool.Pool
	cloud *pointcloud.PointCloud
}

func NewParallelBruteForce(p *pool.Pool) *ParallelBruteForce {
	return &ParallelBruteForce{pool: p}
}

func (b *ParallelBruteForce) SetInput(cloud *pointcloud.PointCloud) error {
	if cloud == nil || cloud.Len() == 0 {
		return fmt.Errorf("knn: ParallelBruteForce.SetInput: empty cloud: %w", perr.EmptyInput)
	}
	b.cloud = cloud
	return nil
}

func (b *ParallelBruteForce) scanAllParallel(query pointcloud.Point) ([]neighborHit, error) {
	points := b.cloud.Points
	hits := make([]neighborHit, len(points))
	err := parallel.ForEach(b.pool, hits, func(i int, v *neighborHit) {
		*v = neighborHit{i, sqDist(query, points[i])}
	})
	return hits, err
}

func (b *ParallelBruteForce) KNearest(query pointcloud.Point, k int) ([]int, []float64, error) {
	if err := validateK(k); err != nil {
		return nil, nil, err
	}
	if b.cloud == nil {
		return nil, nil, fmt.Errorf("knn: ParallelBruteForce.KNearest: SetInput not called: %w", perr.InvalidArgument)
	}
	hits, err := b.scanAllParallel(query)
	if err != nil {
		return nil, nil, err
	}
	sortHitsByDistance(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return splitHits(hits)
}

func (b *ParallelBruteForce) RadiusSearch(query pointcloud.Point, radius float64) ([]int, []float64, error) {
	if err := validateRadius(radius); err != nil {
		return nil, nil, err
	}
	if b.cloud == nil {
		return nil, nil, fmt.Errorf("knn: ParallelBruteForce.RadiusSearch: SetInput not called: %w", perr.InvalidArgument)
	}
	hits, err := b.scanAllParallel(query)
	if err != nil {
		return nil, nil, err
	}
	r2 := radius * radius
	within := hits[:0:0]
	for _, h := range hits {
		if h.sqDist <= r2 {
			within = append(within, h)
		}
	}
	sortHitsByDistance(within)
	return splitHits(within)
}

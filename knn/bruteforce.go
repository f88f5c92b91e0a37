// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package knn

import (
	"fmt"

	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// BruteForce is the no-preprocessing Searcher: every query is an O(n)
// scan of the bound cloud (spec.md §4.4 "Brute force").
type BruteForce struct {
	cloud *pointcloud.PointCloud
}

func NewBruteForce() *BruteForce { return &BruteForce{} }

func (b *BruteForce) SetInput(cloud *pointcloud.PointCloud) error {
	if cloud == nil || cloud.Len() == 0 {
		return fmt.Errorf("knn: BruteForce.SetInput: empty cloud: %w", perr.EmptyInput)
	}
	b.cloud = cloud
	return nil
}

func (b *BruteForce) KNearest(query pointcloud.Point, k int) ([]int, []float64, error) {
	if err := validateK(k); err != nil {
		return nil, nil, err
	}
	if b.cloud == nil {
		return nil, nil, fmt.Errorf("knn: BruteForce.KNearest: SetInput not called: %w", perr.InvalidArgument)
	}
	hits := scanAll(b.cloud.Points, query)
	sortHitsByDistance(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return splitHits(hits)
}

func (b *BruteForce) RadiusSearch(query pointcloud.Point, radius float64) ([]int, []float64, error) {
	if err := validateRadius(radius); err != nil {
		return nil, nil, err
	}
	if b.cloud == nil {
		return nil, nil, fmt.Errorf("knn: BruteForce.RadiusSearch: SetInput not called: %w", perr.InvalidArgument)
	}
	r2 := radius * radius
	hits := make([]neighborHit, 0)
	for i, p := range b.cloud.Points {
		if d := sqDist(query, p); d <= r2 {
			hits = append(hits, neighborHit{i, d})
		}
	}
	sortHitsByDistance(hits)
	return splitHits(hits)
}

func scanAll(points []pointcloud.Point, query pointcloud.Point) []neighborHit {
	hits := make([]neighborHit, len(points))
	for i, p := range points {
		hits[i] = neighborHit{i, sqDist(query, p)}
	}
	return hits
}

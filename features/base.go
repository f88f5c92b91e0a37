// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package features implements the eight keypoint extractors of C6:
// Curvature, ISS, Harris3D, SIFT3D, SUSAN, AGAST, MLS, and LOAM, sharing
// a common (set_input, set_knn, enable_parallel, extract) capability
// (spec.md §4.6).
package features

import (
	"fmt"

	"code.hybscloud.com/pointkit/concurrent/parallel"
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/knn"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// Extractor is the uniform capability every algorithm in this package
// implements (spec.md §4.6 "Uniform interface").
type Extractor interface {
	SetInput(cloud *pointcloud.PointCloud) error
	SetKNN(s knn.Searcher) error
	EnableParallel(flag bool)
	Extract() (pointcloud.KeypointIndexSet, error)
}

// base is embedded by every extractor: it owns the bound cloud/searcher/
// pool and implements the responsibilities common to all of them
// (spec.md §4.6 "Responsibilities common to all extractors").
type base struct {
	cloud     *pointcloud.PointCloud
	searcher  knn.Searcher
	pool      *pool.Pool
	parallel  bool
	nmsRadius float64
}

func newBase(p *pool.Pool, nmsRadius float64) base {
	return base{pool: p, nmsRadius: nmsRadius}
}

func (b *base) SetInput(cloud *pointcloud.PointCloud) error {
	if cloud == nil {
		return fmt.Errorf("features: SetInput: nil cloud: %w", perr.InvalidArgument)
	}
	b.cloud = cloud
	return nil
}

func (b *base) SetKNN(s knn.Searcher) error {
	if s == nil {
		return fmt.Errorf("features: SetKNN: nil searcher: %w", perr.InvalidArgument)
	}
	b.searcher = s
	return nil
}

func (b *base) EnableParallel(flag bool) { b.parallel = flag }

func (b *base) SetNMSRadius(r float64) { b.nmsRadius = r }
func (b *base) NMSRadius() float64     { return b.nmsRadius }

// ready validates that set_input and set_knn were both called
// (spec.md §4.6 common responsibilities, bullet 1).
func (b *base) ready() error {
	if b.cloud == nil || b.searcher == nil {
		return fmt.Errorf("features: set_input and set_knn must be called before extract: %w", perr.InvalidArgument)
	}
	if b.cloud.Len() == 0 {
		return nil // handled by caller: empty cloud -> empty index set, no error
	}
	return nil
}

// scoreAll computes score[i] for every point, serially or via C3
// depending on the parallel flag (spec.md §4.6 "Parallelism"). ok[i] is
// false when the point could not be scored (e.g. too few neighbors);
// such points never pass the saliency threshold.
func (b *base) scoreAll(scoreAt func(i int) (score float64, ok bool)) ([]float64, []bool, error) {
	n := b.cloud.Len()
	scores := make([]float64, n)
	oks := make([]bool, n)
	if !b.parallel {
		for i := 0; i < n; i++ {
			scores[i], oks[i] = scoreAt(i)
		}
		return scores, oks, nil
	}

	type result struct {
		score float64
		ok    bool
	}
	results := make([]result, n)
	err := parallel.ForEach(b.pool, results, func(i int, v *result) {
		v.score, v.ok = scoreAt(i)
	})
	if err != nil {
		return nil, nil, err
	}
	for i, r := range results {
		scores[i], oks[i] = r.score, r.ok
	}
	return scores, oks, nil
}

// selectKeypoints thresholds scores, then applies non-maximum
// suppression within nmsRadius (score-dominance over neighbors), then
// returns kept indices in ascending order (spec.md §4.6 common
// responsibilities, bullets 2-5).
func (b *base) selectKeypoints(scores []float64, oks []bool, pass func(score float64) bool) (pointcloud.KeypointIndexSet, error) {
	candidates := make([]int, 0)
	for i, ok := range oks {
		if ok && pass(scores[i]) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}
	kept := b.nonMaxSuppress(candidates, scores)
	return pointcloud.KeypointIndexSet(kept), nil
}

func (b *base) nonMaxSuppress(candidates []int, scores []float64) []int {
	if b.nmsRadius <= 0 {
		out := append([]int(nil), candidates...)
		return out
	}
	isCandidate := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		isCandidate[c] = true
	}

	kept := make([]int, 0, len(candidates))
	for _, c := range candidates {
		idx, _, err := b.searcher.RadiusSearch(b.cloud.Points[c], b.nmsRadius)
		if err != nil {
			continue
		}
		dominant := true
		for _, n := range idx {
			if n == c || !isCandidate[n] {
				continue
			}
			if scores[n] > scores[c] || (scores[n] == scores[c] && n < c) {
				dominant = false
				break
			}
		}
		if dominant {
			kept = append(kept, c)
		}
	}
	return kept
}

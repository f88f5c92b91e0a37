// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"math"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
)

// LOAM scores each point's smoothness over its radial neighborhood and
// classifies it as an edge (smoothness above edgeThreshold), planar
// (below planarThreshold), or non-feature otherwise, returning a
// LabeledCloud rather than a plain KeypointIndexSet (spec.md §4.6
// "LOAM" row, §4.6 "LOAM dual interface").
//
// Smoothness follows the original LOAM formulation, c(p) =
// ||sum_{q in N(p)} (q - p)|| / (|N(p)| * ||p||): points are assumed
// expressed relative to a sensor origin, as in the original scanning
// LIDAR use case this algorithm was designed for.
type LOAM struct {
	base
	radius          float64
	edgeThreshold   float64
	planarThreshold float64
}

func NewLOAM(p *pool.Pool, radius, edgeThreshold, planarThreshold float64) *LOAM {
	return &LOAM{base: newBase(p, radius), radius: radius, edgeThreshold: edgeThreshold, planarThreshold: planarThreshold}
}

func (l *LOAM) SetRadius(r float64)               { l.radius = r }
func (l *LOAM) Radius() float64                    { return l.radius }
func (l *LOAM) SetThresholds(edge, planar float64) { l.edgeThreshold, l.planarThreshold = edge, planar }
func (l *LOAM) Thresholds() (float64, float64)     { return l.edgeThreshold, l.planarThreshold }

// Extract returns the edge-union-planar keypoint set (spec.md §4.6
// "extract()").
func (l *LOAM) Extract() (pointcloud.KeypointIndexSet, error) {
	lc, err := l.ExtractLabeledCloud()
	if err != nil {
		return nil, err
	}
	return lc.Extract(), nil
}

// ExtractLabeledCloud returns the full per-point labeling
// (spec.md §4.6 "extract_labeled_cloud()").
func (l *LOAM) ExtractLabeledCloud() (*pointcloud.LabeledCloud, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	n := l.cloud.Len()
	if n == 0 {
		return pointcloud.NewLabeledCloud(l.cloud, nil)
	}

	labels := make([]pointcloud.Label, n)
	label := func(i int) (float64, bool) {
		c, ok := l.smoothnessAt(i)
		if !ok {
			return 0, false
		}
		switch {
		case c > l.edgeThreshold:
			labels[i] = pointcloud.LabelEdge
		case c < l.planarThreshold:
			labels[i] = pointcloud.LabelPlanar
		default:
			labels[i] = pointcloud.LabelNonFeature
		}
		return c, true
	}

	if _, _, err := l.scoreAll(label); err != nil {
		return nil, err
	}
	return pointcloud.NewLabeledCloud(l.cloud, labels)
}

func (l *LOAM) smoothnessAt(i int) (float64, bool) {
	p := l.cloud.Points[i]
	originDist := math.Sqrt(p.Dot(p))
	if originDist < 1e-9 {
		return 0, false
	}
	idx, _, err := l.searcher.RadiusSearch(p, l.radius)
	if err != nil || len(idx) < 2 {
		return 0, false
	}
	var sum pointcloud.Point
	n := 0
	for _, ix := range idx {
		if ix == i {
			continue
		}
		sum = sum.Add(l.cloud.Points[ix].Sub(p))
		n++
	}
	if n == 0 {
		return 0, false
	}
	mag := math.Sqrt(sum.Dot(sum))
	return mag / (float64(n) * originDist), true
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// MLSOrder is the polynomial order MLS fits to the neighborhood
// projected onto the point's normal frame (spec.md §4.6 "MLS" row).
type MLSOrder int

const (
	MLSOrder0 MLSOrder = iota
	MLSOrder1
	MLSOrder2
)

// MLS fits a degree-Order polynomial surface to each point's
// neighborhood, projected into the (u, v, normal) frame at that point,
// and scores saliency by the fit's residual variation. Requires normals
// on the input cloud (spec.md §4.6 "MLS" row, "Requires normals").
//
// spec.md leaves the variation-threshold default unspecified (the
// source's benchmark and test defaults disagree by an order of
// magnitude); VariationThreshold has no default here and must be set
// explicitly via NewMLS or SetVariationThreshold.
type MLS struct {
	base
	radius             float64
	order              MLSOrder
	variationThreshold float64
	thresholdSet       bool
}

// NewMLS requires radius, order, and variationThreshold: the threshold
// has no canonical default (spec.md Open Questions).
func NewMLS(p *pool.Pool, radius float64, order MLSOrder, variationThreshold float64) *MLS {
	return &MLS{
		base:               newBase(p, radius),
		radius:             radius,
		order:              order,
		variationThreshold: variationThreshold,
		thresholdSet:       true,
	}
}

func (m *MLS) SetRadius(r float64)              { m.radius = r }
func (m *MLS) Radius() float64                  { return m.radius }
func (m *MLS) SetOrder(o MLSOrder)              { m.order = o }
func (m *MLS) Order() MLSOrder                  { return m.order }
func (m *MLS) SetVariationThreshold(t float64) {
	m.variationThreshold = t
	m.thresholdSet = true
}
func (m *MLS) VariationThreshold() float64 { return m.variationThreshold }

func (m *MLS) Extract() (pointcloud.KeypointIndexSet, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if !m.cloud.HasNormals() {
		return nil, fmt.Errorf("features: MLS requires per-point normals on the input cloud: %w", perr.InvalidArgument)
	}
	if !m.thresholdSet {
		return nil, fmt.Errorf("features: MLS.VariationThreshold must be set explicitly: %w", perr.InvalidArgument)
	}
	if m.cloud.Len() == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}

	scores, oks, err := m.scoreAll(func(i int) (float64, bool) { return m.variationAt(i) })
	if err != nil {
		return nil, err
	}
	return m.selectKeypoints(scores, oks, func(score float64) bool { return score >= m.variationThreshold })
}

// variationAt fits the local polynomial and returns the mean squared
// residual of the fit (the "variation").
func (m *MLS) variationAt(i int) (float64, bool) {
	p := m.cloud.Points[i]
	np := m.cloud.Normals[i]
	if np == (pointcloud.Point{}) {
		return 0, false
	}
	idx, _, err := m.searcher.RadiusSearch(p, m.radius)
	if err != nil {
		return 0, false
	}

	// Tangent frame: any vector not parallel to np, then Gram-Schmidt.
	ref := pointcloud.Point{X: 1, Y: 0, Z: 0}
	if math.Abs(np.X) > 0.9 {
		ref = pointcloud.Point{X: 0, Y: 1, Z: 0}
	}
	u := np.Cross(ref)
	uNorm := math.Sqrt(u.Dot(u))
	if uNorm < 1e-12 {
		return 0, false
	}
	u = u.Scale(1 / uNorm)
	v := np.Cross(u)

	type sample struct{ u, vv, z float64 }
	samples := make([]sample, 0, len(idx))
	for _, ix := range idx {
		q := m.cloud.Points[ix].Sub(p)
		samples = append(samples, sample{q.Dot(u), q.Dot(v), q.Dot(np)})
	}
	minSamples := minSamplesFor(m.order)
	if len(samples) < minSamples {
		return 0, false
	}

	switch m.order {
	case MLSOrder0:
		mean := 0.0
		for _, s := range samples {
			mean += s.z
		}
		mean /= float64(len(samples))
		variance := 0.0
		for _, s := range samples {
			d := s.z - mean
			variance += d * d
		}
		return variance / float64(len(samples)), true

	case MLSOrder1, MLSOrder2:
		cols := 3
		if m.order == MLSOrder2 {
			cols = 6
		}
		a := mat.NewDense(len(samples), cols, nil)
		b := mat.NewVecDense(len(samples), nil)
		for r, s := range samples {
			row := []float64{1, s.u, s.vv}
			if cols == 6 {
				row = append(row, s.u*s.u, s.vv*s.vv, s.u*s.vv)
			}
			a.SetRow(r, row)
			b.SetVec(r, s.z)
		}
		var x mat.VecDense
		if err := x.SolveVec(a, b); err != nil {
			return 0, false
		}
		sse := 0.0
		for r, s := range samples {
			pred := x.AtVec(0) + x.AtVec(1)*s.u + x.AtVec(2)*s.vv
			if cols == 6 {
				pred += x.AtVec(3)*s.u*s.u + x.AtVec(4)*s.vv*s.vv + x.AtVec(5)*s.u*s.vv
			}
			d := s.z - pred
			sse += d * d
		}
		return sse / float64(len(samples)), true
	}
	return 0, false
}

func minSamplesFor(order MLSOrder) int {
	switch order {
	case MLSOrder1:
		return 4
	case MLSOrder2:
		return 7
	default:
		return 2
	}
}


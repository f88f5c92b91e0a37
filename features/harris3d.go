// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/pointcloud/geom"
)

// Harris3D extracts points whose Harris response
// det(M) - k*trace(M)^2 exceeds a threshold, where M is the 3x3 weighted
// covariance of the neighborhood (spec.md §4.6 "Harris3D" row).
type Harris3D struct {
	base
	radius    float64
	k         float64
	threshold float64
}

func NewHarris3D(p *pool.Pool, radius, k, threshold float64) *Harris3D {
	return &Harris3D{base: newBase(p, radius), radius: radius, k: k, threshold: threshold}
}

func (h *Harris3D) SetRadius(r float64)    { h.radius = r }
func (h *Harris3D) Radius() float64        { return h.radius }
func (h *Harris3D) SetK(k float64)         { h.k = k }
func (h *Harris3D) K() float64             { return h.k }
func (h *Harris3D) SetThreshold(t float64) { h.threshold = t }
func (h *Harris3D) Threshold() float64     { return h.threshold }

func (h *Harris3D) Extract() (pointcloud.KeypointIndexSet, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	if h.cloud.Len() == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}

	scores, oks, err := h.scoreAll(func(i int) (float64, bool) { return h.responseAt(i) })
	if err != nil {
		return nil, err
	}
	return h.selectKeypoints(scores, oks, func(score float64) bool { return score >= h.threshold })
}

func (h *Harris3D) responseAt(i int) (float64, bool) {
	idx, sqDist, err := h.searcher.RadiusSearch(h.cloud.Points[i], h.radius)
	if err != nil || len(idx) < 3 {
		return 0, false
	}
	pts := make([]pointcloud.Point, len(idx))
	weights := make([]float64, len(idx))
	for j, ix := range idx {
		pts[j] = h.cloud.Points[ix]
		// Fall-off weight 1 - d^2/r^2: 1 at the center, 0 at the radius.
		weights[j] = 1 - sqDist[j]/(h.radius*h.radius)
		if weights[j] < 0 {
			weights[j] = 0
		}
	}
	m := geom.Covariance(pts, weights)
	det := m.At(0, 0)*(m.At(1, 1)*m.At(2, 2)-m.At(1, 2)*m.At(2, 1)) -
		m.At(0, 1)*(m.At(1, 0)*m.At(2, 2)-m.At(1, 2)*m.At(2, 0)) +
		m.At(0, 2)*(m.At(1, 0)*m.At(2, 1)-m.At(1, 1)*m.At(2, 0))
	trace := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	response := det - h.k*trace*trace
	return response, true
}

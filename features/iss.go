// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/pointcloud/geom"
)

// ISS (Intrinsic Shape Signatures) extracts points whose neighborhood
// covariance eigenvalues (decreasing order lambda_0 >= lambda_1 >=
// lambda_2) satisfy lambda_1/lambda_0 < t21 and lambda_2/lambda_1 < t32
// (spec.md §4.6 "ISS" row).
type ISS struct {
	base
	salientRadius float64
	t21, t32      float64
}

func NewISS(p *pool.Pool, salientRadius, t21, t32 float64) *ISS {
	return &ISS{base: newBase(p, salientRadius), salientRadius: salientRadius, t21: t21, t32: t32}
}

func (s *ISS) SetSalientRadius(r float64) { s.salientRadius = r }
func (s *ISS) SalientRadius() float64     { return s.salientRadius }
func (s *ISS) SetRatios(t21, t32 float64) { s.t21, s.t32 = t21, t32 }
func (s *ISS) Ratios() (float64, float64) { return s.t21, s.t32 }

// Extract scores each salient point by its smallest covariance
// eigenvalue and marks non-salient points as unscored; the NMS dominance
// comparison in base.selectKeypoints then ranks salient candidates by
// that eigenvalue.
func (s *ISS) Extract() (pointcloud.KeypointIndexSet, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.cloud.Len() == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}

	scores, oks, err := s.scoreAll(func(i int) (float64, bool) {
		return s.scoreAt(i)
	})
	if err != nil {
		return nil, err
	}
	return s.selectKeypoints(scores, oks, func(score float64) bool { return score > 0 })
}

func (s *ISS) scoreAt(i int) (float64, bool) {
	idx, _, err := s.searcher.RadiusSearch(s.cloud.Points[i], s.salientRadius)
	if err != nil || len(idx) < 3 {
		return 0, false
	}
	pts := make([]pointcloud.Point, len(idx))
	for j, ix := range idx {
		pts[j] = s.cloud.Points[ix]
	}
	cov := geom.Covariance(pts, nil)
	eig, err := geom.Eigen3x3Sym(cov)
	if err != nil {
		return 0, false
	}
	// Eigen3x3Sym returns ascending; ISS wants decreasing order.
	l0, l1, l2 := eig.Values[2], eig.Values[1], eig.Values[0]
	if l0 <= 0 {
		return 0, false
	}
	salient := (l1/l0 < s.t21) && (l1 > 0 && l2/l1 < s.t32)
	if salient {
		return l2, true // smallest eigenvalue as the saliency magnitude, for NMS ranking
	}
	return 0, false
}

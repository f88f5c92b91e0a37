// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/pointcloud/geom"
)

// Curvature extracts points whose neighborhood covariance surface
// curvature (lambda_min / trace) exceeds a threshold
// (spec.md §4.6 "Curvature" row).
type Curvature struct {
	base
	radius    float64
	threshold float64
}

func NewCurvature(p *pool.Pool, radius, threshold float64) *Curvature {
	return &Curvature{base: newBase(p, radius), radius: radius, threshold: threshold}
}

func (c *Curvature) SetRadius(r float64)    { c.radius = r }
func (c *Curvature) Radius() float64        { return c.radius }
func (c *Curvature) SetThreshold(t float64) { c.threshold = t }
func (c *Curvature) Threshold() float64     { return c.threshold }

func (c *Curvature) Extract() (pointcloud.KeypointIndexSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if c.cloud.Len() == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}

	scores, oks, err := c.scoreAll(func(i int) (float64, bool) {
		return c.curvatureAt(i)
	})
	if err != nil {
		return nil, err
	}
	return c.selectKeypoints(scores, oks, func(s float64) bool {
		return s >= c.threshold
	})
}

func (c *Curvature) curvatureAt(i int) (float64, bool) {
	idx, _, err := c.searcher.RadiusSearch(c.cloud.Points[i], c.radius)
	if err != nil || len(idx) < 3 {
		return 0, false
	}
	pts := make([]pointcloud.Point, len(idx))
	for j, ix := range idx {
		pts[j] = c.cloud.Points[ix]
	}
	cov := geom.Covariance(pts, nil)
	eig, err := geom.Eigen3x3Sym(cov)
	if err != nil {
		return 0, false
	}
	v, err := geom.Curvature(eig)
	if err != nil {
		return 0, false
	}
	return v, true
}

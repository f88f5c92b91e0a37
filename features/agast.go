// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"math"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
)

const agastRingSamples = 16

// AGAST samples a fixed pattern of points on a small sphere around the
// center and looks for a contiguous arc of at least minArc points all
// brighter-than or all darker-than the center relative to a threshold
// (spec.md §4.6 "AGAST" row). The "intensity" surrogate is color
// luminance when colors are present, otherwise the point's distance
// from the coordinate origin (a neighbor nearer the origin than the
// center reads "darker", farther reads "brighter").
type AGAST struct {
	base
	radius    float64
	threshold float64
	minArc    int
}

func NewAGAST(p *pool.Pool, radius, threshold float64, minArc int) *AGAST {
	return &AGAST{base: newBase(p, radius), radius: radius, threshold: threshold, minArc: minArc}
}

func (a *AGAST) SetRadius(r float64)       { a.radius = r }
func (a *AGAST) Radius() float64           { return a.radius }
func (a *AGAST) SetThreshold(t float64)    { a.threshold = t }
func (a *AGAST) Threshold() float64        { return a.threshold }
func (a *AGAST) SetMinArc(n int)           { a.minArc = n }
func (a *AGAST) MinArc() int               { return a.minArc }

func (a *AGAST) Extract() (pointcloud.KeypointIndexSet, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if a.cloud.Len() == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}

	scores, oks, err := a.scoreAll(func(i int) (float64, bool) { return a.arcScoreAt(i) })
	if err != nil {
		return nil, err
	}
	return a.selectKeypoints(scores, oks, func(score float64) bool { return score >= float64(a.minArc) })
}

// arcScoreAt returns the length of the longest contiguous all-brighter
// or all-darker arc among the neighbors closest in angle to each of
// agastRingSamples fixed bearing directions, measured in the global XY
// plane around the point.
func (a *AGAST) arcScoreAt(i int) (float64, bool) {
	p := a.cloud.Points[i]
	idx, _, err := a.searcher.RadiusSearch(p, a.radius)
	if err != nil || len(idx) < a.minArc {
		return 0, false
	}

	centerIntensity := a.intensityAt(i)
	ring := make([]float64, agastRingSamples) // signed deviation from center per bearing bucket, 0 if empty
	hit := make([]bool, agastRingSamples)
	for _, ix := range idx {
		if ix == i {
			continue
		}
		q := a.cloud.Points[ix]
		bearing := math.Atan2(q.Y-p.Y, q.X-p.X)
		bucket := int((bearing + math.Pi) / (2 * math.Pi) * agastRingSamples)
		if bucket >= agastRingSamples {
			bucket = agastRingSamples - 1
		}
		dev := a.intensityAt(ix) - centerIntensity
		if !hit[bucket] || math.Abs(dev) > math.Abs(ring[bucket]) {
			ring[bucket] = dev
			hit[bucket] = true
		}
	}

	sign := func(b int) int {
		if !hit[b] {
			return 0
		}
		if ring[b] > a.threshold {
			return 1
		}
		if ring[b] < -a.threshold {
			return -1
		}
		return 0
	}

	best := 0
	for start := 0; start < agastRingSamples; start++ {
		want := sign(start)
		if want == 0 {
			continue
		}
		run := 0
		for k := 0; k < agastRingSamples; k++ {
			if sign((start+k)%agastRingSamples) == want {
				run++
			} else {
				break
			}
		}
		if run > best {
			best = run
		}
	}
	return float64(best), true
}

func (a *AGAST) intensityAt(i int) float64 {
	if a.cloud.Colors != nil {
		c := a.cloud.Colors[i]
		return 0.299*c.R + 0.587*c.G + 0.114*c.B
	}
	p := a.cloud.Points[i]
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

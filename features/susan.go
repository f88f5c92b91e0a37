// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package features

import (
	"math"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/pointcloud"
)

// SUSAN counts neighbors geometrically (and, if normals are present,
// directionally) similar to the center; a point is salient when that
// count falls below a fraction of the neighborhood size
// (spec.md §4.6 "SUSAN" row).
type SUSAN struct {
	base
	radius          float64
	geomSimilarity  float64 // max distance ratio (to radius) counted as similar
	normalSimilarity float64 // min normal dot-product counted as similar; ignored if cloud has no normals
	usnFraction     float64 // salient if similarCount/neighborhoodSize < usnFraction
}

func NewSUSAN(p *pool.Pool, radius, geomSimilarity, normalSimilarity, usnFraction float64) *SUSAN {
	return &SUSAN{
		base:             newBase(p, radius),
		radius:           radius,
		geomSimilarity:   geomSimilarity,
		normalSimilarity: normalSimilarity,
		usnFraction:      usnFraction,
	}
}

func (s *SUSAN) SetRadius(r float64)            { s.radius = r }
func (s *SUSAN) Radius() float64                { return s.radius }
func (s *SUSAN) SetUSNFraction(f float64)       { s.usnFraction = f }
func (s *SUSAN) USNFraction() float64           { return s.usnFraction }

func (s *SUSAN) Extract() (pointcloud.KeypointIndexSet, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.cloud.Len() == 0 {
		return pointcloud.KeypointIndexSet{}, nil
	}

	fractions, oks, err := s.scoreAll(func(i int) (float64, bool) { return s.fractionAt(i) })
	if err != nil {
		return nil, err
	}
	// A lower similar-neighbor fraction is more salient; negate so the
	// shared NMS dominance rule ("higher score wins") still applies.
	scores := invertForDominance(fractions)
	return s.selectKeypoints(scores, oks, func(score float64) bool {
		return score >= -s.usnFraction
	})
}

// fractionAt computes similarCount/neighborhoodSize; the caller treats a
// point as salient (to be kept) when this is below usnFraction.
func (s *SUSAN) fractionAt(i int) (float64, bool) {
	idx, sqDist, err := s.searcher.RadiusSearch(s.cloud.Points[i], s.radius)
	if err != nil || len(idx) < 2 {
		return 0, false
	}
	hasNormals := s.cloud.HasNormals()
	similar := 0
	n := 0
	for j, ix := range idx {
		if ix == i {
			continue
		}
		n++
		geomClose := math.Sqrt(sqDist[j]) <= s.geomSimilarity*s.radius
		normalClose := true
		if hasNormals {
			normalClose = s.cloud.Normals[i].Dot(s.cloud.Normals[ix]) >= s.normalSimilarity
		}
		if geomClose && normalClose {
			similar++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(similar) / float64(n), true
}

func invertForDominance(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = -s
	}
	return out
}

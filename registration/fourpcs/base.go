// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fourpcs

import (
	"math"
	"math/rand"

	"code.hybscloud.com/pointkit/pointcloud"
)

// sourceBase is a congruent four-point base drawn from the source cloud:
// two diagonals A-B and C-D that intersect at affine ratios r1, r2
// (spec.md §4.9 "Core idea (4PCS)").
type sourceBase struct {
	idx    [4]int // A, B, C, D
	d1, d2 float64
	r1, r2 float64
}

// chooseBase draws four coplanar points from sample (indices into
// points) whose diagonals A-B and C-D intersect, and returns their
// indices plus diagonal lengths and intersection ratios. It gives up
// after a bounded number of attempts and returns nil if no coplanar,
// intersecting quadruple is found among the tried combinations.
func chooseBase(rng *rand.Rand, points []pointcloud.Point, sample []int) *sourceBase {
	const attempts = 200
	const coplanarTol = 1e-2
	const intersectTol = 1e-2

	if len(sample) < 4 {
		return nil
	}

	for attempt := 0; attempt < attempts; attempt++ {
		i0 := rng.Intn(len(sample))
		i1 := rng.Intn(len(sample))
		i2 := rng.Intn(len(sample))
		i3 := rng.Intn(len(sample))
		if i0 == i1 || i0 == i2 || i0 == i3 || i1 == i2 || i1 == i3 || i2 == i3 {
			continue
		}
		a, b, c, d := points[sample[i0]], points[sample[i1]], points[sample[i2]], points[sample[i3]]

		scale := math.Sqrt(a.Sub(b).Dot(a.Sub(b))) + math.Sqrt(c.Sub(d).Dot(c.Sub(d)))
		if scale < 1e-9 {
			continue
		}
		if !approxCoplanar(a, b, c, d, coplanarTol*scale) {
			continue
		}

		r1, r2, ok := intersectionRatios(a, b, c, d, intersectTol*scale)
		if !ok || r1 < 0 || r1 > 1 || r2 < 0 || r2 > 1 {
			continue
		}

		return &sourceBase{
			idx: [4]int{sample[i0], sample[i1], sample[i2], sample[i3]},
			d1:  math.Sqrt(a.Sub(b).Dot(a.Sub(b))),
			d2:  math.Sqrt(c.Sub(d).Dot(c.Sub(d))),
			r1:  r1,
			r2:  r2,
		}
	}
	return nil
}

// approxCoplanar reports whether d lies within tol of the plane spanned
// by a, b, c.
func approxCoplanar(a, b, c, d pointcloud.Point, tol float64) bool {
	n := b.Sub(a).Cross(c.Sub(a))
	norm := math.Sqrt(n.Dot(n))
	if norm < 1e-12 {
		return false
	}
	dist := math.Abs(n.Dot(d.Sub(a))) / norm
	return dist <= tol
}

// intersectionRatios solves, in the least-squares sense, for the
// parameters r1, r2 such that a + r1*(b-a) ≈ c + r2*(d-c), i.e. where
// segments a-b and c-d cross. ok is false if the two lines are parallel
// or their closest approach exceeds tol (spec.md §4.9 "two diagonals
// intersect, producing two affine ratios").
func intersectionRatios(a, b, c, d pointcloud.Point, tol float64) (r1, r2 float64, ok bool) {
	u := b.Sub(a)
	v := d.Sub(c)
	w := c.Sub(a)

	uu, uv, vv := u.Dot(u), u.Dot(v), v.Dot(v)
	uw, vw := u.Dot(w), v.Dot(w)

	det := uu*vv - uv*uv
	if math.Abs(det) < 1e-12 {
		return 0, 0, false
	}
	r1 = (uw*vv - uv*vw) / det
	r2 = (uv*uw - uu*vw) / det

	p1 := a.Add(u.Scale(r1))
	p2 := c.Add(v.Scale(r2))
	gap := p1.Sub(p2)
	if math.Sqrt(gap.Dot(gap)) > tol {
		return 0, 0, false
	}
	return r1, r2, true
}

// congruentTargetBases enumerates target-point quadruples congruent to
// base (matching diagonal lengths and intersection coincidence within
// params.Delta), using the voxel index when available (spec.md §4.9
// "Super-4PCS refinement"), falling back to O(m^2) enumeration
// otherwise. Candidate count is capped by params.MaxIterations.
func congruentTargetBases(srcPts []pointcloud.Point, base *sourceBase, tgtPts []pointcloud.Point, index *voxelGrid, params Params) [][4]int {
	maxCandidates := params.MaxIterations
	if maxCandidates <= 0 {
		maxCandidates = 1000
	}

	pairsD1 := pairsNearDistance(tgtPts, index, base.d1, params.Delta, maxCandidates)
	pairsD2 := pairsNearDistance(tgtPts, index, base.d2, params.Delta, maxCandidates)

	out := make([][4]int, 0, 4)
	for _, ab := range pairsD1 {
		for _, cd := range pairsD2 {
			if sameIndices(ab, cd) {
				continue
			}
			for _, abOrdered := range [2][2]int{{ab[0], ab[1]}, {ab[1], ab[0]}} {
				for _, cdOrdered := range [2][2]int{{cd[0], cd[1]}, {cd[1], cd[0]}} {
					pa, pb := tgtPts[abOrdered[0]], tgtPts[abOrdered[1]]
					pc, pd := tgtPts[cdOrdered[0]], tgtPts[cdOrdered[1]]
					e1 := pa.Add(pb.Sub(pa).Scale(base.r1))
					e2 := pc.Add(pd.Sub(pc).Scale(base.r2))
					gap := e1.Sub(e2)
					if math.Sqrt(gap.Dot(gap)) <= params.Delta {
						out = append(out, [4]int{abOrdered[0], abOrdered[1], cdOrdered[0], cdOrdered[1]})
						if len(out) >= maxCandidates {
							return out
						}
					}
				}
			}
		}
	}
	return out
}

func sameIndices(a, b [2]int) bool {
	return a[0] == b[0] || a[0] == b[1] || a[1] == b[0] || a[1] == b[1]
}

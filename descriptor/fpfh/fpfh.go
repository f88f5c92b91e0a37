// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fpfh computes the Fast Point Feature Histogram descriptor
// (C5): a fixed 33-bin signature per keypoint summarizing the pairwise
// angular relationship between a point and its radius neighborhood
// (spec.md §4.5).
package fpfh

import (
	"fmt"
	"math"

	"code.hybscloud.com/pointkit/concurrent/parallel"
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/knn"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/pointcloud/geom"
)

const (
	bins          = 11
	Len           = 3 * bins
	alphaPhiMin   = -1.0
	alphaPhiMax   = 1.0
	thetaMin      = -math.Pi
	thetaMax      = math.Pi
	histogramMass = 100.0
)

// Signature is the fixed 33-element FPFH vector: three concatenated
// 11-bin sub-histograms over (alpha, phi, theta) (spec.md §3
// "FPFHSignature", §4.5 point 3). Compute scales each sub-histogram to
// sum to histogramMass; ComputeFast adds a weighted neighbor average on
// top of that, so its sub-histograms are not normalized.
type Signature [Len]float64

// Extractor computes FPFH signatures for keypoints of a cloud bound to
// a KNN capability (spec.md §4.5).
type Extractor struct {
	cloud    *pointcloud.PointCloud
	searcher knn.Searcher
	radius   float64
	normals  []pointcloud.Point
}

// New binds cloud to searcher (already SetInput with cloud) and a search
// radius. If cloud has no normals, they are estimated per point via PCA
// on the radius neighborhood's covariance (spec.md §4.5 dependency 1).
// radius must be positive.
func New(cloud *pointcloud.PointCloud, searcher knn.Searcher, radius float64) (*Extractor, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("fpfh: radius must be positive, got %v: %w", radius, perr.InvalidArgument)
	}
	e := &Extractor{cloud: cloud, searcher: searcher, radius: radius}
	if cloud.HasNormals() {
		e.normals = cloud.Normals
		return e, nil
	}
	normals, err := estimateNormals(cloud, searcher, radius)
	if err != nil {
		return nil, err
	}
	e.normals = normals
	return e, nil
}

func estimateNormals(cloud *pointcloud.PointCloud, searcher knn.Searcher, radius float64) ([]pointcloud.Point, error) {
	normals := make([]pointcloud.Point, cloud.Len())
	for i, p := range cloud.Points {
		idx, _, err := searcher.RadiusSearch(p, radius)
		if err != nil {
			return nil, err
		}
		if len(idx) < 3 {
			continue // leave zero normal; point contributes nothing salient
		}
		pts := make([]pointcloud.Point, len(idx))
		for j, ix := range idx {
			pts[j] = cloud.Points[ix]
		}
		n, err := geom.Normal(pts, nil, nil)
		if err != nil {
			continue // degenerate neighborhood: skip, leave zero normal
		}
		normals[i] = n
	}
	return normals, nil
}

// Compute returns the SPFH-only signature (spec.md §4.5 steps 1-3) for
// each keypoint, dispatched across the pool in parallel (spec.md §4.5
// "embarrassingly parallel... dispatched via C3").
func (e *Extractor) Compute(p *pool.Pool, keypoints pointcloud.KeypointIndexSet) ([]Signature, error) {
	out := make([]Signature, len(keypoints))
	err := parallel.ForEach(p, out, func(i int, v *Signature) {
		sig, err := e.spfhAt(keypoints[i])
		if err == nil {
			*v = sig
		}
	})
	return out, err
}

// ComputeFast returns the full FPFH signature (spec.md §4.5 point 4):
// SPFH at each keypoint plus a 1/distance-weighted average of the SPFH
// of its neighbors, with each neighbor's SPFH computed once and reused
// rather than recomputed per keypoint.
func (e *Extractor) ComputeFast(p *pool.Pool, keypoints pointcloud.KeypointIndexSet) ([]Signature, error) {
	neighborIdx := make([][]int, len(keypoints))
	neighborDist := make([][]float64, len(keypoints))
	needed := make(map[int]struct{}, len(keypoints))
	for i, kp := range keypoints {
		idx, dist, err := e.searcher.RadiusSearch(e.cloud.Points[kp], e.radius)
		if err != nil {
			return nil, err
		}
		neighborIdx[i], neighborDist[i] = idx, dist
		needed[kp] = struct{}{}
		for _, n := range idx {
			needed[n] = struct{}{}
		}
	}

	uniqueIdx := make([]int, 0, len(needed))
	for idx := range needed {
		uniqueIdx = append(uniqueIdx, idx)
	}
	spfhOf := make([]Signature, len(uniqueIdx))
	err := parallel.ForEach(p, spfhOf, func(i int, v *Signature) {
		sig, err := e.spfhAt(uniqueIdx[i])
		if err == nil {
			*v = sig
		}
	})
	if err != nil {
		return nil, err
	}
	cache := make(map[int]Signature, len(uniqueIdx))
	for i, idx := range uniqueIdx {
		cache[idx] = spfhOf[i]
	}

	out := make([]Signature, len(keypoints))
	for i, kp := range keypoints {
		out[i] = combineFast(cache[kp], neighborIdx[i], neighborDist[i], cache)
	}
	return out, nil
}

// combineFast implements FPFH(p) = SPFH(p) + (1/k) * sum_i (1/d_i) * SPFH(neighbor_i).
func combineFast(self Signature, neighborIdx []int, neighborDist []float64, cache map[int]Signature) Signature {
	out := self
	k := 0
	acc := Signature{}
	for i, n := range neighborIdx {
		d := math.Sqrt(neighborDist[i])
		if d <= 0 {
			continue // coincident neighbor: 1/d is undefined, skip this term
		}
		w := 1.0 / d
		spfh := cache[n]
		for b := 0; b < Len; b++ {
			acc[b] += w * spfh[b]
		}
		k++
	}
	if k == 0 {
		return out
	}
	for b := 0; b < Len; b++ {
		out[b] += acc[b] / float64(k)
	}
	return out
}

// spfhAt computes the raw (steps 1-3) histogram at cloud point idx.
func (e *Extractor) spfhAt(idx int) (Signature, error) {
	p := e.cloud.Points[idx]
	np := e.normals[idx]
	if np == (pointcloud.Point{}) {
		return Signature{}, fmt.Errorf("fpfh: no normal at point %d: %w", idx, perr.NumericalFailure)
	}

	neighborIdx, _, err := e.searcher.RadiusSearch(p, e.radius)
	if err != nil {
		return Signature{}, err
	}

	var alphaHist, phiHist, thetaHist [bins]float64
	n := 0
	u := np
	for _, ni := range neighborIdx {
		if ni == idx {
			continue
		}
		q := e.cloud.Points[ni]
		nq := e.normals[ni]
		diff := q.Sub(p)
		dist := math.Sqrt(diff.Dot(diff))
		if dist <= 0 {
			continue
		}
		d := diff.Scale(1 / dist)

		v := u.Cross(d)
		vNorm := math.Sqrt(v.Dot(v))
		if vNorm < 1e-12 {
			continue // d parallel to the normal: frame is degenerate, skip this pair
		}
		v = v.Scale(1 / vNorm)
		w := u.Cross(v)

		alpha := v.Dot(nq)
		phi := u.Dot(d)
		theta := math.Atan2(w.Dot(nq), u.Dot(nq))

		alphaHist[binOf(alpha, alphaPhiMin, alphaPhiMax)]++
		phiHist[binOf(phi, alphaPhiMin, alphaPhiMax)]++
		thetaHist[binOf(theta, thetaMin, thetaMax)]++
		n++
	}

	var sig Signature
	if n == 0 {
		return sig, nil
	}
	scale := histogramMass / float64(n)
	for b := 0; b < bins; b++ {
		sig[b] = alphaHist[b] * scale
		sig[bins+b] = phiHist[b] * scale
		sig[2*bins+b] = thetaHist[b] * scale
	}
	return sig, nil
}

func binOf(v, lo, hi float64) int {
	if v <= lo {
		return 0
	}
	if v >= hi {
		return bins - 1
	}
	b := int((v - lo) / (hi - lo) * float64(bins))
	if b >= bins {
		b = bins - 1
	}
	return b
}

// Distance returns the L2 distance between two signatures
// (spec.md §3 "FPFHSignature" equality/distance note).
func Distance(a, b Signature) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package icp

import (
	"fmt"
	"math"

	"code.hybscloud.com/pointkit/concurrent/parallel"
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/knn"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/rigid"
)

// stepOnce runs one fixed-point iteration of plain point-to-point ICP:
// nearest-neighbor correspondence under the current transform, then
// Kabsch estimation over the matched pairs (spec.md §4.10 point 1
// "Inner step"). This is F(x_k); AA-ICP never accelerates this function
// itself, only the sequence of its outputs (spec.md §4.10, "The base
// ICP used internally has no Anderson acceleration").
func stepOnce(p *pool.Pool, src, tgt *pointcloud.PointCloud, searcher knn.Searcher, current rigid.Transform, maxCorrDist float64, useParallel bool) (next rigid.Transform, meanSqErr float64, numCorr int, err error) {
	n := src.Len()
	type corrSlot struct {
		matched bool
		tgtPt   pointcloud.Point
	}
	slots := make([]corrSlot, n)
	maxSq := maxCorrDist * maxCorrDist

	findOne := func(i int, v *corrSlot) {
		mapped := current.Apply(src.Points[i])
		idx, sqd, e := searcher.KNearest(mapped, 1)
		if e != nil || len(idx) == 0 {
			return
		}
		if maxCorrDist > 0 && sqd[0] > maxSq {
			return
		}
		v.matched = true
		v.tgtPt = tgt.Points[idx[0]]
	}

	if !useParallel {
		for i := range slots {
			findOne(i, &slots[i])
		}
	} else {
		if pErr := parallel.ForEach(p, slots, findOne); pErr != nil {
			return rigid.Transform{}, 0, 0, pErr
		}
	}

	matchedSrc := make([]pointcloud.Point, 0, n)
	matchedTgt := make([]pointcloud.Point, 0, n)
	for i, s := range slots {
		if s.matched {
			matchedSrc = append(matchedSrc, src.Points[i])
			matchedTgt = append(matchedTgt, s.tgtPt)
		}
	}
	if len(matchedSrc) < 3 {
		return rigid.Transform{}, 0, len(matchedSrc), fmt.Errorf("icp: only %d correspondences found, need at least 3: %w", len(matchedSrc), perr.NoSolution)
	}

	next, err = rigid.AbsoluteOrientation(matchedSrc, matchedTgt, nil)
	if err != nil {
		return rigid.Transform{}, 0, len(matchedSrc), err
	}

	sumSq := 0.0
	for i := range matchedSrc {
		d := next.Apply(matchedSrc[i]).Sub(matchedTgt[i])
		sumSq += d.Dot(d)
	}
	meanSqErr = sumSq / float64(len(matchedSrc))
	return next, meanSqErr, len(matchedSrc), nil
}

func transformDelta(a, b rigid.Transform) float64 {
	va, vb := transformToVector(a), transformToVector(b)
	return vecNorm(vecSub(va, vb)) / math.Sqrt(12)
}

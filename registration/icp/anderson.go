// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package icp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Numerical-stability bounds for a candidate vec12, matching the
// thresholds the fixed-point map is safeguarded against (spec.md §4.10
// point 5 "non-finite, norm out of bounds, determinant too far from 1,
// translation too large").
const (
	minStableNorm       = 1e-6
	maxStableNorm       = 1e6
	maxDeterminantDrift = 0.1
	maxTranslationNorm  = 100.0
	gammaClampNorm      = 10.0
)

// andersonUpdate computes x_{k+1} from the last m_k+1 (x, g) history
// pairs via least-squares extrapolation (spec.md §4.10 point 4).
// gHistory/xHistory are ordered oldest-first; both must be non-empty
// and the same length. m bounds the history window actually used.
func andersonUpdate(xHistory, gHistory []vec12, m int) vec12 {
	last := len(gHistory) - 1
	mk := m
	if mk > last {
		mk = last
	}
	if mk <= 0 {
		return vecAdd(xHistory[last], gHistory[last])
	}

	gLast := gHistory[last]
	g := mat.NewDense(12, mk, nil)
	for i := 0; i < mk; i++ {
		col := vecSub(gLast, gHistory[last-1-i])
		for r := 0; r < 12; r++ {
			g.Set(r, i, col[r])
		}
	}
	negGLast := mat.NewVecDense(12, nil)
	for r := 0; r < 12; r++ {
		negGLast.SetVec(r, -gLast[r])
	}

	var qr mat.QR
	qr.Factorize(g)
	var gammaDense mat.Dense
	if err := qr.SolveTo(&gammaDense, false, negGLast); err != nil {
		return vecAdd(xHistory[last], gLast)
	}
	gamma := make([]float64, mk)
	gammaNorm := 0.0
	for i := 0; i < mk; i++ {
		gamma[i] = gammaDense.At(i, 0)
		gammaNorm += gamma[i] * gamma[i]
	}
	gammaNorm = math.Sqrt(gammaNorm)
	if gammaNorm > gammaClampNorm {
		scale := gammaClampNorm / gammaNorm
		for i := range gamma {
			gamma[i] *= scale
		}
	}

	xNext := vecAdd(xHistory[last], gLast)
	for i := 0; i < mk; i++ {
		idx := last - 1 - i // xHistory[idx], xHistory[idx+1]
		term := vecAdd(vecSub(xHistory[idx+1], xHistory[idx]), vecSub(gHistory[idx+1], gHistory[idx]))
		xNext = vecSub(xNext, vecScale(term, gamma[i]))
	}
	return xNext
}

// isNumericallyStable reports whether v is safe to adopt as the next
// iterate (spec.md §4.10 point 5).
func isNumericallyStable(v vec12) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	norm := vecNorm(v)
	if norm > maxStableNorm || norm < minStableNorm {
		return false
	}

	tr := vectorToTransform(v)
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, tr.R[i][j])
		}
	}
	if math.Abs(det3(r)-1) > maxDeterminantDrift {
		return false
	}

	tNorm := math.Sqrt(tr.T.Dot(tr.T))
	return tNorm <= maxTranslationNorm
}

// dampTowardICP convex-blends a candidate with the plain ICP step
// (spec.md §4.10 point 6 "optional convex blend with the plain ICP
// result under a fixed beta").
func dampTowardICP(candidate, icp vec12, beta float64) vec12 {
	return vecAdd(vecScale(candidate, beta), vecScale(icp, 1-beta))
}

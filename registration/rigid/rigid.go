// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rigid implements Transform, the 4x4 rigid homogeneous matrix
// every registration algorithm (C8-C10) estimates and applies
// (spec.md §3 "Transform"), and AbsoluteOrientation, the closed-form
// Kabsch-Umeyama SVD solution C8/C9/C10 all build on (spec.md §4.8
// point 2, §4.10 step 1).
package rigid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// Transform is a rigid homogeneous transform: an orthonormal rotation R
// (determinant +1) plus a translation T, applied as R*p + T
// (spec.md §3 "Transform").
type Transform struct {
	R [3][3]float64
	T pointcloud.Point
}

// Identity returns the identity transform.
func Identity() Transform {
	var r [3][3]float64
	r[0][0], r[1][1], r[2][2] = 1, 1, 1
	return Transform{R: r}
}

// Apply returns R*p + T.
func (tr Transform) Apply(p pointcloud.Point) pointcloud.Point {
	return pointcloud.Point{
		X: tr.R[0][0]*p.X + tr.R[0][1]*p.Y + tr.R[0][2]*p.Z + tr.T.X,
		Y: tr.R[1][0]*p.X + tr.R[1][1]*p.Y + tr.R[1][2]*p.Z + tr.T.Y,
		Z: tr.R[2][0]*p.X + tr.R[2][1]*p.Y + tr.R[2][2]*p.Z + tr.T.Z,
	}
}

// AbsoluteOrientation computes the least-squares rigid transform mapping
// src onto tgt via Kabsch-Umeyama: centroid subtraction, covariance
// H = sum src_i * tgt_i^T, SVD H = U*Sigma*V^T, rotation
// R = V * diag(1, 1, det(V*U^T)) * U^T, translation
// t = centroid_tgt - R*centroid_src (spec.md §4.8 point 2). weights may
// be nil for an unweighted fit. src and tgt must be the same non-zero
// length.
func AbsoluteOrientation(src, tgt []pointcloud.Point, weights []float64) (Transform, error) {
	n := len(src)
	if n == 0 || n != len(tgt) {
		return Transform{}, fmt.Errorf("rigid: AbsoluteOrientation: %d source points, %d target points: %w", n, len(tgt), perr.InvalidArgument)
	}

	centroidSrc := weightedCentroid(src, weights)
	centroidTgt := weightedCentroid(tgt, weights)

	h := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		ds := src[i].Sub(centroidSrc)
		dt := tgt[i].Sub(centroidTgt)
		for r := 0; r < 3; r++ {
			dsr := component(ds, r)
			for c := 0; c < 3; c++ {
				dtc := component(dt, c)
				h.Set(r, c, h.At(r, c)+w*dsr*dtc)
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return Transform{}, fmt.Errorf("rigid: AbsoluteOrientation: SVD did not converge: %w", perr.NumericalFailure)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if det3(&vut) < 0 {
		d = -1
	}

	diag := mat.NewDense(3, 3, nil)
	diag.Set(0, 0, 1)
	diag.Set(1, 1, 1)
	diag.Set(2, 2, d)

	var vd, r mat.Dense
	vd.Mul(&v, diag)
	r.Mul(&vd, u.T())

	var tr Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			tr.R[i][j] = r.At(i, j)
		}
	}
	// t = centroid_tgt - R*centroid_src (spec.md §4.8 point 2).
	tr.T = centroidTgt.Sub(pointcloud.Point{
		X: tr.R[0][0]*centroidSrc.X + tr.R[0][1]*centroidSrc.Y + tr.R[0][2]*centroidSrc.Z,
		Y: tr.R[1][0]*centroidSrc.X + tr.R[1][1]*centroidSrc.Y + tr.R[1][2]*centroidSrc.Z,
		Z: tr.R[2][0]*centroidSrc.X + tr.R[2][1]*centroidSrc.Y + tr.R[2][2]*centroidSrc.Z,
	})
	return tr, nil
}

func weightedCentroid(pts []pointcloud.Point, weights []float64) pointcloud.Point {
	var sum pointcloud.Point
	totalW := 0.0
	for i, p := range pts {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum = sum.Add(p.Scale(w))
		totalW += w
	}
	if totalW == 0 {
		return pointcloud.Point{}
	}
	return sum.Scale(1 / totalW)
}

func component(p pointcloud.Point, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func det3(m *mat.Dense) float64 {
	return m.At(0, 0)*(m.At(1, 1)*m.At(2, 2)-m.At(1, 2)*m.At(2, 1)) -
		m.At(0, 1)*(m.At(1, 0)*m.At(2, 2)-m.At(1, 2)*m.At(2, 0)) +
		m.At(0, 2)*(m.At(1, 0)*m.At(2, 1)-m.At(1, 1)*m.At(2, 0))
}

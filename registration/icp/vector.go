// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package icp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/rigid"
)

// vec12 is the 3x4 affine part of a Transform flattened row-major: the
// 12 free parameters AA-ICP's fixed-point map operates over (spec.md
// §4.10 "x encodes the 12 free parameters of the 3x4 affine part").
type vec12 [12]float64

func transformToVector(tr rigid.Transform) vec12 {
	var v vec12
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v[i*4+j] = tr.R[i][j]
		}
	}
	v[0*4+3] = tr.T.X
	v[1*4+3] = tr.T.Y
	v[2*4+3] = tr.T.Z
	return v
}

// vectorToTransform rebuilds a Transform from v, reprojecting the
// rotation block onto SO(3) via SVD (spec.md §4.10 point 5 "project the
// rotation block back to SO(3) via SVD, reflection flipped if det < 0").
func vectorToTransform(v vec12) rigid.Transform {
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, v[i*4+j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDFull) {
		// Degenerate block: fall back to the raw (unorthogonalized)
		// values rather than panicking; the caller's safeguard checks
		// will catch the resulting instability.
		return rigid.Transform{
			R: [3][3]float64{
				{v[0], v[1], v[2]},
				{v[4], v[5], v[6]},
				{v[8], v[9], v[10]},
			},
			T: ptFromVec(v),
		}
	}
	var u, vMat mat.Dense
	svd.UTo(&u)
	svd.VTo(&vMat)

	var rOrtho mat.Dense
	rOrtho.Mul(&u, vMat.T())
	if det3(&rOrtho) < 0 {
		for i := 0; i < 3; i++ {
			vMat.Set(i, 2, -vMat.At(i, 2))
		}
		rOrtho.Mul(&u, vMat.T())
	}

	var tr rigid.Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			tr.R[i][j] = rOrtho.At(i, j)
		}
	}
	tr.T = ptFromVec(v)
	return tr
}

func det3(m *mat.Dense) float64 {
	a, b, c := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	d, e, f := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	g, h, i := m.At(2, 0), m.At(2, 1), m.At(2, 2)
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

func vecAdd(a, b vec12) vec12 {
	var out vec12
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return out
}

func vecSub(a, b vec12) vec12 {
	var out vec12
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return out
}

func vecScale(a vec12, s float64) vec12 {
	var out vec12
	for i := range out {
		out[i] = a[i] * s
	}
	return out
}

func vecNorm(a vec12) float64 {
	sum := 0.0
	for _, x := range a {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func ptFromVec(v vec12) pointcloud.Point {
	return pointcloud.Point{X: v[3], Y: v[7], Z: v[11]}
}

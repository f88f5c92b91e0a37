// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package geom holds the 3x3 covariance / eigendecomposition / normal
// estimation helpers shared by the curvature, ISS, Harris3D, and MLS
// feature extractors and by FPFH (spec.md §4.4, §4.5, §4.6).
//
// spec.md's "Numerical stability note" asks every component that relies
// on symmetric 3x3 eigendecomposition to guard against degenerate
// (coplanar, collinear) neighborhoods by skipping the point rather than
// propagating NaNs; Eigen3x3Sym (non-finite eigenvalues), Normal and
// Curvature (zero eigenvalue sum) implement that guard once here so
// every caller gets it for free.
package geom

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

// Centroid returns the arithmetic mean of pts. Panics if pts is empty;
// callers are expected to have already checked neighborhood size.
func Centroid(pts []pointcloud.Point) pointcloud.Point {
	var sum pointcloud.Point
	for _, p := range pts {
		sum = sum.Add(p)
	}
	n := float64(len(pts))
	return pointcloud.Point{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// Covariance returns the 3x3 covariance matrix of pts about their
// centroid, optionally weighted per point (weights may be nil for a
// uniform weighting of 1). Diagonal-symmetric by construction.
func Covariance(pts []pointcloud.Point, weights []float64) *mat.SymDense {
	c := Centroid(pts)
	cov := mat.NewSymDense(3, nil)
	totalW := 0.0
	for i, p := range pts {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		d := p.Sub(c)
		cov.SetSym(0, 0, cov.At(0, 0)+w*d.X*d.X)
		cov.SetSym(0, 1, cov.At(0, 1)+w*d.X*d.Y)
		cov.SetSym(0, 2, cov.At(0, 2)+w*d.X*d.Z)
		cov.SetSym(1, 1, cov.At(1, 1)+w*d.Y*d.Y)
		cov.SetSym(1, 2, cov.At(1, 2)+w*d.Y*d.Z)
		cov.SetSym(2, 2, cov.At(2, 2)+w*d.Z*d.Z)
		totalW += w
	}
	if totalW > 0 {
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)/totalW)
			}
		}
	}
	return cov
}

// EigenDecomposition is a symmetric 3x3 eigendecomposition with
// eigenvalues sorted ascending and eigenvectors as columns of Vectors,
// Vectors.ColView(i) paired with Values[i].
type EigenDecomposition struct {
	Values  [3]float64
	Vectors *mat.Dense
}

// Eigen3x3Sym decomposes a symmetric 3x3 matrix. Returns NumericalFailure
// if any eigenvalue is non-finite, which can occur for a degenerate
// (all-coincident) neighborhood; callers should skip the point rather
// than propagate NaNs, per spec.md's numerical stability note.
func Eigen3x3Sym(m *mat.SymDense) (EigenDecomposition, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(m, true); !ok {
		return EigenDecomposition{}, fmt.Errorf("geom: eigendecomposition did not converge: %w", perr.NumericalFailure)
	}

	values := eig.Values(nil)
	vectors := mat.NewDense(3, 3, nil)
	eig.VectorsTo(vectors)

	type pair struct {
		val float64
		col int
	}
	order := make([]pair, 3)
	for i, v := range values {
		if !isFinite(v) {
			return EigenDecomposition{}, fmt.Errorf("geom: non-finite eigenvalue: %w", perr.NumericalFailure)
		}
		order[i] = pair{v, i}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].val < order[j].val })

	sorted := mat.NewDense(3, 3, nil)
	var out EigenDecomposition
	for i, o := range order {
		out.Values[i] = o.val
		col := mat.Col(nil, o.col, vectors)
		sorted.SetCol(i, col)
	}
	out.Vectors = sorted
	return out, nil
}

// Normal estimates a surface normal from a local neighborhood via PCA on
// the neighborhood covariance matrix: the eigenvector of the smallest
// eigenvalue (spec.md §4.6 point 1). orient, if non-nil, flips the sign
// of the result so it points toward the viewpoint (i.e. has a
// non-negative dot product with the centroid-to-viewpoint direction);
// pass nil to skip orientation.
func Normal(pts []pointcloud.Point, weights []float64, orient *pointcloud.Point) (pointcloud.Point, error) {
	if len(pts) < 3 {
		return pointcloud.Point{}, fmt.Errorf("geom: need >=3 points for a normal, got %d: %w", len(pts), perr.InvalidArgument)
	}
	cov := Covariance(pts, weights)
	eig, err := Eigen3x3Sym(cov)
	if err != nil {
		return pointcloud.Point{}, err
	}
	if eig.Values[0]+eig.Values[1]+eig.Values[2] < degenerateEigenSumEpsilon {
		return pointcloud.Point{}, fmt.Errorf("geom: degenerate (coincident) neighborhood: %w", perr.NumericalFailure)
	}
	n := pointcloud.Point{
		X: eig.Vectors.At(0, 0),
		Y: eig.Vectors.At(1, 0),
		Z: eig.Vectors.At(2, 0),
	}
	if orient != nil {
		c := Centroid(pts)
		if n.Dot(orient.Sub(c)) < 0 {
			n = n.Scale(-1)
		}
	}
	return n, nil
}

// Curvature returns lambda_min / (lambda_0 + lambda_1 + lambda_2) for a
// neighborhood's covariance eigenvalues (spec.md §4.6 "Curvature" row).
// Returns NumericalFailure if the eigenvalues sum to zero (coincident
// neighborhood).
func Curvature(eig EigenDecomposition) (float64, error) {
	sum := eig.Values[0] + eig.Values[1] + eig.Values[2]
	if sum <= 0 {
		return 0, fmt.Errorf("geom: degenerate neighborhood (zero eigenvalue sum): %w", perr.NumericalFailure)
	}
	return eig.Values[0] / sum, nil
}

const degenerateEigenSumEpsilon = 1e-15

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pointcloud is the data model every downstream package in
// pointkit borrows immutably: Point, PointCloud, KeypointIndexSet, and
// the LOAM-specific LabeledCloud.
package pointcloud

import (
	"fmt"

	"code.hybscloud.com/pointkit/perr"
)

// Point is a position in R3. Coordinates are float64 throughout pointkit:
// every numerically heavy downstream component (covariance
// eigendecomposition, SVD absolute orientation, Anderson-accelerated
// least squares) is built on gonum/mat, which is itself float64-only, so
// a generic Point[T] would only add friction across package boundaries
// for no practical benefit.
type Point struct {
	X, Y, Z float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point {
	return Point{p.X * s, p.Y * s, p.Z * s}
}

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the cross product p x q.
func (p Point) Cross(q Point) Point {
	return Point{
		p.Y*q.Z - p.Z*q.Y,
		p.Z*q.X - p.X*q.Z,
		p.X*q.Y - p.Y*q.X,
	}
}

// Color is an RGB triple in [0, 1].
type Color struct {
	R, G, B float64
}

// PointCloud is an ordered sequence of Points plus optional equal-length
// sequences of per-point normals and colors (spec.md §3 "PointCloud").
// Downstream components borrow a PointCloud immutably; nothing in
// pointkit mutates one once constructed.
type PointCloud struct {
	Points  []Point
	Normals []Point // nil if not supplied/estimated
	Colors  []Color // nil if not supplied
}

// New validates and wraps points, normals, and colors into a PointCloud.
// normals and colors may be nil; if non-nil their length must equal
// len(points).
func New(points, normals []Point, colors []Color) (*PointCloud, error) {
	if normals != nil && len(normals) != len(points) {
		return nil, fmt.Errorf("pointcloud: %d normals for %d points: %w", len(normals), len(points), perr.InvalidArgument)
	}
	if colors != nil && len(colors) != len(points) {
		return nil, fmt.Errorf("pointcloud: %d colors for %d points: %w", len(colors), len(points), perr.InvalidArgument)
	}
	return &PointCloud{Points: points, Normals: normals, Colors: colors}, nil
}

// Len returns the point count.
func (c *PointCloud) Len() int { return len(c.Points) }

// HasNormals reports whether per-point normals are present.
func (c *PointCloud) HasNormals() bool { return c.Normals != nil }

// WithNormals returns a shallow copy of c with Normals replaced. len(normals)
// must equal c.Len().
func (c *PointCloud) WithNormals(normals []Point) (*PointCloud, error) {
	if len(normals) != c.Len() {
		return nil, fmt.Errorf("pointcloud: %d normals for %d points: %w", len(normals), c.Len(), perr.InvalidArgument)
	}
	out := *c
	out.Normals = normals
	return &out, nil
}

// KeypointIndexSet is an ordered sequence of indices into a PointCloud
// (spec.md §3 "KeypointIndexSet"). Order is extractor-defined but
// deterministic for a given (cloud, parameters) pair in sequential mode.
type KeypointIndexSet []int

// Valid reports whether every index falls within [0, n).
func (s KeypointIndexSet) Valid(n int) bool {
	for _, i := range s {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}

// Label is a per-point classification produced by the LOAM extractor.
type Label uint8

const (
	LabelNonFeature Label = iota
	LabelEdge
	LabelPlanar
)

func (l Label) String() string {
	switch l {
	case LabelEdge:
		return "edge"
	case LabelPlanar:
		return "planar"
	default:
		return "non-feature"
	}
}

// LabeledCloud pairs an input cloud with a parallel per-point Label
// sequence, produced only by the LOAM extractor (spec.md §3
// "LabeledCloud").
type LabeledCloud struct {
	Cloud  *PointCloud
	Labels []Label
}

// NewLabeledCloud validates that labels has one entry per point.
func NewLabeledCloud(cloud *PointCloud, labels []Label) (*LabeledCloud, error) {
	if len(labels) != cloud.Len() {
		return nil, fmt.Errorf("pointcloud: %d labels for %d points: %w", len(labels), cloud.Len(), perr.InvalidArgument)
	}
	return &LabeledCloud{Cloud: cloud, Labels: labels}, nil
}

// EdgeIndices returns the indices labeled edge.
func (lc *LabeledCloud) EdgeIndices() KeypointIndexSet {
	return lc.indicesOf(LabelEdge)
}

// PlanarIndices returns the indices labeled planar.
func (lc *LabeledCloud) PlanarIndices() KeypointIndexSet {
	return lc.indicesOf(LabelPlanar)
}

// NonFeatureIndices returns the indices labeled non-feature.
func (lc *LabeledCloud) NonFeatureIndices() KeypointIndexSet {
	return lc.indicesOf(LabelNonFeature)
}

// Extract returns the union of edge and planar indices, in cloud order:
// the keypoint-set view of a LabeledCloud (spec.md §4.6 "extract()").
func (lc *LabeledCloud) Extract() KeypointIndexSet {
	out := make(KeypointIndexSet, 0, len(lc.Labels))
	for i, l := range lc.Labels {
		if l == LabelEdge || l == LabelPlanar {
			out = append(out, i)
		}
	}
	return out
}

func (lc *LabeledCloud) indicesOf(want Label) KeypointIndexSet {
	out := make(KeypointIndexSet, 0)
	for i, l := range lc.Labels {
		if l == want {
			out = append(out, i)
		}
	}
	return out
}

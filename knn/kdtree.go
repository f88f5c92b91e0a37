// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package knn

import (
	"fmt"

	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
)

type kdNode struct {
	idx         int
	axis        int
	left, right *kdNode
}

// KDTree builds once in O(n log n) and answers queries in O(log n)
// average. Each node splits on the axis of maximum spread among its
// subtree's points, at the median found by nth-element partitioning
// (spec.md §4.4 "KD-tree").
type KDTree struct {
	cloud *pointcloud.PointCloud
	root  *kdNode
}

func NewKDTree() *KDTree { return &KDTree{} }

func (t *KDTree) SetInput(cloud *pointcloud.PointCloud) error {
	if cloud == nil || cloud.Len() == 0 {
		return fmt.Errorf("knn: KDTree.SetInput: empty cloud: %w", perr.EmptyInput)
	}
	t.cloud = cloud
	indices := make([]int, cloud.Len())
	for i := range indices {
		indices[i] = i
	}
	t.root = buildKDNode(cloud.Points, indices)
	return nil
}

func buildKDNode(points []pointcloud.Point, indices []int) *kdNode {
	if len(indices) == 0 {
		return nil
	}
	if len(indices) == 1 {
		return &kdNode{idx: indices[0]}
	}
	axis := maxSpreadAxis(points, indices)
	mid := len(indices) / 2
	quickSelect(indices, points, axis, mid)
	node := &kdNode{idx: indices[mid], axis: axis}
	node.left = buildKDNode(points, indices[:mid])
	node.right = buildKDNode(points, indices[mid+1:])
	return node
}

func axisValue(p pointcloud.Point, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func maxSpreadAxis(points []pointcloud.Point, indices []int) int {
	best, bestSpread := 0, -1.0
	for axis := 0; axis < 3; axis++ {
		lo, hi := axisValue(points[indices[0]], axis), axisValue(points[indices[0]], axis)
		for _, i := range indices[1:] {
			v := axisValue(points[i], axis)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if s := hi - lo; s > bestSpread {
			bestSpread, best = s, axis
		}
	}
	return best
}

// quickSelect partitions indices in place (Lomuto-style) so that
// indices[k] holds the index whose axis coordinate is the k-th smallest,
// with every earlier entry <= it and every later entry >=.
func quickSelect(indices []int, points []pointcloud.Point, axis, k int) {
	lo, hi := 0, len(indices)-1
	for lo < hi {
		p := kdPartition(indices, points, axis, lo, hi)
		switch {
		case k == p:
			return
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func kdPartition(indices []int, points []pointcloud.Point, axis, lo, hi int) int {
	pivotAt := lo + (hi-lo)/2
	pivot := axisValue(points[indices[pivotAt]], axis)
	indices[pivotAt], indices[hi] = indices[hi], indices[pivotAt]
	store := lo
	for i := lo; i < hi; i++ {
		if axisValue(points[indices[i]], axis) < pivot {
			indices[i], indices[store] = indices[store], indices[i]
			store++
		}
	}
	indices[store], indices[hi] = indices[hi], indices[store]
	return store
}

func (t *KDTree) KNearest(query pointcloud.Point, k int) ([]int, []float64, error) {
	if err := validateK(k); err != nil {
		return nil, nil, err
	}
	if t.root == nil {
		return nil, nil, fmt.Errorf("knn: KDTree.KNearest: SetInput not called: %w", perr.InvalidArgument)
	}
	best := make([]neighborHit, 0, k)
	t.kNearestSearch(t.root, query, k, &best)
	return splitHits(best)
}

func (t *KDTree) kNearestSearch(node *kdNode, query pointcloud.Point, k int, best *[]neighborHit) {
	if node == nil {
		return
	}
	d := sqDist(query, t.cloud.Points[node.idx])
	insertBest(best, neighborHit{node.idx, d}, k)

	diff := axisValue(query, node.axis) - axisValue(t.cloud.Points[node.idx], node.axis)
	near, far := node.left, node.right
	if diff >= 0 {
		near, far = node.right, node.left
	}
	t.kNearestSearch(near, query, k, best)
	if len(*best) < k || diff*diff < (*best)[len(*best)-1].sqDist {
		t.kNearestSearch(far, query, k, best)
	}
}

// insertBest keeps best sorted ascending by sqDist, capped at k entries.
func insertBest(best *[]neighborHit, h neighborHit, k int) {
	s := *best
	i := len(s)
	for i > 0 && s[i-1].sqDist > h.sqDist {
		i--
	}
	if len(s) < k {
		s = append(s, neighborHit{})
		copy(s[i+1:], s[i:len(s)-1])
		s[i] = h
	} else if i < len(s) {
		copy(s[i+1:], s[i:len(s)-1])
		s[i] = h
	}
	*best = s
}

func (t *KDTree) RadiusSearch(query pointcloud.Point, radius float64) ([]int, []float64, error) {
	if err := validateRadius(radius); err != nil {
		return nil, nil, err
	}
	if t.root == nil {
		return nil, nil, fmt.Errorf("knn: KDTree.RadiusSearch: SetInput not called: %w", perr.InvalidArgument)
	}
	r2 := radius * radius
	hits := make([]neighborHit, 0)
	t.radiusSearch(t.root, query, r2, &hits)
	sortHitsByDistance(hits)
	return splitHits(hits)
}

func (t *KDTree) radiusSearch(node *kdNode, query pointcloud.Point, r2 float64, out *[]neighborHit) {
	if node == nil {
		return
	}
	d := sqDist(query, t.cloud.Points[node.idx])
	if d <= r2 {
		*out = append(*out, neighborHit{node.idx, d})
	}
	diff := axisValue(query, node.axis) - axisValue(t.cloud.Points[node.idx], node.axis)
	near, far := node.left, node.right
	if diff >= 0 {
		near, far = node.right, node.left
	}
	t.radiusSearch(near, query, r2, out)
	if diff*diff <= r2 {
		t.radiusSearch(far, query, r2, out)
	}
}

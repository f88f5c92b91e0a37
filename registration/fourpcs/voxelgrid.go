// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fourpcs

import (
	"math"

	"code.hybscloud.com/pointkit/pointcloud"
)

// voxelGrid is the Super-4PCS smart index: a uniform grid over the
// target cloud that lets pair enumeration visit only points within a
// bounded neighborhood of each other, instead of every pair
// (spec.md §4.9 "Super-4PCS refinement").
type voxelGrid struct {
	cellSize float64
	cells    map[[3]int32][]int
}

func buildVoxelGrid(points []pointcloud.Point, cellSize float64) *voxelGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	g := &voxelGrid{cellSize: cellSize, cells: make(map[[3]int32][]int, len(points))}
	for i, p := range points {
		key := g.cellKey(p)
		g.cells[key] = append(g.cells[key], i)
	}
	return g
}

func (g *voxelGrid) cellKey(p pointcloud.Point) [3]int32 {
	return [3]int32{
		int32(math.Floor(p.X / g.cellSize)),
		int32(math.Floor(p.Y / g.cellSize)),
		int32(math.Floor(p.Z / g.cellSize)),
	}
}

// neighborsWithin returns indices of points within radius of p,
// scanning only the grid cells that the ball of that radius can touch.
func (g *voxelGrid) neighborsWithin(points []pointcloud.Point, p pointcloud.Point, radius float64) []int {
	reach := int32(math.Ceil(radius/g.cellSize)) + 1
	center := g.cellKey(p)
	out := make([]int, 0, 16)
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for dz := -reach; dz <= reach; dz++ {
				key := [3]int32{center[0] + dx, center[1] + dy, center[2] + dz}
				for _, idx := range g.cells[key] {
					d := points[idx].Sub(p)
					if math.Sqrt(d.Dot(d)) <= radius {
						out = append(out, idx)
					}
				}
			}
		}
	}
	return out
}

// pairsNearDistance enumerates index pairs (i, j), i < j, whose
// Euclidean distance falls within tol of dist, using index when
// non-nil (Super-4PCS) or scanning all pairs otherwise (baseline
// 4PCS). Enumeration stops once maxCandidates pairs are found.
func pairsNearDistance(points []pointcloud.Point, index *voxelGrid, dist, tol float64, maxCandidates int) [][2]int {
	out := make([][2]int, 0, 16)
	if index != nil {
		for i, p := range points {
			for _, j := range index.neighborsWithin(points, p, dist+tol) {
				if j <= i {
					continue
				}
				d := points[j].Sub(p)
				actual := math.Sqrt(d.Dot(d))
				if math.Abs(actual-dist) <= tol {
					out = append(out, [2]int{i, j})
					if len(out) >= maxCandidates {
						return out
					}
				}
			}
		}
		return out
	}

	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := points[j].Sub(points[i])
			actual := math.Sqrt(d.Dot(d))
			if math.Abs(actual-dist) <= tol {
				out = append(out, [2]int{i, j})
				if len(out) >= maxCandidates {
					return out
				}
			}
		}
	}
	return out
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fourpcs implements C9: coarse global registration via
// congruent four-point sets (4PCS), with an optional Super-4PCS
// voxel-grid index that restricts target-pair enumeration to pairs
// compatible with a required base distance (spec.md §4.9).
package fourpcs

import (
	"fmt"
	"math"
	"math/rand"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/concurrent/queue"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/rigid"
)

// Params configures one 4PCS run (spec.md §4.9 "Parameters").
type Params struct {
	Delta         float64 // matching tolerance
	Overlap       float64 // expected overlap fraction, in (0, 1]
	SampleSize    int     // subsample size used when scoring a candidate
	NumBases      int     // number of source bases to try
	MaxIterations int     // cap on target congruent-base candidates examined per source base

	// SmartIndexing enables the Super-4PCS voxel-grid index for target
	// pair enumeration. When false, baseline 4PCS's O(m^2) enumeration is
	// used instead (spec.md §4.9 "Super-4PCS refinement").
	SmartIndexing bool
	// VoxelSize is the Super-4PCS grid cell size. Zero means "derive
	// from Delta" (SPEC_FULL.md's supplemented auto-sizing default).
	VoxelSize float64

	InlierThreshold float64
	Seed            int64
	Parallel        bool
}

// Result mirrors spec.md §3's RegistrationResult.
type Result struct {
	Transform         rigid.Transform
	InlierIndices     []int // into the source cloud
	FitnessScore      float64
	Converged         bool
	TerminationReason string
}

func validate(params Params, nSrc, nTgt int) error {
	if params.Delta <= 0 {
		return fmt.Errorf("fourpcs: Delta must be positive: %w", perr.InvalidArgument)
	}
	if params.Overlap <= 0 || params.Overlap > 1 {
		return fmt.Errorf("fourpcs: Overlap must be in (0, 1]: %w", perr.InvalidArgument)
	}
	if params.NumBases <= 0 {
		return fmt.Errorf("fourpcs: NumBases must be positive: %w", perr.InvalidArgument)
	}
	if params.InlierThreshold <= 0 {
		return fmt.Errorf("fourpcs: InlierThreshold must be positive: %w", perr.InvalidArgument)
	}
	if nSrc < 4 || nTgt < 4 {
		return fmt.Errorf("fourpcs: need at least 4 points in each cloud, got %d source, %d target: %w", nSrc, nTgt, perr.EmptyInput)
	}
	return nil
}

// Run estimates a rigid transform aligning src onto tgt by congruent
// four-point-set matching (spec.md §4.9). It reports NoSolution if no
// source base yields a target-congruent base with enough inliers.
func Run(p *pool.Pool, src, tgt *pointcloud.PointCloud, params Params) (Result, error) {
	if err := validate(params, src.Len(), tgt.Len()); err != nil {
		return Result{}, err
	}
	if params.SampleSize <= 0 || params.SampleSize > src.Len() {
		params.SampleSize = src.Len()
	}
	voxel := params.VoxelSize
	if voxel <= 0 {
		voxel = params.Delta
	}

	var index *voxelGrid
	if params.SmartIndexing {
		index = buildVoxelGrid(tgt.Points, voxel)
	}

	type candidate struct {
		tr      rigid.Transform
		inliers []int
		fitness float64
	}
	var best candidate
	haveBest := false
	considerBest := func(c candidate) {
		if !haveBest || len(c.inliers) > len(best.inliers) ||
			(len(c.inliers) == len(best.inliers) && c.fitness < best.fitness) {
			best, haveBest = c, true
		}
	}

	rng := rand.New(rand.NewSource(params.Seed))
	sampleSrc := subsampleIndices(rng, src.Len(), params.SampleSize)

	// Base selection is single-producer: it shares the one RNG stream
	// and must run before any consumer starts (spec.md §5's per-task RNG
	// seeding model reserves the RNG stream itself to one caller).
	found := make([]*sourceBase, 0, params.NumBases)
	for b := 0; b < params.NumBases; b++ {
		if base := chooseBase(rng, src.Points, sampleSrc); base != nil {
			found = append(found, base)
		}
	}

	evalBase := func(base *sourceBase) []candidate {
		cands := congruentTargetBases(src.Points, base, tgt.Points, index, params)
		out := make([]candidate, 0, len(cands))
		for _, tgtBase := range cands {
			srcPts := indexPoints(src.Points, base.idx[:])
			tgtPts := indexPoints(tgt.Points, tgtBase[:])
			tr, err := rigid.AbsoluteOrientation(srcPts, tgtPts, nil)
			if err != nil {
				continue
			}
			inliers, fitness := scoreCandidate(tr, src.Points, sampleSrc, tgt, params.InlierThreshold*params.InlierThreshold)
			out = append(out, candidate{tr: tr, inliers: inliers, fitness: fitness})
		}
		return out
	}

	if !params.Parallel || len(found) == 0 {
		for _, base := range found {
			for _, c := range evalBase(base) {
				considerBest(c)
			}
		}
	} else {
		// Super-4PCS base enumeration fans candidate bases out through an
		// SPMC queue: one producer (the enumeration above) has already
		// filled it before any worker starts dequeuing, so each worker
		// drains until Dequeue reports empty with no risk of quitting on
		// a merely transient contention error.
		bases := queue.NewSPMC[sourceBase](nextPow2(max(2, len(found))))
		for _, base := range found {
			b := *base
			for bases.Enqueue(&b) != nil {
				// capacity sized to len(found); this never blocks.
			}
		}

		results := queue.NewMPSC[candidate](nextPow2(max(2, params.NumBases*4)))
		workers := p.ThreadCount()
		if workers > len(found) {
			workers = len(found)
		}
		if workers < 1 {
			workers = 1
		}
		futures := make([]*pool.Future[struct{}], 0, workers)
		for w := 0; w < workers; w++ {
			f, err := pool.SubmitVoid(p, func() error {
				for {
					b, err := bases.Dequeue()
					if err != nil {
						return nil
					}
					for _, c := range evalBase(&b) {
						enqueueBlocking(results, c)
					}
				}
			})
			if err != nil {
				return Result{}, err
			}
			futures = append(futures, f)
		}
		for _, f := range futures {
			_, _ = f.Wait()
		}
		results.Drain()
		for {
			c, err := results.Dequeue()
			if err != nil {
				break
			}
			considerBest(c)
		}
	}

	if !haveBest || len(best.inliers) == 0 {
		return Result{Converged: false, TerminationReason: "no congruent base found"},
			fmt.Errorf("fourpcs: %w", perr.NoSolution)
	}

	return Result{
		Transform:         best.tr,
		InlierIndices:     append([]int(nil), best.inliers...),
		FitnessScore:      best.fitness,
		Converged:         true,
		TerminationReason: "best candidate over examined bases",
	}, nil
}

func enqueueBlocking[T any](q *queue.MPSC[T], v T) {
	backoff := iox.Backoff{}
	for q.Enqueue(&v) != nil {
		backoff.Wait()
	}
}

func indexPoints(points []pointcloud.Point, idx []int) []pointcloud.Point {
	out := make([]pointcloud.Point, len(idx))
	for i, ix := range idx {
		out[i] = points[ix]
	}
	return out
}

func subsampleIndices(rng *rand.Rand, n, k int) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		indices[i], indices[j] = indices[j], indices[i]
	}
	return append([]int(nil), indices[:k]...)
}

// scoreCandidate counts, among sampled source points, how many land
// within inlierThresholdSq of their nearest target point under tr, and
// returns the mean squared residual over those inliers (spec.md §4.9
// "score it by counting source points whose nearest target is within
// an inlier threshold").
func scoreCandidate(tr rigid.Transform, srcPts []pointcloud.Point, sample []int, tgt *pointcloud.PointCloud, thresholdSq float64) ([]int, float64) {
	inliers := make([]int, 0, len(sample))
	sumSq := 0.0
	for _, i := range sample {
		mapped := tr.Apply(srcPts[i])
		best := math.Inf(1)
		for _, q := range tgt.Points {
			d := mapped.Sub(q)
			if sq := d.Dot(d); sq < best {
				best = sq
			}
		}
		if best <= thresholdSq {
			inliers = append(inliers, i)
			sumSq += best
		}
	}
	if len(inliers) == 0 {
		return inliers, math.Inf(1)
	}
	return inliers, sumSq / float64(len(inliers))
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

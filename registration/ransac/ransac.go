// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ransac implements C8: RANSAC registration from a correspondence
// list, with an adaptive iteration budget and optional dispatch of
// independent iterations across the thread pool (spec.md §4.8).
package ransac

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/correspondence"
	"code.hybscloud.com/pointkit/registration/rigid"
)

// Params configures one RANSAC run (spec.md §4.8 "Inputs").
type Params struct {
	MaxIterations   int
	InlierThreshold float64 // distance, not squared
	MinInliers      int
	Confidence      float64 // target confidence in [0, 1), e.g. 0.99
	SampleSize      int     // 3 or 4
	Seed            int64   // base seed; per-iteration seed is Seed^iteration
	Parallel        bool
}

// Result is spec.md §3's RegistrationResult, specialized to RANSAC's
// fields (no per-iteration history: spec.md marks that field optional).
type Result struct {
	Transform         rigid.Transform
	InlierIndices     []int // into the correspondence list
	FitnessScore      float64
	Converged         bool
	TerminationReason string
}

func validate(params Params, n int) error {
	if params.SampleSize != 3 && params.SampleSize != 4 {
		return fmt.Errorf("ransac: SampleSize must be 3 or 4, got %d: %w", params.SampleSize, perr.InvalidArgument)
	}
	if params.MaxIterations <= 0 {
		return fmt.Errorf("ransac: MaxIterations must be positive: %w", perr.InvalidArgument)
	}
	if params.InlierThreshold <= 0 {
		return fmt.Errorf("ransac: InlierThreshold must be positive: %w", perr.InvalidArgument)
	}
	if params.Confidence <= 0 || params.Confidence >= 1 {
		return fmt.Errorf("ransac: Confidence must be in (0, 1): %w", perr.InvalidArgument)
	}
	if n < params.SampleSize {
		return fmt.Errorf("ransac: %d correspondences, need at least %d: %w", n, params.SampleSize, perr.EmptyInput)
	}
	return nil
}

// Run estimates a rigid transform aligning srcPts onto tgtPts via RANSAC
// over corrs (spec.md §4.8). srcPts/tgtPts are indexed by
// Correspondence.SrcIdx/DstIdx respectively (already dereferenced to raw
// cloud coordinates by the caller, per spec.md §4.7's Correspondence
// note).
func Run(p *pool.Pool, srcPts, tgtPts []pointcloud.Point, corrs []correspondence.Correspondence, params Params) (Result, error) {
	if err := validate(params, len(corrs)); err != nil {
		return Result{}, err
	}

	thresholdSq := params.InlierThreshold * params.InlierThreshold
	state := &sharedState{}
	var requiredIterations atomix.Int64
	requiredIterations.StoreRelease(int64(params.MaxIterations))
	var iterationsRun atomix.Int64

	runOne := func(iteration int64) {
		candidate, ok := sampleAndFit(srcPts, tgtPts, corrs, params, params.Seed^iteration)
		if !ok {
			return
		}
		inliers, fitness := score(candidate, srcPts, tgtPts, corrs, thresholdSq)
		state.considerAndRefit(inliers, fitness, srcPts, tgtPts, corrs, &requiredIterations, params, len(corrs))
	}

	batchSize := 1
	if params.Parallel {
		batchSize = p.ThreadCount()
	}

	for {
		done := iterationsRun.LoadAcquire()
		budget := requiredIterations.LoadAcquire()
		if done >= budget || done >= int64(params.MaxIterations) {
			break
		}
		remaining := budget
		if int64(params.MaxIterations) < remaining {
			remaining = int64(params.MaxIterations)
		}
		remaining -= done
		thisBatch := int64(batchSize)
		if remaining < thisBatch {
			thisBatch = remaining
		}

		if !params.Parallel || thisBatch == 1 {
			for k := int64(0); k < thisBatch; k++ {
				runOne(done + k)
			}
		} else {
			futures := make([]*pool.Future[struct{}], thisBatch)
			for k := int64(0); k < thisBatch; k++ {
				iter := done + k
				f, err := pool.SubmitVoid(p, func() error {
					runOne(iter)
					return nil
				})
				if err != nil {
					return Result{}, err
				}
				futures[k] = f
			}
			for _, f := range futures {
				_, _ = f.Wait()
			}
		}
		iterationsRun.AddAcqRel(thisBatch)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if len(state.bestInliers) < params.MinInliers {
		return Result{
			Converged:         false,
			TerminationReason: "no candidate met MinInliers",
		}, fmt.Errorf("ransac: best candidate had %d inliers, need %d: %w", len(state.bestInliers), params.MinInliers, perr.NoSolution)
	}

	reason := "iteration budget exhausted"
	if iterationsRun.LoadAcquire() < int64(params.MaxIterations) {
		reason = "adaptive confidence budget met"
	}

	return Result{
		Transform:         state.bestTransform,
		InlierIndices:     append([]int(nil), state.bestInliers...),
		FitnessScore:      state.bestFitness,
		Converged:         true,
		TerminationReason: reason,
	}, nil
}

type sharedState struct {
	mu            sync.Mutex
	bestInliers   []int
	bestFitness   float64
	bestTransform rigid.Transform
}

// considerAndRefit updates the shared best candidate if (inliers,
// fitness) beats the current best (more inliers, ties broken by lower
// fitness), refits on the full inlier set (spec.md §4.8 point 4), and
// tightens the adaptive iteration budget from the new inlier ratio
// (spec.md §4.8 point 5).
func (s *sharedState) considerAndRefit(inliers []int, fitness float64, srcPts, tgtPts []pointcloud.Point, corrs []correspondence.Correspondence, requiredIterations *atomix.Int64, params Params, total int) {
	s.mu.Lock()
	better := len(inliers) > len(s.bestInliers) || (len(inliers) == len(s.bestInliers) && fitness < s.bestFitness)
	if !better {
		s.mu.Unlock()
		return
	}
	refit, ok := fitFromInliers(srcPts, tgtPts, corrs, inliers)
	if !ok {
		s.mu.Unlock()
		return
	}
	refitInliers, refitFitness := score(refit, srcPts, tgtPts, corrs, params.InlierThreshold*params.InlierThreshold)
	s.bestInliers = refitInliers
	s.bestFitness = refitFitness
	s.bestTransform = refit
	s.mu.Unlock()

	w := float64(len(refitInliers)) / float64(total)
	tightenBudget(requiredIterations, w, params)
}

// tightenBudget applies the standard RANSAC stopping formula
// N = log(1 - confidence) / log(1 - w^s) (spec.md §4.8 point 5),
// shrinking the shared iteration budget monotonically.
func tightenBudget(requiredIterations *atomix.Int64, w float64, params Params) {
	if w <= 0 || w >= 1 {
		return
	}
	denom := math.Log(1 - math.Pow(w, float64(params.SampleSize)))
	if denom == 0 {
		return
	}
	n := math.Log(1-params.Confidence) / denom
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 1 {
		n = 1
	}
	newBudget := int64(math.Ceil(n))
	if int64(params.MaxIterations) < newBudget {
		newBudget = int64(params.MaxIterations)
	}
	for {
		cur := requiredIterations.LoadAcquire()
		if newBudget >= cur {
			return
		}
		if requiredIterations.CompareAndSwapAcqRel(cur, newBudget) {
			return
		}
	}
}

func sampleAndFit(srcPts, tgtPts []pointcloud.Point, corrs []correspondence.Correspondence, params Params, seed int64) (rigid.Transform, bool) {
	rng := rand.New(rand.NewSource(seed))
	picked := sampleWithoutReplacement(rng, len(corrs), params.SampleSize)
	src := make([]pointcloud.Point, len(picked))
	tgt := make([]pointcloud.Point, len(picked))
	for i, ci := range picked {
		c := corrs[ci]
		src[i] = srcPts[c.SrcIdx]
		tgt[i] = tgtPts[c.DstIdx]
	}
	tr, err := rigid.AbsoluteOrientation(src, tgt, nil)
	if err != nil {
		return rigid.Transform{}, false
	}
	return tr, true
}

func fitFromInliers(srcPts, tgtPts []pointcloud.Point, corrs []correspondence.Correspondence, inliers []int) (rigid.Transform, bool) {
	if len(inliers) < 3 {
		return rigid.Transform{}, false
	}
	src := make([]pointcloud.Point, len(inliers))
	tgt := make([]pointcloud.Point, len(inliers))
	for i, ci := range inliers {
		c := corrs[ci]
		src[i] = srcPts[c.SrcIdx]
		tgt[i] = tgtPts[c.DstIdx]
	}
	tr, err := rigid.AbsoluteOrientation(src, tgt, nil)
	if err != nil {
		return rigid.Transform{}, false
	}
	return tr, true
}

// score returns the indices of corrs (into the correspondence list)
// whose post-transform residual is below thresholdSq, and the mean
// squared residual over those inliers (spec.md §4.8 point 3, "fitness
// score ... mean squared residual on inliers").
func score(tr rigid.Transform, srcPts, tgtPts []pointcloud.Point, corrs []correspondence.Correspondence, thresholdSq float64) ([]int, float64) {
	inliers := make([]int, 0, len(corrs))
	sumSq := 0.0
	for i, c := range corrs {
		mapped := tr.Apply(srcPts[c.SrcIdx])
		d := mapped.Sub(tgtPts[c.DstIdx])
		sq := d.Dot(d)
		if sq <= thresholdSq {
			inliers = append(inliers, i)
			sumSq += sq
		}
	}
	if len(inliers) == 0 {
		return inliers, math.Inf(1)
	}
	return inliers, sumSq / float64(len(inliers))
}

// sampleWithoutReplacement draws k distinct indices from [0, n) using a
// partial Fisher-Yates shuffle.
func sampleWithoutReplacement(rng *rand.Rand, n, k int) []int {
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

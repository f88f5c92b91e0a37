// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package icp implements C10: Anderson-accelerated ICP. It drives a
// plain point-to-point ICP inner step through an m-memory Anderson
// extrapolation of the rigid-transform fixed-point sequence, with
// SO(3) safeguarding and optional damping (spec.md §4.10).
package icp

import (
	"fmt"
	"math"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/knn"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/pointkit/pointcloud"
	"code.hybscloud.com/pointkit/registration/rigid"
)

// Params configures one AA-ICP run (spec.md §4.10).
type Params struct {
	MaxIterations             int
	MaxCorrespondenceDistance float64 // <= 0 means unbounded
	TransformEpsilon          float64 // stop when transform change drops below this
	FitnessEpsilon            float64 // stop when error change drops below this
	AndersonM                 int     // history window size (memory depth)
	Beta                      float64 // damping blend factor, in [0, 1]
	EnableSafeguarding        bool
	Parallel                  bool
}

// Result mirrors spec.md §3's RegistrationResult.
type Result struct {
	Transform         rigid.Transform
	IterationsRun     int
	FinalError        float64
	Converged         bool
	TerminationReason string
}

func validate(params Params) error {
	if params.MaxIterations <= 0 {
		return fmt.Errorf("icp: MaxIterations must be positive: %w", perr.InvalidArgument)
	}
	if params.AndersonM < 0 {
		return fmt.Errorf("icp: AndersonM must be non-negative: %w", perr.InvalidArgument)
	}
	if params.Beta < 0 || params.Beta > 1 {
		return fmt.Errorf("icp: Beta must be in [0, 1]: %w", perr.InvalidArgument)
	}
	return nil
}

// damping fraction beyond which a safeguarded candidate is considered
// to have regressed too far from the plain ICP step (spec.md §4.10
// point 5, "more than a configured fraction worse").
const regressionTolerance = 0.1

// Run estimates a rigid transform aligning src onto tgt starting from
// initial, via Anderson-accelerated ICP (spec.md §4.10). searcher must
// already be bound to tgt.
func Run(p *pool.Pool, src, tgt *pointcloud.PointCloud, searcher knn.Searcher, initial rigid.Transform, params Params) (Result, error) {
	if err := validate(params); err != nil {
		return Result{}, err
	}

	current := initial
	previousError := math.Inf(1)
	var xHistory, gHistory []vec12

	for iter := 0; iter < params.MaxIterations; iter++ {
		icpTransform, currentError, numCorr, err := stepOnce(p, src, tgt, searcher, current, params.MaxCorrespondenceDistance, params.Parallel)
		if err != nil || numCorr == 0 {
			return Result{TerminationReason: "no correspondences"}, fmt.Errorf("icp: %w", perr.NoSolution)
		}

		xCurrent := transformToVector(current)
		xICP := transformToVector(icpTransform)
		gCurrent := vecSub(xICP, xCurrent)

		xHistory = append(xHistory, xCurrent)
		gHistory = append(gHistory, gCurrent)
		if len(xHistory) > params.AndersonM+1 {
			xHistory = xHistory[1:]
			gHistory = gHistory[1:]
		}

		var xNext vec12
		if len(xHistory) <= 1 || iter < 2 {
			xNext = xICP
		} else {
			xNext = andersonUpdate(xHistory, gHistory, params.AndersonM)
			if params.EnableSafeguarding {
				if !isNumericallyStable(xNext) {
					xNext = xICP
					xHistory = []vec12{xCurrent}
					gHistory = []vec12{gCurrent}
				} else if testError := candidateError(p, src, tgt, searcher, xNext, params); testError > currentError*(1+regressionTolerance) {
					xNext = dampTowardICP(xNext, xICP, params.Beta)
				}
			}
		}

		nextTransform := vectorToTransform(xNext)
		errorChange := math.Abs(currentError - previousError)
		transformChange := transformDelta(nextTransform, current)

		if transformChange < params.TransformEpsilon || errorChange < params.FitnessEpsilon {
			return Result{
				Transform:         nextTransform,
				IterationsRun:     iter + 1,
				FinalError:        currentError,
				Converged:         true,
				TerminationReason: "epsilon reached",
			}, nil
		}

		current = nextTransform
		previousError = currentError
	}

	return Result{
		Transform:         current,
		IterationsRun:     params.MaxIterations,
		FinalError:        previousError,
		Converged:         false,
		TerminationReason: "maximum iterations reached",
	}, nil
}

// candidateError scores a candidate vec12 by running one more
// correspondence pass under it, the same way spec.md §4.10 point 5's
// "compute the error of the new transform" safeguard does before
// deciding whether to damp.
func candidateError(p *pool.Pool, src, tgt *pointcloud.PointCloud, searcher knn.Searcher, candidate vec12, params Params) float64 {
	tr := vectorToTransform(candidate)
	_, errVal, numCorr, err := stepOnce(p, src, tgt, searcher, tr, params.MaxCorrespondenceDistance, params.Parallel)
	if err != nil || numCorr == 0 {
		return math.Inf(1)
	}
	return errVal
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package perr defines the error kinds surfaced by the pointkit core (see
// spec.md §7). It follows the same wrapped-sentinel shape as
// [code.hybscloud.com/iox]'s ErrWouldBlock/IsWouldBlock so callers can
// classify errors without a type switch.
package perr

import "errors"

// Sentinel error kinds. Components wrap one of these with errors.Join or
// fmt.Errorf("%w: ...", Kind) so errors.Is classification still works.
var (
	// InvalidArgument: parameter out of range, missing required input
	// (cloud or knn unset), mismatched array lengths.
	InvalidArgument = errors.New("pointkit: invalid argument")

	// EmptyInput: operation on an empty cloud or empty correspondence list
	// that is not meaningful. Most feature extractors return empty output
	// instead of this error; it is reserved for components documented to
	// fail rather than degrade (see spec.md §7, §8 boundary behavior).
	EmptyInput = errors.New("pointkit: empty input")

	// NotConverged: an iterative aligner exhausted its budget without
	// meeting its stopping criteria. The result is still returned with
	// Converged=false and a termination reason.
	NotConverged = errors.New("pointkit: not converged")

	// NoSolution: RANSAC or 4PCS failed to find any candidate meeting the
	// minimum inlier count.
	NoSolution = errors.New("pointkit: no solution")

	// NumericalFailure: singular covariance, or non-finite values produced
	// during an SVD/eigendecomposition/scan.
	NumericalFailure = errors.New("pointkit: numerical failure")

	// ShuttingDown: the thread pool is no longer accepting tasks.
	ShuttingDown = errors.New("pointkit: pool is shutting down")

	// IOError: reserved for the external reader/writer collaborators
	// (out of scope for the core; kept for completeness of the error
	// taxonomy so callers that wrap I/O errors can classify uniformly).
	IOError = errors.New("pointkit: io error")
)

// Is reports whether err is, or wraps, kind. A thin wrapper over errors.Is
// so call sites read the same way as iox.IsWouldBlock(err).
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

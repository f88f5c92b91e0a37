// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel

import "code.hybscloud.com/pointkit/concurrent/pool"

const minReduceChunk = 256

// Reduce folds s under op, starting every chunk's local accumulation from
// identity, then combines the chunk results with a serial deterministic
// left-fold (also starting from identity). op must be associative but
// need not be commutative; the serial final fold makes the result
// reproducible for a fixed chunking (spec.md §4.3 "parallel_reduce",
// §8 ordering guarantees).
//
// If the input splits into a single chunk, that chunk's result is
// returned unchanged: identity is not re-applied on top of it.
func Reduce[T any](p *pool.Pool, s []T, identity T, op func(a, b T) T) (T, error) {
	n := len(s)
	if n == 0 {
		return identity, nil
	}
	spans := splitSpans(n, chunkCount(p, n, minReduceChunk))
	if len(spans) == 1 {
		return reduceLocal(s, identity, op), nil
	}

	futures := make([]*pool.Future[T], len(spans))
	for ci, sp := range spans {
		sp := sp
		f, err := pool.Submit(p, func() (T, error) {
			return reduceLocal(s[sp.lo:sp.hi], identity, op), nil
		})
		if err != nil {
			return identity, err
		}
		futures[ci] = f
	}

	acc := identity
	var firstErr error
	for _, f := range futures {
		v, err := f.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		acc = op(acc, v)
	}
	if firstErr != nil {
		var zero T
		return zero, firstErr
	}
	return acc, nil
}

func reduceLocal[T any](s []T, identity T, op func(a, b T) T) T {
	acc := identity
	for _, v := range s {
		acc = op(acc, v)
	}
	return acc
}

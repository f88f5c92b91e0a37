// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel

import (
	"fmt"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/perr"
)

const minScanChunk = 1

// InclusiveScan computes the inclusive prefix scan of in under op,
// seeded with init, writing into out (caller pre-sized to len(in)).
//
// Two passes (spec.md §4.3 "parallel_inclusive_scan"): pass one has each
// chunk compute its total under op; pass two turns those totals plus
// init into per-chunk offsets via a serial prefix sum, then each chunk
// writes its own inclusive scan starting from its offset. op must be
// associative.
func InclusiveScan[T any](p *pool.Pool, in, out []T, init T, op func(a, b T) T) error {
	n := len(in)
	if len(out) != n {
		return fmt.Errorf("parallel: InclusiveScan: len(out)=%d != len(in)=%d: %w", len(out), n, perr.InvalidArgument)
	}
	if n == 0 {
		return nil
	}

	spans := splitSpans(n, chunkCount(p, n, minScanChunk))
	if len(spans) == 1 {
		acc := init
		for i := range in {
			acc = op(acc, in[i])
			out[i] = acc
		}
		return nil
	}

	totalFutures := make([]*pool.Future[T], len(spans))
	for ci, sp := range spans {
		sp := sp
		f, err := pool.Submit(p, func() (T, error) {
			acc := in[sp.lo]
			for i := sp.lo + 1; i < sp.hi; i++ {
				acc = op(acc, in[i])
			}
			return acc, nil
		})
		if err != nil {
			return err
		}
		totalFutures[ci] = f
	}

	totals := make([]T, len(spans))
	for ci, f := range totalFutures {
		v, err := f.Wait()
		if err != nil {
			return err
		}
		totals[ci] = v
	}

	offsets := make([]T, len(spans))
	offsets[0] = init
	for i := 1; i < len(spans); i++ {
		offsets[i] = op(offsets[i-1], totals[i-1])
	}

	futures := make([]*pool.Future[struct{}], len(spans))
	for ci, sp := range spans {
		sp, off := sp, offsets[ci]
		f, err := pool.SubmitVoid(p, func() error {
			acc := off
			for i := sp.lo; i < sp.hi; i++ {
				acc = op(acc, in[i])
				out[i] = acc
			}
			return nil
		})
		if err != nil {
			return err
		}
		futures[ci] = f
	}
	return waitAllVoid(futures)
}

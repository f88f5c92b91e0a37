// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel

import (
	"fmt"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/perr"
)

const minTransformChunk = 1

// Transform writes fn(in[i]) into out[i] for every index. Caller must
// pre-size out to len(in); element order is preserved by index
// (spec.md §4.3 "parallel_transform").
func Transform[I, O any](p *pool.Pool, in []I, out []O, fn func(I) O) error {
	n := len(in)
	if len(out) != n {
		return fmt.Errorf("parallel: Transform: len(out)=%d != len(in)=%d: %w", len(out), n, perr.InvalidArgument)
	}
	if n == 0 {
		return nil
	}
	spans := splitSpans(n, chunkCount(p, n, minTransformChunk))
	futures := make([]*pool.Future[struct{}], len(spans))
	for ci, sp := range spans {
		sp := sp
		f, err := pool.SubmitVoid(p, func() error {
			for i := sp.lo; i < sp.hi; i++ {
				out[i] = fn(in[i])
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

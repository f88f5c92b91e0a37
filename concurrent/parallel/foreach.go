// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel

import "code.hybscloud.com/pointkit/concurrent/pool"

const minForEachChunk = 1

// ForEach applies fn to every element of s, dispatched across chunk
// tasks. fn receives a pointer into s and may mutate through it. There is
// no ordering guarantee across chunks; writes must land on disjoint
// slots (spec.md §4.3 "parallel_for_each").
func ForEach[T any](p *pool.Pool, s []T, fn func(i int, v *T)) error {
	n := len(s)
	if n == 0 {
		return nil
	}
	spans := splitSpans(n, chunkCount(p, n, minForEachChunk))
	futures := make([]*pool.Future[struct{}], len(spans))
	for ci, sp := range spans {
		sp := sp
		f, err := pool.SubmitVoid(p, func() error {
			for i := sp.lo; i < sp.hi; i++ {
				fn(i, &s[i])
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

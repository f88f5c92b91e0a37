// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package parallel implements the chunked data-parallel algorithms of
// spec.md §4.3: for-each, transform, reduce, inclusive scan, merge-sort,
// and tim-sort, all dispatched as chunk tasks through a
// [code.hybscloud.com/pointkit/concurrent/pool.Pool].
//
// Every algorithm splits its input into roughly
// max(pool.ThreadCount(), runtime.GOMAXPROCS(0)) chunks, never fewer than
// one element per chunk and never more chunks than the input has
// elements. If any chunk task fails, the first error observed while
// draining futures is returned; chunks already written are left in
// place (spec.md §4.3 "Failure model").
package parallel

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

// task is a type-erased unit of deferred computation: a callable with no
// arguments, executed exactly once (spec.md §3 "Task"). Submit closes over
// the caller's function and its Future to build one of these.
type task struct {
	run func()
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pool is the thread pool substrate every parallel algorithm,
// feature extractor, and aligner in pointkit dispatches work through
// (spec.md §4.2, §5).
//
// A Pool owns a fixed set of workers, each with its own bounded
// work-stealing deque (deque.go). Submit round-robins across deques;
// when a deque is full the task falls back to a shared
// [code.hybscloud.com/pointkit/concurrent/queue] MPMC queue. Idle workers
// spin, yield, steal from siblings, check the stop flag, and finally
// sleep with bounded exponential backoff — in that order.
//
// Example:
//
//	p := pool.New(4)
//	defer p.Shutdown()
//
//	futures := make([]*pool.Future[int], 10000)
//	for i := range futures {
//	    i := i
//	    futures[i], _ = pool.Submit(p, func() (int, error) { return i, nil })
//	}
//	sum := 0
//	for _, f := range futures {
//	    v, _ := f.Wait()
//	    sum += v
//	}
package pool

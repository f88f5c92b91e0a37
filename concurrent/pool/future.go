// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/pointkit/concurrent/queue"
)

type result[R any] struct {
	val R
	err error
}

// Future is the one-shot result channel a submitted Task completes
// (spec.md §3). It is backed by a capacity-2 SPSC queue: the worker that
// executes the task is the sole producer, the caller awaiting the result
// is the sole consumer, so the teacher's Lamport-ring SPSC is an exact fit.
type Future[R any] struct {
	ch *queue.SPSC[result[R]]
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{ch: queue.NewSPSC[result[R]](2)}
}

// complete delivers the task's outcome. Called exactly once, by the
// worker that executed the task.
func (f *Future[R]) complete(v R, err error) {
	r := result[R]{val: v, err: err}
	// Capacity 2 for a single pending value: this can never return
	// ErrWouldBlock because nothing is ever enqueued twice.
	_ = f.ch.Enqueue(&r)
}

// TryGet returns the result without blocking. ok is false if the task has
// not completed yet.
func (f *Future[R]) TryGet() (val R, err error, ok bool) {
	r, derr := f.ch.Dequeue()
	if derr != nil {
		return val, nil, false
	}
	return r.val, r.err, true
}

// Get blocks until the task completes, or ctx is done.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	backoff := iox.Backoff{}
	for {
		if v, err, ok := f.TryGet(); ok {
			return v, err
		}
		select {
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		default:
		}
		backoff.Wait()
	}
}

// Wait blocks until the task completes, ignoring cancellation. Equivalent
// to Get(context.Background()).
func (f *Future[R]) Wait() (R, error) {
	backoff := iox.Backoff{}
	for {
		if v, err, ok := f.TryGet(); ok {
			return v, err
		}
		backoff.Wait()
	}
}

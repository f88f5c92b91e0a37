// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/pointkit/concurrent/queue"
	"code.hybscloud.com/pointkit/logsink"
	"code.hybscloud.com/pointkit/perr"
	"code.hybscloud.com/spin"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = fmt.Errorf("%w", perr.ShuttingDown)

const (
	deqCapacityPerWorker = 256
	overflowCapacity     = 4096

	spinIterations = 64
	yieldIterations = 16

	minBackoff = time.Microsecond
	maxBackoff = time.Millisecond
)

// Pool is a fixed-size set of workers, each with its own deque, sharing an
// MPMC overflow queue and a round-robin submission cursor.
type Pool struct {
	workers  []*deque
	overflow *queue.MPMC[task]
	stop     atomix.Bool
	next     atomix.Uint64
	wg       sync.WaitGroup
	sink     logsink.Sink
}

// Option configures a Pool at construction time.
type Option func(*poolConfig)

type poolConfig struct {
	sink logsink.Sink
}

// WithSink attaches a logger sink for worker diagnostics (recovered task
// panics, etc). Defaults to logsink.Nop.
func WithSink(s logsink.Sink) Option {
	return func(c *poolConfig) { c.sink = s }
}

// New creates a pool and starts n workers. n <= 0 uses
// runtime.GOMAXPROCS(0), floored at 1.
func New(n int, opts ...Option) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n < 1 {
		n = 1
	}

	cfg := poolConfig{sink: logsink.Nop}
	for _, o := range opts {
		o(&cfg)
	}

	p := &Pool{
		workers:  make([]*deque, n),
		overflow: queue.NewMPMC[task](overflowCapacity),
		sink:     cfg.sink,
	}
	for i := range p.workers {
		p.workers[i] = newDeque(deqCapacityPerWorker)
	}

	p.wg.Add(n)
	for i := range n {
		go p.workerLoop(i)
	}
	return p
}

// ThreadCount reports the number of worker goroutines.
func (p *Pool) ThreadCount() int {
	return len(p.workers)
}

// Submit wraps fn as a Task and returns a Future for its result.
// Submission round-robins across worker deques, falling back to the
// shared overflow queue when the chosen deque is full. Returns
// ErrShuttingDown if Shutdown has been called.
func Submit[R any](p *Pool, fn func() (R, error)) (*Future[R], error) {
	if p.stop.LoadAcquire() {
		return nil, ErrShuttingDown
	}

	f := newFuture[R]()
	t := task{run: func() {
		v, err := runCatching(fn)
		f.complete(v, err)
	}}

	idx := int(p.next.AddAcqRel(1)-1) % len(p.workers)
	if !p.workers[idx].pushBack(t) {
		if err := p.overflow.Enqueue(&t); err != nil {
			return nil, fmt.Errorf("pointkit/pool: overflow queue full: %w", err)
		}
	}
	return f, nil
}

// SubmitVoid is Submit for side-effecting tasks with no useful result.
func SubmitVoid(p *Pool, fn func() error) (*Future[struct{}], error) {
	return Submit(p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// runCatching executes fn, converting a panic into an error so a single
// failing task never takes down a worker, and so the Future always
// resolves even when the task panics (spec.md §4.2 step 6, §7).
func runCatching[R any](fn func() (R, error)) (val R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pointkit/pool: task panic: %v", r)
		}
	}()
	return fn()
}

// Shutdown sets the stop flag, lets in-flight and queued tasks drain, and
// waits for every worker goroutine to exit. Idempotent.
func (p *Pool) Shutdown() {
	if !p.stop.CompareAndSwapAcqRel(false, true) {
		p.wg.Wait()
		return
	}
	p.wg.Wait()
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	own := p.workers[id]
	backoff := minBackoff

	for {
		t, ok := own.popBack()
		if !ok {
			t, ok = p.overflow.Dequeue()
		}
		if !ok {
			sw := spin.Wait{}
			for i := 0; i < spinIterations && !ok; i++ {
				sw.Once()
				t, ok = own.popBack()
			}
		}
		if !ok {
			for i := 0; i < yieldIterations && !ok; i++ {
				runtime.Gosched()
				t, ok = own.popBack()
			}
		}
		if !ok {
			t, ok = p.stealFromSiblings(id)
		}
		if !ok {
			if p.stop.LoadAcquire() && p.drained(id) {
				return
			}
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}

		backoff = minBackoff
		p.execute(t)
	}
}

func (p *Pool) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.sink.Logf(logsink.Error, "pool: recovered task panic: %v", r)
		}
	}()
	t.run()
}

func (p *Pool) stealFromSiblings(id int) (task, bool) {
	n := len(p.workers)
	for i := 1; i < n; i++ {
		victim := (id + i) % n
		if t, ok := p.workers[victim].stealFront(); ok {
			return t, true
		}
	}
	return task{}, false
}

// drained reports whether this worker's deque and the shared overflow
// queue both look empty, used as the shutdown double-check.
func (p *Pool) drained(id int) bool {
	if t, ok := p.workers[id].popBack(); ok {
		p.execute(t)
		return false
	}
	if t, ok := p.overflow.Dequeue(); ok {
		p.execute(t)
		return false
	}
	return true
}

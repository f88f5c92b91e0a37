// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/pointkit/concurrent/pool"
)

func TestPoolSumOfIndices(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	if got := p.ThreadCount(); got != 4 {
		t.Fatalf("ThreadCount() = %d, want 4", got)
	}

	const n = 10000
	futures := make([]*pool.Future[int], n)
	for i := 0; i < n; i++ {
		i := i
		f, err := pool.Submit(p, func() (int, error) { return i, nil })
		if err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
		futures[i] = f
	}

	sum := 0
	for _, f := range futures {
		v, err := f.Wait()
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		sum += v
	}

	const want = n * (n - 1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}

func TestPoolShutdownIdempotent(t *testing.T) {
	p := pool.New(2)
	p.Shutdown()
	p.Shutdown()
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := pool.New(2)
	p.Shutdown()

	_, err := pool.Submit(p, func() (int, error) { return 1, nil })
	if !errors.Is(err, pool.ErrShuttingDown) {
		t.Fatalf("Submit after shutdown: got %v, want ErrShuttingDown", err)
	}
}

func TestPoolTaskPanicResolvesFutureWithError(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	f, err := pool.Submit(p, func() (int, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, gotErr := f.Get(ctx)
	if gotErr == nil {
		t.Fatal("Get() = nil error, want panic wrapped as error")
	}
}

func TestPoolSubmitVoid(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	done := make(chan struct{})
	f, err := pool.SubmitVoid(p, func() error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("SubmitVoid: %v", err)
	}
	if _, err := f.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("side effect did not run before Future resolved")
	}
}

func TestPoolOverflowFallback(t *testing.T) {
	// Fewer workers than tasks, all blocked on a gate, forces deques full
	// and tasks to spill into the shared overflow queue.
	p := pool.New(2)
	defer p.Shutdown()

	gate := make(chan struct{})
	const n = 2048
	futures := make([]*pool.Future[int], n)
	for i := 0; i < n; i++ {
		i := i
		f, err := pool.Submit(p, func() (int, error) {
			<-gate
			return i, nil
		})
		if err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
		futures[i] = f
	}
	close(gate)

	sum := 0
	for _, f := range futures {
		v, err := f.Wait()
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		sum += v
	}
	const want = n * (n - 1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel

import (
	"runtime"

	"code.hybscloud.com/pointkit/concurrent/pool"
)

// span is a half-open index range [lo, hi) into a slice.
type span struct{ lo, hi int }

// chunkCount picks how many pieces to split n elements into: as many as
// there are workers (or hardware threads, if more), never so many that a
// chunk would fall under minSize elements.
func chunkCount(p *pool.Pool, n, minSize int) int {
	if n == 0 {
		return 0
	}
	if minSize < 1 {
		minSize = 1
	}
	want := p.ThreadCount()
	if hw := runtime.GOMAXPROCS(0); hw > want {
		want = hw
	}
	if max := n / minSize; max < want {
		want = max
	}
	if want < 1 {
		want = 1
	}
	return want
}

// splitSpans divides [0, n) into chunks roughly equal contiguous spans,
// the first n%chunks of them one element larger.
func splitSpans(n, chunks int) []span {
	if n == 0 {
		return nil
	}
	if chunks < 1 {
		chunks = 1
	}
	if chunks > n {
		chunks = n
	}
	base, rem := n/chunks, n%chunks
	spans := make([]span, 0, chunks)
	lo := 0
	for i := 0; i < chunks; i++ {
		size := base
		if i < rem {
			size++
		}
		hi := lo + size
		spans = append(spans, span{lo, hi})
		lo = hi
	}
	return spans
}

// splitFixed divides [0, n) into spans of at most size elements each, the
// last one possibly shorter.
func splitFixed(n, size int) []span {
	if size < 1 {
		size = 1
	}
	spans := make([]span, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		spans = append(spans, span{lo, hi})
	}
	return spans
}

// waitAllVoid drains every future, returning the first error seen.
func waitAllVoid(futures []*pool.Future[struct{}]) error {
	var firstErr error
	for _, f := range futures {
		if _, err := f.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

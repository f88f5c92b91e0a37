// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package correspondence implements C7: matching source keypoint
// descriptors against target keypoint descriptors by Lowe ratio test,
// with an optional mutual-nearest-neighbor cross-check (spec.md §4.7).
package correspondence

import (
	"fmt"
	"runtime"
	"sort"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/pointkit/concurrent/queue"
	"code.hybscloud.com/pointkit/perr"

	"code.hybscloud.com/pointkit/concurrent/pool"
)

// Correspondence pairs a source keypoint position with a target keypoint
// position, both indices into their respective KeypointIndexSets, not raw
// cloud indices (spec.md §3 "Correspondence").
type Correspondence struct {
	SrcIdx   int
	DstIdx   int
	Distance float64
}

// DistanceFunc measures descriptor-space distance between two
// descriptors of type D (e.g. fpfh.Distance).
type DistanceFunc[D any] func(a, b D) float64

// Options configures Match.
type Options struct {
	// Ratio is the Lowe ratio threshold: a match is kept only if
	// dist1/dist2 <= Ratio (spec.md §4.7, typically in [0.7, 0.95]).
	Ratio float64
	// CrossCheck requires the 1st-nearest source descriptor of the
	// matched target descriptor to be the querying source descriptor
	// (spec.md §4.7 "Optional cross-check").
	CrossCheck bool
	// Parallel dispatches per-chunk matching through pool.
	Parallel bool
}

// Match finds, for each source descriptor, its correspondence in
// tgtDescs per spec.md §4.7: 1st/2nd nearest neighbor by dist, Lowe
// ratio test, optional cross-check. Returns descriptor pairs in
// ascending SrcIdx order; per spec.md §4.7 the result set is defined up
// to ordering, so this package picks a deterministic one.
func Match[D any](p *pool.Pool, srcDescs, tgtDescs []D, dist DistanceFunc[D], opts Options) ([]Correspondence, error) {
	if opts.Ratio <= 0 || opts.Ratio > 1 {
		return nil, fmt.Errorf("correspondence: ratio must be in (0, 1], got %v: %w", opts.Ratio, perr.InvalidArgument)
	}
	if len(srcDescs) == 0 || len(tgtDescs) < 2 {
		return nil, nil
	}

	var reverseNearest []int
	if opts.CrossCheck {
		reverseNearest = make([]int, len(tgtDescs))
		for j, td := range tgtDescs {
			reverseNearest[j] = nearestIndex(td, srcDescs, dist)
		}
	}

	matchAt := func(i int) (Correspondence, bool) {
		dst1, d1, _, d2, ok := twoNearest(srcDescs[i], tgtDescs, dist)
		if !ok || d2 == 0 || d1/d2 > opts.Ratio {
			return Correspondence{}, false
		}
		if opts.CrossCheck && reverseNearest[dst1] != i {
			return Correspondence{}, false
		}
		return Correspondence{SrcIdx: i, DstIdx: dst1, Distance: d1}, true
	}

	if !opts.Parallel {
		out := make([]Correspondence, 0, len(srcDescs))
		for i := range srcDescs {
			if c, ok := matchAt(i); ok {
				out = append(out, c)
			}
		}
		return out, nil
	}

	return matchParallel(p, len(srcDescs), matchAt)
}

// matchParallel dispatches one task per contiguous chunk of source
// indices; each task fans its chunk's matches into a shared MPSC queue
// (queue/doc.go's documented correspondence fan-in pattern), and the
// caller drains the queue once every chunk's future resolves.
func matchParallel(p *pool.Pool, n int, matchAt func(i int) (Correspondence, bool)) ([]Correspondence, error) {
	chunks := p.ThreadCount()
	if hw := runtime.GOMAXPROCS(0); hw > chunks {
		chunks = hw
	}
	if chunks > n {
		chunks = n
	}
	if chunks < 1 {
		chunks = 1
	}

	results := queue.NewMPSC[Correspondence](nextPow2(n))
	base, rem := n/chunks, n%chunks
	futures := make([]*pool.Future[struct{}], 0, chunks)
	lo := 0
	for c := 0; c < chunks; c++ {
		size := base
		if c < rem {
			size++
		}
		hi := lo + size
		span := [2]int{lo, hi}
		lo = hi

		f, err := pool.SubmitVoid(p, func() error {
			for i := span[0]; i < span[1]; i++ {
				if corr, ok := matchAt(i); ok {
					enqueueBlocking(results, corr)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		futures = append(futures, f)
	}

	var firstErr error
	for _, f := range futures {
		if _, err := f.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	results.Drain()
	out := make([]Correspondence, 0, n)
	for {
		c, err := results.Dequeue()
		if err != nil {
			break
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SrcIdx < out[j].SrcIdx })
	return out, nil
}

// enqueueBlocking retries past transient ErrWouldBlock: results is sized
// to the worst case (one entry per source descriptor), so this spins at
// most a few iterations under contention, never indefinitely.
func enqueueBlocking(q *queue.MPSC[Correspondence], c Correspondence) {
	backoff := iox.Backoff{}
	for q.Enqueue(&c) != nil {
		backoff.Wait()
	}
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

// twoNearest returns the 1st and 2nd nearest descriptors to q among cs by
// dist, plus their indices and distances. ok is false if cs has fewer
// than 2 elements.
func twoNearest[D any](q D, cs []D, dist DistanceFunc[D]) (idx1 int, d1 float64, idx2 int, d2 float64, ok bool) {
	if len(cs) < 2 {
		return 0, 0, 0, 0, false
	}
	idx1, idx2 = -1, -1
	d1, d2 = 0, 0
	for i, c := range cs {
		d := dist(q, c)
		if idx1 == -1 || d < d1 {
			idx2, d2 = idx1, d1
			idx1, d1 = i, d
		} else if idx2 == -1 || d < d2 {
			idx2, d2 = i, d
		}
	}
	return idx1, d1, idx2, d2, true
}

func nearestIndex[D any](q D, cs []D, dist DistanceFunc[D]) int {
	best, bestD := -1, 0.0
	for i, c := range cs {
		d := dist(q, c)
		if best == -1 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

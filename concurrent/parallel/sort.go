// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel

import (
	"slices"

	"code.hybscloud.com/pointkit/concurrent/pool"
)

const timSortRunSize = 32

// MergeSort sorts s under less: each chunk is sorted serially in
// parallel, then adjacent sorted spans are merged in an iterative
// doubling cascade, also in parallel. Not required to be stable
// (spec.md §4.3 "parallel_merge_sort").
func MergeSort[T any](p *pool.Pool, s []T, less func(a, b T) bool) error {
	n := len(s)
	if n < 2 {
		return nil
	}
	spans := splitSpans(n, chunkCount(p, n, 1))
	futures := make([]*pool.Future[struct{}], len(spans))
	for ci, sp := range spans {
		sp := sp
		f, err := pool.SubmitVoid(p, func() error {
			slices.SortFunc(s[sp.lo:sp.hi], cmpFunc(less))
			return nil
		})
		if err != nil {
			return err
		}
		futures[ci] = f
	}
	if err := waitAllVoid(futures); err != nil {
		return err
	}
	return mergeCascade(p, s, less, spans)
}

// TimSort sorts s under less: fixed 32-element runs are sorted serially
// by insertion sort in parallel, then merged with the same doubling
// cascade MergeSort uses (spec.md §4.3 "parallel_tim_sort").
func TimSort[T any](p *pool.Pool, s []T, less func(a, b T) bool) error {
	n := len(s)
	if n < 2 {
		return nil
	}
	runs := splitFixed(n, timSortRunSize)
	futures := make([]*pool.Future[struct{}], len(runs))
	for ci, run := range runs {
		run := run
		f, err := pool.SubmitVoid(p, func() error {
			insertionSort(s[run.lo:run.hi], less)
			return nil
		})
		if err != nil {
			return err
		}
		futures[ci] = f
	}
	if err := waitAllVoid(futures); err != nil {
		return err
	}
	return mergeCascade(p, s, less, runs)
}

func cmpFunc[T any](less func(a, b T) bool) func(a, b T) int {
	return func(a, b T) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		default:
			return 0
		}
	}
}

func insertionSort[T any](s []T, less func(a, b T) bool) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && less(v, s[j]) {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// mergeCascade merges adjacent spans pairwise, doubling the merged span
// size each round, until a single span covering all of s remains. Pairs
// within a round touch disjoint index ranges and merge concurrently.
func mergeCascade[T any](p *pool.Pool, s []T, less func(a, b T) bool, spans []span) error {
	if len(spans) < 2 {
		return nil
	}
	scratch := make([]T, len(s))
	cur := spans
	for len(cur) > 1 {
		next := make([]span, 0, (len(cur)+1)/2)
		futures := make([]*pool.Future[struct{}], 0, len(cur)/2)
		i := 0
		for ; i+1 < len(cur); i += 2 {
			a, b := cur[i], cur[i+1]
			next = append(next, span{a.lo, b.hi})
			f, err := pool.SubmitVoid(p, func() error {
				mergeSpans(s, less, a.lo, b.lo, b.hi, scratch)
				return nil
			})
			if err != nil {
				return err
			}
			futures = append(futures, f)
		}
		if i < len(cur) {
			next = append(next, cur[i])
		}
		if err := waitAllVoid(futures); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// mergeSpans merges the sorted halves s[lo:mid] and s[mid:hi] using
// scratch as working space, writing the sorted result back into
// s[lo:hi].
func mergeSpans[T any](s []T, less func(a, b T) bool, lo, mid, hi int, scratch []T) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if less(s[j], s[i]) {
			scratch[k] = s[j]
			j++
		} else {
			scratch[k] = s[i]
			i++
		}
		k++
	}
	for i < mid {
		scratch[k] = s[i]
		i++
		k++
	}
	for j < hi {
		scratch[k] = s[j]
		j++
		k++
	}
	copy(s[lo:hi], scratch[lo:hi])
}

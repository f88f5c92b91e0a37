// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parallel_test

import (
	"math/rand"
	"slices"
	"testing"

	"code.hybscloud.com/pointkit/concurrent/parallel"
	"code.hybscloud.com/pointkit/concurrent/pool"
)

func TestInclusiveScanMatchesSpecExample(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	want := []int{1, 3, 6, 10, 15, 21, 28, 36}

	for _, workers := range []int{1, 2, 4, 8} {
		p := pool.New(workers)
		out := make([]int, len(in))
		if err := parallel.InclusiveScan(p, in, out, 0, func(a, b int) int { return a + b }); err != nil {
			t.Fatalf("workers=%d: InclusiveScan: %v", workers, err)
		}
		if !slices.Equal(out, want) {
			t.Fatalf("workers=%d: got %v, want %v", workers, out, want)
		}
		p.Shutdown()
	}
}

func TestReduceMatchesSerialSum(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	s := make([]int, 100000)
	want := 0
	for i := range s {
		s[i] = i
		want += i
	}
	got, err := parallel.Reduce(p, s, 0, func(a, b int) int { return a + b })
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if got != want {
		t.Fatalf("Reduce = %d, want %d", got, want)
	}
}

func TestForEachVisitsEveryElement(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	s := make([]int, 10000)
	if err := parallel.ForEach(p, s, func(i int, v *int) { *v = i * 2 }); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	for i, v := range s {
		if v != i*2 {
			t.Fatalf("s[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestTransformPreservesOrder(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	in := make([]int, 10000)
	for i := range in {
		in[i] = i
	}
	out := make([]int, len(in))
	if err := parallel.Transform(p, in, out, func(v int) int { return v * v }); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestMergeSortAndTimSortProduceSortedPermutation(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	rng := rand.New(rand.NewSource(7))
	less := func(a, b int) bool { return a < b }

	for _, n := range []int{0, 1, 2, 31, 32, 33, 1000, 9999} {
		base := rng.Perm(n)
		want := slices.Clone(base)
		slices.Sort(want)

		ms := slices.Clone(base)
		if err := parallel.MergeSort(p, ms, less); err != nil {
			t.Fatalf("MergeSort n=%d: %v", n, err)
		}
		if !slices.Equal(ms, want) {
			t.Fatalf("MergeSort n=%d: got %v, want %v", n, ms, want)
		}

		ts := slices.Clone(base)
		if err := parallel.TimSort(p, ts, less); err != nil {
			t.Fatalf("TimSort n=%d: %v", n, err)
		}
		if !slices.Equal(ts, want) {
			t.Fatalf("TimSort n=%d: got %v, want %v", n, ts, want)
		}
	}
}

func TestTransformLengthMismatchIsRejected(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	err := parallel.Transform(p, []int{1, 2, 3}, make([]int, 2), func(v int) int { return v })
	if err == nil {
		t.Fatal("Transform with mismatched lengths: want error, got nil")
	}
}

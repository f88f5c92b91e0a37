// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package correspondence_test

import (
	"math"
	"sort"
	"testing"

	"code.hybscloud.com/pointkit/concurrent/pool"
	"code.hybscloud.com/pointkit/registration/correspondence"
)

func l1Distance(a, b float64) float64 { return math.Abs(a - b) }

func TestMatchFindsExactCorrespondencesWithRatioTest(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src := []float64{1.0, 5.0, 9.2, 20.0}
	tgt := []float64{9.21, 1.01, 100.0, 5.02, 0.5}
	// src[0]=1.0 nearest tgt[1]=1.01 (d=.01), next tgt[4]=0.5 (d=.5) -> ratio pass
	// src[1]=5.0 nearest tgt[3]=5.02, next nearest is src-independent
	// src[2]=9.2 nearest tgt[0]=9.21
	// src[3]=20.0 has no close match -> ratio test should reject it

	got, err := correspondence.Match(p, src, tgt, l1Distance, correspondence.Options{Ratio: 0.5})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	want := map[int]int{0: 1, 1: 3, 2: 0}
	if len(got) != len(want) {
		t.Fatalf("got %d correspondences, want %d: %+v", len(got), len(want), got)
	}
	for _, c := range got {
		if want[c.SrcIdx] != c.DstIdx {
			t.Fatalf("SrcIdx %d matched DstIdx %d, want %d", c.SrcIdx, c.DstIdx, want[c.SrcIdx])
		}
	}
}

func TestMatchCrossCheckRejectsAsymmetricMatches(t *testing.T) {
	p := pool.New(2)
	defer p.Shutdown()

	// tgt[0] is closest to both src[0] and src[1]; without cross-check both
	// may pass the ratio test, but cross-check keeps only the true mutual
	// nearest pair.
	src := []float64{10.0, 10.3}
	tgt := []float64{10.1, 50.0}

	withCheck, err := correspondence.Match(p, src, tgt, l1Distance, correspondence.Options{Ratio: 0.99, CrossCheck: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	for _, c := range withCheck {
		if c.SrcIdx == 1 {
			t.Fatalf("cross-check should have rejected src 1's match to dst %d", c.DstIdx)
		}
	}
}

func TestMatchParallelMatchesSerial(t *testing.T) {
	p := pool.New(4)
	defer p.Shutdown()

	src := make([]float64, 200)
	tgt := make([]float64, 200)
	for i := range src {
		src[i] = float64(i) * 1.001
		tgt[i] = float64(i)
	}

	serial, err := correspondence.Match(p, src, tgt, l1Distance, correspondence.Options{Ratio: 0.5})
	if err != nil {
		t.Fatalf("Match (serial): %v", err)
	}
	parallel, err := correspondence.Match(p, src, tgt, l1Distance, correspondence.Options{Ratio: 0.5, Parallel: true})
	if err != nil {
		t.Fatalf("Match (parallel): %v", err)
	}

	sort.Slice(serial, func(i, j int) bool { return serial[i].SrcIdx < serial[j].SrcIdx })
	sort.Slice(parallel, func(i, j int) bool { return parallel[i].SrcIdx < parallel[j].SrcIdx })
	if len(serial) != len(parallel) {
		t.Fatalf("serial found %d matches, parallel found %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("serial and parallel diverge at %d: %+v vs %+v", i, serial[i], parallel[i])
		}
	}
}

func TestMatchRejectsInvalidRatio(t *testing.T) {
	p := pool.New(1)
	defer p.Shutdown()

	if _, err := correspondence.Match(p, []float64{1}, []float64{1, 2}, l1Distance, correspondence.Options{Ratio: 0}); err == nil {
		t.Fatal("Match with ratio=0: want error, got nil")
	}
}

func TestMatchOnTooFewTargetsReturnsEmpty(t *testing.T) {
	p := pool.New(1)
	defer p.Shutdown()

	got, err := correspondence.Match(p, []float64{1, 2}, []float64{1}, l1Distance, correspondence.Options{Ratio: 0.8})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d correspondences, want 0", len(got))
	}
}

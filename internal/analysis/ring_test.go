// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestRingPushAndWrap(t *testing.T) {
	r := newRing(3)

	if r.len() != 0 || r.full() {
		t.Fatal("new ring should be empty")
	}

	r.push(1)
	r.push(2)
	if r.full() {
		t.Error("ring should not be full at 2/3")
	}

	r.push(3)
	if !r.full() {
		t.Error("ring should be full at 3/3")
	}

	// Overwrite the oldest sample.
	r.push(4)
	if r.len() != 3 {
		t.Errorf("len = %d, want 3", r.len())
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if got := r.at(i); got != w {
			t.Errorf("at(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestRingStats(t *testing.T) {
	r := newRing(5)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.push(v)
	}

	if got := r.mean(); got != 3 {
		t.Errorf("mean = %v, want 3", got)
	}
	if got := r.max(); got != 5 {
		t.Errorf("max = %v, want 5", got)
	}
	if got := r.stdDev(); math.Abs(got-math.Sqrt(2)) > 1e-9 {
		t.Errorf("stdDev = %v, want %v", got, math.Sqrt(2))
	}
	if got := r.meanRange(0, 2); got != 1.5 {
		t.Errorf("meanRange(0,2) = %v, want 1.5", got)
	}
	if got := r.meanRange(3, 5); got != 4.5 {
		t.Errorf("meanRange(3,5) = %v, want 4.5", got)
	}
}

func TestRingMeanRangeBounds(t *testing.T) {
	r := newRing(4)
	r.push(1)
	r.push(2)

	if got := r.meanRange(-1, 10); got != 1.5 {
		t.Errorf("clamped meanRange = %v, want 1.5", got)
	}
	if got := r.meanRange(2, 2); got != 0 {
		t.Errorf("empty meanRange = %v, want 0", got)
	}
}

func TestRingWeightedMeanFavorsRecent(t *testing.T) {
	r := newRing(4)
	for _, v := range []float64{0, 0, 0, 1} {
		r.push(v)
	}

	// Weights 1..4: (0+0+0+4)/10 = 0.4, versus plain mean 0.25.
	if got := r.weightedMean(); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("weightedMean = %v, want 0.4", got)
	}
	if got := r.weightedMean(); got <= r.mean() {
		t.Errorf("weightedMean %v should exceed mean %v for a rising series", got, r.mean())
	}
}

func TestRingZeroAllocPush(t *testing.T) {
	r := newRing(43)
	allocs := testing.AllocsPerRun(100, func() {
		r.push(0.5)
		_ = r.mean()
		_ = r.stdDev()
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ring hot path, got %.1f", allocs)
	}
}

// SPDX-License-Identifier: MIT
package analysis

import "math"

// ring is a fixed-capacity ring buffer of float64 samples indexed by a
// cursor. Histories in this package use it instead of grow-then-shift
// slices so pushes stay O(1) on the tick path.
type ring struct {
	buf  []float64
	head int // Next write position.
	size int // Number of valid samples.
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{buf: make([]float64, capacity)}
}

// push appends a sample, overwriting the oldest once full.
func (r *ring) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *ring) len() int   { return r.size }
func (r *ring) full() bool { return r.size == len(r.buf) }

// at returns the i-th sample in chronological order (0 = oldest).
func (r *ring) at(i int) float64 {
	start := r.head - r.size
	if start < 0 {
		start += len(r.buf)
	}
	return r.buf[(start+i)%len(r.buf)]
}

// meanRange returns the arithmetic mean of samples [from, to) in
// chronological order. Returns 0 for an empty or invalid range.
func (r *ring) meanRange(from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > r.size {
		to = r.size
	}
	if to <= from {
		return 0
	}
	var sum float64
	for i := from; i < to; i++ {
		sum += r.at(i)
	}
	return sum / float64(to-from)
}

func (r *ring) mean() float64 {
	return r.meanRange(0, r.size)
}

// stdDev returns the population standard deviation of the buffer.
func (r *ring) stdDev() float64 {
	if r.size == 0 {
		return 0
	}
	m := r.mean()
	var sum float64
	for i := 0; i < r.size; i++ {
		d := r.at(i) - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(r.size))
}

// max returns the largest sample currently held, or 0 when empty.
func (r *ring) max() float64 {
	var m float64
	for i := 0; i < r.size; i++ {
		if v := r.at(i); v > m {
			m = v
		}
	}
	return m
}

// weightedMean returns a linearly weighted mean where the most recent
// sample carries the highest weight.
func (r *ring) weightedMean() float64 {
	if r.size == 0 {
		return 0
	}
	var sum, weights float64
	for i := 0; i < r.size; i++ {
		w := float64(i + 1)
		sum += r.at(i) * w
		weights += w
	}
	return sum / weights
}

// SPDX-License-Identifier: MIT
/*
Package analysis implements the audio intelligence pipeline: banded
energy extraction from the FFT spectrum, adaptive beat and transient
detection, and enrichment into a single per-tick audio description that
downstream consumers (the spatial network, external renderers) read.

The pipeline is tick-driven and single-threaded: exactly one
Analyze/Detect cycle runs per tick, and every history window is a
fixed-capacity ring buffer so the tick path stays allocation-free.
*/
package analysis

import "math"

// SpectrumProvider supplies the latest FFT magnitude spectrum. Satisfied
// by fft.Processor; decouples the analyzer from the capture stack.
type SpectrumProvider interface {
	GetMagnitudesInto(dest []float64) error
	GetFFTSize() int
	GetSampleRate() float64
	FrameCount() uint64
}

// BandEnergySample is the per-tick output of the SignalAnalyzer: four
// normalized band energies, an overall loudness figure, and the raw
// byte-scaled magnitude spectrum. The Raw slice is reused across ticks;
// the sample is valid until the next Analyze call.
type BandEnergySample struct {
	SubBass  float64 // ~20-60 Hz
	Bass     float64 // ~60-250 Hz
	Mid      float64 // ~250-2000 Hz
	High     float64 // ~2000-20000 Hz
	Loudness float64
	Raw      []byte // One byte per FFT bin, 0-255.
}

// Total returns the mean of the four band energies, the composite
// energy figure the rest of the pipeline works with.
func (s BandEnergySample) Total() float64 {
	return (s.SubBass + s.Bass + s.Mid + s.High) / 4
}

// Band boundaries in Hz.
var bandLimits = [5]float64{20, 60, 250, 2000, 20000}

// runningMaxDecay self-calibrates normalization to ambient loudness: the
// per-band maximum decays slowly so the system adapts when the source
// gets quieter instead of pinning to an old peak.
const runningMaxDecay = 0.995

// runningMaxFloor prevents divide-by-zero on silent input.
const runningMaxFloor = 1e-6

type bandBins struct {
	lo, hi int // Bin range [lo, hi).
}

// SignalAnalyzer extracts normalized band energies from the frequency
// spectrum each tick. Normalization uses a decaying running maximum per
// band rather than fixed absolute thresholds.
type SignalAnalyzer struct {
	provider SpectrumProvider

	bands      [4]bandBins
	magnitudes []float64
	raw        []byte

	runningMax [5]float64 // Four bands plus loudness.
}

// NewSignalAnalyzer partitions the provider's FFT bins into the four
// analysis bands by integer bin boundaries derived from the bin width.
func NewSignalAnalyzer(provider SpectrumProvider) *SignalAnalyzer {
	binCount := provider.GetFFTSize()/2 + 1
	binWidth := provider.GetSampleRate() / float64(provider.GetFFTSize())

	a := &SignalAnalyzer{
		provider:   provider,
		magnitudes: make([]float64, binCount),
		raw:        make([]byte, binCount),
	}

	for b := range a.bands {
		lo := int(bandLimits[b] / binWidth)
		hi := int(bandLimits[b+1] / binWidth)
		if hi > binCount {
			hi = binCount
		}
		if lo >= hi {
			// Degenerate band at very low FFT resolutions, keep one bin.
			lo = min(b, binCount-1)
			hi = lo + 1
		}
		a.bands[b] = bandBins{lo: lo, hi: hi}
	}
	for i := range a.runningMax {
		a.runningMax[i] = runningMaxFloor
	}
	return a
}

// Analyze produces the BandEnergySample for the current tick. Before
// any capture buffer has been processed it returns an all-zero sample
// so consumers degrade gracefully instead of failing.
func (a *SignalAnalyzer) Analyze() BandEnergySample {
	sample := BandEnergySample{Raw: a.raw}

	if a.provider == nil || a.provider.FrameCount() == 0 {
		for i := range a.raw {
			a.raw[i] = 0
		}
		return sample
	}

	if err := a.provider.GetMagnitudesInto(a.magnitudes); err != nil {
		return sample
	}

	var bandAvgs [4]float64
	for b, bins := range a.bands {
		var sum float64
		for i := bins.lo; i < bins.hi; i++ {
			sum += a.magnitudes[i]
		}
		bandAvgs[b] = sum / float64(bins.hi-bins.lo)
	}

	var total float64
	for _, m := range a.magnitudes {
		total += m
	}
	loudnessAvg := total / float64(len(a.magnitudes))

	sample.SubBass = a.normalize(0, bandAvgs[0])
	sample.Bass = a.normalize(1, bandAvgs[1])
	sample.Mid = a.normalize(2, bandAvgs[2])
	sample.High = a.normalize(3, bandAvgs[3])
	sample.Loudness = a.normalize(4, loudnessAvg)

	// Byte-scaled spectrum against the loudness running maximum.
	scale := 255.0 / a.runningMax[4]
	for i, m := range a.magnitudes {
		v := m * scale
		if v > 255 {
			v = 255
		}
		a.raw[i] = byte(v)
	}

	return sample
}

// normalize updates the band's decaying running maximum and maps value
// into [0, 1] against it.
func (a *SignalAnalyzer) normalize(band int, value float64) float64 {
	decayed := a.runningMax[band] * runningMaxDecay
	a.runningMax[band] = math.Max(math.Max(value, decayed), runningMaxFloor)
	return clamp01(value / a.runningMax[band])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

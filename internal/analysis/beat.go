// SPDX-License-Identifier: MIT
package analysis

// BeatStrength buckets beat confidence into four levels.
type BeatStrength int

const (
	StrengthNone BeatStrength = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
)

func (s BeatStrength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthMedium:
		return "medium"
	case StrengthStrong:
		return "strong"
	default:
		return "none"
	}
}

// BeatResult is recomputed every tick from the detector's rolling history.
type BeatResult struct {
	IsBeat      bool
	Confidence  float64 // Decays by x0.9 per beatless tick, usable as a continuous signal.
	Energy      float64 // Composite energy of this tick.
	IsTransient bool
	Strength    BeatStrength
}

const (
	// MinSensitivity and MaxSensitivity bound the only external tuning
	// knob of the detector.
	MinSensitivity = 0.3
	MaxSensitivity = 1.0

	beatWindowSize    = 43   // Sliding composite-energy window.
	beatCooldownTicks = 15   // Minimum ticks between beats.
	minBeatEnergy     = 0.08 // Absolute energy floor for a beat.
	transientDelta    = 0.25 // One-tick energy jump flagged as transient.
	confidenceDecay   = 0.9
	peakWindowSize    = 30 // Per-band recent peak memory.

	defaultSmoothingAlpha = 0.3
)

// BandLevels carries one value per analysis band.
type BandLevels struct {
	SubBass float64 `json:"subBass"`
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	High    float64 `json:"high"`
}

// BeatDetector flags beats and transients from a composite energy
// signal using an adaptive statistical threshold over a sliding window,
// and maintains smoothed band energies plus recent per-band peaks.
type BeatDetector struct {
	sensitivity float64

	history    *ring // Composite energy, beatWindowSize samples.
	cooldown   int
	lastEnergy float64
	confidence float64

	alpha    float64 // EMA factor for band smoothing.
	smoothed BandLevels

	peaks [4]*ring // Per-band rolling peak memory.
}

// NewBeatDetector creates a detector with the given sensitivity and EMA
// smoothing factor. Out-of-range values are clamped/defaulted.
func NewBeatDetector(sensitivity, smoothingAlpha float64) *BeatDetector {
	d := &BeatDetector{
		history: newRing(beatWindowSize),
		alpha:   smoothingAlpha,
	}
	if d.alpha <= 0 || d.alpha > 1 {
		d.alpha = defaultSmoothingAlpha
	}
	d.SetSensitivity(sensitivity)
	for i := range d.peaks {
		d.peaks[i] = newRing(peakWindowSize)
	}
	return d
}

// SetSensitivity clamps s into [0.3, 1.0]. Higher values require a
// larger overshoot above the adaptive threshold.
func (d *BeatDetector) SetSensitivity(s float64) {
	if s < MinSensitivity {
		s = MinSensitivity
	}
	if s > MaxSensitivity {
		s = MaxSensitivity
	}
	d.sensitivity = s
}

// Sensitivity returns the current clamped sensitivity.
func (d *BeatDetector) Sensitivity() float64 {
	return d.sensitivity
}

// Detect evaluates the current tick's sample against the rolling
// history. Beats fire only once the window is full, above an adaptive
// threshold of mean + sensitivity*stdDev*2, outside the cooldown, and
// above an absolute energy floor. Transients are an independent
// one-tick delta check that catches short percussive hits the windowed
// statistics would smooth away.
func (d *BeatDetector) Detect(sample BandEnergySample) BeatResult {
	total := sample.Total()
	energy := sample.Bass*1.5 + total*0.5

	result := BeatResult{Energy: energy}

	result.IsTransient = energy-d.lastEnergy > transientDelta
	d.lastEnergy = energy

	if d.cooldown > 0 {
		d.cooldown--
	}

	if d.history.full() && d.cooldown == 0 && energy >= minBeatEnergy {
		mean := d.history.mean()
		std := d.history.stdDev()
		threshold := mean + d.sensitivity*std*2

		if energy > threshold {
			overshoot := energy - threshold
			base := threshold
			if base < minBeatEnergy {
				base = minBeatEnergy
			}
			d.confidence = clamp01(overshoot / base)
			d.cooldown = beatCooldownTicks

			result.IsBeat = true
			result.Confidence = d.confidence
			result.Strength = strengthFor(d.confidence)
		}
	}

	if !result.IsBeat {
		d.confidence *= confidenceDecay
		result.Confidence = d.confidence
	}

	d.history.push(energy)
	d.updateBands(sample)

	return result
}

// Smoothed returns the exponentially smoothed band energies.
func (d *BeatDetector) Smoothed() BandLevels {
	return d.smoothed
}

// RecentPeaks returns the maximum of each band over the peak memory
// window, a "recent loudness" query independent of the latest value.
func (d *BeatDetector) RecentPeaks() BandLevels {
	return BandLevels{
		SubBass: d.peaks[0].max(),
		Bass:    d.peaks[1].max(),
		Mid:     d.peaks[2].max(),
		High:    d.peaks[3].max(),
	}
}

func (d *BeatDetector) updateBands(sample BandEnergySample) {
	d.smoothed.SubBass = d.alpha*sample.SubBass + (1-d.alpha)*d.smoothed.SubBass
	d.smoothed.Bass = d.alpha*sample.Bass + (1-d.alpha)*d.smoothed.Bass
	d.smoothed.Mid = d.alpha*sample.Mid + (1-d.alpha)*d.smoothed.Mid
	d.smoothed.High = d.alpha*sample.High + (1-d.alpha)*d.smoothed.High

	d.peaks[0].push(sample.SubBass)
	d.peaks[1].push(sample.Bass)
	d.peaks[2].push(sample.Mid)
	d.peaks[3].push(sample.High)
}

func strengthFor(confidence float64) BeatStrength {
	switch {
	case confidence >= 0.7:
		return StrengthStrong
	case confidence >= 0.3:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}

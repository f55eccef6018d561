// SPDX-License-Identifier: MIT
package analysis

import "encoding/json"

// EnergyState is the discrete position in the track's energy arc.
type EnergyState int

const (
	StateCalm EnergyState = iota
	StateBuilding
	StatePeak
	StateBreakdown
	StateDrop
)

func (s EnergyState) String() string {
	switch s {
	case StateCalm:
		return "calm"
	case StateBuilding:
		return "building"
	case StatePeak:
		return "peak"
	case StateBreakdown:
		return "breakdown"
	case StateDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// AudioDescription is the canonical enriched record handed to every
// downstream consumer once per tick. A fresh value is produced and
// discarded each tick; it has no identity beyond "current tick".
//
// The legacy band names (bassEnergy/midEnergy/highEnergy) are aliases
// of the canonical fields, exposed through methods and emitted
// alongside the new names in JSON. Renderers built against either name
// set see identical values.
type AudioDescription struct {
	SubBass  float64
	Bass     float64
	Mids     float64
	Highs    float64
	Loudness float64
	Total    float64

	IsBeat         bool
	BeatConfidence float64
	BeatStrength   BeatStrength
	IsTransient    bool

	Smoothed    BandLevels
	RecentPeaks BandLevels

	IsSilence  bool
	IsClimax   bool
	IsBeatDrop bool

	BeatDropIntensity  float64
	HighSpikeIntensity float64

	EnergyState EnergyState

	Raw []byte // Byte-scaled magnitude spectrum, reused across ticks.
}

// BassEnergy is the legacy alias of Bass.
func (d *AudioDescription) BassEnergy() float64 { return d.Bass }

// MidEnergy is the legacy alias of Mids.
func (d *AudioDescription) MidEnergy() float64 { return d.Mids }

// HighEnergy is the legacy alias of Highs.
func (d *AudioDescription) HighEnergy() float64 { return d.Highs }

// MarshalJSON emits both band-name sets. The dual naming is a
// compatibility contract: the legacy keys must always stay numerically
// identical to the canonical ones.
func (d AudioDescription) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SubBass    float64 `json:"subBass"`
		Bass       float64 `json:"bass"`
		Mids       float64 `json:"mids"`
		Highs      float64 `json:"highs"`
		BassEnergy float64 `json:"bassEnergy"`
		MidEnergy  float64 `json:"midEnergy"`
		HighEnergy float64 `json:"highEnergy"`

		Loudness float64 `json:"loudness"`
		Total    float64 `json:"totalEnergy"`

		IsBeat         bool    `json:"isBeat"`
		BeatConfidence float64 `json:"beatConfidence"`
		BeatStrength   int     `json:"beatStrength"`
		IsTransient    bool    `json:"isTransient"`

		Smoothed    BandLevels `json:"smoothed"`
		RecentPeaks BandLevels `json:"recentPeaks"`

		IsSilence  bool `json:"isSilence"`
		IsClimax   bool `json:"isClimax"`
		IsBeatDrop bool `json:"isBeatDrop"`

		BeatDropIntensity  float64 `json:"beatDropIntensity"`
		HighSpikeIntensity float64 `json:"highSpikeIntensity"`

		EnergyState string `json:"energyState"`
	}{
		SubBass:    d.SubBass,
		Bass:       d.Bass,
		Mids:       d.Mids,
		Highs:      d.Highs,
		BassEnergy: d.Bass,
		MidEnergy:  d.Mids,
		HighEnergy: d.Highs,

		Loudness: d.Loudness,
		Total:    d.Total,

		IsBeat:         d.IsBeat,
		BeatConfidence: d.BeatConfidence,
		BeatStrength:   int(d.BeatStrength),
		IsTransient:    d.IsTransient,

		Smoothed:    d.Smoothed,
		RecentPeaks: d.RecentPeaks,

		IsSilence:  d.IsSilence,
		IsClimax:   d.IsClimax,
		IsBeatDrop: d.IsBeatDrop,

		BeatDropIntensity:  d.BeatDropIntensity,
		HighSpikeIntensity: d.HighSpikeIntensity,

		EnergyState: d.EnergyState.String(),
	})
}

const (
	climaxWindowSize = 120 // Long energy window for climax trend detection.
	dropWindowSize   = 30  // Short window for beat-drop detection.
	spikeWindowSize  = 12  // High-band window for spike detection.

	silenceHoldTicks = 30 // ~0.5 s at 60 ticks/s.

	stateHoldTicks   = 120 // ~2 s minimum state duration at 60 ticks/s.
	dropTimeoutTicks = 150 // Drop auto-reverts after this many ticks.

	dropMagnitude   = 0.25 // Energy fall that qualifies as a beat drop.
	sustainedHigh   = 0.6  // Prior average that counts as sustained-high.
	spikeDelta      = 0.3  // High-band rise over baseline flagged as spike.
	climaxMinEnergy = 0.6  // Climax requires currently-high energy too.

	// State transition thresholds on the weighted moving average.
	// Each boundary has a distinct up and down threshold (hysteresis).
	calmUp       = 0.35
	buildingDown = 0.25
	buildingUp   = 0.65
	peakDown     = 0.50
	breakdownUp  = 0.60
	breakdownLow = 0.20
)

// AudioIntelligence orchestrates SignalAnalyzer and BeatDetector and
// enriches their output with silence, climax, beat-drop and spike
// detection plus the hysteresis-based energy-state machine.
type AudioIntelligence struct {
	analyzer *SignalAnalyzer
	detector *BeatDetector

	energyHistory *ring // climaxWindowSize ticks of total energy.
	recentHistory *ring // dropWindowSize ticks of total energy.
	spikeHistory  *ring // spikeWindowSize ticks of high-band energy.

	silenceThreshold  float64
	climaxSensitivity float64
	silenceTicks      int

	state      EnergyState
	stateTicks int
}

// NewAudioIntelligence wires the aggregation layer on top of a signal
// analyzer and beat detector.
func NewAudioIntelligence(analyzer *SignalAnalyzer, detector *BeatDetector, silenceThreshold, climaxSensitivity float64) *AudioIntelligence {
	return &AudioIntelligence{
		analyzer:          analyzer,
		detector:          detector,
		energyHistory:     newRing(climaxWindowSize),
		recentHistory:     newRing(dropWindowSize),
		spikeHistory:      newRing(spikeWindowSize),
		silenceThreshold:  silenceThreshold,
		climaxSensitivity: climaxSensitivity,
		state:             StateCalm,
	}
}

// SetSilenceThreshold adjusts the loudness floor for silence detection.
func (ai *AudioIntelligence) SetSilenceThreshold(t float64) {
	if t < 0 {
		t = 0
	}
	ai.silenceThreshold = t
}

// SetClimaxSensitivity adjusts the growth-rate threshold for climax detection.
func (ai *AudioIntelligence) SetClimaxSensitivity(s float64) {
	if s < 0 {
		s = 0
	}
	ai.climaxSensitivity = s
}

// SetSensitivity forwards to the beat detector, the pipeline's only
// beat tuning knob.
func (ai *AudioIntelligence) SetSensitivity(s float64) {
	ai.detector.SetSensitivity(s)
}

// State returns the current energy state.
func (ai *AudioIntelligence) State() EnergyState {
	return ai.state
}

// Analyze runs one tick of the pipeline: band extraction, beat
// detection, enrichment, state machine. The single entry point other
// systems call once per tick.
func (ai *AudioIntelligence) Analyze() AudioDescription {
	sample := ai.analyzer.Analyze()
	beat := ai.detector.Detect(sample)
	total := sample.Total()

	ai.energyHistory.push(total)
	ai.recentHistory.push(total)
	ai.spikeHistory.push(sample.High)

	isSilence := ai.detectSilence(sample.Loudness)
	isBeatDrop, dropIntensity := ai.detectBeatDrop()
	isClimax := ai.detectClimax(total)
	spikeIntensity := ai.detectHighSpike(sample.High)

	ai.advanceState(isBeatDrop)

	return AudioDescription{
		SubBass:  sample.SubBass,
		Bass:     sample.Bass,
		Mids:     sample.Mid,
		Highs:    sample.High,
		Loudness: sample.Loudness,
		Total:    total,

		IsBeat:         beat.IsBeat,
		BeatConfidence: beat.Confidence,
		BeatStrength:   beat.Strength,
		IsTransient:    beat.IsTransient,

		Smoothed:    ai.detector.Smoothed(),
		RecentPeaks: ai.detector.RecentPeaks(),

		IsSilence:  isSilence,
		IsClimax:   isClimax,
		IsBeatDrop: isBeatDrop,

		BeatDropIntensity:  dropIntensity,
		HighSpikeIntensity: spikeIntensity,

		EnergyState: ai.state,
		Raw:         sample.Raw,
	}
}

// detectSilence debounces the loudness floor: silence is flagged only
// after silenceHoldTicks consecutive quiet ticks, and any loud sample
// resets the counter.
func (ai *AudioIntelligence) detectSilence(loudness float64) bool {
	if loudness < ai.silenceThreshold {
		ai.silenceTicks++
	} else {
		ai.silenceTicks = 0
	}
	return ai.silenceTicks >= silenceHoldTicks
}

// detectBeatDrop compares the average of the most recent 10 samples
// against the 10 before that inside the 30-sample window. A drop needs
// a prior sustained-high stretch followed by a fall exceeding
// dropMagnitude. With insufficient history it reports "not detected".
func (ai *AudioIntelligence) detectBeatDrop() (bool, float64) {
	if !ai.recentHistory.full() {
		return false, 0
	}
	n := ai.recentHistory.len()
	recent := ai.recentHistory.meanRange(n-10, n)
	previous := ai.recentHistory.meanRange(n-20, n-10)
	sustained := ai.recentHistory.meanRange(0, n-10)

	if sustained > sustainedHigh && previous-recent > dropMagnitude {
		return true, clamp01(previous - recent)
	}
	return false, 0
}

// detectClimax compares the first and second halves of the long energy
// window. Requiring the current energy to be high avoids false
// positives from quiet passages growing off a near-zero base.
func (ai *AudioIntelligence) detectClimax(current float64) bool {
	if !ai.energyHistory.full() {
		return false
	}
	n := ai.energyHistory.len()
	firstHalf := ai.energyHistory.meanRange(0, n/2)
	secondHalf := ai.energyHistory.meanRange(n/2, n)

	base := firstHalf
	if base < 0.05 {
		base = 0.05
	}
	growth := (secondHalf - firstHalf) / base

	return growth > ai.climaxSensitivity && current > climaxMinEnergy
}

// detectHighSpike flags a high-band rise above the baseline of all but
// the most recent 3 samples in the short window.
func (ai *AudioIntelligence) detectHighSpike(current float64) float64 {
	n := ai.spikeHistory.len()
	if n <= 3 {
		return 0
	}
	baseline := ai.spikeHistory.meanRange(0, n-3)
	if current-baseline > spikeDelta {
		return clamp01(current - baseline)
	}
	return 0
}

// advanceState runs the five-state hysteresis machine on the weighted
// moving average of total energy. Every transition requires the minimum
// hold duration except the forced jump to Drop on a beat drop. Drop
// auto-reverts after dropTimeoutTicks.
func (ai *AudioIntelligence) advanceState(isBeatDrop bool) {
	ai.stateTicks++

	if isBeatDrop && ai.state != StateDrop {
		ai.transition(StateDrop)
		return
	}

	wavg := ai.recentHistory.weightedMean()

	if ai.state == StateDrop {
		if ai.stateTicks >= dropTimeoutTicks {
			if wavg >= peakDown {
				ai.transition(StatePeak)
			} else {
				ai.transition(StateBreakdown)
			}
		}
		return
	}

	if ai.stateTicks < stateHoldTicks {
		return
	}

	switch ai.state {
	case StateCalm:
		if wavg > calmUp {
			ai.transition(StateBuilding)
		}
	case StateBuilding:
		if wavg > buildingUp {
			ai.transition(StatePeak)
		} else if wavg < buildingDown {
			ai.transition(StateCalm)
		}
	case StatePeak:
		if wavg < peakDown {
			ai.transition(StateBreakdown)
		}
	case StateBreakdown:
		if wavg > breakdownUp {
			ai.transition(StateBuilding)
		} else if wavg < breakdownLow {
			ai.transition(StateCalm)
		}
	}
}

func (ai *AudioIntelligence) transition(next EnergyState) {
	ai.state = next
	ai.stateTicks = 0
}

// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"pulseviz/internal/config"
	"pulseviz/internal/fft"
	"pulseviz/pkg/sig"
)

// newTestEngine builds an engine around a real FFT processor without
// touching PortAudio, for exercising the buffer path in isolation.
func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()

	windowFunc, err := fft.ParseWindowFunc(cfg.Audio.FFTWindow)
	if err != nil {
		t.Fatalf("ParseWindowFunc failed: %v", err)
	}
	proc, err := fft.NewProcessor(cfg.Audio.FFTSize, cfg.Audio.SampleRate, windowFunc)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	inputSize := cfg.Audio.FramesPerBuffer * cfg.Audio.InputChannels
	e := &Engine{
		cfg:          cfg,
		inputBuffer:  make([]int32, inputSize),
		fftProcessor: proc,
		fftMonoInput: make([]int32, cfg.Audio.FramesPerBuffer),
		gateEnabled:  cfg.Audio.GateEnabled,
	}
	e.SetGateThreshold(cfg.Audio.GateThreshold)
	return e
}

func TestGateThresholdClamping(t *testing.T) {
	e := &Engine{}

	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{3, 1},
	}
	for _, tt := range tests {
		e.SetGateThreshold(tt.in)
		if got := e.GetGateThreshold(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("SetGateThreshold(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGateBlocksQuietBuffers(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Audio.GateThreshold = 0.01
	e := newTestEngine(t, cfg)

	quiet := make([]int32, cfg.Audio.FramesPerBuffer)
	for i := range quiet {
		quiet[i] = 1000 // Way below 1% of full scale.
	}
	e.processBuffer(quiet)
	if got := e.fftProcessor.FrameCount(); got != 0 {
		t.Errorf("quiet buffer passed the gate: FrameCount = %d", got)
	}

	loud := sig.GenerateSineWave(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, 440)
	e.processBuffer(loud)
	if got := e.fftProcessor.FrameCount(); got != 1 {
		t.Errorf("loud buffer blocked by the gate: FrameCount = %d", got)
	}
}

func TestGateDisabledPassesSilence(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Audio.GateEnabled = false
	e := newTestEngine(t, cfg)

	e.processBuffer(sig.GenerateSilence(cfg.Audio.FramesPerBuffer))
	if got := e.fftProcessor.FrameCount(); got != 1 {
		t.Errorf("silent buffer not processed with gate disabled: FrameCount = %d", got)
	}

	e.EnableGate()
	e.processBuffer(sig.GenerateSilence(cfg.Audio.FramesPerBuffer))
	if got := e.fftProcessor.FrameCount(); got != 1 {
		t.Errorf("silent buffer processed with gate re-enabled: FrameCount = %d", got)
	}
}

func TestStereoBufferTakesFirstChannel(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Audio.InputChannels = 2
	cfg.Audio.GateEnabled = false
	e := newTestEngine(t, cfg)

	// 440 Hz on the left channel, silence on the right.
	mono := sig.GenerateSineWave(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, 440)
	stereo := make([]int32, cfg.Audio.FramesPerBuffer*2)
	for i, s := range mono {
		stereo[i*2] = s
	}

	e.processBuffer(stereo)

	magnitudes := e.fftProcessor.GetMagnitudes()
	peakBin := sig.FindPeakBin(magnitudes, 1, len(magnitudes)-1)
	peakFreq := e.fftProcessor.GetFrequencyForBin(peakBin)

	// 1024 frames zero-padded to 4096 points: allow a few bins of smear.
	if math.Abs(peakFreq-440) > 5*cfg.Audio.SampleRate/float64(cfg.Audio.FFTSize) {
		t.Errorf("peak at %v Hz for left-channel tone, want ~440 Hz", peakFreq)
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Audio.GateEnabled = false
	e := newTestEngine(t, cfg)

	path := filepath.Join(t.TempDir(), "capture.wav")
	if err := e.StartRecording(path); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if err := e.StartRecording(path); err == nil {
		t.Error("second StartRecording did not fail")
	}

	buffer := sig.GenerateSineWave(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, 440)
	for range 4 {
		e.processInputStream(buffer)
	}

	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	// Idempotent when not recording.
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording when stopped failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode recorded WAV: %v", err)
	}

	wantSamples := 4 * cfg.Audio.FramesPerBuffer
	if len(pcm.Data) != wantSamples {
		t.Fatalf("recorded %d samples, want %d", len(pcm.Data), wantSamples)
	}
	if pcm.Format.SampleRate != int(cfg.Audio.SampleRate) {
		t.Errorf("sample rate = %d, want %d", pcm.Format.SampleRate, int(cfg.Audio.SampleRate))
	}
	for i, want := range buffer {
		if pcm.Data[i] != int(want) {
			t.Fatalf("sample %d = %d, want %d", i, pcm.Data[i], want)
		}
	}
}

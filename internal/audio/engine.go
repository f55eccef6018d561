// SPDX-License-Identifier: MIT
/*
Package audio implements the microphone capture front end:
- Lock-free audio capture using PortAudio
- Branchless noise gate ahead of FFT processing
- WAV recording with atomic state management

PortAudio delivers raw device samples: no echo cancellation, noise
suppression, or auto gain is applied, so the analysis stage sees the
unprocessed signal.

Thread safety: the capture callback runs on a dedicated OS thread and
writes only into pre-allocated buffers and the FFT processor's guarded
workspace. Recording state is flipped with atomic operations.
*/
package audio

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"pulseviz/internal/config"
	"pulseviz/internal/fft"
	applog "pulseviz/internal/log"
)

// Engine owns the capture stream and pushes every buffer through the
// noise gate into the FFT processor.
type Engine struct {
	cfg *config.Config

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// FFT processing.
	fftProcessor *fft.Processor
	fftMonoInput []int32 // Mono buffer when capturing more than one channel.

	// Noise gate.
	gateEnabled   bool
	gateThreshold int32 // Absolute amplitude threshold.

	// Recording state and buffers.
	isRecording int32 // Atomic flag.
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *goaudio.IntBuffer
}

// NewEngine resolves the input device and wires the FFT processor.
// Returns ErrCaptureUnavailable (wrapped) when no usable input exists.
func NewEngine(cfg *config.Config, fftProcessor *fft.Processor) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	inputSize := cfg.Audio.FramesPerBuffer * cfg.Audio.InputChannels

	e := &Engine{
		cfg:          cfg,
		inputBuffer:  make([]int32, inputSize),
		inputDevice:  inputDevice,
		fftProcessor: fftProcessor,
		fftMonoInput: make([]int32, cfg.Audio.FramesPerBuffer),
		gateEnabled:  cfg.Audio.GateEnabled,
	}
	e.SetGateThreshold(cfg.Audio.GateThreshold)

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Audio: Using input device [%s] (latency %s)", inputDevice.Name, e.inputLatency)

	return e, nil
}

// StartInputStream opens and starts the capture stream. The first
// callback marks the start of the hot path.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.Audio.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.cfg.Audio.FramesPerBuffer,
		SampleRate:      e.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return ErrCaptureUnavailable
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return ErrCaptureUnavailable
	}

	return nil
}

// StopInputStream stops and closes the capture stream.
func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the capture callback.
// Performance critical: pre-allocated buffers only, no dynamic allocation.
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer)

	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		for i, sample := range e.inputBuffer {
			e.sampleBuf.Data[i] = int(sample)
		}
		e.sampleBuf.Data = e.sampleBuf.Data[:len(e.inputBuffer)]

		if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
			applog.Errorf("Audio: Error writing to WAV file: %v", err)
		}
	}
}

// processBuffer runs the branchless noise gate and forwards the buffer
// to the FFT processor when the gate is open.
func (e *Engine) processBuffer(buffer []int32) {
	shouldProcess := true
	if e.gateEnabled {
		var maxAmplitude int32
		for i := range buffer {
			sample := buffer[i]
			mask := sample >> 31
			amplitude := (sample ^ mask) - mask
			diff := amplitude - maxAmplitude
			maxAmplitude += (diff & (diff >> 31)) ^ diff
		}
		shouldProcess = maxAmplitude > e.gateThreshold
	}

	if !shouldProcess || e.fftProcessor == nil {
		return
	}

	fftInput := buffer
	if e.cfg.Audio.InputChannels > 1 {
		// Take the first channel of each frame.
		for i := range e.cfg.Audio.FramesPerBuffer {
			if i*e.cfg.Audio.InputChannels < len(buffer) {
				e.fftMonoInput[i] = buffer[i*e.cfg.Audio.InputChannels]
			} else {
				e.fftMonoInput[i] = 0
			}
		}
		fftInput = e.fftMonoInput
	}

	e.fftProcessor.Process(fftInput)
}

// Close stops recording (if active) and the input stream.
func (e *Engine) Close() error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}
	return e.StopInputStream()
}

// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"pulseviz/pkg/bitint"
)

// WindowFunc selects the FFT window function.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// workspace holds pre-allocated buffers for FFT calculations.
type workspace struct {
	input     []float64    // Windowed, scaled input signal.
	fftOutput []complex128 // Complex FFT results.
	magnitude []float64    // Calculated magnitudes.
	window    []float64    // Pre-calculated window coefficients.
	mu        sync.RWMutex // Protects concurrent access to the buffers.
}

// Processor performs FFT analysis on capture buffers. Process runs on
// the audio callback thread; readers pull the latest magnitude spectrum
// through GetMagnitudesInto from the analysis tick. The processor never
// pushes results anywhere, which keeps the callback free of I/O.
type Processor struct {
	calc       *fourier.FFT
	fftSize    int
	sampleRate float64
	workspace  workspace
	frames     atomic.Uint64 // Buffers processed since creation.
}

// NewProcessor creates an FFT processor with all buffers pre-allocated.
func NewProcessor(fftSize int, sampleRate float64, windowType WindowFunc) (*Processor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	return &Processor{
		calc:       fourier.NewFFT(fftSize),
		fftSize:    fftSize,
		sampleRate: sampleRate,
		workspace: workspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Process applies windowing, performs the FFT and stores magnitudes.
// Hot path: no allocations, input shorter than fftSize is zero-padded.
func (p *Processor) Process(inputBuffer []int32) {
	p.workspace.mu.Lock()

	const normFactor = 1.0 / float64(0x80000000) // int32 to [-1.0, 1.0).
	inputLen := len(inputBuffer)
	for i := range p.fftSize {
		if i < inputLen {
			p.workspace.input[i] = float64(inputBuffer[i]) * normFactor * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0
		}
	}

	p.calc.Coefficients(p.workspace.fftOutput, p.workspace.input)

	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c)
	}

	p.workspace.mu.Unlock()
	p.frames.Add(1)
}

// GetMagnitudesInto copies the latest magnitude spectrum into dest.
// dest must have length fftSize/2 + 1. Avoids allocation for
// performance-critical readers.
func (p *Processor) GetMagnitudesInto(dest []float64) error {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	if len(dest) != len(p.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(p.workspace.magnitude))
	}
	copy(dest, p.workspace.magnitude)
	return nil
}

// GetMagnitudes returns a copy of the latest magnitude spectrum.
// Allocates on each call; tick-loop readers should prefer GetMagnitudesInto.
func (p *Processor) GetMagnitudes() []float64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	magCopy := make([]float64, len(p.workspace.magnitude))
	copy(magCopy, p.workspace.magnitude)
	return magCopy
}

// FrameCount reports how many capture buffers have been processed.
// Zero means no audio has arrived yet.
func (p *Processor) FrameCount() uint64 {
	return p.frames.Load()
}

// GetFrequencyForBin returns the center frequency (Hz) for an FFT bin index.
func (p *Processor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex > p.fftSize/2 {
		return 0.0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

// GetFFTSize returns the configured FFT size.
func (p *Processor) GetFFTSize() int {
	return p.fftSize
}

// GetSampleRate returns the configured sample rate (Hz).
func (p *Processor) GetSampleRate() float64 {
	return p.sampleRate
}

// ParseWindowFunc converts a window function name (case-insensitive) to
// a WindowFunc. Returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function.
// Coefficients are seeded with 1.0 first since the gonum window
// functions multiply in place.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}

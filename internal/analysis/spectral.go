// SPDX-License-Identifier: MIT
/*
Package analysis implements the streaming audio analysis pipeline:

	frame -> Spectral (window + FFT + RMS volume)
	      -> Onset (spectral flux vs adaptive threshold)
	      -> Tempo (inter-onset interval clustering, phase tracking)

All stages operate on pre-allocated buffers and are driven by the capture
callback; none of them block or allocate on the per-frame path.
*/
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"lumen/pkg/bitint"
)

// WindowFunc selects the FFT window applied before transforming a frame.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Nuttall
	Lanczos
)

// ParseWindowFunc converts a window name (case-insensitive) to a
// WindowFunc. Unknown names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "lanczos":
		return Lanczos, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: %q", name)
	}
}

// windowCoefficients fills coeffs with the coefficients of the selected
// window. The slice is initialized to 1.0 first because the gonum window
// functions multiply in place.
func windowCoefficients(coeffs []float64, wf WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch wf {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// spectralWorkspace holds the pre-allocated buffers for one analyzer.
// The mutex guards magnitude/volume against concurrent snapshot reads.
type spectralWorkspace struct {
	input     []float64    // windowed input samples
	fftOutput []complex128 // complex FFT coefficients (N/2+1)
	magnitude []float64    // published bins (N/2)
	window    []float64    // window coefficients
	mu        sync.RWMutex
}

// Spectral transforms capture frames into a magnitude spectrum and a
// smoothed RMS volume. One instance is owned by the Pipeline and fed from
// the capture callback; readers access results through the copying
// accessors.
type Spectral struct {
	fftSize    int
	sampleRate float64
	fft        *fourier.FFT
	workspace  spectralWorkspace

	smoothing float64 // exponential volume smoothing factor in [0,1)
	volume    float64 // smoothed RMS, guarded by workspace.mu
	skipped   uint64  // malformed frames dropped, guarded by workspace.mu
}

// NewSpectral creates an analyzer for frames of fftSize samples.
// fftSize must be a power of 2 and sampleRate positive.
func NewSpectral(fftSize int, sampleRate float64, wf WindowFunc, smoothing float64) (*Spectral, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if smoothing < 0 || smoothing >= 1 {
		return nil, fmt.Errorf("volume smoothing must be in [0, 1), got %f", smoothing)
	}

	coeffs := make([]float64, fftSize)
	windowCoefficients(coeffs, wf)

	return &Spectral{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(fftSize),
		smoothing:  smoothing,
		workspace: spectralWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, fftSize/2+1),
			magnitude: make([]float64, fftSize/2),
			window:    coeffs,
		},
	}, nil
}

// Process analyzes one frame of normalized samples. Short frames are
// zero-padded; empty frames are counted and skipped, holding the previous
// smoothed volume so consumers do not see a dropout spike.
func (s *Spectral) Process(frame []float32) {
	if len(frame) == 0 {
		s.workspace.mu.Lock()
		s.skipped++
		s.workspace.mu.Unlock()
		return
	}

	s.workspace.mu.Lock()

	// RMS of the raw (unwindowed) frame. Samples are already in [-1, 1]
	// so the RMS lands in [0, 1] without further normalization.
	var sumSquares float64
	for i := 0; i < s.fftSize; i++ {
		if i < len(frame) {
			x := float64(frame[i])
			sumSquares += x * x
			s.workspace.input[i] = x * s.workspace.window[i]
		} else {
			s.workspace.input[i] = 0
		}
	}
	rms := math.Sqrt(sumSquares / float64(s.fftSize))
	if rms > 1 {
		rms = 1
	}
	s.volume = s.smoothing*s.volume + (1-s.smoothing)*rms

	s.fft.Coefficients(s.workspace.fftOutput, s.workspace.input)
	for i := range s.workspace.magnitude {
		s.workspace.magnitude[i] = cmplx.Abs(s.workspace.fftOutput[i])
	}

	s.workspace.mu.Unlock()
}

// Magnitudes returns a copy of the latest spectrum (fftSize/2 bins).
func (s *Spectral) Magnitudes() []float64 {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()
	out := make([]float64, len(s.workspace.magnitude))
	copy(out, s.workspace.magnitude)
	return out
}

// MagnitudesInto copies the latest spectrum into dest, which must have
// exactly BinCount() elements. Intended for readers that must not allocate.
func (s *Spectral) MagnitudesInto(dest []float64) error {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()
	if len(dest) != len(s.workspace.magnitude) {
		return fmt.Errorf("destination length %d does not match bin count %d", len(dest), len(s.workspace.magnitude))
	}
	copy(dest, s.workspace.magnitude)
	return nil
}

// Volume returns the smoothed RMS volume in [0, 1].
func (s *Spectral) Volume() float64 {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()
	return s.volume
}

// SkippedFrames returns how many malformed frames were dropped.
func (s *Spectral) SkippedFrames() uint64 {
	s.workspace.mu.RLock()
	defer s.workspace.mu.RUnlock()
	return s.skipped
}

// Reset clears the spectrum and smoothed volume, used when capture stops
// so stale data is not republished.
func (s *Spectral) Reset() {
	s.workspace.mu.Lock()
	defer s.workspace.mu.Unlock()
	s.volume = 0
	for i := range s.workspace.magnitude {
		s.workspace.magnitude[i] = 0
	}
}

// BinCount returns the number of published frequency bins (fftSize/2).
func (s *Spectral) BinCount() int {
	return s.fftSize / 2
}

// FrequencyForBin returns the center frequency in Hz of the given bin.
func (s *Spectral) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= s.BinCount() {
		return 0
	}
	return float64(bin) * s.sampleRate / float64(s.fftSize)
}

// SampleRate returns the configured sample rate in Hz.
func (s *Spectral) SampleRate() float64 {
	return s.sampleRate
}

// SPDX-License-Identifier: MIT
// Package testsig generates synthetic audio signals for tests: sine
// tones, silence, and click tracks with a known tempo. Samples are
// normalized float32 in [-1, 1], matching the capture format.
package testsig

import "math"

// Sine returns size samples of a sine wave at the given frequency,
// scaled to 90% of full amplitude to avoid clipping artifacts.
func Sine(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// Silence returns size zero samples.
func Silence(size int) []float32 {
	return make([]float32, size)
}

// Click returns a frame containing a short broadband burst at the start
// followed by silence. Decaying white-ish content across the frame start
// excites every frequency bin, which is what a spectral-flux detector
// keys on.
func Click(size int, amplitude float64) []float32 {
	buffer := make([]float32, size)
	burst := size / 16
	if burst < 8 {
		burst = 8
	}
	for i := 0; i < burst && i < size; i++ {
		decay := 1.0 - float64(i)/float64(burst)
		// Deterministic pseudo-noise: alternating harmonics stand in
		// for randomness so tests stay reproducible.
		s := math.Sin(float64(i)*1.7) + 0.5*math.Sin(float64(i)*5.3) + 0.25*math.Sin(float64(i)*13.1)
		buffer[i] = float32(s / 1.75 * decay * amplitude)
	}
	return buffer
}

// PeakBin returns the index of the largest magnitude in bins
// [startBin, endBin], clamped to the slice bounds.
func PeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peak := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > magnitudes[peak] {
			peak = bin
		}
	}
	return peak
}

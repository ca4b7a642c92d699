// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"time"
)

// OnsetEvent marks a detected rhythmic attack. Strength in [0, 1] scales
// with how far the spectral flux overshot the adaptive threshold and is
// used to weight tempo updates.
type OnsetEvent struct {
	Time     time.Time
	Strength float64
}

// OnsetDetector flags beat attacks from the spectrum stream using spectral
// flux against a rolling mean + stddev threshold. A refractory period
// debounces a single transient that keeps flux elevated across frames:
// flux may exceed the threshold inside the window without emitting.
type OnsetDetector struct {
	prev        []float64 // previous frame's magnitudes
	primed      bool      // prev holds real data
	fluxHistory []float64 // ring buffer of recent flux values
	fluxCount   int       // valid entries in fluxHistory
	fluxNext    int       // next write index

	sensitivity float64       // stddev multiplier over the rolling mean
	refractory  time.Duration // minimum inter-onset gap
	lastOnset   time.Time
}

// minFluxSamples is the warmup fill before the threshold is trusted;
// below it everything is treated as background.
const minFluxSamples = 8

// fluxFloor is the minimum threshold. Digitally silent input has zero
// flux mean and deviation, which would make any epsilon of noise an
// onset; the floor keeps true silence quiet while a real transient over
// a near-zero background still clears it easily.
const fluxFloor = 1e-3

// NewOnsetDetector creates a detector for spectra of binCount bins.
// historyLen is the number of flux samples used for the adaptive
// threshold (~1s of frames works well at typical frame rates).
func NewOnsetDetector(binCount, historyLen int, sensitivity float64, refractory time.Duration) *OnsetDetector {
	if historyLen < minFluxSamples {
		historyLen = minFluxSamples
	}
	return &OnsetDetector{
		prev:        make([]float64, binCount),
		fluxHistory: make([]float64, historyLen),
		sensitivity: sensitivity,
		refractory:  refractory,
	}
}

// Process consumes one spectrum and reports whether it contains an onset.
// At most one event is emitted per frame.
func (d *OnsetDetector) Process(magnitudes []float64, at time.Time) (OnsetEvent, bool) {
	flux := d.flux(magnitudes)
	if !d.primed {
		// First frame only seeds the diff baseline.
		d.primed = true
		return OnsetEvent{}, false
	}

	mean, std := d.fluxStats()
	d.pushFlux(flux)

	if d.fluxCount < minFluxSamples {
		return OnsetEvent{}, false
	}

	threshold := mean + d.sensitivity*std
	if threshold < fluxFloor {
		threshold = fluxFloor
	}
	if flux <= threshold {
		return OnsetEvent{}, false
	}
	if !d.lastOnset.IsZero() && at.Sub(d.lastOnset) < d.refractory {
		// Intentional debounce: over-threshold flux inside the
		// refractory window is the tail of the previous transient.
		return OnsetEvent{}, false
	}

	d.lastOnset = at
	return OnsetEvent{Time: at, Strength: onsetStrength(flux, threshold)}, true
}

// Reset clears all detector state, returning it to the warmup phase.
func (d *OnsetDetector) Reset() {
	for i := range d.prev {
		d.prev[i] = 0
	}
	d.primed = false
	d.fluxCount = 0
	d.fluxNext = 0
	d.lastOnset = time.Time{}
}

// flux computes the spectral flux (sum of positive bin increases) against
// the previous frame and updates the stored frame.
func (d *OnsetDetector) flux(magnitudes []float64) float64 {
	n := len(magnitudes)
	if n > len(d.prev) {
		n = len(d.prev)
	}
	var sum float64
	for i := 0; i < n; i++ {
		if diff := magnitudes[i] - d.prev[i]; diff > 0 {
			sum += diff
		}
		d.prev[i] = magnitudes[i]
	}
	return sum
}

func (d *OnsetDetector) pushFlux(v float64) {
	d.fluxHistory[d.fluxNext] = v
	d.fluxNext = (d.fluxNext + 1) % len(d.fluxHistory)
	if d.fluxCount < len(d.fluxHistory) {
		d.fluxCount++
	}
}

// fluxStats returns mean and stddev of the flux history before the
// current frame is pushed, so a transient does not raise its own bar.
func (d *OnsetDetector) fluxStats() (mean, std float64) {
	if d.fluxCount == 0 {
		return 0, 0
	}
	for i := 0; i < d.fluxCount; i++ {
		mean += d.fluxHistory[i]
	}
	mean /= float64(d.fluxCount)

	var sumSq float64
	for i := 0; i < d.fluxCount; i++ {
		diff := d.fluxHistory[i] - mean
		sumSq += diff * diff
	}
	return mean, math.Sqrt(sumSq / float64(d.fluxCount))
}

// onsetStrength maps threshold overshoot to [0, 1]: flux at the threshold
// scores 0, flux at 2x threshold or more saturates at 1.
func onsetStrength(flux, threshold float64) float64 {
	s := (flux - threshold) / threshold
	if s > 1 {
		return 1
	}
	if s < 0 {
		return 0
	}
	return s
}

// SPDX-License-Identifier: MIT
// Package state publishes the analysis results as immutable snapshots for
// render-side consumers. A single writer (the publish tick) swaps an
// atomic pointer; any number of readers observe either the fully old or
// fully new value, never a mix.
package state

// Snapshot is the read-only audio state handed to effects once per render
// tick. Values are frozen at publish time; the struct is never mutated
// after it is stored.
type Snapshot struct {
	Volume        float64   `json:"volume"`         // smoothed RMS in [0, 1]
	BeatDetected  bool      `json:"beat_detected"`  // true only on the tick of a confirmed onset
	BPM           float64   `json:"bpm"`            // clamped tempo estimate
	BPMConfidence float64   `json:"bpm_confidence"` // [0, 1], advisory when low
	Frequencies   []float64 `json:"frequencies"`    // magnitude spectrum, non-negative
	Progress      float64   `json:"beat_progress"`  // [0, 1) position inside the current beat
}

// BeatProgress returns the fractional position inside the current beat:
// 0 at the beat, approaching 1 just before the next.
func (s *Snapshot) BeatProgress() float64 {
	return s.Progress
}

// IsOnBeat reports whether the snapshot sits within tolerance of a beat
// boundary on either side.
func (s *Snapshot) IsOnBeat(tolerance float64) bool {
	return s.Progress <= tolerance || s.Progress >= 1-tolerance
}

// Silence returns a default-valued snapshot representing "no audio":
// zero volume, no beat, neutral tempo at zero confidence. Consumers are
// always handed a snapshot, never nil, so missing audio degrades instead
// of faulting.
func Silence(bins int) *Snapshot {
	return &Snapshot{
		BPM:         120,
		Frequencies: make([]float64, bins),
	}
}

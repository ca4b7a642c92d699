// SPDX-License-Identifier: MIT
package analysis

import (
	"time"

	applog "lumen/internal/log"
)

// Pipeline chains the analysis stages for one capture stream. Process is
// called from the audio callback with each frame; everything downstream of
// capture is a non-blocking transformation over the pre-allocated buffers
// owned by the stages.
type Pipeline struct {
	spectral *Spectral
	onsets   *OnsetDetector
	tempo    *TempoTracker

	magBuffer []float64 // reused per frame to avoid hot-path allocation
}

// NewPipeline wires the three stages together. The onset detector must be
// sized for the spectral analyzer's bin count.
func NewPipeline(spectral *Spectral, onsets *OnsetDetector, tempo *TempoTracker) *Pipeline {
	return &Pipeline{
		spectral:  spectral,
		onsets:    onsets,
		tempo:     tempo,
		magBuffer: make([]float64, spectral.BinCount()),
	}
}

// Process runs one frame through spectral analysis, onset detection, and
// tempo tracking. at is the frame's capture timestamp.
func (p *Pipeline) Process(frame []float32, at time.Time) {
	p.spectral.Process(frame)
	if len(frame) == 0 {
		return
	}

	if err := p.spectral.MagnitudesInto(p.magBuffer); err != nil {
		applog.Errorf("Analysis: magnitude read failed: %v", err)
		return
	}
	if ev, ok := p.onsets.Process(p.magBuffer, at); ok {
		p.tempo.OnOnset(ev)
		applog.Debugf("Analysis: onset at %s (strength %.2f, bpm %.1f)", at.Format("15:04:05.000"), ev.Strength, p.tempo.BPM(at))
	}
	p.tempo.Observe(at)
}

// Spectral returns the spectral stage for snapshot readers.
func (p *Pipeline) Spectral() *Spectral { return p.spectral }

// Tempo returns the tempo stage for snapshot readers.
func (p *Pipeline) Tempo() *TempoTracker { return p.tempo }

// Reset flushes every stage back to its silent initial state. Called when
// capture stops so consumers see volume 0 and an Unseeded tempo instead of
// the last confident estimate.
func (p *Pipeline) Reset() {
	p.spectral.Reset()
	p.onsets.Reset()
	p.tempo.Reset()
	applog.Infof("Analysis: pipeline flushed to silent state")
}

// SPDX-License-Identifier: MIT
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"lumen/internal/analysis"
)

// Publisher assembles a fresh Snapshot from the latest analysis state once
// per render tick. It is the only synchronization point between the
// analysis cadence (per audio frame) and the consumption cadence (60Hz):
// readers call Latest without blocking while Publish swaps the pointer.
type Publisher struct {
	spectral *analysis.Spectral
	tempo    *analysis.TempoTracker

	current atomic.Pointer[Snapshot]

	mu     sync.Mutex // serializes Publish callers
	lastAt time.Time  // publish instant of the current snapshot
}

// NewPublisher creates a publisher over the given analysis stages. The
// initial snapshot is the silence default, so Latest never returns nil.
func NewPublisher(spectral *analysis.Spectral, tempo *analysis.TempoTracker) *Publisher {
	p := &Publisher{
		spectral: spectral,
		tempo:    tempo,
	}
	p.current.Store(Silence(spectral.BinCount()))
	return p
}

// Publish builds a snapshot frozen at instant at and makes it the current
// one. A repeated call at the same instant returns the identical snapshot
// without consuming state, so re-publishing without new input is
// idempotent; a later instant clears any previously reported beat flag.
func (p *Publisher) Publish(at time.Time) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if at.Equal(p.lastAt) {
		return p.current.Load()
	}

	beat := p.tempo.ConsumeBeat()
	progress := p.tempo.Phase(at)
	if beat {
		// The tick coincident with a confirmed onset reports the beat
		// boundary itself, not however far the clock drifted past it.
		progress = 0
	}

	snap := &Snapshot{
		Volume:        p.spectral.Volume(),
		BeatDetected:  beat,
		BPM:           p.tempo.BPM(at),
		BPMConfidence: p.tempo.Confidence(at),
		Frequencies:   p.spectral.Magnitudes(),
		Progress:      progress,
	}

	p.current.Store(snap)
	p.lastAt = at
	return snap
}

// Latest returns the current snapshot without blocking. Before the first
// Publish it is the silence default.
func (p *Publisher) Latest() *Snapshot {
	return p.current.Load()
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"

	"lumen/pkg/testsig"
)

// newTestPipeline builds a pipeline with the default production tuning.
func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	spectral, err := NewSpectral(testFFTSize, testSampleRate, Hann, 0.6)
	if err != nil {
		t.Fatalf("NewSpectral failed: %v", err)
	}
	onsets := NewOnsetDetector(spectral.BinCount(), 43, 1.5, 100*time.Millisecond)
	tempo := NewTempoTracker(40, 220, 8, 0.05, 2.0)
	return NewPipeline(spectral, onsets, tempo)
}

// driveClickTrack feeds duration worth of frames through the pipeline with
// a broadband click every beatInterval, and returns the final timestamp.
// Clicks land on frame boundaries, so their timing jitters by up to one
// frame around the ideal grid, as it would with a real capture stream.
func driveClickTrack(p *Pipeline, base time.Time, duration, beatInterval time.Duration) time.Time {
	sampleRate := float64(testSampleRate)
	frameDur := time.Duration(float64(testFFTSize) / sampleRate * float64(time.Second))
	silence := testsig.Silence(testFFTSize)
	click := testsig.Click(testFFTSize, 0.9)

	nextClick := beatInterval
	var at time.Time
	for elapsed := time.Duration(0); elapsed < duration; elapsed += frameDur {
		at = base.Add(elapsed)
		frame := silence
		if elapsed >= nextClick {
			frame = click
			nextClick += beatInterval
		}
		p.Process(frame, at)
	}
	return at
}

func TestPipelineLocksOnClickTrack(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 10 seconds of 120 BPM clicks.
	last := driveClickTrack(p, base, 10*time.Second, 500*time.Millisecond)

	tempo := p.Tempo()
	if got := tempo.State(last); got != Locked {
		t.Fatalf("State after 10s of 120 BPM clicks: got %v, want %v", got, Locked)
	}
	if got := tempo.BPM(last); math.Abs(got-120) > 2 {
		t.Errorf("BPM: got %g, want 120±2", got)
	}
	if got := tempo.Confidence(last); got <= 0.8 {
		t.Errorf("Confidence: got %g, want > 0.8", got)
	}
	if got := tempo.Phase(last); got < 0 || got >= 1 {
		t.Errorf("Phase out of [0, 1): got %g", got)
	}
}

func TestPipelineTracksTempoChange(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Lock at 120 BPM, then switch to 100 BPM. The interval window is 8,
	// so 12 seconds of the new tempo fully displaces the old evidence.
	mid := driveClickTrack(p, base, 10*time.Second, 500*time.Millisecond)
	last := driveClickTrack(p, mid.Add(time.Second), 12*time.Second, 600*time.Millisecond)

	tempo := p.Tempo()
	if got := tempo.BPM(last); math.Abs(got-100) > 2 {
		t.Errorf("BPM after tempo change: got %g, want 100±2", got)
	}
}

func TestPipelineDecaysToSilence(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sampleRate := float64(testSampleRate)
	frameDur := time.Duration(float64(testFFTSize) / sampleRate * float64(time.Second))

	last := driveClickTrack(p, base, 10*time.Second, 500*time.Millisecond)
	tempo := p.Tempo()
	lockedConf := tempo.Confidence(last)
	if lockedConf <= 0.8 {
		t.Fatalf("Confidence before silence: got %g, want > 0.8", lockedConf)
	}

	// Feed pure silence. Confidence must fall monotonically and the
	// tracker must eventually unseed rather than freeze at its last
	// confident estimate.
	silence := testsig.Silence(testFFTSize)
	at := last
	prev := lockedConf
	for elapsed := time.Duration(0); elapsed < 6*time.Second; elapsed += frameDur {
		at = last.Add(elapsed)
		p.Process(silence, at)
		got := tempo.Confidence(at)
		if got > prev+1e-12 {
			t.Fatalf("Confidence rose during silence at +%s: %g > %g", elapsed, got, prev)
		}
		prev = got
	}

	if got := tempo.State(at); got != Unseeded {
		t.Errorf("State after 6s of silence: got %v, want %v", got, Unseeded)
	}
	if got := tempo.Confidence(at); got != 0 {
		t.Errorf("Confidence after 6s of silence: got %g, want 0", got)
	}
	if got := p.Spectral().Volume(); got > 0.01 {
		t.Errorf("Volume after silence: got %g, want ~0", got)
	}
}

func TestPipelineReset(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := driveClickTrack(p, base, 10*time.Second, 500*time.Millisecond)

	p.Reset()

	if got := p.Spectral().Volume(); got != 0 {
		t.Errorf("Volume after reset: got %g, want 0", got)
	}
	if got := p.Tempo().State(last); got != Unseeded {
		t.Errorf("Tempo state after reset: got %v, want %v", got, Unseeded)
	}
}

func TestPipelineIgnoresEmptyFrames(t *testing.T) {
	p := newTestPipeline(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	p.Process(nil, at)
	p.Process(nil, at.Add(time.Second))

	if got := p.Spectral().SkippedFrames(); got != 2 {
		t.Errorf("Skipped frames: got %d, want 2", got)
	}
	if got := p.Tempo().State(at.Add(time.Second)); got != Unseeded {
		t.Errorf("Empty frames must not seed the tracker, got %v", got)
	}
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"
)

func newTestTracker() *TempoTracker {
	return NewTempoTracker(40, 220, 8, 0.05, 2.0)
}

// feedOnsets pushes n full-strength onsets spaced interval apart, starting
// at base, and returns the timestamp of the last one.
func feedOnsets(tr *TempoTracker, base time.Time, interval time.Duration, n int) time.Time {
	at := base
	for i := 0; i < n; i++ {
		tr.OnOnset(OnsetEvent{Time: at, Strength: 1.0})
		if i < n-1 {
			at = at.Add(interval)
		}
	}
	return at
}

func TestTempoUnseededDefaults(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := tr.State(now); got != Unseeded {
		t.Errorf("Fresh tracker state: got %v, want %v", got, Unseeded)
	}
	if got := tr.BPM(now); got != NeutralBPM {
		t.Errorf("Fresh tracker BPM: got %g, want %g", got, NeutralBPM)
	}
	if got := tr.Confidence(now); got != 0 {
		t.Errorf("Fresh tracker confidence: got %g, want 0", got)
	}
	if got := tr.Phase(now); got != 0 {
		t.Errorf("Fresh tracker phase: got %g, want 0", got)
	}
}

func TestTempoSeededByFirstInterval(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := feedOnsets(tr, base, 500*time.Millisecond, 2)

	if got := tr.State(last); got != Seeded {
		t.Errorf("State after one interval: got %v, want %v", got, Seeded)
	}
	if got := tr.BPM(last); math.Abs(got-120) > 0.01 {
		t.Errorf("BPM after one 500ms interval: got %g, want 120", got)
	}
	if got := tr.Confidence(last); got <= 0 || got >= 0.5 {
		t.Errorf("Seeded confidence should be low but nonzero, got %g", got)
	}
}

func TestTempoLocksOnSteadyClicks(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Four onsets give three agreeing intervals: enough to lock.
	last := feedOnsets(tr, base, 500*time.Millisecond, 4)

	if got := tr.State(last); got != Locked {
		t.Fatalf("State after 4 steady clicks: got %v, want %v", got, Locked)
	}
	if got := tr.BPM(last); math.Abs(got-120) > 0.01 {
		t.Errorf("BPM: got %g, want 120", got)
	}
	if got := tr.Confidence(last); got <= 0.8 {
		t.Errorf("Locked confidence: got %g, want > 0.8", got)
	}
}

func TestTempoLocksOnJitteredClicks(t *testing.T) {
	// Frame-quantized timestamps alternate around the true interval; the
	// cluster tolerance must absorb that without losing the lock.
	tr := newTestTracker()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.OnOnset(OnsetEvent{Time: at, Strength: 1.0})

	intervals := []time.Duration{
		488 * time.Millisecond, 511 * time.Millisecond,
		488 * time.Millisecond, 511 * time.Millisecond,
		488 * time.Millisecond, 511 * time.Millisecond,
		488 * time.Millisecond, 511 * time.Millisecond,
	}
	for _, iv := range intervals {
		at = at.Add(iv)
		tr.OnOnset(OnsetEvent{Time: at, Strength: 1.0})
	}

	if got := tr.State(at); got != Locked {
		t.Fatalf("State with ±2.3%% jitter: got %v, want %v", got, Locked)
	}
	if got := tr.BPM(at); math.Abs(got-120) > 2 {
		t.Errorf("BPM with jitter: got %g, want 120±2", got)
	}
}

func TestTempoRejectsImplausibleIntervals(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 2s apart maps to 30 BPM, below the plausible floor: no interval is
	// ever accepted, so the tracker never seeds.
	last := feedOnsets(tr, base, 2*time.Second, 4)

	if got := tr.State(last); got != Unseeded {
		t.Errorf("State after implausible intervals: got %v, want %v", got, Unseeded)
	}
	if got := tr.BPM(last); got != NeutralBPM {
		t.Errorf("BPM after implausible intervals: got %g, want %g", got, NeutralBPM)
	}
}

func TestTempoPhase(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := feedOnsets(tr, base, 500*time.Millisecond, 4)

	tests := []struct {
		desc   string
		offset time.Duration
		want   float64
	}{
		{"At the beat", 0, 0},
		{"Quarter through", 125 * time.Millisecond, 0.25},
		{"Half through", 250 * time.Millisecond, 0.5},
		{"Just before next", 499 * time.Millisecond, 0.998},
		{"Wraps next period", 625 * time.Millisecond, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := tr.Phase(last.Add(tt.offset))
			if got < 0 || got >= 1 {
				t.Fatalf("Phase out of [0, 1): got %g", got)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Phase at +%s: got %g, want %g", tt.offset, got, tt.want)
			}
		})
	}
}

func TestTempoConfidenceDecaysDuringSilence(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := feedOnsets(tr, base, 500*time.Millisecond, 4)
	c0 := tr.Confidence(last)
	if c0 <= 0.8 {
		t.Fatalf("Locked confidence before silence: got %g, want > 0.8", c0)
	}

	// Inside the one-beat grace period nothing decays.
	if got := tr.Confidence(last.Add(400 * time.Millisecond)); got != c0 {
		t.Errorf("Confidence inside grace period: got %g, want %g", got, c0)
	}

	// Two beat periods past the grace halve the value once (half-life 2).
	want := c0 * 0.5
	if got := tr.Confidence(last.Add(1500 * time.Millisecond)); math.Abs(got-want) > 1e-9 {
		t.Errorf("Confidence after one half-life: got %g, want %g", got, want)
	}

	// Monotone non-increasing across the whole decay.
	prev := c0
	for off := 250 * time.Millisecond; off <= 4500*time.Millisecond; off += 250 * time.Millisecond {
		got := tr.Confidence(last.Add(off))
		if got > prev+1e-12 {
			t.Fatalf("Confidence increased during silence at +%s: %g > %g", off, got, prev)
		}
		prev = got
	}
}

func TestTempoStateDegradesDuringSilence(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := feedOnsets(tr, base, 500*time.Millisecond, 4)

	tests := []struct {
		desc   string
		offset time.Duration
		want   TempoState
	}{
		{"Fresh lock", 0, Locked},
		{"Three quiet beats", 1500 * time.Millisecond, Locked},
		{"Five quiet beats", 2500 * time.Millisecond, Seeded},
		{"Nine quiet beats", 4500 * time.Millisecond, Unseeded},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := tr.State(last.Add(tt.offset)); got != tt.want {
				t.Errorf("State at +%s: got %v, want %v", tt.offset, got, tt.want)
			}
		})
	}

	// Observe past the unseed horizon discards the evidence for good.
	tr.Observe(last.Add(4500 * time.Millisecond))
	if got := tr.Confidence(last.Add(4500 * time.Millisecond)); got != 0 {
		t.Errorf("Confidence after unseed: got %g, want 0", got)
	}
	if got := tr.BPM(last.Add(4500 * time.Millisecond)); got != NeutralBPM {
		t.Errorf("BPM after unseed: got %g, want %g", got, NeutralBPM)
	}
	if got := tr.Phase(last.Add(5 * time.Second)); got != 0 {
		t.Errorf("Phase after unseed: got %g, want 0", got)
	}
}

func TestTempoConsumeBeat(t *testing.T) {
	tr := newTestTracker()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if tr.ConsumeBeat() {
		t.Error("Fresh tracker should have no pending beat")
	}

	tr.OnOnset(OnsetEvent{Time: at, Strength: 1.0})
	if !tr.ConsumeBeat() {
		t.Error("Onset should leave a pending beat")
	}
	if tr.ConsumeBeat() {
		t.Error("Pending beat must be consumed exactly once")
	}
}

func TestTempoReset(t *testing.T) {
	tr := newTestTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := feedOnsets(tr, base, 500*time.Millisecond, 4)

	tr.Reset()

	if got := tr.State(last); got != Unseeded {
		t.Errorf("State after reset: got %v, want %v", got, Unseeded)
	}
	if got := tr.BPM(last); got != NeutralBPM {
		t.Errorf("BPM after reset: got %g, want %g", got, NeutralBPM)
	}
	if tr.ConsumeBeat() {
		t.Error("Reset must clear any pending beat")
	}
}

func TestTempoStateString(t *testing.T) {
	tests := []struct {
		state TempoState
		want  string
	}{
		{Unseeded, "unseeded"},
		{Seeded, "seeded"},
		{Locked, "locked"},
		{TempoState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("TempoState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestClampBPM(t *testing.T) {
	tests := []struct {
		bpm  float64
		want float64
	}{
		{30, 40},
		{40, 40},
		{120, 120},
		{220, 220},
		{300, 220},
	}

	for _, tt := range tests {
		if got := clampBPM(tt.bpm, 40, 220); got != tt.want {
			t.Errorf("clampBPM(%g) = %g, want %g", tt.bpm, got, tt.want)
		}
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		desc   string
		sorted []float64
		want   float64
	}{
		{"Empty", nil, 0},
		{"Single", []float64{0.5}, 0.5},
		{"Odd length", []float64{0.4, 0.5, 0.6}, 0.5},
		{"Even length", []float64{0.4, 0.5, 0.6, 0.7}, 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := median(tt.sorted); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("median(%v) = %g, want %g", tt.sorted, got, tt.want)
			}
		})
	}
}

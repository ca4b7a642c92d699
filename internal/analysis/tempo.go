// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sort"
	"sync"
	"time"
)

// TempoState describes how much rhythmic evidence the tracker holds.
type TempoState int

const (
	// Unseeded: no usable onsets yet; BPM reports the neutral default.
	Unseeded TempoState = iota
	// Seeded: at least one valid inter-onset interval; estimate is rough.
	Seeded
	// Locked: recent intervals agree within tolerance; estimate trusted.
	Locked
)

func (s TempoState) String() string {
	switch s {
	case Unseeded:
		return "unseeded"
	case Seeded:
		return "seeded"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// NeutralBPM is reported while no tempo evidence exists.
const NeutralBPM = 120.0

// lockAgreement is the fraction of windowed intervals that must cluster
// around the median before the tracker locks.
const lockAgreement = 0.75

// Silence thresholds, in elapsed beat periods since the last onset:
// confidence starts decaying after one period, the lock degrades after
// four, and all evidence is discarded after eight.
const (
	decayGraceBeats = 1.0
	degradeBeats    = 4.0
	unseedBeats     = 8.0
)

// TempoTracker maintains a running BPM estimate, a confidence score, and
// the phase position inside the current beat. Onsets arrive from the
// capture thread while the render thread queries BPM/phase concurrently,
// so all state is guarded by a mutex. Phase is a pure function of the
// query time and the stored last-onset timestamp; no goroutine advances it.
type TempoTracker struct {
	minBPM    float64
	maxBPM    float64
	tolerance float64 // relative deviation for interval clustering
	halfLife  float64 // beat periods for confidence to halve during silence

	mu          sync.Mutex
	intervals   []float64 // ring of recent inter-onset intervals, seconds
	strengths   []float64 // onset strengths paired with intervals
	count       int
	next        int
	state       TempoState
	bpm         float64
	period      float64 // seconds per beat
	confidence  float64 // confidence at the moment of the last onset
	lastOnset   time.Time
	beatPending bool // set per accepted onset, consumed by the publisher
}

// NewTempoTracker creates a tracker with the given plausibility range,
// interval window length, clustering tolerance, and confidence half-life
// (in beat periods).
func NewTempoTracker(minBPM, maxBPM float64, windowLen int, tolerance, halfLife float64) *TempoTracker {
	if windowLen < 2 {
		windowLen = 2
	}
	return &TempoTracker{
		minBPM:    minBPM,
		maxBPM:    maxBPM,
		tolerance: tolerance,
		halfLife:  halfLife,
		intervals: make([]float64, windowLen),
		strengths: make([]float64, windowLen),
		bpm:       NeutralBPM,
	}
}

// OnOnset feeds a detected onset into the tracker. The inter-onset
// interval is added to the window only when it maps to a plausible tempo;
// the beat timestamp advances (and phase resets) either way.
func (t *TempoTracker) OnOnset(ev OnsetEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastOnset.IsZero() {
		dt := ev.Time.Sub(t.lastOnset).Seconds()
		if dt >= 60/t.maxBPM && dt <= 60/t.minBPM {
			t.intervals[t.next] = dt
			t.strengths[t.next] = ev.Strength
			t.next = (t.next + 1) % len(t.intervals)
			if t.count < len(t.intervals) {
				t.count++
			}
		}
	}

	t.lastOnset = ev.Time
	t.beatPending = true
	t.reestimate()
}

// Observe applies silence decay. Called once per analysis frame whether or
// not an onset fired, so a stopped track degrades instead of freezing at
// its last confident estimate.
func (t *TempoTracker) Observe(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastOnset.IsZero() {
		return
	}
	if t.elapsedBeats(now) > unseedBeats {
		t.resetLocked()
	}
}

// Reset discards all evidence, returning the tracker to Unseeded. Used
// when capture stops so a stale confident BPM is not displayed.
func (t *TempoTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *TempoTracker) resetLocked() {
	t.count = 0
	t.next = 0
	t.state = Unseeded
	t.bpm = NeutralBPM
	t.period = 0
	t.confidence = 0
	t.lastOnset = time.Time{}
	t.beatPending = false
}

// State returns the tracker state as of now, accounting for silence.
func (t *TempoTracker) State(now time.Time) TempoState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.effectiveState(now)
}

// BPM returns the current tempo estimate, clamped to the plausible range.
// Unseeded trackers report NeutralBPM.
func (t *TempoTracker) BPM(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.effectiveState(now) == Unseeded {
		return NeutralBPM
	}
	return t.bpm
}

// Confidence returns the estimate confidence in [0, 1] as of now.
// Without new consistent onsets the value only decays: after one quiet
// beat period it halves every halfLife periods, reaching 0 once the
// evidence window is discarded.
func (t *TempoTracker) Confidence(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.effectiveState(now) == Unseeded {
		return 0
	}
	eb := t.elapsedBeats(now)
	if eb <= decayGraceBeats {
		return t.confidence
	}
	return t.confidence * math.Pow(0.5, (eb-decayGraceBeats)/t.halfLife)
}

// Phase returns the position inside the current beat in [0, 1): 0 at the
// last confirmed onset, advancing at 1/period per second.
func (t *TempoTracker) Phase(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastOnset.IsZero() || t.period <= 0 {
		return 0
	}
	elapsed := now.Sub(t.lastOnset).Seconds()
	if elapsed < 0 {
		return 0
	}
	p := math.Mod(elapsed/t.period, 1)
	if p < 0 || p >= 1 {
		return 0
	}
	return p
}

// ConsumeBeat reports whether a confirmed onset occurred since the last
// call and clears the flag, so beat_detected is true for exactly one
// publish tick.
func (t *TempoTracker) ConsumeBeat() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := t.beatPending
	t.beatPending = false
	return pending
}

// elapsedBeats converts time since the last onset into beat periods,
// falling back to the neutral period before an estimate exists.
func (t *TempoTracker) elapsedBeats(now time.Time) float64 {
	period := t.period
	if period <= 0 {
		period = 60 / NeutralBPM
	}
	return now.Sub(t.lastOnset).Seconds() / period
}

// effectiveState degrades the stored state by elapsed silence: a lock
// survives four quiet beat periods, any evidence at most eight.
func (t *TempoTracker) effectiveState(now time.Time) TempoState {
	if t.lastOnset.IsZero() || t.count == 0 {
		return Unseeded
	}
	eb := t.elapsedBeats(now)
	if eb > unseedBeats {
		return Unseeded
	}
	if eb > degradeBeats && t.state == Locked {
		return Seeded
	}
	return t.state
}

// reestimate recomputes BPM, state, and confidence from the interval
// window. Callers hold the mutex.
func (t *TempoTracker) reestimate() {
	if t.count == 0 {
		t.state = Unseeded
		t.bpm = NeutralBPM
		t.period = 0
		t.confidence = 0
		return
	}

	sorted := make([]float64, t.count)
	copy(sorted, t.intervals[:t.count])
	sort.Float64s(sorted)
	med := median(sorted)

	// Cluster: intervals agreeing with the window median within tolerance.
	var cluster []float64
	var strengthSum float64
	for i := 0; i < t.count; i++ {
		if math.Abs(t.intervals[i]-med) <= t.tolerance*med {
			cluster = append(cluster, t.intervals[i])
			strengthSum += t.strengths[i]
		}
	}
	if len(cluster) == 0 {
		// Bimodal window (mid tempo change): the median of an even count
		// can sit between the modes with nothing in tolerance of it.
		// Fall back to the single interval nearest the median.
		nearest := 0
		for i := 1; i < t.count; i++ {
			if math.Abs(t.intervals[i]-med) < math.Abs(t.intervals[nearest]-med) {
				nearest = i
			}
		}
		cluster = append(cluster, t.intervals[nearest])
		strengthSum = t.strengths[nearest]
	}

	agreement := float64(len(cluster)) / float64(t.count)
	meanStrength := strengthSum / float64(len(cluster))

	// Mean over the agreeing cluster: outliers are already excluded, and
	// averaging cancels the frame-grained quantization of onset times.
	var sum float64
	for _, iv := range cluster {
		sum += iv
	}
	period := sum / float64(len(cluster))
	t.period = period
	t.bpm = clampBPM(60/period, t.minBPM, t.maxBPM)

	if t.count >= 3 && agreement >= lockAgreement {
		t.state = Locked
		t.confidence = agreement * (0.85 + 0.15*meanStrength)
	} else {
		t.state = Seeded
		t.confidence = 0.4 * agreement
	}
	if t.confidence > 1 {
		t.confidence = 1
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clampBPM(bpm, lo, hi float64) float64 {
	if bpm < lo {
		return lo
	}
	if bpm > hi {
		return hi
	}
	return bpm
}

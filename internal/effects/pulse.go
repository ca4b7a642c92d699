// SPDX-License-Identifier: MIT
package effects

import (
	"math"

	"lumen/internal/state"
)

func init() {
	Register("pulse", func(w, h int) Effect { return &Pulse{width: w, height: h} })
}

// Pulse draws a ring that snaps wide on each beat and contracts as the
// beat progresses, with overall size scaled by volume. With no audio it
// breathes slowly on the wall clock.
type Pulse struct {
	width  int
	height int
}

func (p *Pulse) Render(c *Canvas, elapsed float64, snap *state.Snapshot) {
	c.Clear()

	maxRadius := float64(p.height) / 2 * 0.9
	radius := maxRadius * 0.3

	if snap == nil || snap.BPMConfidence == 0 {
		// Idle: slow breathing, modulated by volume if any.
		vol := 0.0
		if snap != nil {
			vol = snap.Volume
		}
		radius = maxRadius * (0.3 + 0.15*math.Sin(elapsed*2) + 0.4*vol)
	} else {
		// Beat-locked: full size on the beat, easing down toward the
		// next one. Low confidence pulls the swing toward the idle size.
		swing := (1 - snap.BeatProgress()) * snap.BPMConfidence
		radius = maxRadius * (0.3 + 0.5*swing + 0.2*snap.Volume)
	}

	glyph := '·'
	if snap != nil && snap.IsOnBeat(0.1) {
		glyph = '●'
	}

	cx, cy := float64(p.width)/2, float64(p.height)/2
	steps := p.width * 2
	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		// Terminal cells are roughly twice as tall as wide.
		x := cx + radius*2*math.Cos(theta)
		y := cy + radius*math.Sin(theta)
		c.Set(int(math.Round(x)), int(math.Round(y)), glyph)
	}
}

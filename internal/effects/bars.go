// SPDX-License-Identifier: MIT
package effects

import (
	"math"

	"lumen/internal/state"
)

func init() {
	Register("bars", func(w, h int) Effect { return &Bars{width: w, height: h, peaks: make([]float64, w)} })
}

// Bars draws a classic spectrum display: one column per group of bins,
// with a slow-falling peak marker. Column heights are log-compressed so
// quiet content stays visible.
type Bars struct {
	width  int
	height int
	peaks  []float64
}

func (b *Bars) Render(c *Canvas, elapsed float64, snap *state.Snapshot) {
	c.Clear()

	if snap == nil || len(snap.Frequencies) == 0 {
		return
	}

	binsPerCol := len(snap.Frequencies) / b.width
	if binsPerCol < 1 {
		binsPerCol = 1
	}

	for col := 0; col < b.width; col++ {
		start := col * binsPerCol
		if start >= len(snap.Frequencies) {
			break
		}
		end := start + binsPerCol
		if end > len(snap.Frequencies) {
			end = len(snap.Frequencies)
		}

		var sum float64
		for _, m := range snap.Frequencies[start:end] {
			sum += m
		}
		level := math.Log1p(sum/float64(end-start)*8) / math.Log1p(8)
		if level > 1 {
			level = 1
		}

		// Peak markers fall instead of snapping down.
		if level > b.peaks[col] {
			b.peaks[col] = level
		} else {
			b.peaks[col] *= 0.92
		}

		barTop := b.height - int(level*float64(b.height))
		for y := b.height - 1; y >= barTop && y >= 0; y-- {
			c.Set(col, y, '█')
		}
		peakRow := b.height - 1 - int(b.peaks[col]*float64(b.height-1))
		if c.At(col, peakRow) == ' ' {
			c.Set(col, peakRow, '▔')
		}
	}
}

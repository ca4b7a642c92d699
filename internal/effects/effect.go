// SPDX-License-Identifier: MIT
/*
Package effects defines the plugin contract for audio-reactive render
units and a registry to select them by name. An effect is constructed
from canvas dimensions and renders once per tick, given the elapsed time
and the current audio snapshot. Effects must tolerate a nil snapshot by
rendering as if the audio were silent, and must finish well inside the
render budget (~16ms at 60Hz).
*/
package effects

import "lumen/internal/state"

// Effect renders one frame onto the canvas. Implementations keep their
// own animation state; the snapshot is read-only and may be nil.
type Effect interface {
	Render(c *Canvas, elapsed float64, snap *state.Snapshot)
}

// Constructor builds an effect for a canvas of the given size.
type Constructor func(width, height int) Effect

// Canvas is a character cell grid that effects paint into and the monitor
// prints. (0,0) is the top-left cell.
type Canvas struct {
	Width  int
	Height int
	cells  []rune
}

// NewCanvas allocates a cleared canvas.
func NewCanvas(width, height int) *Canvas {
	c := &Canvas{Width: width, Height: height, cells: make([]rune, width*height)}
	c.Clear()
	return c
}

// Clear fills the canvas with spaces. Effects are expected to repaint the
// full canvas each tick.
func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = ' '
	}
}

// Set paints one cell; out-of-bounds coordinates are ignored so effects
// can draw shapes without clipping logic.
func (c *Canvas) Set(x, y int, r rune) {
	if x < 0 || x >= c.Width || y < 0 || y >= c.Height {
		return
	}
	c.cells[y*c.Width+x] = r
}

// At returns the rune at a cell, or a space out of bounds.
func (c *Canvas) At(x, y int) rune {
	if x < 0 || x >= c.Width || y < 0 || y >= c.Height {
		return ' '
	}
	return c.cells[y*c.Width+x]
}

// String renders the canvas as newline-joined rows.
func (c *Canvas) String() string {
	buf := make([]rune, 0, (c.Width+1)*c.Height)
	for y := 0; y < c.Height; y++ {
		buf = append(buf, c.cells[y*c.Width:(y+1)*c.Width]...)
		if y < c.Height-1 {
			buf = append(buf, '\n')
		}
	}
	return string(buf)
}

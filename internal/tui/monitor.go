// SPDX-License-Identifier: MIT
// Package tui renders the live monitor: a 60Hz consumer of published
// snapshots showing volume, beat indicator, tempo estimate, and the
// selected effect. It stands in for the projector surface the snapshots
// are designed to drive.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lumen/internal/analysis"
	"lumen/internal/effects"
	"lumen/internal/state"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#7B2FBE")).
			Padding(0, 1).
			Bold(true)

	beatOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4040")).
			Bold(true)

	beatOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	canvasStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444"))
)

type keyMap struct {
	Quit       key.Binding
	NextEffect key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextEffect: key.NewBinding(key.WithKeys("tab", "e"), key.WithHelp("tab", "next effect")),
}

// tickMsg carries the wall-clock instant of a render tick.
type tickMsg time.Time

// Model is the Bubble Tea model for the monitor.
type Model struct {
	publisher *state.Publisher
	tempo     *analysis.TempoTracker
	interval  time.Duration

	effectNames []string
	effectIdx   int
	effect      effects.Effect
	canvas      *effects.Canvas

	start    time.Time
	lastSnap *state.Snapshot
	beatHold int // ticks the beat indicator stays lit
}

// NewModel creates a monitor over the given publisher. effectName selects
// the starting effect; unknown names fall back to the first registered.
func NewModel(publisher *state.Publisher, tempo *analysis.TempoTracker, interval time.Duration, effectName string) Model {
	names := effects.Names()
	idx := 0
	for i, n := range names {
		if n == effectName {
			idx = i
		}
	}

	m := Model{
		publisher:   publisher,
		tempo:       tempo,
		interval:    interval,
		effectNames: names,
		effectIdx:   idx,
		start:       time.Now(),
	}
	m.setCanvas(64, 14)
	return m
}

func (m *Model) setCanvas(w, h int) {
	m.canvas = effects.NewCanvas(w, h)
	if len(m.effectNames) > 0 {
		eff, err := effects.New(m.effectNames[m.effectIdx], w, h)
		if err == nil {
			m.effect = eff
		}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the render ticker.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes, and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.lastSnap = m.publisher.Publish(time.Time(msg))
		if m.lastSnap.BeatDetected {
			m.beatHold = 6 // ~100ms so the eye catches it
		} else if m.beatHold > 0 {
			m.beatHold--
		}
		if m.effect != nil {
			m.effect.Render(m.canvas, time.Time(msg).Sub(m.start).Seconds(), m.lastSnap)
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		w := msg.Width - 4
		h := msg.Height - 8
		if w > 16 && h > 4 {
			m.setCanvas(w, h)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.NextEffect):
			if len(m.effectNames) > 0 {
				m.effectIdx = (m.effectIdx + 1) % len(m.effectNames)
				m.setCanvas(m.canvas.Width, m.canvas.Height)
			}
			return m, nil
		}
	}
	return m, nil
}

// View renders the dashboard line plus the effect canvas.
func (m Model) View() string {
	snap := m.lastSnap
	if snap == nil {
		snap = m.publisher.Latest()
	}

	beat := beatOffStyle.Render("●")
	if m.beatHold > 0 {
		beat = beatOnStyle.Render("●")
	}

	status := fmt.Sprintf("%s %s  %s %5.1f%%  %s %6.1f  %s %.2f  %s %s",
		beat,
		labelStyle.Render("beat"),
		labelStyle.Render("vol"), snap.Volume*100,
		labelStyle.Render("bpm"), snap.BPM,
		labelStyle.Render("conf"), snap.BPMConfidence,
		labelStyle.Render("tempo"), m.tempo.State(time.Now()),
	)

	effectName := "none"
	if len(m.effectNames) > 0 {
		effectName = m.effectNames[m.effectIdx]
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("lumen") + "  " + labelStyle.Render("effect: "+effectName+"  (tab to cycle, q to quit)"))
	b.WriteString("\n" + status + "\n")
	b.WriteString(volumeMeter(snap.Volume, 40) + "\n")
	b.WriteString(canvasStyle.Render(m.canvas.String()))
	return b.String()
}

// volumeMeter renders a fixed-width bar for the smoothed volume.
func volumeMeter(volume float64, width int) string {
	filled := int(volume * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// Run blocks running the monitor until the user quits.
func Run(publisher *state.Publisher, tempo *analysis.TempoTracker, interval time.Duration, effectName string) error {
	_, err := tea.NewProgram(NewModel(publisher, tempo, interval, effectName), tea.WithAltScreen()).Run()
	return err
}

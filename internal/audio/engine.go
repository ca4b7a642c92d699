// SPDX-License-Identifier: MIT
/*
Package audio owns the capture side of the engine: the only blocking
boundary in the system. PortAudio delivers fixed-size float32 frames into
a callback that copies them into pre-allocated buffers, stamps them, and
hands them to the analysis pipeline. Everything here is real-time safe:
no allocations, no locks held across the callback, atomic state flags.

When the input device is unavailable the engine reports
ErrDeviceUnavailable; the caller keeps the pipeline in its silent state so
consumers see zero volume and decaying confidence instead of an error.
*/
package audio

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"lumen/internal/analysis"
	"lumen/internal/config"
	applog "lumen/internal/log"
)

// ErrDeviceUnavailable is the terminal condition for a missing or
// disconnected input device. It is never raised into the render loop;
// callers fall back to silent mode.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// Engine captures from one input device and drives the analysis pipeline
// at the device frame cadence.
type Engine struct {
	cfg      *config.Config
	pipeline *analysis.Pipeline

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	stream       *portaudio.Stream

	monoFrame []float32 // downmixed frame handed to the pipeline

	running     atomic.Bool
	underruns   atomic.Uint64 // short callbacks padded with zeros
	framesTotal atomic.Uint64

	// Recording state (recording.go).
	recording  atomic.Bool
	wavEncoder wavEncoder
}

// NewEngine resolves the configured input device and pre-allocates all
// capture buffers. Returns ErrDeviceUnavailable (wrapped) when no usable
// device exists.
func NewEngine(cfg *config.Config, pipeline *analysis.Pipeline) (*Engine, error) {
	device, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		pipeline:    pipeline,
		inputDevice: device,
		monoFrame:   make([]float32, cfg.Audio.FramesPerBuffer),
	}

	if cfg.Audio.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}

	applog.Infof("Audio: using input device %q (%.0f Hz, %d frames/buffer, latency %s)",
		device.Name, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer, e.inputLatency)
	return e, nil
}

// Start opens and starts the input stream. The first callback marks the
// start of the hot path.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.Audio.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.cfg.Audio.FramesPerBuffer,
		SampleRate:      e.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInput)
	if err != nil {
		return errors.Join(ErrDeviceUnavailable, err)
	}
	e.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		e.stream = nil
		return errors.Join(ErrDeviceUnavailable, err)
	}

	e.running.Store(true)
	return nil
}

// Stop stops and closes the input stream and flushes the analysis
// pipeline to its silent state, so no stale confident estimate survives
// the capture session.
func (e *Engine) Stop() error {
	if !e.running.Swap(false) {
		return nil
	}

	var err error
	if e.stream != nil {
		if stopErr := e.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := e.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		e.stream = nil
	}

	e.pipeline.Reset()
	return err
}

// Close stops recording if active, then stops the stream.
func (e *Engine) Close() error {
	if e.recording.Load() {
		if err := e.StopRecording(); err != nil {
			applog.Errorf("Audio: error finalizing recording: %v", err)
		}
	}
	return e.Stop()
}

// Underruns returns how many short device callbacks were zero-padded.
func (e *Engine) Underruns() uint64 {
	return e.underruns.Load()
}

// processInput is the PortAudio callback and the system's hot path:
// pre-allocated buffers only, no blocking, bounded work per frame.
func (e *Engine) processInput(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	at := time.Now()
	e.framesTotal.Add(1)

	channels := e.cfg.Audio.InputChannels
	frames := len(in) / channels
	if frames > len(e.monoFrame) {
		frames = len(e.monoFrame)
	}

	// Downmix to mono: first channel only, which is the full signal for
	// mono input and the left channel for stereo.
	for i := 0; i < frames; i++ {
		e.monoFrame[i] = in[i*channels]
	}
	// Underrun or short delivery: pad with silence rather than stall.
	if frames < len(e.monoFrame) {
		e.underruns.Add(1)
		for i := frames; i < len(e.monoFrame); i++ {
			e.monoFrame[i] = 0
		}
	}

	e.pipeline.Process(e.monoFrame, at)

	if e.recording.Load() {
		e.writeRecording(e.monoFrame)
	}
}

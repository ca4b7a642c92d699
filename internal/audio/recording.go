// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "lumen/internal/log"
)

// wavEncoder bundles the open recording target with its reusable
// conversion buffer.
type wavEncoder struct {
	file *os.File
	enc  *wav.Encoder
	buf  *goaudio.IntBuffer
}

// StartRecording begins writing the downmixed capture stream to a mono
// WAV file. Returns an error if a recording is already active.
func (e *Engine) StartRecording(filename string) error {
	if e.recording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}

	sampleRate := int(e.cfg.Audio.SampleRate)
	e.wavEncoder = wavEncoder{
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, e.cfg.Recording.BitDepth, 1, 1),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:   make([]int, e.cfg.Audio.FramesPerBuffer),
		},
	}

	e.recording.Store(true)
	applog.Infof("Audio: recording to %s", filename)
	return nil
}

// StopRecording finalizes the WAV file. Safe to call when not recording.
func (e *Engine) StopRecording() error {
	if !e.recording.Swap(false) {
		return nil
	}

	if e.wavEncoder.enc != nil {
		if err := e.wavEncoder.enc.Close(); err != nil {
			return fmt.Errorf("failed to finalize WAV file: %w", err)
		}
		e.wavEncoder.enc = nil
	}
	if e.wavEncoder.file != nil {
		if err := e.wavEncoder.file.Close(); err != nil {
			return fmt.Errorf("failed to close recording file: %w", err)
		}
		e.wavEncoder.file = nil
	}
	return nil
}

// writeRecording converts the normalized frame to integer samples and
// appends it. Called from the capture callback; errors are logged rather
// than propagated so a full disk cannot stall analysis.
func (e *Engine) writeRecording(frame []float32) {
	if e.wavEncoder.enc == nil {
		return
	}

	if cap(e.wavEncoder.buf.Data) < len(frame) {
		e.wavEncoder.buf.Data = make([]int, len(frame))
	}
	e.wavEncoder.buf.Data = e.wavEncoder.buf.Data[:len(frame)]

	scale := float64(int64(1)<<(e.cfg.Recording.BitDepth-1)) - 1
	for i, sample := range frame {
		s := float64(sample)
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		e.wavEncoder.buf.Data[i] = int(math.Round(s * scale))
	}

	if err := e.wavEncoder.enc.Write(e.wavEncoder.buf); err != nil {
		applog.Errorf("Audio: error writing WAV frame: %v", err)
	}
}

// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"testing"

	"github.com/go-audio/wav"
)

// assertValidWAV decodes the file and checks frame count and sample rate.
func assertValidWAV(t *testing.T, path string, wantFrames, wantRate int) {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open recording: %v", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		t.Fatal("Recording is not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode recording: %v", err)
	}
	if buf.Format.NumChannels != 1 {
		t.Errorf("Channels: got %d, want 1 (mono downmix)", buf.Format.NumChannels)
	}
	if buf.Format.SampleRate != wantRate {
		t.Errorf("Sample rate: got %d, want %d", buf.Format.SampleRate, wantRate)
	}
	if got := len(buf.Data); got != wantFrames {
		t.Errorf("Frame count: got %d, want %d", got, wantFrames)
	}
}

func TestWriteRecordingWithoutEncoderIsNoop(t *testing.T) {
	e := newCallbackEngine(t, 1)
	// recording flag off, encoder nil: must not panic.
	e.writeRecording(make([]float32, 16))
}

func TestStartRecordingBadPath(t *testing.T) {
	e := newCallbackEngine(t, 1)
	if err := e.StartRecording("/nonexistent-dir/capture.wav"); err == nil {
		t.Error("StartRecording into a missing directory must fail")
	}
	if e.recording.Load() {
		t.Error("Failed StartRecording must not leave the recording flag set")
	}
}

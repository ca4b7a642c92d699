// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"lumen/pkg/bitint"
)

// Default values and hard limits for the engine configuration.
const (
	DefaultDeviceID        = -1 // -1 selects the system default input device
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultChannels        = 1

	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
)

// Config is the main application configuration, loaded from YAML with
// environment overrides applied on top.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Tempo     TempoConfig     `yaml:"tempo"`
	Transport TransportConfig `yaml:"transport"`
	Recording RecordingConfig `yaml:"recording"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`       // Hz
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // analysis frame size, power of 2
	InputChannels   int     `yaml:"input_channels"`    // 1 mono, 2 stereo (left channel analyzed)
	LowLatency      bool    `yaml:"low_latency"`       // request low-latency stream parameters
}

// AnalysisConfig holds spectral and onset-detection settings.
type AnalysisConfig struct {
	Window          string        `yaml:"window"`           // FFT window name (e.g. "hann", "hamming")
	VolumeSmoothing float64       `yaml:"volume_smoothing"` // 0 = raw RMS, →1 = heavy smoothing, less responsive
	FluxWindow      int           `yaml:"flux_window"`      // frames of spectral-flux history for thresholding
	FluxSensitivity float64       `yaml:"flux_sensitivity"` // stddev multiplier over the rolling flux mean
	Refractory      time.Duration `yaml:"refractory"`       // minimum gap between onsets
}

// TempoConfig holds tempo-estimation settings.
type TempoConfig struct {
	MinBPM             float64 `yaml:"min_bpm"`             // plausible tempo floor
	MaxBPM             float64 `yaml:"max_bpm"`             // plausible tempo ceiling
	IntervalWindow     int     `yaml:"interval_window"`     // inter-onset intervals retained
	AgreementTolerance float64 `yaml:"agreement_tolerance"` // relative deviation for interval clustering
	DecayHalfLife      float64 `yaml:"decay_half_life"`     // beat periods for confidence to halve during silence
}

// TransportConfig holds settings for publishing snapshots off-process.
type TransportConfig struct {
	WebsocketEnabled bool          `yaml:"websocket_enabled"`
	WebsocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	PublishInterval  time.Duration `yaml:"publish_interval"` // snapshot cadence for network consumers
}

// RecordingConfig holds WAV capture settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // empty = timestamped name in the working directory
	BitDepth   int    `yaml:"bit_depth"`
}

// Default returns the built-in configuration. Analysis constants were tuned
// against the synthetic click-track scenarios in the test suite.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      false,
		},
		Analysis: AnalysisConfig{
			Window:          "hann",
			VolumeSmoothing: 0.6,
			FluxWindow:      43, // ~1s of history at 1024 frames / 44.1kHz
			FluxSensitivity: 1.5,
			Refractory:      100 * time.Millisecond,
		},
		Tempo: TempoConfig{
			MinBPM:             40,
			MaxBPM:             220,
			IntervalWindow:     8,
			AgreementTolerance: 0.05,
			DecayHalfLife:      2.0,
		},
		Transport: TransportConfig{
			WebsocketEnabled: false,
			WebsocketAddr:    ":8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			PublishInterval:  16 * time.Millisecond, // ~60Hz, the render cadence
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
			BitDepth:   32,
		},
	}
}

// Load reads configuration from the YAML file at path. An empty path
// searches the default location ("config.yaml") and falls back to the
// built-in defaults when no file exists. Environment overrides are applied
// after file parsing, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges that would otherwise fail deep inside the
// engine with a less useful error.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FramesPerBuffer) || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be a power of 2 <= %d, got %d", MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > 2 {
		return fmt.Errorf("audio.input_channels must be 1 or 2, got %d", c.Audio.InputChannels)
	}
	if c.Analysis.VolumeSmoothing < 0 || c.Analysis.VolumeSmoothing >= 1 {
		return fmt.Errorf("analysis.volume_smoothing must be in [0, 1), got %g", c.Analysis.VolumeSmoothing)
	}
	if c.Analysis.FluxWindow < 4 {
		return fmt.Errorf("analysis.flux_window must be >= 4, got %d", c.Analysis.FluxWindow)
	}
	if c.Analysis.Refractory <= 0 {
		return fmt.Errorf("analysis.refractory must be positive, got %s", c.Analysis.Refractory)
	}
	if c.Tempo.MinBPM <= 0 || c.Tempo.MaxBPM <= c.Tempo.MinBPM {
		return fmt.Errorf("tempo bpm range [%g, %g] is invalid", c.Tempo.MinBPM, c.Tempo.MaxBPM)
	}
	if c.Tempo.IntervalWindow < 2 {
		return fmt.Errorf("tempo.interval_window must be >= 2, got %d", c.Tempo.IntervalWindow)
	}
	if c.Tempo.AgreementTolerance <= 0 || c.Tempo.AgreementTolerance >= 0.5 {
		return fmt.Errorf("tempo.agreement_tolerance must be in (0, 0.5), got %g", c.Tempo.AgreementTolerance)
	}
	if c.Transport.PublishInterval <= 0 {
		return fmt.Errorf("transport.publish_interval must be positive, got %s", c.Transport.PublishInterval)
	}
	return nil
}

// applyEnvOverrides lets deployment environments adjust settings without
// editing the config file. LUMEN_* variables win over file values.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("LUMEN_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("LUMEN_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("LUMEN_INPUT_DEVICE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = n
		}
	}
	if val, ok := os.LookupEnv("LUMEN_WS_ADDR"); ok {
		c.Transport.WebsocketAddr = val
		c.Transport.WebsocketEnabled = true
	}
	if val, ok := os.LookupEnv("LUMEN_UDP_TARGET"); ok {
		c.Transport.UDPTargetAddress = val
		c.Transport.UDPEnabled = true
	}
	if val, ok := os.LookupEnv("LUMEN_PUBLISH_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.PublishInterval = d
		}
	}
}

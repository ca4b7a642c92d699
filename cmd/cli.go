// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"lumen/internal/config"
	"lumen/pkg/bitint"
	"lumen/pkg/build"
)

// Options is the result of CLI parsing: the resolved configuration plus
// the run mode.
type Options struct {
	Config   *config.Config
	Command  string // one-off command ("list"), empty to run the engine
	Headless bool   // run without the monitor UI
	Effect   string // starting effect for the monitor
	Record   bool
	Output   string
}

// ParseArgs parses the command line, loads the configuration file, and
// applies flag overrides on top. Flags win over file values, file values
// over defaults.
func ParseArgs() (*Options, error) {
	info := build.GetInfo()
	opts := &Options{Effect: "pulse"}

	var (
		configPath string
		deviceID   int
		sampleRate float64
		frames     int
		channels   int
		lowLatency bool
		windowName string
		wsAddr     string
		udpTarget  string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("device") {
				cfg.Audio.InputDevice = deviceID
			}
			if flags.Changed("sample-rate") {
				cfg.Audio.SampleRate = sampleRate
			}
			if flags.Changed("frames-per-buffer") {
				// Round odd sizes up rather than rejecting them.
				cfg.Audio.FramesPerBuffer = bitint.NextPowerOfTwo(frames)
			}
			if flags.Changed("channels") {
				cfg.Audio.InputChannels = channels
			}
			if flags.Changed("low-latency") {
				cfg.Audio.LowLatency = lowLatency
			}
			if flags.Changed("window") {
				cfg.Analysis.Window = windowName
			}
			if flags.Changed("ws") {
				cfg.Transport.WebsocketEnabled = true
				cfg.Transport.WebsocketAddr = wsAddr
			}
			if flags.Changed("udp") {
				cfg.Transport.UDPEnabled = true
				cfg.Transport.UDPTargetAddress = udpTarget
			}
			if verbose {
				cfg.Debug = true
				cfg.LogLevel = "debug"
			}
			if opts.Record {
				cfg.Recording.Enabled = true
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML config file (default: ./config.yaml if present)")

	// Audio device configuration.
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate in Hz")
	rootCmd.PersistentFlags().IntVarP(&frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Analysis frame size in samples (power of 2; affects latency and spectral resolution)")
	rootCmd.PersistentFlags().IntVarP(&channels, "channels", "c", config.DefaultChannels,
		"Input channels to capture (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().BoolVarP(&lowLatency, "low-latency", "l", false,
		"Request low-latency stream parameters")
	rootCmd.PersistentFlags().StringVarP(&windowName, "window", "w", "hann",
		"FFT window function (hann, hamming, blackman, ...)")

	// Output and monitoring.
	rootCmd.PersistentFlags().StringVarP(&opts.Effect, "effect", "e", "pulse",
		"Starting effect for the monitor")
	rootCmd.PersistentFlags().BoolVar(&opts.Headless, "headless", false,
		"Run without the terminal monitor (pair with --ws or --udp)")
	rootCmd.PersistentFlags().StringVar(&wsAddr, "ws", ":8080",
		"Serve snapshots over websocket on this address")
	rootCmd.PersistentFlags().StringVar(&udpTarget, "udp", "127.0.0.1:9090",
		"Send binary snapshot packets to this UDP address")

	// Recording.
	rootCmd.PersistentFlags().BoolVarP(&opts.Record, "record", "r", false,
		"Record the captured audio to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "",
		"Recording file name. Default is capture-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	if opts.Output == "" {
		opts.Output = "capture-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lumen/cmd"
	"lumen/internal/analysis"
	"lumen/internal/audio"
	applog "lumen/internal/log"
	"lumen/internal/state"
	"lumen/internal/transport"
	"lumen/internal/transport/udp"
	"lumen/internal/tui"
)

// main runs in three phases:
//
//  1. Startup (cold path): parse arguments, load configuration, build the
//     analysis pipeline, open the input device.
//  2. Concurrent (hot path): the capture callback drives the pipeline at
//     the device frame cadence while the monitor and/or network pump
//     consume snapshots at the render cadence.
//  3. Shutdown (cold path): stop consumers, stop capture, flush the
//     pipeline to its silent state.
func main() {
	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	opts, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if opts.Command == "list" {
		if err := listDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	cfg := opts.Config
	if cfg == nil {
		// Help or version output: cobra handled it without running the
		// root command.
		return
	}
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	// Build the analysis pipeline.
	windowFunc, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	spectral, err := analysis.NewSpectral(cfg.Audio.FramesPerBuffer, cfg.Audio.SampleRate, windowFunc, cfg.Analysis.VolumeSmoothing)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	onsets := analysis.NewOnsetDetector(spectral.BinCount(), cfg.Analysis.FluxWindow, cfg.Analysis.FluxSensitivity, cfg.Analysis.Refractory)
	tempo := analysis.NewTempoTracker(cfg.Tempo.MinBPM, cfg.Tempo.MaxBPM, cfg.Tempo.IntervalWindow, cfg.Tempo.AgreementTolerance, cfg.Tempo.DecayHalfLife)
	pipeline := analysis.NewPipeline(spectral, onsets, tempo)
	publisher := state.NewPublisher(spectral, tempo)

	// Open and start capture. A missing device is not fatal: the engine
	// runs in silent mode and consumers see the default snapshot.
	engine, err := audio.NewEngine(cfg, pipeline)
	if err != nil {
		if !errors.Is(err, audio.ErrDeviceUnavailable) {
			applog.Fatalf("%v", err)
		}
		applog.Warnf("Audio: %v; running in silent mode", err)
		engine = nil
	}
	if engine != nil {
		if err := engine.Start(); err != nil {
			applog.Warnf("Audio: %v; running in silent mode", err)
			engine = nil
		}
	}

	if engine != nil && cfg.Recording.Enabled {
		output := cfg.Recording.OutputFile
		if output == "" {
			output = opts.Output
		}
		if err := engine.StartRecording(output); err != nil {
			applog.Errorf("Audio: could not start recording: %v", err)
		}
	}

	// Network consumers.
	var transports []transport.Transport
	if cfg.Transport.WebsocketEnabled {
		transports = append(transports, transport.NewWebSocket(cfg.Transport.WebsocketAddr, cfg.Transport.PublishInterval))
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Errorf("Transport: %v", err)
		} else {
			transports = append(transports, udp.NewTransport(sender, spectral.BinCount()))
		}
	}

	var pump *transport.Pump
	if len(transports) > 0 {
		pump = transport.NewPump(publisher, cfg.Transport.PublishInterval, transports...)
		pump.Start()
	}

	// Consume: interactive monitor, or block until a signal in headless
	// mode.
	if opts.Headless {
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		applog.Infof("Running headless; Ctrl-C to stop")
		<-done
	} else {
		if err := tui.Run(publisher, tempo, cfg.Transport.PublishInterval, opts.Effect); err != nil {
			applog.Errorf("Monitor error: %v", err)
		}
	}

	// Shutdown.
	if pump != nil {
		if err := pump.Stop(); err != nil {
			applog.Errorf("Transport: error stopping pump: %v", err)
		}
	}
	if engine != nil {
		if cfg.Recording.Enabled {
			if err := engine.StopRecording(); err != nil {
				applog.Errorf("Audio: error finalizing recording: %v", err)
			}
		}
		if err := engine.Close(); err != nil {
			applog.Errorf("Audio: error closing engine: %v", err)
		}
	}
}

// listDevices prints every input-capable device the host reports.
func listDevices() error {
	devices, err := audio.HostDevices()
	if err != nil {
		return err
	}
	fmt.Println("Available audio devices:")
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		fmt.Printf("  [%d] %s (%d in, %.0f Hz)\n", d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

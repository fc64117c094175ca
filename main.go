// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"visualizer/cmd"
	"visualizer/internal/audio"
	"visualizer/internal/config"
	"visualizer/internal/decode"
	applog "visualizer/internal/log"
	"visualizer/internal/transport"
	"visualizer/internal/transport/udp"
	"visualizer/internal/tui"
	"visualizer/pkg/build"
)

// main runs in three phases:
//
// 1. Startup:
//   - Parse the command line and configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Analysis:
//   - Open the microphone, file or playlist source
//   - Attach WebSocket, UDP and logging sinks
//   - Tick the engine until a signal arrives or the meter is closed
//
// 3. Shutdown:
//   - Stop recording, release the source and close every sink
func main() {
	// ==================== STARTUP ====================

	logger := applog.NewStderr(applog.LevelInfo)
	if err := build.Initialize(); err != nil {
		logger.Debugf("Build information unavailable: %v", err)
	}

	// One thread for the analysis loop, one for UI and I/O.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if cfg == nil {
		return
	}
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown log level %q, using %s", cfg.LogLevel, logger.Level())
	}
	logger.Debugf("Starting %s", build.GetBuildFlags())

	if err := audio.Initialize(); err != nil {
		logger.Fatalf("%v", err)
	}
	defer audio.Terminate()

	switch cfg.Command {
	case cmd.CommandList:
		if err := audio.ListDevices(os.Stdout); err != nil {
			logger.Fatalf("%v", err)
		}
		return
	case cmd.CommandDevices:
		sel, err := tui.StartDeviceListUI()
		if err != nil {
			logger.Fatalf("%v", err)
		}
		if sel == nil {
			return
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		if err := cfg.Validate(); err != nil {
			logger.Fatalf("%v", err)
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Errorf("%v", err)
		audio.Terminate()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	// ==================== ANALYSIS ====================

	source, err := openSource(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := audio.NewEngine(cfg, source, logger)
	if err != nil {
		source.Release()
		return err
	}

	var publisher *udp.UDPPublisher
	defer func() {
		// ==================== SHUTDOWN ====================
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warnf("Closing UDP publisher: %v", err)
			}
		}
		if err := engine.Close(); err != nil {
			logger.Errorf("Closing engine: %v", err)
		}
	}()

	if cfg.Transport.WebSocketEnabled {
		wst, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, logger)
		if err != nil {
			return err
		}
		engine.AddSink(wst)
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress, logger)
		if err != nil {
			return err
		}
		publisher, err = udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, engine, logger)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
	}
	if cfg.Debug {
		engine.AddSink(transport.NewLoggingTransport(logger, uint64(cfg.Analysis.TickRate)))
	}

	if cfg.Recording.Enabled {
		if _, ok := source.(*audio.Microphone); !ok {
			logger.Warnf("Recording is only available for microphone input")
		} else if err := engine.StartRecording(recordingPath(cfg)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	if cfg.Source.TUI {
		err := tui.StartMeterUI(engine, cfg.Analysis.Bands, cfg.TickInterval(), meterActions(cfg, engine))
		stop()
		return errors.Join(err, <-done)
	}

	fmt.Printf("Analysing. Press Ctrl+C to stop, or run '%s --help' for usage information.\n", build.GetBuildFlags().Name)
	return <-done
}

func openSource(cfg *config.Config, logger *applog.Logger) (audio.Source, error) {
	opts := audio.OptionsFromConfig(cfg)
	registry := decode.DefaultRegistry()
	switch {
	case len(cfg.Source.Playlist) > 0:
		return audio.NewPlaylist(cfg.Source.Playlist, opts, registry, logger)
	case cfg.Source.File != "":
		return audio.NewFile(cfg.Source.File, opts, registry, logger)
	default:
		return audio.NewMicrophone(opts, logger)
	}
}

func recordingPath(cfg *config.Config) string {
	if cfg.Recording.File != "" {
		return cfg.Recording.File
	}
	return filepath.Join(cfg.Recording.OutputDir, audio.RecordingName(time.Now()))
}

func meterActions(cfg *config.Config, engine *audio.Engine) tui.Actions {
	var actions tui.Actions
	switch src := engine.Source().(type) {
	case *audio.Microphone:
		actions.ToggleRecording = func() (bool, error) {
			if engine.Recording() {
				return false, engine.StopRecording()
			}
			if err := engine.StartRecording(recordingPath(cfg)); err != nil {
				return false, err
			}
			return true, nil
		}
	case *audio.Playlist:
		actions.Next = src.Next
		actions.Previous = src.Previous
		actions.NowPlaying = func() string { return filepath.Base(src.Path()) }
	case *audio.File:
		actions.NowPlaying = func() string { return filepath.Base(src.Path()) }
	}
	return actions
}

// SPDX-License-Identifier: MIT
/*
Package audio connects audio sources to the analysis pipeline:
- Microphone, File and Playlist sources driven by PortAudio callbacks
- A fixed-rate analysis loop pulling overlapping windows
- WAV recording of what was analysed
- Publishing of per-tick frames to transports

Thread Safety:
  - Driver callbacks only copy samples into or out of a stream buffer
  - Everything else runs on the goroutine calling Run or Step
  - Frames handed to transports are copies and may be read concurrently
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"visualizer/internal/analysis"
	"visualizer/internal/config"
	applog "visualizer/internal/log"
	"visualizer/internal/stream"
	"visualizer/internal/transport"
)

type Engine struct {
	// Core configuration and state.
	config   *config.Config
	log      *applog.Logger
	source   Source
	pipeline *analysis.Pipeline
	window   *stream.Window
	perTick  int
	interval time.Duration

	// Recording and sinks may be changed from other goroutines.
	mu       sync.Mutex
	recorder *Recorder
	sinks    []transport.Transport

	latest   atomic.Pointer[analysis.Frame]
	overruns uint64

	closeOnce sync.Once
	closeErr  error
}

// AnalysisOptions maps the configuration onto the analysis setup.
func AnalysisOptions(cfg *config.Config) analysis.Options {
	return analysis.Options{
		SampleRate:       cfg.Audio.SampleRate,
		WindowSize:       cfg.Audio.WindowSize,
		HopSize:          cfg.Audio.HopSize,
		Window:           cfg.Audio.FFTWindow,
		Bands:            cfg.Analysis.Bands,
		MaxFrequency:     cfg.Analysis.MaxFrequency,
		MinDB:            cfg.Analysis.MinDB,
		MaxDB:            cfg.Analysis.MaxDB,
		SpectrogramWidth: cfg.Analysis.SpectrogramW,
		PhasePoints:      cfg.Analysis.PhasePoints,
		OnsetThreshold:   cfg.Analysis.OnsetThreshold,
		OnsetRatio:       cfg.Analysis.OnsetRatio,
		OnsetCooldown:    cfg.Analysis.OnsetCooldown,
	}
}

// NewEngine builds the analysis pipeline for cfg around an already started
// source. The engine owns the source from here on and releases it on Close.
func NewEngine(cfg *config.Config, source Source, logger *applog.Logger) (*Engine, error) {
	if source == nil {
		return nil, errors.New("engine: source cannot be nil")
	}
	if logger == nil {
		logger = applog.Discard()
	}

	setup, err := analysis.NewSetup(AnalysisOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		config:   cfg,
		log:      logger.With("engine"),
		source:   source,
		pipeline: analysis.NewPipeline(setup),
		window:   stream.NewWindow(cfg.Audio.WindowSize),
		perTick:  cfg.Analysis.WindowsPerTick,
		interval: cfg.TickInterval(),
	}, nil
}

// AddSink registers a transport that receives every frame.
func (e *Engine) AddSink(t transport.Transport) {
	e.mu.Lock()
	e.sinks = append(e.sinks, t)
	e.mu.Unlock()
}

// Source returns the source being analysed.
func (e *Engine) Source() Source { return e.source }

// Pipeline exposes the display stages. Only touch it from the goroutine
// running the engine.
func (e *Engine) Pipeline() *analysis.Pipeline { return e.pipeline }

// Latest returns the most recent frame, or nil before the first tick.
func (e *Engine) Latest() *analysis.Frame { return e.latest.Load() }

// Run ticks the engine until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Infof("Analysing %d windows every %s", e.perTick, e.interval)
	for {
		select {
		case <-ctx.Done():
			e.log.Infof("Analysis stopped after %d steps", e.stepCount())
			return nil
		case <-ticker.C:
			e.Step()
		}
	}
}

func (e *Engine) stepCount() uint64 {
	total, _ := e.pipeline.Steps()
	return total
}

// Step runs one tick: it feeds up to windows_per_tick windows through the
// pipeline, substituting "no data" when the source has none, then publishes
// a frame.
func (e *Engine) Step() *analysis.Frame {
	// Mono sources only fill Left; an empty Right marks the window mono.
	if e.source.Channels() == 1 {
		e.window.Right = e.window.Right[:0]
	}

	for range e.perTick {
		if e.source.Get(e.window) {
			e.pipeline.Add(e.window)
			e.record(e.window)
		} else {
			e.pipeline.Add(nil)
		}
	}

	e.checkOverruns()
	e.advancePlaylist()

	frame := e.pipeline.Snapshot()
	e.latest.Store(frame)
	e.publish(frame)
	return frame
}

func (e *Engine) checkOverruns() {
	mic, ok := e.source.(*Microphone)
	if !ok {
		return
	}
	writes, samples := mic.Overruns()
	if writes != e.overruns {
		e.log.Warnf("Capture overrun: %d buffers (%d samples) dropped so far", writes, samples)
		e.overruns = writes
	}
}

func (e *Engine) advancePlaylist() {
	pl, ok := e.source.(*Playlist)
	if !ok || !pl.Complete() || pl.Available() > 0 {
		return
	}
	next, err := pl.Next()
	if err != nil {
		e.log.Errorf("Playlist advance failed: %v", err)
		return
	}
	if next {
		e.log.Infof("Playlist advanced to %s", pl.Path())
	}
}

func (e *Engine) publish(frame *analysis.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sink := range e.sinks {
		if err := sink.Send(frame); err != nil {
			e.log.Debugf("Sink send failed: %v", err)
		}
	}
}

func (e *Engine) record(w *stream.Window) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Write(w); err != nil {
		e.log.Errorf("Recording stopped: %v", err)
		e.recorder.Close()
		e.recorder = nil
	}
}

// StartRecording writes everything analysed from now on to a WAV file at
// path.
func (e *Engine) StartRecording(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recorder != nil {
		return fmt.Errorf("already recording to %s", e.recorder.Path())
	}

	r, err := NewRecorder(path, int(e.config.Audio.SampleRate), e.source.Channels(), e.config.Recording.BitDepth)
	if err != nil {
		return err
	}
	e.recorder = r
	e.log.Infof("Recording to %s", path)
	return nil
}

// StopRecording finalises the current recording. It is a no-op when not
// recording.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recorder == nil {
		return nil
	}
	r := e.recorder
	e.recorder = nil
	if err := r.Close(); err != nil {
		return err
	}
	e.log.Infof("Recording saved to %s (%d frames)", r.Path(), r.Frames())
	return nil
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorder != nil
}

// Close stops any recording, releases the source and closes every sink.
// Only the first call does any work.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		errs := []error{e.StopRecording(), e.source.Release()}

		e.mu.Lock()
		for _, sink := range e.sinks {
			errs = append(errs, sink.Close())
		}
		e.sinks = nil
		e.mu.Unlock()

		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

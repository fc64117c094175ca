// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"visualizer/internal/analysis"
	"visualizer/internal/config"
	"visualizer/internal/stream"
	"visualizer/pkg/utils"
)

type frameSink = utils.MockTransport[*analysis.Frame]

// countingSource wraps a Source and counts Release calls.
type countingSource struct {
	Source
	releases int
}

func (c *countingSource) Release() error {
	c.releases++
	return c.Source.Release()
}

func testEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.Analysis.SpectrogramW = 32
	return cfg
}

func newTestEngine(t *testing.T, src Source) *Engine {
	t.Helper()
	e, err := NewEngine(testEngineConfig(), src, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(config.Default(), nil, nil); err == nil {
		t.Error("nil source accepted")
	}

	installFakeDrivers(t)
	mic, err := NewMicrophone(testSourceOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mic.Release()

	cfg := config.Default()
	cfg.Audio.WindowSize = 1000
	if _, err := NewEngine(cfg, mic, nil); err == nil {
		t.Error("non power of two window accepted")
	}
}

func TestEngineSilentSecond(t *testing.T) {
	fd := installFakeDrivers(t)
	mic, err := NewMicrophone(testSourceOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, mic)
	sink := &frameSink{}
	e.AddSink(sink)

	if e.Latest() != nil {
		t.Error("Latest() before the first tick should be nil")
	}

	fd.inputs[0].capture(testSampleRate, func(int, int) float32 { return 0 })

	// 83 windows at two per tick need 42 ticks.
	var frame *analysis.Frame
	for range 42 {
		frame = e.Step()
	}
	if mic.Available() != 0 {
		t.Errorf("%d windows left after 42 ticks", mic.Available())
	}
	total, empty := e.Pipeline().Steps()
	if total != 84 || empty != 1 {
		t.Errorf("steps = %d (%d empty), want 84 (1 empty)", total, empty)
	}

	for i, b := range frame.Bands {
		if b.Level != 0 || b.Peak != 0 {
			t.Errorf("band %d = %+v, want silence", i, b)
		}
	}
	// A silent spectrum colours every row with the bottom of the palette.
	for i, c := range frame.Column {
		if c != frame.Column[0] {
			t.Fatalf("row %d colour %v, want %v", i, c, frame.Column[0])
		}
	}
	if frame.Meter.Level != 0 || frame.Meter.Zone != analysis.ZoneSafe || frame.Onset {
		t.Errorf("meter %+v onset %v on silence", frame.Meter, frame.Onset)
	}

	if len(sink.Sent()) != 42 || e.Latest() != frame {
		t.Errorf("sink got %d frames; latest is current: %v", len(sink.Sent()), e.Latest() == frame)
	}
}

func TestEngineMonoSourceClearsRight(t *testing.T) {
	fd := installFakeDrivers(t)
	fd.noStereo = true
	mic, err := NewMicrophone(testSourceOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, mic)
	e.window.Right = append(e.window.Right[:0], 1, 2, 3)

	fd.inputs[0].capture(4096, func(i, _ int) float32 { return 0.5 })
	e.Step()
	if len(e.window.Right) != 0 {
		t.Errorf("mono window kept %d right samples", len(e.window.Right))
	}
}

func TestEnginePlaylistAdvances(t *testing.T) {
	installFakeDrivers(t)
	dir := t.TempDir()
	// Neither file exists: each becomes one complete second of silence.
	pl, err := NewPlaylist([]string{filepath.Join(dir, "one.wav"), filepath.Join(dir, "two.wav")}, testSourceOptions(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, pl)

	for range 41 {
		e.Step()
	}
	if pl.Current() != 0 {
		t.Fatalf("advanced early, current = %d", pl.Current())
	}
	e.Step() // reads the 83rd window, leaving nothing available
	if pl.Current() != 1 {
		t.Errorf("current = %d after draining the first entry, want 1", pl.Current())
	}

	for range 50 {
		e.Step()
	}
	if pl.Current() != 1 {
		t.Errorf("advanced past the end, current = %d", pl.Current())
	}
}

func TestEngineRecording(t *testing.T) {
	fd := installFakeDrivers(t)
	mic, err := NewMicrophone(testSourceOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, mic)

	path := filepath.Join(t.TempDir(), "takes", RecordingName(time.Now()))
	if err := e.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !e.Recording() {
		t.Error("Recording() = false after start")
	}
	if err := e.StartRecording(path); err == nil {
		t.Error("second StartRecording succeeded")
	}

	fd.inputs[0].capture(8192, func(i, ch int) float32 { return 0.25 })
	for range 3 {
		e.Step()
	}
	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if e.Recording() {
		t.Error("Recording() = true after stop")
	}
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording when idle: %v", err)
	}

	// Six windows cover 5 hops plus one window.
	want := 5*testSourceOptions().Framing.HopSize + testSourceOptions().Framing.WindowSize
	left, _ := readRecording(t, path)
	if len(left) != want {
		t.Errorf("recorded %d frames, want %d", len(left), want)
	}
}

func TestEngineRunAndClose(t *testing.T) {
	installFakeDrivers(t)
	mic, err := NewMicrophone(testSourceOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	src := &countingSource{Source: mic}
	e, err := NewEngine(testEngineConfig(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	sink := &frameSink{}
	e.AddSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.Sent()) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("engine did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if src.releases != 1 || sink.Closes() != 1 {
		t.Errorf("released %d times, sink closed %d times", src.releases, sink.Closes())
	}
}

func TestAnalysisOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.FFTWindow = "Blackman"
	opts := AnalysisOptions(cfg)
	if opts.WindowSize != cfg.Audio.WindowSize || opts.HopSize != cfg.Audio.HopSize || opts.Window != "Blackman" {
		t.Errorf("framing not mapped: %+v", opts)
	}
	if len(opts.Bands) != len(cfg.Analysis.Bands) || opts.PhasePoints != cfg.Analysis.PhasePoints {
		t.Errorf("analysis not mapped: %+v", opts)
	}

	src := OptionsFromConfig(cfg)
	if src.Framing != (stream.Framing{WindowSize: cfg.Audio.WindowSize, HopSize: cfg.Audio.HopSize}) {
		t.Errorf("source framing = %+v", src.Framing)
	}
	if src.SilenceSeconds != cfg.Analysis.SilenceSeconds || src.TargetLevel != cfg.Analysis.TargetLevel {
		t.Errorf("file options not mapped: %+v", src)
	}
}

func TestEngineSinkErrorsDoNotStopTicks(t *testing.T) {
	installFakeDrivers(t)
	mic, err := NewMicrophone(testSourceOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t, mic)
	bad := &frameSink{Err: errors.New("sink down")}
	good := &frameSink{}
	e.AddSink(bad)
	e.AddSink(good)

	e.Step()
	e.Step()
	if len(good.Sent()) != 2 || len(bad.Sent()) != 2 {
		t.Errorf("sinks got %d and %d frames, want 2 each", len(good.Sent()), len(bad.Sent()))
	}
}

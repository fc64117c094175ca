// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"visualizer/internal/config"
	"visualizer/internal/stream"

	"github.com/gordonklaus/portaudio"
)

// driverStream is the part of *portaudio.Stream the sources use.
type driverStream interface {
	Start() error
	Stop() error
	Close() error
}

// Options configures the driver side of every source.
type Options struct {
	InputDevice     int
	OutputDevice    int
	SampleRate      float64
	FramesPerBuffer int
	InputChannels   int
	LowLatency      bool
	Framing         stream.Framing
	RingSeconds     float64

	// File sources only.
	TargetLevel    float64
	MinThreshold   float64
	SilenceSeconds float64
}

// OptionsFromConfig maps the audio and analysis sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InputDevice:     cfg.Audio.InputDevice,
		OutputDevice:    cfg.Audio.OutputDevice,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		InputChannels:   cfg.Audio.InputChannels,
		LowLatency:      cfg.Audio.LowLatency,
		Framing: stream.Framing{
			WindowSize: cfg.Audio.WindowSize,
			HopSize:    cfg.Audio.HopSize,
		},
		RingSeconds:    cfg.Audio.RingSeconds,
		TargetLevel:    cfg.Analysis.TargetLevel,
		MinThreshold:   cfg.Analysis.MinThreshold,
		SilenceSeconds: cfg.Analysis.SilenceSeconds,
	}
}

// Stream openers, swapped out by tests. The callback receives interleaved
// float32 frames and runs on the driver's thread.
var (
	openInputStream  = openPortAudioInput
	openOutputStream = openPortAudioOutput
)

func openPortAudioInput(o Options, channels int, callback func(in []float32)) (driverStream, error) {
	device, err := InputDevice(o.InputDevice)
	if err != nil {
		return nil, err
	}
	latency := device.DefaultHighInputLatency
	if o.LowLatency {
		latency = device.DefaultLowInputLatency
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency,
		},
		SampleRate:      o.SampleRate,
		FramesPerBuffer: o.FramesPerBuffer,
	}
	s, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPortAudioOutput(o Options, callback func(out []float32)) (driverStream, error) {
	device, err := OutputDevice(o.OutputDevice)
	if err != nil {
		return nil, err
	}
	latency := device.DefaultHighOutputLatency
	if o.LowLatency {
		latency = device.DefaultLowOutputLatency
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 2,
			Latency:  latency,
		},
		SampleRate:      o.SampleRate,
		FramesPerBuffer: o.FramesPerBuffer,
	}
	s, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// handle owns one driver stream and tears it down exactly once.
type handle struct {
	once     sync.Once
	drv      driverStream
	released atomic.Bool
}

// release stops the callback before closing the stream so it can never fire
// into freed state. Only the first call does any work; later calls return
// nil.
func (h *handle) release() error {
	var err error
	h.once.Do(func() {
		h.released.Store(true)
		if h.drv == nil {
			return
		}
		if stopErr := h.drv.Stop(); stopErr != nil {
			err = fmt.Errorf("stopping stream: %w", stopErr)
		}
		if closeErr := h.drv.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing stream: %w", closeErr)
		}
	})
	return err
}

// clock drives an output callback from a ticker when no playback device is
// available, so file sources still advance in real time.
type clock struct {
	period time.Duration
	buf    []float32
	fill   func(out []float32)

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

func newClock(o Options, fill func(out []float32)) *clock {
	period := time.Duration(float64(o.FramesPerBuffer) / o.SampleRate * float64(time.Second))
	return &clock{
		period: max(period, time.Millisecond),
		buf:    make([]float32, 2*o.FramesPerBuffer),
		fill:   fill,
	}
}

func (c *clock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}
	c.done = make(chan struct{})
	done := c.done

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.fill(c.buf)
			case <-done:
				return
			}
		}
	}()
	return nil
}

func (c *clock) Stop() error {
	c.mu.Lock()
	if c.done == nil {
		c.mu.Unlock()
		return nil
	}
	close(c.done)
	c.done = nil
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *clock) Close() error { return nil }

// SPDX-License-Identifier: MIT
package analysis

import (
	"visualizer/internal/stream"
)

// Pipeline runs every display stage over each analysis window. It is owned
// by a single goroutine; Snapshot copies the state out for other readers.
type Pipeline struct {
	setup     *Setup
	transform *Transform
	slice     *Slice
	mix       *stream.Window // Mono mix of the current window.

	Bands       *BandAggregator
	Spectrogram *Spectrogram
	Phase       *PhaseSampler
	Waveform    *Waveform
	Scope       *Oscilloscope
	Meter       *Meter
	Onset       *OnsetDetector

	windows []WindowProcessor
	spectra []SpectrumProcessor

	steps uint64
	empty uint64
}

// NewPipeline builds all stages from one setup.
func NewPipeline(setup *Setup) *Pipeline {
	p := &Pipeline{
		setup:       setup,
		transform:   NewTransform(setup),
		slice:       NewSlice(setup.Framing.WindowSize),
		mix:         stream.NewWindow(setup.Framing.WindowSize),
		Bands:       NewBandAggregator(setup),
		Spectrogram: NewSpectrogram(setup),
		Phase:       NewPhaseSampler(setup),
		Waveform:    NewWaveform(setup.SpectrogramWidth),
		Scope:       NewOscilloscope(setup.Framing.WindowSize),
		Meter:       NewMeter(),
		Onset:       NewOnsetDetector(setup.Onset.Threshold, setup.Onset.Ratio, setup.Onset.Cooldown),
	}
	p.windows = []WindowProcessor{p.Waveform, p.Scope, p.Meter, p.Onset}
	p.spectra = []SpectrumProcessor{
		p.Spectrogram,
		spectrumFunc(func(s *Slice) {
			if s != nil {
				p.Bands.Add(s.Power)
			}
		}),
	}
	return p
}

// Add advances every stage by one step. Stereo windows are mixed to mono
// for the spectral and level stages; the phase display gets both channels.
// A nil window advances the scrolling displays with their last values.
func (p *Pipeline) Add(w *stream.Window) {
	p.steps++
	if w == nil {
		p.empty++
		for _, wp := range p.windows {
			wp.Process(nil)
		}
		for _, sp := range p.spectra {
			sp.Add(nil)
		}
		return
	}

	mono := p.monoMix(w)
	p.transform.Apply(mono.Left, p.slice)
	for _, sp := range p.spectra {
		sp.Add(p.slice)
	}
	for _, wp := range p.windows {
		wp.Process(mono)
	}
	p.Phase.Process(w)
}

func (p *Pipeline) monoMix(w *stream.Window) *stream.Window {
	if len(w.Right) == 0 {
		return w
	}
	n := min(len(w.Left), len(w.Right))
	if cap(p.mix.Left) < n {
		p.mix.Left = make([]float64, n)
	}
	p.mix.Left = p.mix.Left[:n]
	for i := range n {
		p.mix.Left[i] = (w.Left[i] + w.Right[i]) / 2
	}
	p.mix.Start = w.Start
	return p.mix
}

// Steps returns the number of Add calls and how many of them had no window.
func (p *Pipeline) Steps() (total, empty uint64) { return p.steps, p.empty }

// Frame is a copy of the display state after a step, safe to hand to
// other goroutines.
type Frame struct {
	Seq      uint64       `json:"seq"`
	Bands    []BandLevel  `json:"bands"`
	Column   []RGB        `json:"column"`
	Phase    []PhasePoint `json:"phase"`
	Waveform float64      `json:"waveform"`
	Meter    MeterReading `json:"meter"`
	Onset    bool         `json:"onset"`
}

// Snapshot copies the current display state into a new Frame.
func (p *Pipeline) Snapshot() *Frame {
	f := &Frame{
		Seq:      p.steps,
		Bands:    p.Bands.Levels(nil),
		Column:   append([]RGB(nil), p.Spectrogram.Latest()...),
		Phase:    append([]PhasePoint(nil), p.Phase.Points()...),
		Waveform: p.Waveform.Current(),
		Meter:    p.Meter.Reading(),
		Onset:    p.Onset.Fired(),
	}
	return f
}

package analysis

import (
	"math"

	"visualizer/internal/stream"
)

const (
	waveformProbe   = 100 // Leading samples inspected per window.
	waveformInitial = 0.002
)

// Waveform is a scrolling amplitude envelope: each step appends a (-p, +p)
// pair, p being the peak of the first samples of the window.
type Waveform struct {
	samples []float64 // Pairs, oldest first.
	current float64
}

// NewWaveform keeps the envelope of the last width steps.
func NewWaveform(width int) *Waveform {
	return &Waveform{samples: make([]float64, 2*width), current: waveformInitial}
}

// Process implements WindowProcessor. A nil window repeats the last peak.
func (wf *Waveform) Process(w *stream.Window) {
	if w != nil {
		var peak float64
		for _, v := range w.Left[:min(waveformProbe, len(w.Left))] {
			peak = max(peak, math.Abs(v))
		}
		wf.current = peak
	}
	copy(wf.samples, wf.samples[2:])
	wf.samples[len(wf.samples)-2] = -wf.current
	wf.samples[len(wf.samples)-1] = wf.current
}

// Current returns the most recent peak.
func (wf *Waveform) Current() float64 { return wf.current }

// Samples returns the envelope pairs, oldest first.
func (wf *Waveform) Samples() []float64 { return wf.samples }

// Oscilloscope keeps the latest window of raw samples for a trace display.
type Oscilloscope struct {
	samples []float64
}

// NewOscilloscope holds size samples.
func NewOscilloscope(size int) *Oscilloscope {
	return &Oscilloscope{samples: make([]float64, size)}
}

// Process implements WindowProcessor. Longer windows are decimated to fit,
// shorter ones are zero padded. A nil window keeps the previous trace.
func (o *Oscilloscope) Process(w *stream.Window) {
	if w == nil {
		return
	}
	src := w.Left
	size := len(o.samples)
	if len(src) > size {
		step := len(src) / size
		for i := range size {
			o.samples[i] = src[i*step]
		}
		return
	}
	n := copy(o.samples, src)
	clear(o.samples[n:])
}

// Samples returns the trace. The slice aliases internal storage.
func (o *Oscilloscope) Samples() []float64 { return o.samples }

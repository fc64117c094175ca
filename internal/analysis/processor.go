// SPDX-License-Identifier: MIT
package analysis

import "visualizer/internal/stream"

// WindowProcessor is a display stage fed directly with analysis windows.
// Implementations run on the analysis goroutine once per step and should
// not allocate. A nil window means no new audio was available this step.
type WindowProcessor interface {
	Process(w *stream.Window)
}

// SpectrumProcessor is a display stage fed with the spectrum of each
// window. A nil slice means no new audio was available this step.
type SpectrumProcessor interface {
	Add(slice *Slice)
}

// spectrumFunc adapts a function to SpectrumProcessor.
type spectrumFunc func(slice *Slice)

func (f spectrumFunc) Add(slice *Slice) { f(slice) }

var (
	_ WindowProcessor   = (*PhaseSampler)(nil)
	_ WindowProcessor   = (*Waveform)(nil)
	_ WindowProcessor   = (*Oscilloscope)(nil)
	_ WindowProcessor   = (*Meter)(nil)
	_ WindowProcessor   = (*OnsetDetector)(nil)
	_ SpectrumProcessor = (*Spectrogram)(nil)
)

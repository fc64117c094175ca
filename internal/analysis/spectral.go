// SPDX-License-Identifier: MIT
package analysis

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Slice is one spectral analysis step: N/2+1 complex bins and their power.
// A Slice is refilled on every step; callers must copy anything they keep.
type Slice struct {
	Coeffs []complex128 // Complex bins, used for colour mapping.
	Power  []float64    // |X[k]|^2, used for band aggregation.
}

// NewSlice allocates a slice for a window of size n.
func NewSlice(n int) *Slice {
	return &Slice{
		Coeffs: make([]complex128, n/2+1),
		Power:  make([]float64, n/2+1),
	}
}

// Transform applies the taper and a real-input FFT to one frame. Its output
// depends only on the input frame and the setup; the buffers it holds are
// scratch space, not state.
type Transform struct {
	setup *Setup
	fft   *fourier.FFT
	input []float64
}

// NewTransform pre-allocates the FFT plan and scratch buffer.
func NewTransform(setup *Setup) *Transform {
	return &Transform{
		setup: setup,
		fft:   fourier.NewFFT(setup.Framing.WindowSize),
		input: make([]float64, setup.Framing.WindowSize),
	}
}

// Apply tapers frame, zero padding on the right when it is shorter than the
// window size, and writes the spectrum into dst. Bin k is at
// k * sampleRate / windowSize Hz.
func (t *Transform) Apply(frame []float64, dst *Slice) {
	taper := t.setup.Taper
	n := min(len(frame), len(t.input))
	for i := range n {
		t.input[i] = frame[i] * taper[i]
	}
	for i := n; i < len(t.input); i++ {
		t.input[i] = 0
	}

	t.fft.Coefficients(dst.Coeffs, t.input)
	for i, c := range dst.Coeffs {
		re, im := real(c), imag(c)
		dst.Power[i] = re*re + im*im
	}
}

// Frequencies returns the centre frequency of every bin.
func (t *Transform) Frequencies() []float64 {
	freqs := make([]float64, t.setup.Bins())
	for k := range freqs {
		freqs[k] = t.setup.BinFrequency(k)
	}
	return freqs
}

// SPDX-License-Identifier: MIT
package analysis

import "visualizer/internal/stream"

// PhasePoint is one (side, mid) sample of the stereo phase display.
type PhasePoint struct {
	Side float64 `json:"s"` // (L-R)/2, stereo width on the x axis.
	Mid  float64 `json:"m"` // (L+R)/2, mono content on the y axis.
}

// PhaseSampler reduces a stereo window to a fixed number of mid/side points.
type PhaseSampler struct {
	taper  []float64
	points []PhasePoint
}

// NewPhaseSampler allocates setup.PhasePoints points, all at the origin.
func NewPhaseSampler(setup *Setup) *PhaseSampler {
	return &PhaseSampler{
		taper:  setup.Taper,
		points: make([]PhasePoint, setup.PhasePoints),
	}
}

// Process implements WindowProcessor. Mono windows use the left channel for
// both sides, so they collapse onto the mid axis. A nil window keeps the
// previous points.
func (p *PhaseSampler) Process(w *stream.Window) {
	if w == nil {
		return
	}
	right := w.Right
	if len(right) == 0 {
		right = w.Left
	}
	p.Sample(w.Left, right)
}

// Sample tapers both channels, takes every step-th mid/side value with
// step = max(1, len/N), and zero pads to exactly N points.
func (p *PhaseSampler) Sample(left, right []float64) {
	n := min(len(left), len(right), len(p.taper))
	want := len(p.points)
	step := max(1, n/want)

	i := 0
	for j := 0; j < n && i < want; j += step {
		l := left[j] * p.taper[j]
		r := right[j] * p.taper[j]
		p.points[i] = PhasePoint{Side: (l - r) / 2, Mid: (l + r) / 2}
		i++
	}
	for ; i < want; i++ {
		p.points[i] = PhasePoint{}
	}
}

// Points returns the current points. The slice aliases internal storage.
func (p *PhaseSampler) Points() []PhasePoint { return p.points }

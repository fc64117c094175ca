// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
)

var ErrBands = errors.New("analysis: band centres must be positive, ascending and below Nyquist")

// Band level tuning. Levels are in [0, MaxLevel] and shaped for display.
const (
	powerFloor     = 1e-10 // Band power at or below this reads as silence.
	dynamicRangeDB = 60.0  // Span below the running maximum mapped to [0,1].
	headroomDB     = 0.0   // Span above the running maximum.
	levelScale     = 0.8
	attack         = 0.3  // Weight of the new level when rising.
	release        = 0.85 // Per-step decay when falling.
	peakDecay      = 0.99
)

// BandEdges is the frequency range [Low, High) covered by one band.
type BandEdges struct {
	Center float64
	Low    float64
	High   float64
}

// BandEdgesFor derives contiguous bands from their centre frequencies.
// Each edge is the midpoint between neighbouring centres; the first band
// starts at 0 Hz and the last ends at Nyquist.
func BandEdgesFor(centers []float64, sampleRate float64) ([]BandEdges, error) {
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrBands)
	}
	nyquist := sampleRate / 2
	edges := make([]BandEdges, len(centers))
	for i, c := range centers {
		if c <= 0 || c >= nyquist || (i > 0 && c <= centers[i-1]) {
			return nil, fmt.Errorf("%w: %.1f Hz at index %d", ErrBands, c, i)
		}
		e := BandEdges{Center: c, Low: 0, High: nyquist}
		if i > 0 {
			e.Low = (centers[i-1] + c) / 2
		}
		if i < len(centers)-1 {
			e.High = (c + centers[i+1]) / 2
		}
		edges[i] = e
	}
	return edges, nil
}

// FrequencyBand holds the display state of one band.
type FrequencyBand struct {
	BandEdges
	Level float64 // Smoothed level in [0, MaxLevel].
	Peak  float64 // Peak hold in [0, MaxLevel].

	lo, hi  int     // Bin range [lo, hi).
	db      float64 // Loudness of the last spectrum, valid when audible.
	audible bool
}

// Bins returns the number of spectrum bins inside the band.
func (b *FrequencyBand) Bins() int { return b.hi - b.lo }

// BandLevel is the published pair for one band.
type BandLevel struct {
	Level float64 `json:"level"`
	Peak  float64 `json:"peak"`
}

// MaxLevel is the highest level a band reports: the scaled ceiling after
// the cube-root curve.
var MaxLevel = math.Cbrt(levelScale)

// BandAggregator reduces power spectra to per-band display levels. All bands
// share one running maximum so their levels stay comparable.
type BandAggregator struct {
	bands        []*FrequencyBand
	runningMaxDB float64
}

// NewBandAggregator maps every band onto the bins whose centre frequency
// falls inside it.
func NewBandAggregator(setup *Setup) *BandAggregator {
	bins := setup.Bins()
	a := &BandAggregator{bands: make([]*FrequencyBand, len(setup.Edges))}
	for i, e := range setup.Edges {
		band := &FrequencyBand{BandEdges: e, lo: bins, hi: bins}
		for k := range bins {
			f := setup.BinFrequency(k)
			if f >= e.Low && band.lo == bins {
				band.lo = k
			}
			if f >= e.High {
				band.hi = k
				break
			}
		}
		band.hi = max(band.hi, band.lo)
		a.bands[i] = band
		if band.Bins() == 0 {
			setup.Log.Debugf("band %.1f Hz [%.1f, %.1f) has no bins", e.Center, e.Low, e.High)
		}
	}
	return a
}

// Bands exposes the band state, lowest band first.
func (a *BandAggregator) Bands() []*FrequencyBand { return a.bands }

// RunningMaxDB is the loudest band power seen so far. It never decreases.
func (a *BandAggregator) RunningMaxDB() float64 { return a.runningMaxDB }

// Add folds one power spectrum into every band. The running maximum takes
// the whole spectrum into account before any band is scaled.
func (a *BandAggregator) Add(power []float64) {
	for _, b := range a.bands {
		b.measure(power)
		if b.audible {
			a.runningMaxDB = max(a.runningMaxDB, b.db)
		}
	}
	for _, b := range a.bands {
		b.update(a.normalise(b))
	}
}

// Levels writes the (smoothed, peak) pair of every band into dst, growing it
// as needed, and returns it.
func (a *BandAggregator) Levels(dst []BandLevel) []BandLevel {
	if cap(dst) < len(a.bands) {
		dst = make([]BandLevel, len(a.bands))
	}
	dst = dst[:len(a.bands)]
	for i, b := range a.bands {
		dst[i] = BandLevel{Level: b.Level, Peak: b.Peak}
	}
	return dst
}

// normalise maps the loudness of b onto the range below the running
// maximum, then scales and compresses it.
func (a *BandAggregator) normalise(b *FrequencyBand) float64 {
	if !b.audible {
		return 0
	}
	floor := a.runningMaxDB - dynamicRangeDB
	ceil := a.runningMaxDB + headroomDB

	level := (b.db - floor) / (ceil - floor)
	level = min(max(level, 0), 1)
	return math.Cbrt(level * levelScale)
}

// measure records the RMS power of the band in dB.
func (b *FrequencyBand) measure(power []float64) {
	b.audible = false
	hi := min(b.hi, len(power))
	if hi <= b.lo {
		return
	}
	var sum float64
	for _, p := range power[b.lo:hi] {
		sum += p
	}
	bandPower := math.Sqrt(sum / float64(hi-b.lo))
	if bandPower <= powerFloor {
		return
	}
	b.db = 20 * math.Log10(bandPower)
	b.audible = true
}

func (b *FrequencyBand) update(level float64) {
	if level > b.Level {
		b.Level = b.Level*(1-attack) + level*attack
	} else {
		b.Level *= release
	}
	if level > b.Peak {
		b.Peak = level
	} else {
		b.Peak *= peakDecay
	}
}

package analysis

import (
	"math"

	"visualizer/internal/stream"
)

// OnsetDetector flags sudden energy rises, such as kick drum hits, from the
// RMS of consecutive windows.
type OnsetDetector struct {
	threshold  float64 // Minimum RMS for an onset.
	minRatio   float64 // Minimum rise over the previous window.
	cooldown   int     // Steps ignored after an onset.
	lastEnergy float64
	wait       int
	fired      bool
	count      uint64
}

// NewOnsetDetector returns a detector. cooldown is counted in analysis
// steps.
func NewOnsetDetector(threshold, minRatio float64, cooldown int) *OnsetDetector {
	return &OnsetDetector{threshold: threshold, minRatio: minRatio, cooldown: cooldown}
}

// Process implements WindowProcessor. A nil window clears the flag and keeps
// the energy history.
func (d *OnsetDetector) Process(w *stream.Window) {
	d.fired = false
	if w == nil {
		return
	}
	energy := rms(w.Left)
	if d.wait > 0 {
		d.wait--
	} else if energy > d.threshold && (d.lastEnergy == 0 || energy/d.lastEnergy > d.minRatio) {
		d.fired = true
		d.count++
		d.wait = d.cooldown
	}
	d.lastEnergy = energy
}

// Fired reports whether the last step was an onset.
func (d *OnsetDetector) Fired() bool { return d.fired }

// Count returns the number of onsets seen.
func (d *OnsetDetector) Count() uint64 { return d.count }

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

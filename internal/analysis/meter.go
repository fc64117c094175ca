// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"visualizer/internal/stream"
)

const (
	meterRangeDB   = 60.0
	meterSmoothing = 0.8
	meterHoldSteps = 30
	meterDecay     = 0.95
)

// Zone classifies a meter level for display colouring.
type Zone string

const (
	ZoneSafe Zone = "safe" // below 0.7
	ZoneWarn Zone = "warn" // below 0.9
	ZoneHot  Zone = "hot"
)

// MeterReading is the published meter state.
type MeterReading struct {
	Level float64 `json:"level"`
	Peak  float64 `json:"peak"`
	Zone  Zone    `json:"zone"`
}

// Meter is an RMS level meter over the last 60 dB with peak hold.
type Meter struct {
	level float64
	peak  float64
	hold  int
}

// NewMeter returns a meter at rest.
func NewMeter() *Meter { return &Meter{} }

// Process implements WindowProcessor. Nil windows leave the meter untouched.
func (m *Meter) Process(w *stream.Window) {
	if w == nil || len(w.Left) == 0 {
		return
	}
	db := 20 * math.Log10(rms(w.Left)+1e-10)
	level := min(max((db+meterRangeDB)/meterRangeDB, 0), 1)

	m.level = meterSmoothing*m.level + (1-meterSmoothing)*level

	switch {
	case level > m.peak:
		m.peak = level
		m.hold = meterHoldSteps
	case m.hold > 0:
		m.hold--
	default:
		m.peak *= meterDecay
	}
}

// Reading returns the current level, peak and zone.
func (m *Meter) Reading() MeterReading {
	zone := ZoneHot
	switch {
	case m.level < 0.7:
		zone = ZoneSafe
	case m.level < 0.9:
		zone = ZoneWarn
	}
	return MeterReading{Level: m.level, Peak: m.peak, Zone: zone}
}

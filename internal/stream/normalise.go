// SPDX-License-Identifier: MIT
package stream

import "math"

// Loudness is the outcome of a one-shot normalisation pass.
type Loudness struct {
	Peak   float64 // Peak absolute amplitude before scaling.
	Scale  float64 // Factor applied to every sample, 1 when untouched.
	Silent bool    // Peak was exactly zero.
}

// Action describes what Normalise did, for diagnostics.
func (l Loudness) Action() string {
	switch {
	case l.Silent:
		return "silent"
	case l.Scale == 1:
		return "unchanged"
	case l.Peak > 1:
		return "reduced"
	default:
		return "amplified"
	}
}

// Normalise rescales decoded audio in place so its peak across all channels
// equals target when the peak is above 1.0 or below minThreshold. Buffers
// already within [minThreshold, 1.0] are left untouched, as are silent
// buffers. It runs once at load time, never per window.
func Normalise(chans [][]float32, target, minThreshold float64) Loudness {
	var peak float64
	for _, ch := range chans {
		for _, s := range ch {
			if a := math.Abs(float64(s)); a > peak {
				peak = a
			}
		}
	}

	res := Loudness{Peak: peak, Scale: 1}
	if peak == 0 {
		res.Silent = true
		return res
	}
	if peak <= 1.0 && peak >= minThreshold {
		return res
	}

	res.Scale = target / peak
	scale := float32(res.Scale)
	for _, ch := range chans {
		for i := range ch {
			ch[i] *= scale
		}
	}
	return res
}

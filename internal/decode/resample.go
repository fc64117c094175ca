// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"

	resampler "github.com/tphakala/go-audio-resampler"
)

// Resample converts a to targetRate through a band-limited polyphase filter,
// so content above the new Nyquist frequency is removed rather than folded
// back. Every output channel holds exactly frames*targetRate/sourceRate
// samples.
func Resample(a *Audio, targetRate int) (*Audio, error) {
	if a.SampleRate == targetRate || a.SampleRate <= 0 || targetRate <= 0 {
		return a, nil
	}
	in, out := float64(a.SampleRate), float64(targetRate)
	frames := int(float64(a.Frames()) * out / in)

	res := &Audio{Channels: make([][]float32, len(a.Channels)), SampleRate: targetRate}
	switch len(a.Channels) {
	case 2:
		left, right, err := resampler.ResampleStereoFloat32(a.Channels[0], a.Channels[1], in, out, resampler.QualityHigh)
		if err != nil {
			return nil, fmt.Errorf("resample %d to %d Hz: %w", a.SampleRate, targetRate, err)
		}
		res.Channels[0], res.Channels[1] = fit(left, frames), fit(right, frames)
	default:
		for c, ch := range a.Channels {
			converted, err := resampler.ResampleMonoFloat32(ch, in, out, resampler.QualityHigh)
			if err != nil {
				return nil, fmt.Errorf("resample %d to %d Hz: %w", a.SampleRate, targetRate, err)
			}
			res.Channels[c] = fit(converted, frames)
		}
	}
	return res, nil
}

// fit trims or zero pads s to n samples.
func fit(s []float32, n int) []float32 {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]float32, n)
	copy(out, s)
	return out
}

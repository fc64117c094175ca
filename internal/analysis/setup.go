// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	applog "visualizer/internal/log"
	"visualizer/internal/stream"
	"visualizer/pkg/bitint"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT taper.
type WindowFunc int

// Enum for available window functions.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	Nuttall
)

// Options carries the configuration values every analysis stage depends on.
type Options struct {
	SampleRate       float64
	WindowSize       int
	HopSize          int
	Window           string    // Taper name, empty means Hann.
	Bands            []float64 // Band centre frequencies, ascending.
	MaxFrequency     float64   // Highest frequency kept by the spectrogram.
	MinDB, MaxDB     float64   // Spectrogram colour range.
	SpectrogramWidth int
	PhasePoints      int
	OnsetThreshold   float64
	OnsetRatio       float64
	OnsetCooldown    int
}

// Setup is the single initialisation point for the analysis stages. It
// holds the configuration and the read-only resources they share: the
// taper coefficients, band edges and colour palette. Build it once and pass
// it to every stage; nothing in this package keeps process-wide state.
type Setup struct {
	SampleRate       float64
	Framing          stream.Framing
	Taper            []float64
	Edges            []BandEdges
	Palette          *Palette
	DisplayBins      int
	MinDB, MaxDB     float64
	SpectrogramWidth int
	PhasePoints      int
	Onset            OnsetOptions
	Log              *applog.Logger
}

// OnsetOptions tunes the onset detector.
type OnsetOptions struct {
	Threshold float64
	Ratio     float64
	Cooldown  int
}

// NewSetup validates opts and precomputes the shared resources.
func NewSetup(opts Options, logger *applog.Logger) (*Setup, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if !bitint.IsPowerOfTwo(opts.WindowSize) {
		return nil, fmt.Errorf("analysis: window size must be a power of 2, got %d", opts.WindowSize)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be positive, got %f", opts.SampleRate)
	}
	framing := stream.Framing{WindowSize: opts.WindowSize, HopSize: opts.HopSize}
	if err := framing.Validate(); err != nil {
		return nil, err
	}
	if opts.SpectrogramWidth <= 0 || opts.PhasePoints <= 0 {
		return nil, fmt.Errorf("analysis: spectrogram width and phase points must be positive")
	}
	if opts.MaxDB <= opts.MinDB {
		return nil, fmt.Errorf("analysis: max dB %.1f must exceed min dB %.1f", opts.MaxDB, opts.MinDB)
	}

	windowType, err := ParseWindowFunc(opts.Window)
	if err != nil {
		logger.Warnf("analysis: %v, using Hann", err)
	}

	edges, err := BandEdgesFor(opts.Bands, opts.SampleRate)
	if err != nil {
		return nil, err
	}

	s := &Setup{
		SampleRate:       opts.SampleRate,
		Framing:          framing,
		Taper:            taper(opts.WindowSize, windowType),
		Edges:            edges,
		Palette:          NewHeatPalette(),
		DisplayBins:      DisplayBins(opts.MaxFrequency, opts.SampleRate, opts.WindowSize),
		MinDB:            opts.MinDB,
		MaxDB:            opts.MaxDB,
		SpectrogramWidth: opts.SpectrogramWidth,
		PhasePoints:      opts.PhasePoints,
		Onset:            OnsetOptions{Threshold: opts.OnsetThreshold, Ratio: opts.OnsetRatio, Cooldown: opts.OnsetCooldown},
		Log:              logger.With("analysis"),
	}

	s.Log.Infof("window %d, hop %d, %.0f Hz, %d bands, %d display bins",
		opts.WindowSize, opts.HopSize, opts.SampleRate, len(edges), s.DisplayBins)
	return s, nil
}

// Bins is the number of spectrum bins for a real FFT of the window size.
func (s *Setup) Bins() int {
	return s.Framing.WindowSize/2 + 1
}

// BinFrequency returns the centre frequency (Hz) of bin k.
func (s *Setup) BinFrequency(k int) float64 {
	return float64(k) * s.SampleRate / float64(s.Framing.WindowSize)
}

// DisplayBins returns how many leading bins cover maxFreq:
// int(maxFreq * bins_per_hz), with bins_per_hz = (N/2+1) / (sampleRate/2).
// The result is clamped to the full spectrum.
func DisplayBins(maxFreq, sampleRate float64, windowSize int) int {
	full := windowSize/2 + 1
	nyquist := float64(int(sampleRate) / 2)
	if maxFreq <= 0 || maxFreq >= nyquist {
		return full
	}
	n := int(maxFreq * float64(full) / nyquist)
	return max(1, min(n, full))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// taper returns the symmetric window coefficients of length n.
func taper(n int, windowType WindowFunc) []float64 {
	// The gonum window functions scale the slice in place, so start from ones.
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
	return coeffs
}

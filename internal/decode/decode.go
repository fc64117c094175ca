// SPDX-License-Identifier: MIT

// Package decode turns audio files into in-memory PCM for the visualiser.
// Every supported container is decoded completely, converted to float32 in
// [-1, 1], reduced to at most two channels and resampled to the analysis
// rate.
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnsupportedFormat = errors.New("decode: unsupported format")
	ErrNoAudio           = errors.New("decode: file contains no audio")
)

// Audio is fully decoded PCM, one slice per channel.
type Audio struct {
	Channels   [][]float32 // One (mono) or two (stereo) channels of equal length.
	SampleRate int
}

// Frames returns the number of samples per channel.
func (a *Audio) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Duration returns the playing time at the audio's sample rate.
func (a *Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

// Silence returns seconds of stereo silence at sampleRate.
func Silence(seconds float64, sampleRate int) *Audio {
	n := int(seconds * float64(sampleRate))
	return &Audio{
		Channels:   [][]float32{make([]float32, n), make([]float32, n)},
		SampleRate: sampleRate,
	}
}

// Decoder decodes one container format. The reader is positioned at the
// start of the file.
type Decoder interface {
	Decode(r io.ReadSeeker) (*Audio, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.ReadSeeker) (*Audio, error)

func (f DecoderFunc) Decode(r io.ReadSeeker) (*Audio, error) { return f(r) }

// Registry maps file extensions to decoders.
type Registry struct {
	mtx    sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// DefaultRegistry knows every format this package decodes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(WAV{}, ".wav", ".wave")
	r.Register(AIFF{}, ".aif", ".aiff")
	r.Register(MP3{}, ".mp3")
	r.Register(Vorbis{}, ".ogg", ".oga")
	return r
}

// Register binds d to each extension (with leading dot, any case).
func (r *Registry) Register(d Decoder, exts ...string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, ext := range exts {
		r.codecs[strings.ToLower(ext)] = d
	}
}

// Lookup returns the decoder for path's extension.
func (r *Registry) Lookup(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	d, ok := r.codecs[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return d, nil
}

// Extensions lists the registered extensions.
func (r *Registry) Extensions() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	exts := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		exts = append(exts, ext)
	}
	return exts
}

// Supported reports whether path has a registered extension.
func (r *Registry) Supported(path string) bool {
	_, err := r.Lookup(path)
	return err == nil
}

// Load decodes path and resamples it to sampleRate. Files with more than two
// channels keep the first two.
func (r *Registry) Load(path string, sampleRate int) (*Audio, error) {
	d, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer f.Close()

	a, err := d.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if a.Frames() == 0 {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), ErrNoAudio)
	}
	if len(a.Channels) > 2 {
		a.Channels = a.Channels[:2]
	}
	if a.SampleRate != sampleRate {
		if a, err = Resample(a, sampleRate); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
	}
	return a, nil
}

// deinterleave splits interleaved samples into channels, dropping a
// trailing partial frame.
func deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}

// deinterleaveInts is deinterleave for integer PCM, scaling by scale and
// removing offset first.
func deinterleaveInts(samples []int, channels int, offset, scale float32) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			out[c][i] = (float32(samples[i*channels+c]) - offset) / scale
		}
	}
	return out
}

// fullScale returns the magnitude of the most negative sample of a signed
// bitDepth integer.
func fullScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128.0
	case 16:
		return 32768.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 0
	}
}

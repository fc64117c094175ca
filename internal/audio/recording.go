// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"visualizer/internal/stream"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes analysed audio to a WAV file. It is fed the same
// overlapping windows as the pipeline and writes each sample once, so it
// runs on the analysis goroutine and never in a driver callback.
type Recorder struct {
	path     string
	file     *os.File
	enc      *wav.Encoder
	buf      *goaudio.IntBuffer
	channels int
	scale    float64
	limit    int

	next    uint64 // Global index of the first sample not yet written.
	started bool
	frames  uint64
	closed  bool
}

// RecordingName returns the default file name for a recording started at t.
func RecordingName(t time.Time) string {
	return "recording-" + t.UTC().Format("02-01-2006-150405") + ".wav"
}

// NewRecorder creates path (and its directory) and writes a WAV header for
// integer PCM at bitDepth 16 or 24.
func NewRecorder(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("recording bit depth must be 16 or 24, got %d", bitDepth)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w, got %d", stream.ErrChannels, channels)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	limit := 1<<(bitDepth-1) - 1
	return &Recorder{
		path:     path,
		file:     file,
		enc:      wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		channels: channels,
		scale:    float64(limit),
		limit:    limit,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write appends the part of w not already written. Windows must arrive in
// order; a mono recorder only uses w.Left.
func (r *Recorder) Write(w *stream.Window) error {
	if r.closed {
		return os.ErrClosed
	}
	end := w.Start + uint64(len(w.Left))
	if !r.started {
		r.next = w.Start
		r.started = true
	}
	if end <= r.next {
		return nil
	}

	skip := 0
	if r.next > w.Start {
		skip = int(r.next - w.Start)
	}
	right := w.Right
	if r.channels == 2 && len(right) < len(w.Left) {
		right = w.Left
	}

	n := len(w.Left) - skip
	if cap(r.buf.Data) < n*r.channels {
		r.buf.Data = make([]int, n*r.channels)
	}
	r.buf.Data = r.buf.Data[:n*r.channels]
	for i := range n {
		if r.channels == 1 {
			r.buf.Data[i] = r.quantise(w.Left[skip+i])
			continue
		}
		r.buf.Data[2*i] = r.quantise(w.Left[skip+i])
		r.buf.Data[2*i+1] = r.quantise(right[skip+i])
	}

	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("writing %s: %w", r.path, err)
	}
	r.next = end
	r.frames += uint64(n)
	return nil
}

func (r *Recorder) quantise(v float64) int {
	s := int(v * r.scale)
	return min(max(s, -r.limit), r.limit)
}

// Frames is the number of frames written so far.
func (r *Recorder) Frames() uint64 { return r.frames }

// Path is the output file.
func (r *Recorder) Path() string { return r.path }

// Close finalises the WAV header and closes the file. Calling it again is a
// no-op.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return errors.Join(r.enc.Close(), r.file.Close())
}

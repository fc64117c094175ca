// SPDX-License-Identifier: MIT
package stream

import (
	"fmt"
	"sync/atomic"
)

// Track is a fully decoded buffer played back by an output callback. The
// playback cursor plays the role of "samples written": analysis may only
// read audio that has already been handed to the driver, so what is seen
// stays in step with what is heard.
type Track struct {
	framing  Framing
	channels int
	left     []float32
	right    []float32 // nil for mono tracks
	length   uint64

	played   atomic.Uint64 // Playback cursor, moved only by the output callback.
	cursor   atomic.Uint64 // Analysis read cursor, moved only by the consumer.
	complete atomic.Bool
}

var _ Reader = (*Track)(nil)

// NewTrack wraps decoded channel data. One channel makes a mono track, two
// a stereo track; a shorter channel is zero padded to the longer length.
func NewTrack(chans [][]float32, f Framing) (*Track, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(chans) != 1 && len(chans) != 2 {
		return nil, fmt.Errorf("%w, got %d", ErrChannels, len(chans))
	}

	t := &Track{framing: f, channels: len(chans), left: chans[0]}
	if t.channels == 2 {
		t.right = chans[1]
		switch {
		case len(t.left) < len(t.right):
			t.left = padTo(t.left, len(t.right))
		case len(t.right) < len(t.left):
			t.right = padTo(t.right, len(t.left))
		}
	}
	t.length = uint64(len(t.left))
	if t.length == 0 {
		t.complete.Store(true)
	}
	return t, nil
}

func padTo(s []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, s)
	return out
}

// Fill writes the next chunk of interleaved stereo frames into out for the
// output callback and advances the playback cursor. Past the end of the
// track it writes silence and marks the track complete. Mono tracks are
// played on both speakers. Never blocks, never allocates.
func (t *Track) Fill(out []float32) {
	frames := uint64(len(out) / 2)
	p := t.played.Load()

	for i := range frames {
		idx := p + i
		var l, r float32
		if idx < t.length {
			l = t.left[idx]
			r = l
			if t.right != nil {
				r = t.right[idx]
			}
		}
		out[2*i] = l
		out[2*i+1] = r
	}

	next := p + frames
	if next >= t.length {
		next = t.length
		t.complete.Store(true)
	}
	t.played.Store(next)
}

// Advance moves the playback cursor by frames without producing output.
// It is used when no output device is attached.
func (t *Track) Advance(frames int) {
	if frames <= 0 {
		return
	}
	next := t.played.Load() + uint64(frames)
	if next >= t.length {
		next = t.length
		t.complete.Store(true)
	}
	t.played.Store(next)
}

// Complete reports whether playback has reached the end of the track.
func (t *Track) Complete() bool { return t.complete.Load() }

// Played returns the playback cursor.
func (t *Track) Played() uint64 { return t.played.Load() }

// Length returns the track length in samples per channel.
func (t *Track) Length() int { return int(t.length) }

// Available implements Reader.
func (t *Track) Available() int {
	return t.framing.Windows(t.played.Load(), t.cursor.Load())
}

// ReadWindow implements Reader. For mono tracks only w.Left is filled.
func (t *Track) ReadWindow(w *Window) bool {
	size := t.framing.WindowSize
	cursor := t.cursor.Load()
	if t.played.Load()-cursor < uint64(size) || cursor+uint64(size) > t.length {
		return false
	}

	w.Left = ensure(w.Left, size)
	for i := range size {
		w.Left[i] = float64(t.left[cursor+uint64(i)])
	}
	if t.right != nil {
		w.Right = ensure(w.Right, size)
		for i := range size {
			w.Right[i] = float64(t.right[cursor+uint64(i)])
		}
	}
	w.Start = cursor
	t.cursor.Store(cursor + uint64(t.framing.HopSize))
	return true
}

// Written implements Reader.
func (t *Track) Written() uint64 { return t.played.Load() }

// Cursor implements Reader.
func (t *Track) Cursor() uint64 { return t.cursor.Load() }

// Channels implements Reader.
func (t *Track) Channels() int { return t.channels }

// Framing implements Reader.
func (t *Track) Framing() Framing { return t.framing }

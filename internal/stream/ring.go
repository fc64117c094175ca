// SPDX-License-Identifier: MIT
package stream

import (
	"fmt"
	"sync/atomic"

	"visualizer/pkg/bitint"
)

// Ring stores captured samples per channel in a power-of-two circular
// buffer. The producer may only write into slots the consumer has already
// released, so a window being copied is never overwritten.
type Ring struct {
	framing  Framing
	channels int
	data     [2][]float32
	capacity uint64
	mask     uint64

	written  atomic.Uint64 // Total samples per channel published by the producer.
	cursor   atomic.Uint64 // Read cursor, moved only by the consumer.
	overruns atomic.Uint64 // Writes that did not fit.
	dropped  atomic.Uint64 // Samples per channel discarded by overruns.
}

var _ Reader = (*Ring)(nil)

// NewRing creates a ring holding at least capacity samples per channel.
// The capacity is rounded up to the next power of two.
func NewRing(channels, capacity int, f Framing) (*Ring, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w, got %d", ErrChannels, channels)
	}
	if capacity < 2*f.WindowSize {
		return nil, fmt.Errorf("%w (capacity %d, window %d)", ErrCapacity, capacity, f.WindowSize)
	}

	size := bitint.NextPowerOfTwo(capacity)
	r := &Ring{
		framing:  f,
		channels: channels,
		capacity: uint64(size),
		mask:     bitint.Mask(size),
	}
	for ch := range channels {
		r.data[ch] = make([]float32, size)
	}
	return r, nil
}

// WriteInterleaved appends one driver buffer of interleaved frames. It is
// the capture callback's only job: it never blocks and never allocates.
// Frames that do not fit are dropped and counted as an overrun. Returns the
// number of frames stored.
func (r *Ring) WriteInterleaved(in []float32) int {
	frames := len(in) / r.channels
	n := r.reserve(frames)
	if n == 0 {
		return 0
	}

	w := r.written.Load()
	if r.channels == 1 {
		for i := range n {
			r.data[0][(w+uint64(i))&r.mask] = in[i]
		}
	} else {
		for i := range n {
			idx := (w + uint64(i)) & r.mask
			r.data[0][idx] = in[2*i]
			r.data[1][idx] = in[2*i+1]
		}
	}

	// Publish only after the samples are in place.
	r.written.Store(w + uint64(n))
	return n
}

// Write appends planar samples. right is ignored for mono rings and may be
// nil; for stereo rings a nil right duplicates left. Same non-blocking
// contract as WriteInterleaved.
func (r *Ring) Write(left, right []float32) int {
	if r.channels == 2 && right == nil {
		right = left
	}
	frames := len(left)
	if r.channels == 2 && len(right) < frames {
		frames = len(right)
	}
	n := r.reserve(frames)
	if n == 0 {
		return 0
	}

	w := r.written.Load()
	for i := range n {
		idx := (w + uint64(i)) & r.mask
		r.data[0][idx] = left[i]
		if r.channels == 2 {
			r.data[1][idx] = right[i]
		}
	}
	r.written.Store(w + uint64(n))
	return n
}

// reserve returns how many of frames fit before the producer would reach
// samples the consumer has not released.
func (r *Ring) reserve(frames int) int {
	if frames <= 0 {
		return 0
	}
	used := r.written.Load() - r.cursor.Load()
	free := r.capacity - used
	if uint64(frames) > free {
		r.overruns.Add(1)
		r.dropped.Add(uint64(frames) - free)
		return int(free)
	}
	return frames
}

// Available implements Reader.
func (r *Ring) Available() int {
	return r.framing.Windows(r.written.Load(), r.cursor.Load())
}

// ReadWindow implements Reader. For mono rings only w.Left is filled.
func (r *Ring) ReadWindow(w *Window) bool {
	size := r.framing.WindowSize
	cursor := r.cursor.Load()
	written := r.written.Load()
	if written-cursor < uint64(size) {
		return false
	}

	w.Left = ensure(w.Left, size)
	for i := range size {
		w.Left[i] = float64(r.data[0][(cursor+uint64(i))&r.mask])
	}
	if r.channels == 2 {
		w.Right = ensure(w.Right, size)
		for i := range size {
			w.Right[i] = float64(r.data[1][(cursor+uint64(i))&r.mask])
		}
	}
	w.Start = cursor

	// Releasing the hop lets the producer reuse those slots.
	r.cursor.Store(cursor + uint64(r.framing.HopSize))
	return true
}

// Written implements Reader.
func (r *Ring) Written() uint64 { return r.written.Load() }

// Cursor implements Reader.
func (r *Ring) Cursor() uint64 { return r.cursor.Load() }

// Channels implements Reader.
func (r *Ring) Channels() int { return r.channels }

// Framing implements Reader.
func (r *Ring) Framing() Framing { return r.framing }

// Capacity returns the number of samples per channel the ring can hold.
func (r *Ring) Capacity() int { return int(r.capacity) }

// Overruns returns how many writes were truncated and how many samples per
// channel were discarded in total.
func (r *Ring) Overruns() (writes, samples uint64) {
	return r.overruns.Load(), r.dropped.Load()
}

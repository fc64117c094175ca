// SPDX-License-Identifier: MIT
/*
Package stream holds decoded audio samples between the audio driver and the
analysis loop.

Two storage variants share one read contract:
  - Ring: a fixed-capacity single-producer/single-consumer ring filled by a
    capture callback.
  - Track: a fully decoded buffer whose availability is advanced by a
    playback callback.

Thread Safety:
  - Exactly one producer (the driver callback) and one consumer (the
    analysis loop).
  - The producer never blocks and never allocates; positions are published
    with atomic stores after the samples are in place.
  - The read cursor is only moved by the consumer, in HopSize steps.
*/
package stream

import (
	"errors"
	"fmt"
)

var (
	ErrFraming  = errors.New("stream: hop size must be positive and smaller than window size")
	ErrCapacity = errors.New("stream: capacity must hold at least two windows")
	ErrChannels = errors.New("stream: channel count must be 1 or 2")
)

// Framing is the window/hop geometry shared by every reader.
type Framing struct {
	WindowSize int
	HopSize    int
}

// Validate reports whether the framing produces overlapping windows.
func (f Framing) Validate() error {
	if f.WindowSize <= 0 || f.HopSize <= 0 || f.HopSize >= f.WindowSize {
		return fmt.Errorf("%w (window %d, hop %d)", ErrFraming, f.WindowSize, f.HopSize)
	}
	return nil
}

// Windows returns the number of unread windows for a stream with total
// samples written and the read cursor at cursor:
//
//	max(0, ceil((total - cursor - WindowSize) / HopSize))
func (f Framing) Windows(total, cursor uint64) int {
	if cursor >= total {
		return 0
	}
	samples := int64(total-cursor) - int64(f.WindowSize)
	if samples <= 0 {
		return 0
	}
	hop := int64(f.HopSize)
	return int((samples + hop - 1) / hop)
}

// Window is one analysis frame. The slices are value copies and never alias
// stream storage once filled.
type Window struct {
	Left  []float64
	Right []float64
	Start uint64 // Global index of the first sample.
}

// NewWindow allocates a window of size samples per channel.
func NewWindow(size int) *Window {
	return &Window{
		Left:  make([]float64, size),
		Right: make([]float64, size),
	}
}

// Len returns the number of samples per channel.
func (w *Window) Len() int {
	return len(w.Left)
}

// Reader is the consumer-side contract shared by Ring and Track.
type Reader interface {
	// Available returns the number of windows that can be read without
	// waiting. It never returns a negative count.
	Available() int
	// ReadWindow copies the next window into w and advances the read
	// cursor by HopSize. It returns false, leaving w untouched, when fewer
	// than WindowSize unread samples exist.
	ReadWindow(w *Window) bool
	// Written is the total number of samples per channel made available.
	Written() uint64
	// Cursor is the index of the first unconsumed sample.
	Cursor() uint64
	// Channels is 1 for mono storage, 2 for stereo.
	Channels() int
	// Framing returns the window/hop geometry.
	Framing() Framing
}

// ensure resizes buf to n without reallocating when capacity allows.
func ensure(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

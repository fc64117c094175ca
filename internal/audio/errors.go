// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrUnsupported is returned for operations a source variant cannot
	// perform, such as loading a file into a live microphone.
	ErrUnsupported = errors.New("audio: operation not supported by this source")
	// ErrReleased is returned when a released source is asked to load.
	ErrReleased = errors.New("audio: source released")
)

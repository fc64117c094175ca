// SPDX-License-Identifier: MIT

// Package transport delivers analysed frames to renderers outside the
// process: browsers over WebSocket, lighting or visual rigs over UDP, or the
// log while debugging.
package transport

import "visualizer/internal/analysis"

// Transport receives one frame per analysis tick. Send is called from the
// analysis goroutine and must not block; implementations drop frames rather
// than wait. Implementations should be thread-safe.
type Transport interface {
	Send(frame *analysis.Frame) error
	Close() error
}

// FrameSource is polled by transports that publish on their own schedule.
type FrameSource interface {
	// Latest returns the newest frame, or nil before the first tick.
	Latest() *analysis.Frame
}

// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"

	"visualizer/internal/analysis"
	applog "visualizer/internal/log"
)

// LoggingTransport writes a one-line summary of every Nth frame at debug
// level.
type LoggingTransport struct {
	log   *applog.Logger
	every uint64
	sent  uint64
}

// NewLoggingTransport creates a LoggingTransport reporting every frame when
// every is zero or one.
func NewLoggingTransport(logger *applog.Logger, every uint64) *LoggingTransport {
	if logger == nil {
		logger = applog.Discard()
	}
	lt := &LoggingTransport{log: logger.With("frames"), every: max(every, 1)}
	lt.log.Infof("Using LoggingTransport (every %d frames)", lt.every)
	return lt
}

// Send logs the band levels and meter of the frame.
func (lt *LoggingTransport) Send(frame *analysis.Frame) error {
	lt.sent++
	if frame == nil || lt.sent%lt.every != 0 {
		return nil
	}
	lt.log.Debugf("%s", Summary(frame))
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("Close called after %d frames", lt.sent)
	return nil
}

// Summary renders a frame as "seq=N meter=L/P[zone] bands=l,l,... onset".
func Summary(frame *analysis.Frame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "seq=%d meter=%.2f/%.2f[%s] bands=", frame.Seq, frame.Meter.Level, frame.Meter.Peak, frame.Meter.Zone)
	for i, b := range frame.Bands {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%.2f", b.Level)
	}
	if frame.Onset {
		sb.WriteString(" onset")
	}
	return sb.String()
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)

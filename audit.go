package postAuth

import (
	"io"

	"github.com/MrEthical07/postAuth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant occurrence.
type AuditEvent = audit.Event

// AuditSink consumes audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mainly for tests.
type ChannelSink = audit.ChannelSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event line to w.
func NewJSONWriterSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs events through logger. Failed events log at warn.
func NewZapSink(logger *zap.Logger) AuditSink {
	return audit.NewZapSink(logger)
}

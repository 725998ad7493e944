package acp

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// Writer serializes each OutboundMessage from its channel to compact
// JSON, appends a newline, and writes it to the agent's stdin. A write
// failure is fatal to the writer but not to the session — the reader's
// subsequent EOF drives cleanup, per spec §4.3.
type Writer struct {
	sessionID string
	w         io.Writer
	logger    *zap.Logger
}

// NewWriter builds a Writer over w (typically the agent child's
// stdin).
func NewWriter(sessionID string, w io.Writer, logger *zap.Logger) *Writer {
	return &Writer{sessionID: sessionID, w: w, logger: logger}
}

// Run drains outbound until the channel closes or ctx is canceled.
func (wr *Writer) Run(ctx context.Context, outbound <-chan OutboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-outbound:
			if !ok {
				return
			}
			frame, err := encode(msg)
			if err != nil {
				wr.logger.Error("failed to encode outbound ACP frame",
					zap.String("session_id", wr.sessionID), zap.Error(err))
				continue
			}
			if _, err := wr.w.Write(frame); err != nil {
				wr.logger.Error("failed to write outbound ACP frame, stopping writer",
					zap.String("session_id", wr.sessionID), zap.Error(err))
				return
			}
		}
	}
}

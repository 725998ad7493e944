package acp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Reader drives the codec over a single agent's stdout, producing
// AgentEvents onto a bounded channel.
type Reader struct {
	sessionID string
	framer    *frameReader
	events    chan<- AgentEvent
	logger    *zap.Logger
}

// NewReader builds a Reader over r (typically the agent child's
// stdout), emitting events onto the given bounded channel.
func NewReader(sessionID string, r io.Reader, events chan<- AgentEvent, logger *zap.Logger) *Reader {
	return &Reader{
		sessionID: sessionID,
		framer:    newFrameReader(r),
		events:    events,
		logger:    logger,
	}
}

// Run reads frames until EOF, an I/O error, or ctx is canceled. EOF
// and I/O errors each emit a terminal SessionTerminated event before
// returning; cancellation returns without emitting one.
func (rd *Reader) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rd.framer.readFrame()
		if err != nil {
			var frameErr *FrameError
			if errors.As(err, &frameErr) {
				rd.logger.Debug("discarded oversized ACP frame",
					zap.String("session_id", rd.sessionID), zap.Error(err))
				continue
			}
			if err == io.EOF {
				rd.emit(ctx, SessionTerminated{SessionID: rd.sessionID, Reason: "stream closed"})
				return
			}
			rd.emit(ctx, SessionTerminated{
				SessionID: rd.sessionID,
				Reason:    fmt.Sprintf("stream error: %v", err),
			})
			return
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rd.emit(ctx, StreamActivity{SessionID: rd.sessionID})

		event, perr := decodeEvent(line)
		if perr != nil {
			rd.logger.Debug("failed to parse ACP frame",
				zap.String("session_id", rd.sessionID), zap.Error(perr))
			continue
		}
		if event == nil {
			rd.logger.Debug("discarded unrecognized ACP method",
				zap.String("session_id", rd.sessionID))
			continue
		}
		rd.emit(ctx, event)
	}
}

func (rd *Reader) emit(ctx context.Context, event AgentEvent) {
	select {
	case rd.events <- event:
	case <-ctx.Done():
	}
}

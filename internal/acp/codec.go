// Package acp implements the Agent Control Protocol transport: a
// newline-delimited JSON wire format between the daemon and a
// stream-based agent child process, plus the reader/writer tasks that
// drive it.
//
// Grounded on theRebelliousNerd-codenerd/internal/mcp/transport_stdio.go's
// stdout-scanning idiom for a subprocess JSON-over-stdio transport,
// generalized from an ad-hoc bufio.Scanner loop into a size-capped
// frame reader that discards (rather than fatally errors on) oversized
// frames, per spec §4.3.
package acp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameBytes is the hard per-frame size limit enforced before any
// frame's bytes are handed to the JSON decoder.
const MaxFrameBytes = 1 << 20 // 1 MiB

// FrameError indicates a frame violated the wire format (oversized or
// malformed). The reader logs it and continues; it is never treated as
// a fatal I/O error.
type FrameError struct {
	Message string
}

func (e *FrameError) Error() string { return e.Message }

// frameReader reads newline-delimited frames, discarding any frame
// that exceeds MaxFrameBytes without attempting to decode it.
type frameReader struct {
	br *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{br: bufio.NewReaderSize(r, MaxFrameBytes+1)}
}

// readFrame returns the next line with its trailing newline stripped.
// A *FrameError is returned (non-fatal; caller should continue) when
// the line exceeds MaxFrameBytes. Any other error (including io.EOF)
// is a terminal read error.
func (f *frameReader) readFrame() ([]byte, error) {
	line, err := f.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// No newline within the size cap: drain until one appears (or
		// the stream ends) so the next readFrame call resynchronizes
		// on a real frame boundary, then report the oversized frame.
		for err == bufio.ErrBufferFull {
			_, err = f.br.ReadSlice('\n')
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, &FrameError{Message: "frame exceeds 1 MiB limit"}
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(line))
	copy(out, bytes.TrimRight(line, "\n"))
	return out, nil
}

// OutboundMessage is the protocol-framed shape written to the agent's
// stdin: {"method": "…", "id": …, "params": {…}}. ID is omitted for
// messages that carry no correlation (send_prompt, interrupt).
type OutboundMessage struct {
	Method string `json:"method"`
	ID     string `json:"id,omitempty"`
	Params any    `json:"params,omitempty"`
}

// encode serializes an OutboundMessage to compact JSON with a trailing
// newline, ready to write directly to the agent's stdin.
func encode(msg OutboundMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ACP frame: %w", err)
	}
	return append(data, '\n'), nil
}

type clearanceRequestParams struct {
	RequestID   string  `json:"request_id"`
	SessionID   string  `json:"session_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Diff        *string `json:"diff,omitempty"`
	FilePath    string  `json:"file_path"`
	RiskLevel   string  `json:"risk_level"`
}

type statusUpdateParams struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type promptForwardParams struct {
	SessionID string `json:"session_id"`
	PromptID  string `json:"prompt_id"`
	Text      string `json:"text"`
	Type      string `json:"type"`
}

type heartbeatParams struct {
	SessionID string         `json:"session_id"`
	Progress  []progressWire `json:"progress,omitempty"`
}

type progressWire struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

type inboundFrame struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

package acp

import "github.com/softwaresalt/agent-intercom/internal/models"

// AgentEvent is produced by the reader task onto its bounded output
// channel. Implementations are the fixed inbound-method table from
// spec §4.3 plus the two synthetic events (StreamActivity,
// SessionTerminated) the reader always emits around the wire table.
type AgentEvent interface {
	isAgentEvent()
}

// StreamActivity is emitted before the domain event on every
// successfully parsed line, so the stall detector resets regardless of
// what the line decodes to.
type StreamActivity struct {
	SessionID string
}

func (StreamActivity) isAgentEvent() {}

// ClearanceRequested corresponds to an inbound clearance/request frame.
type ClearanceRequested struct {
	RequestID   string
	SessionID   string
	Title       string
	Description *string
	Diff        *string
	FilePath    string
	RiskLevel   models.RiskLevel
}

func (ClearanceRequested) isAgentEvent() {}

// StatusUpdated corresponds to an inbound status/update frame.
type StatusUpdated struct {
	SessionID string
	Message   string
}

func (StatusUpdated) isAgentEvent() {}

// PromptForwarded corresponds to an inbound prompt/forward frame.
type PromptForwarded struct {
	SessionID string
	PromptID  string
	Text      string
	Type      models.PromptType
}

func (PromptForwarded) isAgentEvent() {}

// HeartbeatReceived corresponds to an inbound heartbeat frame.
type HeartbeatReceived struct {
	SessionID string
	Progress  []models.ProgressItem
}

func (HeartbeatReceived) isAgentEvent() {}

// SessionTerminated is emitted when the reader stops: cleanly on EOF
// ("stream closed") or on an underlying I/O error ("stream error: …").
// It is never emitted on context cancellation.
type SessionTerminated struct {
	SessionID string
	Reason    string
}

func (SessionTerminated) isAgentEvent() {}

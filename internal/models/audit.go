package models

import "time"

// AuditEventType enumerates the kinds of events written to the audit
// log.
type AuditEventType string

const (
	AuditToolCall         AuditEventType = "tool_call"
	AuditApproval         AuditEventType = "approval"
	AuditRejection        AuditEventType = "rejection"
	AuditCommandApproval  AuditEventType = "command_approval"
	AuditCommandRejection AuditEventType = "command_rejection"
	AuditSessionStart     AuditEventType = "session_start"
	AuditSessionTerminate AuditEventType = "session_terminate"
	AuditSessionInterrupt AuditEventType = "session_interrupt"
)

// AuditRecord is a single line of the JSONL audit log.
type AuditRecord struct {
	Timestamp     time.Time      `json:"timestamp"`
	SessionID     *string        `json:"session_id,omitempty"`
	EventType     AuditEventType `json:"event_type"`
	ToolName      *string        `json:"tool_name,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	ResultSummary *string        `json:"result_summary,omitempty"`
	OperatorID    *string        `json:"operator_id,omitempty"`
	Reason        *string        `json:"reason,omitempty"`
	RequestID     *string        `json:"request_id,omitempty"`
	Command       *string        `json:"command,omitempty"`
}

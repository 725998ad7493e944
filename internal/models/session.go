// Package models defines the domain records persisted by the
// orchestration kernel: sessions, approvals, continuation prompts,
// checkpoints, stall alerts, steering messages, task inbox items, the
// workspace policy, and audit records.
//
// Maps to: original_source/src/models/session.rs
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionCreated     SessionStatus = "created"
	SessionActive      SessionStatus = "active"
	SessionPaused      SessionStatus = "paused"
	SessionTerminated  SessionStatus = "terminated"
	SessionInterrupted SessionStatus = "interrupted"
)

// SessionMode selects which transport carries operator interactions
// for a session.
type SessionMode string

const (
	// ModeRemote routes every interaction through the chat platform.
	ModeRemote SessionMode = "remote"
	// ModeLocal routes every interaction through the IPC channel.
	ModeLocal SessionMode = "local"
	// ModeHybrid offers both transports; whichever responds first wins.
	ModeHybrid SessionMode = "hybrid"
)

// ConnectivityStatus reflects whether the agent's driver stream is
// currently attached.
type ConnectivityStatus string

const (
	ConnectivityOnline  ConnectivityStatus = "online"
	ConnectivityOffline ConnectivityStatus = "offline"
	ConnectivityStalled ConnectivityStatus = "stalled"
)

// ProtocolMode selects the Agent Driver variant bound to a session.
type ProtocolMode string

const (
	ProtocolMCP ProtocolMode = "mcp"
	ProtocolACP ProtocolMode = "acp"
)

// Session is a single supervised run of an autonomous coding agent.
//
// OwnerUserID, ProtocolMode, and ThreadTS (once set) are immutable
// after creation; callers must not mutate them directly.
type Session struct {
	ID                 string
	OwnerUserID        string
	WorkspaceRoot      string
	Status             SessionStatus
	Prompt             *string
	Mode               SessionMode
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastTool           *string
	NudgeCount         int64
	StallPaused        bool
	TerminatedAt       *time.Time
	ProgressSnapshot   []ProgressItem
	ProtocolMode       ProtocolMode
	ChannelID          *string
	ThreadTS           *string
	ConnectivityStatus ConnectivityStatus
	LastActivityAt     *time.Time
	RestartOf          *string
}

// NewSession constructs a Created session owned by ownerUserID.
func NewSession(ownerUserID, workspaceRoot string, prompt *string, mode SessionMode) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                 uuid.NewString(),
		OwnerUserID:        ownerUserID,
		WorkspaceRoot:      workspaceRoot,
		Status:             SessionCreated,
		Prompt:             prompt,
		Mode:               mode,
		CreatedAt:          now,
		UpdatedAt:          now,
		NudgeCount:         0,
		StallPaused:        false,
		ProtocolMode:       ProtocolMCP,
		ConnectivityStatus: ConnectivityOnline,
	}
}

// CanTransitionTo reports whether next is a legal successor to s's
// current status. The graph is fixed: {Created, Paused, Interrupted}
// -> Active; Active -> {Paused, Interrupted, Terminated}; Paused ->
// {Terminated, Interrupted}.
func (s *Session) CanTransitionTo(next SessionStatus) bool {
	switch s.Status {
	case SessionCreated, SessionInterrupted:
		return next == SessionActive
	case SessionPaused:
		return next == SessionActive || next == SessionTerminated || next == SessionInterrupted
	case SessionActive:
		return next == SessionPaused || next == SessionInterrupted || next == SessionTerminated
	default:
		return false
	}
}

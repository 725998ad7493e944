package models

import (
	"time"

	"github.com/google/uuid"
)

// StallAlertStatus is the lifecycle state of a StallAlert.
type StallAlertStatus string

const (
	StallPending       StallAlertStatus = "pending"
	StallNudged        StallAlertStatus = "nudged"
	StallSelfRecovered StallAlertStatus = "self_recovered"
	StallEscalated     StallAlertStatus = "escalated"
	StallDismissed     StallAlertStatus = "dismissed"
)

// StallAlert is a watchdog notification triggered by detected agent
// inactivity.
type StallAlert struct {
	ID               string
	SessionID        string
	LastTool         *string
	LastActivityAt   time.Time
	IdleSeconds      int64
	NudgeCount       uint32
	Status           StallAlertStatus
	NudgeMessage     *string
	ProgressSnapshot []ProgressItem
	SlackTS          *string
	CreatedAt        time.Time
}

// NewStallAlert constructs a pending stall alert.
func NewStallAlert(sessionID string, lastTool *string, lastActivityAt time.Time, idleSeconds int64, progress []ProgressItem) *StallAlert {
	return &StallAlert{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		LastTool:         lastTool,
		LastActivityAt:   lastActivityAt,
		IdleSeconds:      idleSeconds,
		NudgeCount:       0,
		Status:           StallPending,
		ProgressSnapshot: progress,
		CreatedAt:        time.Now().UTC(),
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SteeringSource identifies which transport originated a
// SteeringMessage or TaskInboxItem.
type SteeringSource string

const (
	SourceChat SteeringSource = "chat"
	SourceIPC  SteeringSource = "ipc"
)

// SteeringMessage is a mid-session operator directive targeted at a
// specific session, delivered to the agent on its next liveness ping.
type SteeringMessage struct {
	ID        string
	SessionID string
	Source    SteeringSource
	Text      string
	Consumed  bool
	CreatedAt time.Time
}

// NewSteeringMessage constructs an unconsumed steering message.
func NewSteeringMessage(sessionID string, source SteeringSource, text string) *SteeringMessage {
	return &SteeringMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Source:    source,
		Text:      text,
		Consumed:  false,
		CreatedAt: time.Now().UTC(),
	}
}

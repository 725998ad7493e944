package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskInboxItem is a work item queued when no session is running,
// delivered to the agent at next cold start. It is not owned by any
// Session and is not purged transitively on session retention.
type TaskInboxItem struct {
	ID        string
	ChannelID *string
	Source    SteeringSource
	Text      string
	Consumed  bool
	CreatedAt time.Time
}

// NewTaskInboxItem constructs an unconsumed task inbox item.
func NewTaskInboxItem(channelID *string, source SteeringSource, text string) *TaskInboxItem {
	return &TaskInboxItem{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Source:    source,
		Text:      text,
		Consumed:  false,
		CreatedAt: time.Now().UTC(),
	}
}

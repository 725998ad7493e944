package models

import (
	"strings"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
)

// ProgressStatus is the state of a single ProgressItem.
type ProgressStatus string

const (
	ProgressDone       ProgressStatus = "done"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressPending    ProgressStatus = "pending"
)

// ProgressItem is one entry in an agent-reported progress snapshot.
type ProgressItem struct {
	Label  string
	Status ProgressStatus
}

// ValidateSnapshot rejects a progress snapshot containing an item with
// a blank label.
func ValidateSnapshot(items []ProgressItem) error {
	for _, item := range items {
		if strings.TrimSpace(item.Label) == "" {
			return ierrors.Config("progress item label must not be empty")
		}
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a named snapshot of a session's state and workspace
// file hashes, used to compute a divergence report on restore.
type Checkpoint struct {
	ID               string
	SessionID        string
	Label            *string
	SessionState     map[string]any
	FileHashes       map[string]string
	WorkspaceRoot    string
	ProgressSnapshot []ProgressItem
	CreatedAt        time.Time
}

// NewCheckpoint constructs a new checkpoint record.
func NewCheckpoint(sessionID string, label *string, sessionState map[string]any, fileHashes map[string]string, workspaceRoot string, progress []ProgressItem) *Checkpoint {
	return &Checkpoint{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Label:            label,
		SessionState:     sessionState,
		FileHashes:       fileHashes,
		WorkspaceRoot:    workspaceRoot,
		ProgressSnapshot: progress,
		CreatedAt:        time.Now().UTC(),
	}
}

// DivergenceKind classifies how a workspace file changed relative to
// a checkpoint's recorded hash.
type DivergenceKind string

const (
	DivergenceModified DivergenceKind = "modified"
	DivergenceDeleted  DivergenceKind = "deleted"
	DivergenceAdded    DivergenceKind = "added"
)

// Divergence reports a single file's change relative to a checkpoint.
type Divergence struct {
	Path string
	Kind DivergenceKind
}

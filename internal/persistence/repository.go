// Package persistence defines the repository contracts backing every
// durable domain record. The concrete backends live in the
// persistence/memory and persistence/pg subpackages.
//
// Grounded on: spec.md §4.8 (create/get_by_id/list_active/
// status-update/targeted-query shape) and
// mfateev-temporal-agent-harness's repository-free design — the
// teacher persists nothing itself (Temporal owns durability), so this
// contract is modeled directly from the spec rather than adapted from
// a teacher file.
package persistence

import (
	"context"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// Sessions is the repository contract for Session records.
type Sessions interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListActive(ctx context.Context) ([]*models.Session, error)
	ListPaused(ctx context.Context) ([]*models.Session, error)
	ListInterrupted(ctx context.Context) ([]*models.Session, error)
	FindActiveByChannel(ctx context.Context, channelID string) (*models.Session, error)
	UpdateStatus(ctx context.Context, id string, next models.SessionStatus) error
	Update(ctx context.Context, s *models.Session) error
	CountActive(ctx context.Context) (int, error)
}

// Approvals is the repository contract for ApprovalRequest records.
type Approvals interface {
	Create(ctx context.Context, a *models.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	ListPending(ctx context.Context) ([]*models.ApprovalRequest, error)
	GetPendingForSession(ctx context.Context, sessionID string) ([]*models.ApprovalRequest, error)
	UpdateStatus(ctx context.Context, id string, next models.ApprovalStatus) error
	Consume(ctx context.Context, id string) error
}

// Prompts is the repository contract for ContinuationPrompt records.
type Prompts interface {
	Create(ctx context.Context, p *models.ContinuationPrompt) error
	GetByID(ctx context.Context, id string) (*models.ContinuationPrompt, error)
	ListPending(ctx context.Context) ([]*models.ContinuationPrompt, error)
	GetPendingForSession(ctx context.Context, sessionID string) ([]*models.ContinuationPrompt, error)
	Resolve(ctx context.Context, id string, decision models.PromptDecision, instruction *string) error
}

// Checkpoints is the repository contract for Checkpoint records.
type Checkpoints interface {
	Create(ctx context.Context, c *models.Checkpoint) error
	GetByID(ctx context.Context, id string) (*models.Checkpoint, error)
	GetMostRecentForSession(ctx context.Context, sessionID string) (*models.Checkpoint, error)
}

// StallAlerts is the repository contract for StallAlert records.
type StallAlerts interface {
	Create(ctx context.Context, a *models.StallAlert) error
	GetByID(ctx context.Context, id string) (*models.StallAlert, error)
	GetActiveForSession(ctx context.Context, sessionID string) (*models.StallAlert, error)
	UpdateStatus(ctx context.Context, id string, next models.StallAlertStatus) error
	IncrementNudgeCount(ctx context.Context, id string) error
}

// Steering is the repository contract for SteeringMessage records.
type Steering interface {
	Create(ctx context.Context, m *models.SteeringMessage) error
	GetUnconsumedForSession(ctx context.Context, sessionID string) ([]*models.SteeringMessage, error)
	MarkConsumed(ctx context.Context, id string) error
}

// Inbox is the repository contract for TaskInboxItem records, which
// are not owned by any session.
type Inbox interface {
	Create(ctx context.Context, item *models.TaskInboxItem) error
	GetUnconsumed(ctx context.Context, channelID *string) ([]*models.TaskInboxItem, error)
	MarkConsumed(ctx context.Context, id string) error
}

// Store aggregates every repository the daemon needs, plus schema
// application and an Interrupted-record scan used by crash recovery.
type Store interface {
	Sessions() Sessions
	Approvals() Approvals
	Prompts() Prompts
	Checkpoints() Checkpoints
	StallAlerts() StallAlerts
	Steering() Steering
	Inbox() Inbox

	// ApplySchema (re-)applies the store's schema convergently; safe
	// to call on every startup.
	ApplySchema(ctx context.Context) error
	Close(ctx context.Context) error
}

// Package recovery implements Crash Recovery (spec 4.9): the startup
// scan for interrupted sessions, the best-effort shutdown markdown of
// in-flight records, and the recover_state tool's reconstruction of a
// session's pending state.
//
// Grounded on: original_source/src/mcp/tools/recover_state.rs for the
// recovered-response shape (pending_requests/last_checkpoint/
// progress_snapshot) and spec 4.9's exact startup/shutdown ordering,
// which had no direct original_source file in the retrieval pack (the
// startup-scan/shutdown-mark orchestration lives in the original's
// main.rs, not included) — this package's Startup/Shutdown are an
// original synthesis from the spec text, reusing the same repository
// methods recover_state.rs calls.
package recovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// PendingRequest is one outstanding approval or prompt surfaced by a
// recovery scan.
type PendingRequest struct {
	RequestID string
	Kind      string // "approval" or "prompt"
	Title     string
	CreatedAt time.Time
}

// CheckpointSummary is the abbreviated checkpoint info surfaced by a
// recovery scan.
type CheckpointSummary struct {
	CheckpointID string
	Label        *string
	CreatedAt    time.Time
}

// Result is the recover_state tool's response shape.
type Result struct {
	Status           string // "clean" or "recovered"
	SessionID        string
	PendingRequests  []PendingRequest
	LastCheckpoint   *CheckpointSummary
	ProgressSnapshot []models.ProgressItem
}

// Manager performs crash-recovery scans and shutdown bookkeeping.
type Manager struct {
	store  persistence.Store
	logger *zap.Logger
}

// New builds a recovery Manager.
func New(store persistence.Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Startup scans for sessions in Interrupted status and returns each as
// a recovery candidate, in the same shape RecoverState would build for
// it.
func (m *Manager) Startup(ctx context.Context) ([]Result, error) {
	interrupted, err := m.store.Sessions().ListInterrupted(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(interrupted))
	for _, sess := range interrupted {
		result, err := m.buildRecoveredResult(ctx, sess)
		if err != nil {
			m.logger.Warn("failed to build recovery candidate", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	m.logger.Info("startup recovery scan complete", zap.Int("candidate_count", len(results)))
	return results, nil
}

// Shutdown marks every in-flight record for orderly best-effort
// recovery on the next startup: pending approvals become Interrupted,
// pending prompts are resolved with a Stop decision and reason, and
// every Active or Paused session becomes Interrupted. A violent
// termination that skips this step is still recoverable — Startup
// treats records left in their in-flight state the same way.
func (m *Manager) Shutdown(ctx context.Context, reason string) error {
	approvals, err := m.store.Approvals().ListPending(ctx)
	if err != nil {
		return err
	}
	for _, approval := range approvals {
		if err := m.store.Approvals().UpdateStatus(ctx, approval.ID, models.ApprovalInterrupted); err != nil {
			m.logger.Warn("failed to mark approval interrupted on shutdown",
				zap.String("approval_id", approval.ID), zap.Error(err))
		}
	}

	prompts, err := m.store.Prompts().ListPending(ctx)
	if err != nil {
		return err
	}
	stopReason := reason
	for _, prompt := range prompts {
		decision := models.DecisionStop
		if err := m.store.Prompts().Resolve(ctx, prompt.ID, decision, &stopReason); err != nil {
			m.logger.Warn("failed to resolve prompt with stop decision on shutdown",
				zap.String("prompt_id", prompt.ID), zap.Error(err))
		}
	}

	active, err := m.store.Sessions().ListActive(ctx)
	if err != nil {
		return err
	}
	paused, err := m.store.Sessions().ListPaused(ctx)
	if err != nil {
		return err
	}
	inFlight := append(active, paused...)
	for _, sess := range inFlight {
		if err := m.store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionInterrupted); err != nil {
			m.logger.Warn("failed to mark session interrupted on shutdown",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	m.logger.Info("shutdown recovery markdown complete",
		zap.Int("approvals", len(approvals)), zap.Int("prompts", len(prompts)), zap.Int("sessions", len(inFlight)))
	return nil
}

// RecoverState implements the recover_state tool: when sessionID is
// supplied it resolves that specific session, otherwise the most
// recently interrupted session. Returns {status: "clean"} when there
// is nothing to recover.
func (m *Manager) RecoverState(ctx context.Context, sessionID *string) (Result, error) {
	var sess *models.Session
	var err error

	if sessionID != nil {
		sess, err = m.store.Sessions().GetByID(ctx, *sessionID)
		if err != nil {
			return Result{}, err
		}
	} else {
		sess, err = m.mostRecentInterrupted(ctx)
		if err != nil {
			return Result{}, err
		}
	}
	if sess == nil {
		return Result{Status: "clean"}, nil
	}

	return m.buildRecoveredResult(ctx, sess)
}

// mostRecentInterrupted returns the most recently updated Interrupted
// session, or nil if none exists.
func (m *Manager) mostRecentInterrupted(ctx context.Context) (*models.Session, error) {
	interrupted, err := m.store.Sessions().ListInterrupted(ctx)
	if err != nil {
		return nil, err
	}
	if len(interrupted) == 0 {
		return nil, nil
	}
	most := interrupted[0]
	for _, sess := range interrupted[1:] {
		if sess.UpdatedAt.After(most.UpdatedAt) {
			most = sess
		}
	}
	return most, nil
}

func (m *Manager) buildRecoveredResult(ctx context.Context, sess *models.Session) (Result, error) {
	var pending []PendingRequest

	approvals, err := m.store.Approvals().GetPendingForSession(ctx, sess.ID)
	if err != nil {
		return Result{}, err
	}
	for _, a := range approvals {
		pending = append(pending, PendingRequest{RequestID: a.ID, Kind: "approval", Title: a.Title, CreatedAt: a.CreatedAt})
	}

	prompts, err := m.store.Prompts().GetPendingForSession(ctx, sess.ID)
	if err != nil {
		return Result{}, err
	}
	for _, p := range prompts {
		pending = append(pending, PendingRequest{RequestID: p.ID, Kind: "prompt", Title: p.PromptText, CreatedAt: p.CreatedAt})
	}

	var lastCheckpoint *CheckpointSummary
	if cp, err := m.store.Checkpoints().GetMostRecentForSession(ctx, sess.ID); err == nil && cp != nil {
		lastCheckpoint = &CheckpointSummary{CheckpointID: cp.ID, Label: cp.Label, CreatedAt: cp.CreatedAt}
	}

	return Result{
		Status:           "recovered",
		SessionID:        sess.ID,
		PendingRequests:  pending,
		LastCheckpoint:   lastCheckpoint,
		ProgressSnapshot: sess.ProgressSnapshot,
	}, nil
}

package memory

import (
	"context"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type stallEntry struct {
	alert *models.StallAlert
}

type stallAlertRepo struct {
	mu    sync.RWMutex
	items map[string]*stallEntry
}

func (r *stallAlertRepo) Create(ctx context.Context, a *models.StallAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = &stallEntry{alert: a}
	return nil
}

func (r *stallAlertRepo) GetByID(ctx context.Context, id string) (*models.StallAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return nil, ierrors.NotFound("stall_alert", id)
	}
	return e.alert, nil
}

func (r *stallAlertRepo) GetActiveForSession(ctx context.Context, sessionID string) (*models.StallAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.items {
		if e.alert.SessionID != sessionID {
			continue
		}
		switch e.alert.Status {
		case models.StallPending, models.StallNudged:
			return e.alert, nil
		}
	}
	return nil, ierrors.NotFound("stall_alert", "active for session "+sessionID)
}

func (r *stallAlertRepo) UpdateStatus(ctx context.Context, id string, next models.StallAlertStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("stall_alert", id)
	}
	e.alert.Status = next
	return nil
}

func (r *stallAlertRepo) IncrementNudgeCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("stall_alert", id)
	}
	e.alert.NudgeCount++
	return nil
}

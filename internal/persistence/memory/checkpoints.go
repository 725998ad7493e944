package memory

import (
	"context"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type checkpointEntry struct {
	checkpoint *models.Checkpoint
}

type checkpointRepo struct {
	mu    sync.RWMutex
	items map[string]*checkpointEntry
}

func (r *checkpointRepo) Create(ctx context.Context, c *models.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.ID] = &checkpointEntry{checkpoint: c}
	return nil
}

func (r *checkpointRepo) GetByID(ctx context.Context, id string) (*models.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return nil, ierrors.NotFound("checkpoint", id)
	}
	return e.checkpoint, nil
}

func (r *checkpointRepo) GetMostRecentForSession(ctx context.Context, sessionID string) (*models.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *models.Checkpoint
	for _, e := range r.items {
		if e.checkpoint.SessionID != sessionID {
			continue
		}
		if newest == nil || e.checkpoint.CreatedAt.After(newest.CreatedAt) {
			newest = e.checkpoint
		}
	}
	if newest == nil {
		return nil, ierrors.NotFound("checkpoint", "for session "+sessionID)
	}
	return newest, nil
}

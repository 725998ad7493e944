package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type approvalEntry struct {
	approval *models.ApprovalRequest
}

type approvalRepo struct {
	mu    sync.RWMutex
	items map[string]*approvalEntry
}

func (r *approvalRepo) Create(ctx context.Context, a *models.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = &approvalEntry{approval: a}
	return nil
}

func (r *approvalRepo) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return nil, ierrors.NotFound("approval", id)
	}
	return e.approval, nil
}

func (r *approvalRepo) ListPending(ctx context.Context) ([]*models.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ApprovalRequest
	for _, e := range r.items {
		if e.approval.Status == models.ApprovalPending {
			out = append(out, e.approval)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *approvalRepo) GetPendingForSession(ctx context.Context, sessionID string) ([]*models.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ApprovalRequest
	for _, e := range r.items {
		if e.approval.SessionID == sessionID && e.approval.Status == models.ApprovalPending {
			out = append(out, e.approval)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *approvalRepo) UpdateStatus(ctx context.Context, id string, next models.ApprovalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("approval", id)
	}
	e.approval.Status = next
	return nil
}

func (r *approvalRepo) Consume(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("approval", id)
	}
	if e.approval.Status != models.ApprovalApproved {
		return ierrors.AlreadyConsumed("approval", id)
	}
	now := time.Now().UTC()
	e.approval.Status = models.ApprovalConsumed
	e.approval.ConsumedAt = &now
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type promptEntry struct {
	prompt *models.ContinuationPrompt
}

type promptRepo struct {
	mu    sync.RWMutex
	items map[string]*promptEntry
}

func (r *promptRepo) Create(ctx context.Context, p *models.ContinuationPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = &promptEntry{prompt: p}
	return nil
}

func (r *promptRepo) GetByID(ctx context.Context, id string) (*models.ContinuationPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return nil, ierrors.NotFound("prompt", id)
	}
	return e.prompt, nil
}

func (r *promptRepo) ListPending(ctx context.Context) ([]*models.ContinuationPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ContinuationPrompt
	for _, e := range r.items {
		if e.prompt.Decision == nil {
			out = append(out, e.prompt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *promptRepo) GetPendingForSession(ctx context.Context, sessionID string) ([]*models.ContinuationPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ContinuationPrompt
	for _, e := range r.items {
		if e.prompt.SessionID == sessionID && e.prompt.Decision == nil {
			out = append(out, e.prompt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *promptRepo) Resolve(ctx context.Context, id string, decision models.PromptDecision, instruction *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("prompt", id)
	}
	if decision == models.DecisionRefine && (instruction == nil || *instruction == "") {
		return ierrors.Protocol("refine decision requires instruction text")
	}
	d := decision
	e.prompt.Decision = &d
	e.prompt.Instruction = instruction
	return nil
}

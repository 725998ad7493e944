package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type sessionEntry struct {
	session *models.Session
}

type sessionRepo struct {
	mu    sync.RWMutex
	items map[string]*sessionEntry
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID] = &sessionEntry{session: s}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return nil, ierrors.NotFound("session", id)
	}
	return e.session, nil
}

func (r *sessionRepo) ListActive(ctx context.Context) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Session
	for _, e := range r.items {
		if e.session.Status == models.SessionActive {
			out = append(out, e.session)
		}
	}
	sortSessionsByCreatedAt(out)
	return out, nil
}

func (r *sessionRepo) ListPaused(ctx context.Context) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Session
	for _, e := range r.items {
		if e.session.Status == models.SessionPaused {
			out = append(out, e.session)
		}
	}
	sortSessionsByCreatedAt(out)
	return out, nil
}

func (r *sessionRepo) ListInterrupted(ctx context.Context) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Session
	for _, e := range r.items {
		if e.session.Status == models.SessionInterrupted {
			out = append(out, e.session)
		}
	}
	sortSessionsByCreatedAt(out)
	return out, nil
}

func (r *sessionRepo) FindActiveByChannel(ctx context.Context, channelID string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.items {
		if e.session.Status == models.SessionActive && e.session.ChannelID != nil && *e.session.ChannelID == channelID {
			return e.session, nil
		}
	}
	return nil, ierrors.NotFound("session", "for channel "+channelID)
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, next models.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("session", id)
	}
	if !e.session.CanTransitionTo(next) {
		return ierrors.Protocol("illegal session transition %s -> %s", e.session.Status, next)
	}
	e.session.Status = next
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return ierrors.NotFound("session", s.ID)
	}
	r.items[s.ID] = &sessionEntry{session: s}
	return nil
}

func (r *sessionRepo) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.items {
		if e.session.Status == models.SessionActive {
			n++
		}
	}
	return n, nil
}

func sortSessionsByCreatedAt(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type steeringEntry struct {
	message *models.SteeringMessage
}

type steeringRepo struct {
	mu    sync.RWMutex
	items map[string]*steeringEntry
}

func (r *steeringRepo) Create(ctx context.Context, m *models.SteeringMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = &steeringEntry{message: m}
	return nil
}

// GetUnconsumedForSession returns unconsumed steering messages for a
// session in strict FIFO order by creation timestamp, per spec §5's
// per-session ordering guarantee.
func (r *steeringRepo) GetUnconsumedForSession(ctx context.Context, sessionID string) ([]*models.SteeringMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.SteeringMessage
	for _, e := range r.items {
		if e.message.SessionID == sessionID && !e.message.Consumed {
			out = append(out, e.message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *steeringRepo) MarkConsumed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("steering_message", id)
	}
	e.message.Consumed = true
	return nil
}

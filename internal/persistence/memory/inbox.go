package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type inboxEntry struct {
	item *models.TaskInboxItem
}

type inboxRepo struct {
	mu    sync.RWMutex
	items map[string]*inboxEntry
}

func (r *inboxRepo) Create(ctx context.Context, item *models.TaskInboxItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = &inboxEntry{item: item}
	return nil
}

// GetUnconsumed returns unconsumed inbox items, optionally filtered to
// a channel, in FIFO order. A nil channelID returns every unconsumed
// item regardless of channel scope.
func (r *inboxRepo) GetUnconsumed(ctx context.Context, channelID *string) ([]*models.TaskInboxItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.TaskInboxItem
	for _, e := range r.items {
		if e.item.Consumed {
			continue
		}
		if channelID != nil {
			if e.item.ChannelID == nil || *e.item.ChannelID != *channelID {
				continue
			}
		}
		out = append(out, e.item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *inboxRepo) MarkConsumed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return ierrors.NotFound("inbox_item", id)
	}
	e.item.Consumed = true
	return nil
}

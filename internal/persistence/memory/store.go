// Package memory implements persistence.Store entirely in process
// memory, for tests and for single-node deployments that accept
// losing history across restarts (crash recovery still works within
// a process's own lifetime via the in-memory Interrupted scan).
//
// Grounded on: itsneelabh-gomind/orchestration/hitl_command_store.go's
// RWMutex-guarded map discipline (read-heavy access serialized by a
// single mutex per collection, brief critical sections per spec §5's
// "Shared state" lock rules).
package memory

import (
	"context"

	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// Store is the in-memory persistence.Store implementation.
type Store struct {
	sessions    *sessionRepo
	approvals   *approvalRepo
	prompts     *promptRepo
	checkpoints *checkpointRepo
	stallAlerts *stallAlertRepo
	steering    *steeringRepo
	inbox       *inboxRepo
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		sessions:    &sessionRepo{items: make(map[string]*sessionEntry)},
		approvals:   &approvalRepo{items: make(map[string]*approvalEntry)},
		prompts:     &promptRepo{items: make(map[string]*promptEntry)},
		checkpoints: &checkpointRepo{items: make(map[string]*checkpointEntry)},
		stallAlerts: &stallAlertRepo{items: make(map[string]*stallEntry)},
		steering:    &steeringRepo{items: make(map[string]*steeringEntry)},
		inbox:       &inboxRepo{items: make(map[string]*inboxEntry)},
	}
}

func (s *Store) Sessions() persistence.Sessions       { return s.sessions }
func (s *Store) Approvals() persistence.Approvals     { return s.approvals }
func (s *Store) Prompts() persistence.Prompts         { return s.prompts }
func (s *Store) Checkpoints() persistence.Checkpoints { return s.checkpoints }
func (s *Store) StallAlerts() persistence.StallAlerts { return s.stallAlerts }
func (s *Store) Steering() persistence.Steering       { return s.steering }
func (s *Store) Inbox() persistence.Inbox             { return s.inbox }

// ApplySchema is a no-op: the in-memory store has no schema to apply.
func (s *Store) ApplySchema(ctx context.Context) error { return nil }

// Close releases the store's collections.
func (s *Store) Close(ctx context.Context) error { return nil }

var _ persistence.Store = (*Store)(nil)

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
)

type recordingNotifier struct {
	mu       sync.Mutex
	sessions []string
}

func (r *recordingNotifier) NotifySessionExited(_ context.Context, sess *models.Session, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, sess.ID)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func newTestManager(t *testing.T, hostCLI string, args []string, notifier ExitNotifier) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	if notifier == nil {
		notifier = NoopExitNotifier{}
	}
	m := New(store, notifier, zap.NewNop(), hostCLI, args, 1, []string{"u1"})
	return m, store
}

func TestManager_Spawn_RejectsUnauthorizedUser(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, "/bin/sh", []string{"-c", "sleep 1"}, nil)

	_, err := m.Spawn(ctx, "intruder", t.TempDir(), nil, models.ModeLocal, "http://localhost:3000/mcp")
	require.Error(t, err)
}

func TestManager_Spawn_RejectsOverConcurrencyLimit(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, "/bin/sh", []string{"-c", "sleep 1"}, nil)

	existing := models.NewSession("u1", t.TempDir(), nil, models.ModeLocal)
	existing.Status = models.SessionActive
	require.NoError(t, store.Sessions().Create(ctx, existing))

	_, err := m.Spawn(ctx, "u1", t.TempDir(), nil, models.ModeLocal, "http://localhost:3000/mcp")
	require.Error(t, err)
}

func TestManager_Spawn_ActivatesSession(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, "/bin/sh", []string{"-c", "sleep 2"}, nil)

	sess, err := m.Spawn(ctx, "u1", t.TempDir(), nil, models.ModeLocal, "http://localhost:3000/mcp")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, sess.Status)

	stored, err := store.Sessions().GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)

	_, err = m.Terminate(ctx, sess.ID, "u1")
	require.NoError(t, err)
}

func TestManager_RunMonitor_MarksTerminatedOnChildExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{}
	m, store := newTestManager(t, "/bin/sh", []string{"-c", "exit 0"}, notifier)
	m.children = make(map[string]*trackedChild)

	sess, err := m.Spawn(ctx, "u1", t.TempDir(), nil, models.ModeLocal, "http://localhost:3000/mcp")
	require.NoError(t, err)

	monitorCtx, monitorCancel := context.WithCancel(ctx)
	defer monitorCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				m.pollChildren(monitorCtx)
			}
		}
	}()

	require.Eventually(t, func() bool {
		stored, err := store.Sessions().GetByID(ctx, sess.ID)
		return err == nil && stored.Status == models.SessionTerminated
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestManager_Pause_Resume_OwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, "/bin/sh", nil, nil)

	sess := models.NewSession("u1", t.TempDir(), nil, models.ModeLocal)
	sess.Status = models.SessionActive
	require.NoError(t, store.Sessions().Create(ctx, sess))

	_, err := m.Pause(ctx, sess.ID, "someone-else")
	require.Error(t, err)

	paused, err := m.Pause(ctx, sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, paused.Status)

	resumed, err := m.Resume(ctx, sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, resumed.Status)
}

func TestManager_Pause_EmptyOwnerBypassesOwnershipCheck(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, "/bin/sh", nil, nil)

	sess := models.NewSession("", t.TempDir(), nil, models.ModeLocal)
	sess.Status = models.SessionActive
	require.NoError(t, store.Sessions().Create(ctx, sess))

	_, err := m.Pause(ctx, sess.ID, "anyone")
	require.NoError(t, err)
}

func TestManager_Terminate_ForceKillsAfterGracePeriod(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, "/bin/sh", []string{"-c", "trap '' TERM INT; sleep 30"}, nil)

	sess, err := m.Spawn(ctx, "u1", t.TempDir(), nil, models.ModeLocal, "http://localhost:3000/mcp")
	require.NoError(t, err)

	start := time.Now()
	terminated, err := m.Terminate(ctx, sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionTerminated, terminated.Status)
	assert.GreaterOrEqual(t, time.Since(start), terminateGrace)

	stored, err := store.Sessions().GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionTerminated, stored.Status)
}

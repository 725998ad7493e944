package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
)

func TestManager_RecoverState_CleanWhenNoInterruptedSession(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := New(store, zap.NewNop())

	result, err := m.RecoverState(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "clean", result.Status)
}

func TestManager_RecoverState_CollectsPendingRequests(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := New(store, zap.NewNop())

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	sess.Status = models.SessionInterrupted
	require.NoError(t, store.Sessions().Create(ctx, sess))

	approval := models.NewApprovalRequest(sess.ID, "apply diff", nil, "+1", "a.go", models.RiskLow, "hash")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	prompt := models.NewContinuationPrompt(sess.ID, "continue?", models.PromptContinuation, nil, nil)
	require.NoError(t, store.Prompts().Create(ctx, prompt))

	result, err := m.RecoverState(ctx, &sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Status)
	assert.Equal(t, sess.ID, result.SessionID)
	require.Len(t, result.PendingRequests, 2)
}

func TestManager_Startup_ScansInterruptedSessions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := New(store, zap.NewNop())

	active := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	active.Status = models.SessionActive
	require.NoError(t, store.Sessions().Create(ctx, active))

	interrupted := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	interrupted.Status = models.SessionInterrupted
	require.NoError(t, store.Sessions().Create(ctx, interrupted))

	results, err := m.Startup(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, interrupted.ID, results[0].SessionID)
}

func TestManager_Shutdown_MarksApprovalsPromptsAndSessions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := New(store, zap.NewNop())

	sessActive := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	sessActive.Status = models.SessionActive
	require.NoError(t, store.Sessions().Create(ctx, sessActive))

	sessPaused := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	sessPaused.Status = models.SessionPaused
	require.NoError(t, store.Sessions().Create(ctx, sessPaused))

	approval := models.NewApprovalRequest(sessActive.ID, "apply diff", nil, "+1", "a.go", models.RiskLow, "hash")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	prompt := models.NewContinuationPrompt(sessActive.ID, "continue?", models.PromptContinuation, nil, nil)
	require.NoError(t, store.Prompts().Create(ctx, prompt))

	require.NoError(t, m.Shutdown(ctx, "daemon shutting down"))

	storedApproval, err := store.Approvals().GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalInterrupted, storedApproval.Status)

	storedPrompt, err := store.Prompts().GetByID(ctx, prompt.ID)
	require.NoError(t, err)
	require.NotNil(t, storedPrompt.Decision)
	assert.Equal(t, models.DecisionStop, *storedPrompt.Decision)
	require.NotNil(t, storedPrompt.Instruction)
	assert.Equal(t, "daemon shutting down", *storedPrompt.Instruction)

	storedActive, err := store.Sessions().GetByID(ctx, sessActive.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInterrupted, storedActive.Status)

	storedPaused, err := store.Sessions().GetByID(ctx, sessPaused.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInterrupted, storedPaused.Status)
}

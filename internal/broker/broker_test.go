package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
)

func newTestBroker(t *testing.T, timeouts config.TimeoutsConfig) (*Broker, *memory.Store) {
	t.Helper()
	store := memory.New()
	b := New(store, NoopNotifier{}, timeouts, zap.NewNop())
	return b, store
}

func TestBroker_RequestApproval_ResolvedApproved(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 5})

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	approval := models.NewApprovalRequest(sess.ID, "apply diff", nil, "+1 line", "a.go", models.RiskLow, "hash1")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	done := make(chan *ApprovalOutcome, 1)
	go func() {
		outcome, err := b.RequestApproval(ctx, approval)
		require.NoError(t, err)
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.ResolveApproval(ctx, approval.ID, true, nil))

	outcome := <-done
	assert.Equal(t, models.ApprovalApproved, outcome.Status)

	got, err := store.Approvals().GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, got.Status)
}

func TestBroker_RequestApproval_TimesOutToExpired(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 0, PromptSeconds: 5, WaitSeconds: 5})
	b.approvalTimeout = 10 * time.Millisecond

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	approval := models.NewApprovalRequest(sess.ID, "apply diff", nil, "+1 line", "a.go", models.RiskLow, "hash1")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	outcome, err := b.RequestApproval(ctx, approval)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalExpired, outcome.Status)

	got, err := store.Approvals().GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalExpired, got.Status)
}

func TestBroker_RequestPrompt_TimesOutToContinue(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 0, WaitSeconds: 5})
	b.promptTimeout = 10 * time.Millisecond

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	prompt := models.NewContinuationPrompt(sess.ID, "still working?", models.PromptContinuation, nil, nil)
	require.NoError(t, store.Prompts().Create(ctx, prompt))

	outcome, err := b.RequestPrompt(ctx, prompt)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionContinue, outcome.Decision)
}

func TestBroker_RequestPrompt_ResolvedRefine(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 5})

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	prompt := models.NewContinuationPrompt(sess.ID, "still working?", models.PromptContinuation, nil, nil)
	require.NoError(t, store.Prompts().Create(ctx, prompt))

	done := make(chan *PromptOutcome, 1)
	go func() {
		outcome, err := b.RequestPrompt(ctx, prompt)
		require.NoError(t, err)
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	instruction := "focus on the auth module"
	require.NoError(t, b.ResolvePrompt(ctx, prompt.ID, models.DecisionRefine, &instruction))

	outcome := <-done
	assert.Equal(t, models.DecisionRefine, outcome.Decision)
	assert.Equal(t, instruction, *outcome.Instruction)
}

func TestBroker_RequestWait_IndefiniteUntilResolved(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 0})

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))

	done := make(chan *WaitOutcome, 1)
	go func() {
		outcome, err := b.RequestWait(ctx, sess.ID)
		require.NoError(t, err)
		done <- outcome
	}()

	select {
	case <-done:
		t.Fatal("wait resolved before ResolveWait was called")
	case <-time.After(30 * time.Millisecond):
	}

	instruction := "resume with new instructions"
	require.NoError(t, b.ResolveWait(ctx, sess.ID, &instruction))

	outcome := <-done
	assert.Equal(t, WaitResumed, outcome.Status)
	assert.Equal(t, instruction, *outcome.Instruction)
}

func TestBroker_ResolveApproval_UnknownID(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 5})
	err := b.ResolveApproval(ctx, "does-not-exist", true, nil)
	assert.Error(t, err)
}

func TestBroker_Shutdown_ReleasesPendingApproval(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 5})

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	approval := models.NewApprovalRequest(sess.ID, "apply diff", nil, "+1 line", "a.go", models.RiskLow, "hash1")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	done := make(chan *ApprovalOutcome, 1)
	go func() {
		outcome, _ := b.RequestApproval(ctx, approval)
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	b.Shutdown()

	outcome := <-done
	assert.Equal(t, models.ApprovalExpired, outcome.Status)
}

package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
)

func TestMCPDriver_ResolveClearanceDelegatesToBroker(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	b := broker.New(store, broker.NoopNotifier{}, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 5}, zap.NewNop())
	drv := NewMCP(b)

	sess := models.NewSession("u1", "/ws", nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	approval := models.NewApprovalRequest(sess.ID, "apply diff", nil, "+1", "a.go", models.RiskLow, "h1")
	require.NoError(t, store.Approvals().Create(ctx, approval))

	done := make(chan *broker.ApprovalOutcome, 1)
	go func() {
		outcome, err := b.RequestApproval(ctx, approval)
		require.NoError(t, err)
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, drv.ResolveClearance(ctx, approval.ID, true, nil))

	outcome := <-done
	assert.Equal(t, models.ApprovalApproved, outcome.Status)
}

func TestMCPDriver_SendPromptAndInterruptAreNoops(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	b := broker.New(store, broker.NoopNotifier{}, config.TimeoutsConfig{}, zap.NewNop())
	drv := NewMCP(b)

	assert.NoError(t, drv.SendPrompt(ctx, "s1", "hello"))
	assert.NoError(t, drv.Interrupt(ctx, "s1"))
}

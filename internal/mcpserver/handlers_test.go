package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/audit"
	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/diff"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence/memory"
	"github.com/softwaresalt/agent-intercom/internal/policy"
	"github.com/softwaresalt/agent-intercom/internal/recovery"
	"github.com/softwaresalt/agent-intercom/internal/stall"
)

type recordingChat struct {
	posted           bool
	message          string
	suggestedCommand string
}

func (r *recordingChat) PostLog(_ context.Context, _ string, _ string, message string, _ string) (bool, string, error) {
	r.posted = true
	r.message = message
	return true, "ts-1", nil
}

func (r *recordingChat) PostAutoApproveSuggestion(_ context.Context, _, _, command string) error {
	r.suggestedCommand = command
	return nil
}

func newTestHandlers(t *testing.T) (*handlers, *memory.Store) {
	t.Helper()
	store := memory.New()
	b := broker.New(store, broker.NoopNotifier{}, config.TimeoutsConfig{ApprovalSeconds: 5, PromptSeconds: 5, WaitSeconds: 5}, zap.NewNop())
	auditWriter, err := audit.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	h := &handlers{deps: Deps{
		Store:          store,
		Broker:         b,
		Policy:         policy.NewEvaluator(zap.NewNop()),
		PolicyCache:    policy.NewCache(zap.NewNop()),
		Patcher:        diff.NewFilePatcher(),
		Recovery:       recovery.New(store, zap.NewNop()),
		Audit:          auditWriter,
		Stalls:         stall.NewRegistry(),
		Chat:           &recordingChat{},
		DefaultChannel: "C_DEFAULT",
		Logger:         zap.NewNop(),
	}}
	return h, store
}

func TestAskApproval_ResolvedViaOperator(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	dir := t.TempDir()
	sess := models.NewSession("u1", dir, nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	done := make(chan askApprovalOutput, 1)
	go func() {
		_, out, err := h.askApproval(ctx, nil, askApprovalInput{
			Title: "add comment", FilePath: "main.go", DiffContent: "package main", RiskLevel: "low",
		})
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	pending, err := store.Approvals().ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, h.deps.Broker.ResolveApproval(ctx, pending[0].ID, true, nil))

	out := <-done
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, pending[0].ID, out.RequestID)
}

func TestAcceptDiff_WritesFileAndMarksConsumed(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	dir := t.TempDir()
	sess := models.NewSession("u1", dir, nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))

	approval := models.NewApprovalRequest(sess.ID, "write file", nil, "hello world", "out.txt", models.RiskLow, "new_file")
	approval.Status = models.ApprovalApproved
	require.NoError(t, store.Approvals().Create(ctx, approval))

	_, out, err := h.acceptDiff(ctx, nil, acceptDiffInput{RequestID: approval.ID})
	require.NoError(t, err)
	assert.Equal(t, "applied", out.Status)
	require.Len(t, out.FilesWritten, 1)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	got, err := store.Approvals().GetByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalConsumed, got.Status)
}

func TestAcceptDiff_RejectsAlreadyConsumed(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	sess := models.NewSession("u1", t.TempDir(), nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	approval := models.NewApprovalRequest(sess.ID, "write file", nil, "hello", "out.txt", models.RiskLow, "new_file")
	approval.Status = models.ApprovalConsumed
	require.NoError(t, store.Approvals().Create(ctx, approval))

	_, out, err := h.acceptDiff(ctx, nil, acceptDiffInput{RequestID: approval.ID})
	require.NoError(t, err)
	assert.Equal(t, "error", out.Status)
	assert.Equal(t, "already_consumed", out.ErrorCode)
}

func TestCheckAutoApprove_AutoApprovesMatchingTool(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".intercom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".intercom", "settings.json"),
		[]byte(`{"enabled":true,"tools":["read_file"],"risk_level_threshold":"high"}`), 0o644))

	sess := models.NewSession("u1", dir, nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	_, out, err := h.checkAutoApprove(ctx, nil, checkAutoApproveInput{ToolName: "read_file"})
	require.NoError(t, err)
	assert.True(t, out.AutoApproved)
	require.NotNil(t, out.MatchedRule)
}

func TestCheckAutoApprove_KnownSafeCommandBypassesPolicy(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".intercom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".intercom", "settings.json"),
		[]byte(`{"enabled":true}`), 0o644))

	sess := models.NewSession("u1", dir, nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	_, out, err := h.checkAutoApprove(ctx, nil, checkAutoApproveInput{
		ToolName: "cat README.md", Kind: strPtr(kindTerminalCommand),
	})
	require.NoError(t, err)
	assert.True(t, out.AutoApproved)
	require.NotNil(t, out.MatchedRule)
	assert.Equal(t, "command_safety:known_safe", *out.MatchedRule)
}

func TestCheckAutoApprove_DangerousCommandEscalatesAndSuggestsPattern(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)
	chat := h.deps.Chat.(*recordingChat)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".intercom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".intercom", "settings.json"),
		[]byte(`{"enabled":true,"auto_approve_commands":["^git push.*$"],"risk_level_threshold":"critical"}`), 0o644))

	sess := models.NewSession("u1", dir, nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	done := make(chan checkAutoApproveOutput, 1)
	go func() {
		_, out, err := h.checkAutoApprove(ctx, nil, checkAutoApproveInput{
			ToolName: "git push --force", Kind: strPtr(kindTerminalCommand),
		})
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	pending, err := store.Approvals().ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, h.deps.Broker.ResolveApproval(ctx, pending[0].ID, true, nil))

	out := <-done
	assert.True(t, out.AutoApproved)
	require.NotNil(t, out.MatchedRule)
	assert.Equal(t, "operator:approved", *out.MatchedRule)
	assert.Equal(t, "git push --force", chat.suggestedCommand)
}

func TestHeartbeat_ResetsStallTimerAndUpdatesActivity(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	sess := models.NewSession("u1", t.TempDir(), nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	_, out, err := h.heartbeat(ctx, nil, heartbeatInput{LastTool: strPtr("run_tests")})
	require.NoError(t, err)
	assert.True(t, out.Acknowledged)

	got, err := store.Sessions().GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTool)
	assert.Equal(t, "run_tests", *got.LastTool)
	assert.NotNil(t, got.LastActivityAt)
}

func TestRemoteLog_RejectsInvalidLevel(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandlers(t)

	_, _, err := h.remoteLog(ctx, nil, remoteLogInput{Message: "hi", Level: "bogus"})
	require.Error(t, err)
}

func TestRemoteLog_PostsThroughChat(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)
	chat := h.deps.Chat.(*recordingChat)

	sess := models.NewSession("u1", t.TempDir(), nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	_, out, err := h.remoteLog(ctx, nil, remoteLogInput{Message: "deploy ok", Level: "success"})
	require.NoError(t, err)
	assert.True(t, out.Posted)
	assert.True(t, chat.posted)
	assert.Equal(t, "deploy ok", chat.message)
}

func TestSetOperationalMode_UpdatesSessionMode(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	sess := models.NewSession("u1", t.TempDir(), nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	_, out, err := h.setOperationalMode(ctx, nil, setOperationalModeInput{Mode: "local"})
	require.NoError(t, err)
	assert.Equal(t, "remote", out.PreviousMode)
	assert.Equal(t, "local", out.CurrentMode)

	got, err := store.Sessions().GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeLocal, got.Mode)
}

func TestWaitForInstruction_ResumesWithInstruction(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandlers(t)

	sess := models.NewSession("u1", t.TempDir(), nil, models.ModeRemote)
	require.NoError(t, store.Sessions().Create(ctx, sess))
	require.NoError(t, store.Sessions().UpdateStatus(ctx, sess.ID, models.SessionActive))

	done := make(chan waitForInstructionOutput, 1)
	go func() {
		_, out, err := h.waitForInstruction(ctx, nil, waitForInstructionInput{Message: "idle"})
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	instruction := "keep going"
	require.NoError(t, h.deps.Broker.ResolveWait(ctx, sess.ID, &instruction))

	out := <-done
	assert.Equal(t, "resumed", out.Status)
	require.NotNil(t, out.Instruction)
	assert.Equal(t, "keep going", *out.Instruction)
}

func TestRecoverState_ReturnsCleanWhenNothingInterrupted(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandlers(t)

	_, out, err := h.recoverState(ctx, nil, recoverStateInput{})
	require.NoError(t, err)
	assert.Equal(t, "clean", out.Status)
}

package main

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/acp"
	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/driver"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
	"github.com/softwaresalt/agent-intercom/internal/session"
	"github.com/softwaresalt/agent-intercom/internal/stall"
)

// acpDeps bundles the collaborators the ACP stream orchestration needs
// per spawned child, gathered once at daemon startup.
type acpDeps struct {
	store    persistence.Store
	broker   *broker.Broker
	driver   driver.Driver
	registry driver.ACPSessionRegistry
	stalls   *stall.Registry
	logger   *zap.Logger
}

// newACPStreamHandler returns the session.ACPStreamHandler the Session
// Manager invokes once per spawned child when UseACP is active. It
// wires an acp.Reader/acp.Writer pair onto the child's raw stdio,
// flushes any steering messages queued while the session was offline,
// then starts the reader/writer/event-consumer goroutines.
func newACPStreamHandler(ctx context.Context, deps acpDeps) session.ACPStreamHandler {
	return func(sessionID string, stdout io.ReadCloser, stdin io.WriteCloser) {
		outbound := make(chan acp.OutboundMessage, 16)
		events := make(chan acp.AgentEvent, 64)

		deps.registry.RegisterSession(sessionID, outbound)

		reader := acp.NewReader(sessionID, stdout, events, deps.logger)
		writer := acp.NewWriter(sessionID, stdin, deps.logger)

		if err := acp.Flush(ctx, sessionID, deps.store, deps.driver, nil, deps.logger); err != nil {
			deps.logger.Warn("reconnect flush failed", zap.String("session_id", sessionID), zap.Error(err))
		}

		go writer.Run(ctx, outbound)
		go reader.Run(ctx)
		go consumeACPEvents(ctx, sessionID, events, deps)
	}
}

// consumeACPEvents dispatches every AgentEvent the reader produces for
// one session until ctx is canceled or its events channel is closed.
// Nothing closes the events channel (the reader's Run returns without
// closing it), so in practice the loop ends when ctx is canceled.
func consumeACPEvents(ctx context.Context, sessionID string, events <-chan acp.AgentEvent, deps acpDeps) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			handleACPEvent(ctx, sessionID, event, deps)
		}
	}
}

func handleACPEvent(ctx context.Context, sessionID string, event acp.AgentEvent, deps acpDeps) {
	switch e := event.(type) {
	case acp.StreamActivity:
		deps.stalls.Reset(sessionID)

	case acp.ClearanceRequested:
		deps.stalls.Reset(sessionID)
		approval := &models.ApprovalRequest{
			ID:          e.RequestID,
			SessionID:   e.SessionID,
			Title:       e.Title,
			Description: e.Description,
			DiffContent: derefString(e.Diff),
			FilePath:    e.FilePath,
			RiskLevel:   e.RiskLevel,
			Status:      models.ApprovalPending,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.store.Approvals().Create(ctx, approval); err != nil {
			deps.logger.Error("failed to persist ACP clearance request",
				zap.String("session_id", sessionID), zap.String("request_id", e.RequestID), zap.Error(err))
			return
		}
		deps.registry.RegisterClearance(e.RequestID, sessionID)

		go func() {
			outcome, err := deps.broker.RequestApproval(ctx, approval)
			if err != nil {
				deps.logger.Warn("approval wait failed", zap.String("request_id", e.RequestID), zap.Error(err))
				return
			}
			approved := outcome.Status == models.ApprovalApproved
			if err := deps.driver.ResolveClearance(ctx, e.RequestID, approved, outcome.Reason); err != nil {
				deps.logger.Error("failed to resolve ACP clearance", zap.String("request_id", e.RequestID), zap.Error(err))
			}
		}()

	case acp.PromptForwarded:
		deps.stalls.Reset(sessionID)
		prompt := &models.ContinuationPrompt{
			ID:         e.PromptID,
			SessionID:  e.SessionID,
			PromptText: e.Text,
			PromptType: e.Type,
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.store.Prompts().Create(ctx, prompt); err != nil {
			deps.logger.Error("failed to persist ACP forwarded prompt",
				zap.String("session_id", sessionID), zap.String("prompt_id", e.PromptID), zap.Error(err))
			return
		}
		deps.registry.RegisterPrompt(e.PromptID, sessionID)

		go func() {
			outcome, err := deps.broker.RequestPrompt(ctx, prompt)
			if err != nil {
				deps.logger.Warn("prompt wait failed", zap.String("prompt_id", e.PromptID), zap.Error(err))
				return
			}
			if err := deps.driver.ResolvePrompt(ctx, e.PromptID, outcome.Decision, outcome.Instruction); err != nil {
				deps.logger.Error("failed to resolve ACP prompt", zap.String("prompt_id", e.PromptID), zap.Error(err))
			}
		}()

	case acp.HeartbeatReceived:
		deps.stalls.Reset(sessionID)
		sess, err := deps.store.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			deps.logger.Warn("heartbeat for unknown session", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		sess.ProgressSnapshot = e.Progress
		if err := deps.store.Sessions().Update(ctx, sess); err != nil {
			deps.logger.Warn("failed to persist heartbeat progress", zap.String("session_id", sessionID), zap.Error(err))
		}

	case acp.StatusUpdated:
		deps.logger.Debug("ACP status update", zap.String("session_id", sessionID), zap.String("message", e.Message))

	case acp.SessionTerminated:
		deps.stalls.Remove(sessionID)
		deps.registry.UnregisterSession(sessionID)
		deps.logger.Info("ACP session terminated", zap.String("session_id", sessionID), zap.String("reason", e.Reason))
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package stall

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// ChatNotifier posts the formatted notification accompanying each
// stall-lifecycle event. internal/chat/slack implements this; the
// consumer depends only on the interface.
type ChatNotifier interface {
	NotifyStalled(ctx context.Context, sessionID string, idleSeconds int64) error
	NotifyAutoNudge(ctx context.Context, sessionID string, nudgeCount uint32) error
	NotifyEscalated(ctx context.Context, sessionID string, nudgeCount uint32) error
	NotifySelfRecovered(ctx context.Context, sessionID string) error
}

// PromptSender delivers a nudge prompt directly on an agent's stream.
// internal/driver's ACP variant implements this.
type PromptSender interface {
	SendPrompt(ctx context.Context, sessionID, text string) error
}

// Consumer reads Events and dispatches each to chat, additionally
// delivering auto-nudge prompts on the ACP stream for ACP sessions.
type Consumer struct {
	store    persistence.Store
	notifier ChatNotifier
	driver   PromptSender // nil when no ACP driver is wired
	logger   *zap.Logger
}

// NewConsumer builds a stall event Consumer. driver may be nil when
// the daemon runs MCP-only sessions, in which case auto-nudge events
// are posted to chat only.
func NewConsumer(store persistence.Store, notifier ChatNotifier, driver PromptSender, logger *zap.Logger) *Consumer {
	return &Consumer{store: store, notifier: notifier, driver: driver, logger: logger}
}

// Run reads events until the channel closes or ctx is canceled.
// Delivery failures are logged and never halt the consumer.
func (c *Consumer) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, event)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, event Event) {
	switch event.Kind {
	case EventStalled:
		if err := c.notifier.NotifyStalled(ctx, event.SessionID, event.IdleSeconds); err != nil {
			c.logger.Warn("failed to post stall alert", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	case EventAutoNudge:
		c.deliverACPNudgeIfApplicable(ctx, event.SessionID, event.NudgeCount)
		if err := c.notifier.NotifyAutoNudge(ctx, event.SessionID, event.NudgeCount); err != nil {
			c.logger.Warn("failed to post auto-nudge notification", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	case EventEscalated:
		if err := c.notifier.NotifyEscalated(ctx, event.SessionID, event.NudgeCount); err != nil {
			c.logger.Warn("failed to post escalation notification", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	case EventSelfRecovered:
		if err := c.notifier.NotifySelfRecovered(ctx, event.SessionID); err != nil {
			c.logger.Warn("failed to post self-recovery notification", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	}
}

// deliverACPNudgeIfApplicable sends a nudge prompt directly on the
// agent's ACP stream when the session uses that protocol and a driver
// is wired. Best-effort: failures are logged only.
func (c *Consumer) deliverACPNudgeIfApplicable(ctx context.Context, sessionID string, nudgeCount uint32) {
	if c.driver == nil {
		return
	}

	sess, err := c.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		c.logger.Warn("session not found for ACP nudge delivery", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if sess.ProtocolMode != models.ProtocolACP {
		return
	}

	text := fmt.Sprintf("You seem stalled. Auto-nudge #%d - please continue working on your current task.", nudgeCount)
	if err := c.driver.SendPrompt(ctx, sessionID, text); err != nil {
		c.logger.Warn("failed to deliver ACP nudge via driver stream",
			zap.String("session_id", sessionID), zap.Uint32("nudge_count", nudgeCount), zap.Error(err))
		return
	}
	c.logger.Info("ACP nudge delivered via driver stream",
		zap.String("session_id", sessionID), zap.Uint32("nudge_count", nudgeCount))
}

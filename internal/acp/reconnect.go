package acp

import (
	"context"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// PromptSender is the narrow slice of the Agent Driver the reconnect
// flush needs. Declared locally (accept interfaces) rather than
// importing internal/driver, so internal/driver can depend on this
// package for OutboundMessage without creating an import cycle.
type PromptSender interface {
	SendPrompt(ctx context.Context, sessionID, text string) error
}

// ReconnectNotifier optionally posts a chat notification once the
// reconnect flush delivers a steering message. Implementations that
// don't need this may pass nil.
type ReconnectNotifier interface {
	NotifySteeringDelivered(ctx context.Context, sessionID string, msg *models.SteeringMessage) error
}

// Flush transitions the session to Online, then delivers every
// unconsumed steering message for it, in FIFO order, via drv.SendPrompt,
// marking each consumed as it is delivered. It runs before the stream
// loop starts, per spec §4.3's reconnect-flush contract.
func Flush(ctx context.Context, sessionID string, store persistence.Store, drv PromptSender, notifier ReconnectNotifier, logger *zap.Logger) error {
	session, err := store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	session.ConnectivityStatus = models.ConnectivityOnline
	if err := store.Sessions().Update(ctx, session); err != nil {
		return err
	}

	messages, err := store.Steering().GetUnconsumedForSession(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if err := drv.SendPrompt(ctx, sessionID, msg.Text); err != nil {
			logger.Warn("failed to deliver steering message on reconnect",
				zap.String("session_id", sessionID), zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		if err := store.Steering().MarkConsumed(ctx, msg.ID); err != nil {
			logger.Warn("failed to mark steering message consumed after delivery",
				zap.String("session_id", sessionID), zap.String("message_id", msg.ID), zap.Error(err))
		}
		if notifier != nil {
			if err := notifier.NotifySteeringDelivered(ctx, sessionID, msg); err != nil {
				logger.Warn("failed to post reconnect-flush notification",
					zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	}
	return nil
}

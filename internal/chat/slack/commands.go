package slack

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

// DispatchCommand routes a decoded slash command into either the task
// inbox (no active session yet) or the steering queue (session
// already running), per slack/handlers/task.rs and steer.rs:
// `/intercom-task` always queues for next cold start, `/intercom-steer` targets whichever
// session is active in the invoking channel.
func (d *Dispatcher) DispatchCommand(ctx context.Context, p *slashCommandPayload) {
	if !d.authorized(p.UserID) {
		d.Logger.Warn("unauthorized slash command", zap.String("user_id", p.UserID))
		return
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		d.Logger.Warn("ignoring empty slash command", zap.String("command", p.Command))
		return
	}

	switch p.Command {
	case "/intercom-task":
		d.storeTaskFromChat(ctx, text, p.ChannelID)
	case "/intercom-steer":
		d.storeSteeringFromChat(ctx, text, p.ChannelID)
	default:
		d.Logger.Warn("unknown slash command", zap.String("command", p.Command))
	}
}

func (d *Dispatcher) storeTaskFromChat(ctx context.Context, text, channelID string) {
	var ch *string
	if channelID != "" {
		ch = &channelID
	}
	item := models.NewTaskInboxItem(ch, models.SourceChat, text)
	if err := d.Store.Inbox().Create(ctx, item); err != nil {
		d.Logger.Warn("failed to queue task inbox item", zap.Error(err))
		return
	}
	d.Logger.Info("task inbox item queued from chat", zap.String("task_id", item.ID))
}

// storeSteeringFromChat scopes the active-session lookup to
// channelID (S043/RI-04 in the original), falling back to any active
// session when no channel is known — IPC-originated commands carry no
// channel, and a few Socket Mode payloads omit one too.
func (d *Dispatcher) storeSteeringFromChat(ctx context.Context, text, channelID string) {
	target, err := d.resolveSteeringTarget(ctx, channelID)
	if err != nil {
		d.Logger.Warn("no active session to steer", zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	msg := models.NewSteeringMessage(target.ID, models.SourceChat, text)
	if err := d.Store.Steering().Create(ctx, msg); err != nil {
		d.Logger.Warn("failed to queue steering message", zap.Error(err))
		return
	}
	d.Logger.Info("steering message queued from chat", zap.String("session_id", target.ID))
}

func (d *Dispatcher) resolveSteeringTarget(ctx context.Context, channelID string) (*models.Session, error) {
	if channelID != "" {
		return d.Store.Sessions().FindActiveByChannel(ctx, channelID)
	}
	sessions, err := d.Store.Sessions().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ierrors.NotFound("session", "no active session")
	}
	return sessions[0], nil
}

// IngestAppMention stores a Slack @-mention as a steering message
// after stripping the leading bot-mention token, per
// slack/handlers/steer.rs's ingest_app_mention.
func (d *Dispatcher) IngestAppMention(ctx context.Context, text, channelID string) {
	stripped := strings.TrimSpace(stripMention(text))
	if stripped == "" {
		return
	}
	d.storeSteeringFromChat(ctx, stripped, channelID)
}

func stripMention(text string) string {
	trimmed := strings.TrimLeft(text, " \t")
	if !strings.HasPrefix(trimmed, "<@") {
		return trimmed
	}
	idx := strings.IndexByte(trimmed, '>')
	if idx < 0 {
		return trimmed
	}
	return strings.TrimLeft(trimmed[idx+1:], " \t")
}

// Package slack implements the Chat Adapter (spec 4.13): a Slack
// Socket Mode client plus an HTTP webhook alternative, posting
// interactive Block Kit messages for every broker wait point and the
// stall detector, and routing button clicks / modal submissions /
// slash commands back into the Request Broker and session store.
//
// Grounded on original_source/src/slack/client.rs (SlackService: a
// buffered send queue drained by one worker with exponential backoff,
// plus direct-post/update/modal calls for flows that need the
// resulting message ts) and slack/blocks.rs (Block Kit builders, see
// blocks.go). No Slack SDK exists anywhere in the retrieval pack, so
// the Web API surface is a small hand-written client (webapi.go) over
// net/http, and Socket Mode is a gorilla/websocket connection opened
// against the URL returned by apps.connections.open — the first
// client-side use of that library in this codebase (kadirpekel-hector's
// and theRebelliousNerd-codenerd's uses are server-side Upgraders).
package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

const (
	queueCapacity     = 256
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

type outboundMessage struct {
	channel  string
	text     string
	blocks   []map[string]any
	threadTS string
}

// Service is a Socket Mode Slack client wrapping a bounded, retrying
// outgoing queue. It implements broker.Notifier, stall.ChatNotifier,
// session.ExitNotifier, and mcpserver.ChatPoster — the narrow
// interfaces every consumer in this daemon depends on — so any of
// them can be wired to a live Slack workspace by constructing one
// Service.
type Service struct {
	api            *webAPIClient
	store          persistence.Store
	logger         *zap.Logger
	defaultChannel string

	queue chan outboundMessage
	done  chan struct{}
}

// New constructs a Service. Call Start to begin draining the send
// queue; the caller is responsible for also running a SocketMode (or
// Webhook) listener to receive interactive payloads.
func New(cfg config.SlackConfig, creds config.Credentials, store persistence.Store, logger *zap.Logger) *Service {
	return &Service{
		api:            newWebAPIClient(creds.SlackBotToken, creds.SlackAppToken),
		store:          store,
		logger:         logger,
		defaultChannel: cfg.ChannelID,
		queue:          make(chan outboundMessage, queueCapacity),
		done:           make(chan struct{}),
	}
}

// Start runs the send-queue worker until ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	go s.runQueue(ctx)
}

// Stop blocks until the send-queue worker has exited.
func (s *Service) Stop() {
	<-s.done
}

func (s *Service) runQueue(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("slack sender task exiting")
			return
		case msg := <-s.queue:
			s.sendWithBackoff(ctx, msg)
		}
	}
}

func (s *Service) sendWithBackoff(ctx context.Context, msg outboundMessage) {
	backoff := initialRetryDelay
	for {
		_, err := s.api.postMessage(ctx, msg.channel, msg.text, msg.blocks, msg.threadTS)
		if err == nil {
			return
		}
		s.logger.Warn("slack post failed; retrying", zap.Error(err), zap.Duration("delay", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRetryDelay {
			backoff = maxRetryDelay
		}
	}
}

func (s *Service) enqueue(msg outboundMessage) {
	select {
	case s.queue <- msg:
	default:
		s.logger.Warn("slack send queue full, dropping message", zap.String("channel", msg.channel))
	}
}

// channelForSession resolves a session's bound channel, falling back
// to the configured default when the session has none or cannot be
// found.
func (s *Service) channelForSession(ctx context.Context, sessionID string) string {
	sess, err := s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil || sess.ChannelID == nil || *sess.ChannelID == "" {
		return s.defaultChannel
	}
	return *sess.ChannelID
}

// --- broker.Notifier ---

func (s *Service) NotifyApprovalRequested(ctx context.Context, approval *models.ApprovalRequest) error {
	channel := s.channelForSession(ctx, approval.SessionID)
	descr := ""
	if approval.Description != nil {
		descr = *approval.Description
	}
	text := fmt.Sprintf("*Approval requested:* %s\n*File:* `%s`\n*Risk:* %s\n%s",
		approval.Title, approval.FilePath, approval.RiskLevel, descr)
	blocks := []map[string]any{textSection(text), diffPreview(approval.DiffContent), approvalButtons(approval.ID)}
	s.enqueue(outboundMessage{channel: channel, text: "Approval requested: " + approval.Title, blocks: blocks})
	return nil
}

func (s *Service) NotifyPromptRequested(ctx context.Context, prompt *models.ContinuationPrompt) error {
	channel := s.channelForSession(ctx, prompt.SessionID)
	text := fmt.Sprintf("*Continuation prompt (%s):*\n%s", prompt.PromptType, prompt.PromptText)
	blocks := []map[string]any{textSection(text), promptButtons(prompt.ID)}
	s.enqueue(outboundMessage{channel: channel, text: "Continuation prompt", blocks: blocks})
	return nil
}

func (s *Service) NotifyWaitStarted(ctx context.Context, sessionID string) error {
	channel := s.channelForSession(ctx, sessionID)
	blocks := []map[string]any{textSection("Agent is waiting for instruction."), waitButtons(sessionID)}
	s.enqueue(outboundMessage{channel: channel, text: "Agent waiting for instruction", blocks: blocks})
	return nil
}

// --- stall.ChatNotifier ---

func (s *Service) NotifyStalled(ctx context.Context, sessionID string, idleSeconds int64) error {
	channel := s.channelForSession(ctx, sessionID)
	text := fmt.Sprintf("⏸️ Session `%s` has been idle for %ds.", sessionID, idleSeconds)
	s.enqueue(outboundMessage{channel: channel, text: text, blocks: []map[string]any{textSection(text), nudgeButtons(sessionID)}})
	return nil
}

func (s *Service) NotifyAutoNudge(ctx context.Context, sessionID string, nudgeCount uint32) error {
	channel := s.channelForSession(ctx, sessionID)
	text := fmt.Sprintf("🔔 Auto-nudged session `%s` (attempt %d).", sessionID, nudgeCount)
	s.enqueue(outboundMessage{channel: channel, text: text})
	return nil
}

func (s *Service) NotifyEscalated(ctx context.Context, sessionID string, nudgeCount uint32) error {
	channel := s.channelForSession(ctx, sessionID)
	text := fmt.Sprintf("🚨 Session `%s` stalled after %d nudges and needs operator attention.", sessionID, nudgeCount)
	s.enqueue(outboundMessage{channel: channel, text: text, blocks: []map[string]any{textSection(text), nudgeButtons(sessionID)}})
	return nil
}

func (s *Service) NotifySelfRecovered(ctx context.Context, sessionID string) error {
	channel := s.channelForSession(ctx, sessionID)
	text := fmt.Sprintf("✅ Session `%s` resumed activity on its own.", sessionID)
	s.enqueue(outboundMessage{channel: channel, text: text})
	return nil
}

// --- session.ExitNotifier ---

func (s *Service) NotifySessionExited(ctx context.Context, sess *models.Session, statusText string) error {
	channel := s.defaultChannel
	if sess.ChannelID != nil && *sess.ChannelID != "" {
		channel = *sess.ChannelID
	}
	text := fmt.Sprintf("Session `%s` exited: %s", sess.ID, statusText)
	s.enqueue(outboundMessage{channel: channel, text: text})
	return nil
}

// --- mcpserver.ChatPoster ---

func (s *Service) PostLog(ctx context.Context, channelID, level, message, threadTS string) (bool, string, error) {
	if channelID == "" {
		channelID = s.defaultChannel
	}
	blocks := []map[string]any{severitySection(level, message)}
	ts, err := s.api.postMessage(ctx, channelID, message, blocks, threadTS)
	if err != nil {
		return false, "", err
	}
	return true, ts, nil
}

// diffPreview renders a diff inline when short, or a line-count
// placeholder when large, matching slack/client.rs's repost preview
// rule.
func diffPreview(diff string) map[string]any {
	if strings.Count(diff, "\n") < 20 {
		return diffSection(diff)
	}
	return textSection(fmt.Sprintf("_(large diff, %d lines)_", strings.Count(diff, "\n")+1))
}

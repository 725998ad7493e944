package slack

import (
	"context"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/audit"
	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

const defaultRejectionReason = "rejected via Slack"

// Dispatcher routes decoded interaction and slash-command payloads
// into the Request Broker and session store, per
// original_source/src/slack/handlers/*.rs (one handler per prefix
// there; here, one method per prefix on a single type, since none of
// them needs more state than Store/Broker/Service already provide).
type Dispatcher struct {
	Store             persistence.Store
	Broker            *broker.Broker
	Service           *Service
	Audit             audit.Logger
	AuthorizedUserIDs []string
	Logger            *zap.Logger

	// pendingModalContext caches the channel/ts of the message that
	// triggered a modal, keyed by callback_id, so the ViewSubmission
	// handler can replace that message's buttons once the modal is
	// submitted. Grounded on AppState.pending_modal_contexts in
	// original_source/src/slack/handlers/approval.rs.
	pendingModalContext map[string]modalContext
}

type modalContext struct {
	channel string
	ts      string
	kind    string // "approval_reject", "wait_resume_instruct", "stall_nudge_instruct"
	id      string // request_id / session_id / alert_id
}

// NewDispatcher constructs a Dispatcher ready to handle interactions.
func NewDispatcher(store persistence.Store, b *broker.Broker, svc *Service, auditLogger audit.Logger, authorizedUserIDs []string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Store:               store,
		Broker:              b,
		Service:             svc,
		Audit:               auditLogger,
		AuthorizedUserIDs:   authorizedUserIDs,
		Logger:              logger,
		pendingModalContext: make(map[string]modalContext),
	}
}

func (d *Dispatcher) authorized(userID string) bool {
	if len(d.AuthorizedUserIDs) == 0 {
		return true
	}
	for _, id := range d.AuthorizedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Dispatch routes one decoded interaction payload.
func (d *Dispatcher) Dispatch(ctx context.Context, p *interactionPayload) {
	if !d.authorized(p.User.ID) {
		d.Logger.Warn("unauthorized interaction attempt", zap.String("user_id", p.User.ID))
		return
	}

	switch p.Type {
	case "block_actions":
		for _, action := range p.Actions {
			d.dispatchAction(ctx, action.ActionID, action.Value, p)
		}
	case "view_submission":
		d.dispatchViewSubmission(ctx, p)
	}
}

func (d *Dispatcher) dispatchAction(ctx context.Context, actionID, value string, p *interactionPayload) {
	switch {
	case actionID == "approve_accept":
		d.handleApproval(ctx, value, true, nil, p)
	case actionID == "approve_reject":
		d.openInstructionModal(ctx, p, "approval_reject", value, "Rejection Reason", "Describe why this change is being rejected…")
	case actionID == "prompt_continue":
		d.handlePrompt(ctx, models.DecisionContinue, value, nil, p)
	case actionID == "prompt_refine":
		d.openInstructionModal(ctx, p, "prompt_refine", value, "Refine", "Type your revised instructions…")
	case actionID == "prompt_stop":
		d.handlePrompt(ctx, models.DecisionStop, value, nil, p)
	case actionID == "wait_resume":
		d.handleResume(ctx, value, nil)
	case actionID == "wait_resume_instruct":
		d.openInstructionModal(ctx, p, "wait_resume_instruct", value, "Resume Instructions", "Steer the agent before resuming…")
	case actionID == "wait_stop":
		d.handleResume(ctx, value, strPtr("stop"))
	case actionID == "stall_nudge":
		d.handleNudge(ctx, value, nil)
	case actionID == "stall_nudge_instruct":
		d.openInstructionModal(ctx, p, "stall_nudge_instruct", value, "Nudge Instructions", "Tell the agent what to do…")
	case actionID == "stall_stop":
		d.handleNudge(ctx, value, strPtr("stop"))
	case actionID == "auto_approve_add" || actionID == "auto_approve_dismiss":
		d.handleAutoApprove(ctx, actionID, value, p)
	default:
		d.Logger.Warn("unknown interaction action_id", zap.String("action_id", actionID))
	}
}

func strPtr(s string) *string { return &s }

// handleApproval resolves a pending approval, replaces its message's
// buttons with a static status line, and audit-logs the decision.
func (d *Dispatcher) handleApproval(ctx context.Context, requestID string, approved bool, reason *string, p *interactionPayload) {
	if err := d.Broker.ResolveApproval(ctx, requestID, approved, reason); err != nil {
		d.Logger.Warn("failed to resolve approval", zap.String("request_id", requestID), zap.Error(err))
		return
	}

	eventType := models.AuditRejection
	statusText := "❌ *Rejected* by <@" + p.User.ID + ">"
	if approved {
		eventType = models.AuditApproval
		statusText = "✅ *Approved* by <@" + p.User.ID + ">"
	} else if reason != nil {
		statusText += ": " + *reason
	}

	d.audit(requestID, eventType, p.User.ID, reason)
	d.replaceButtons(ctx, p.Channel.ID, p.Message.TS, statusText)
}

// handlePrompt resolves a prompt decision (Continue/Stop straight from
// a button click, Refine from the refine modal's submission with its
// instruction) and replaces its message's buttons with a static status
// line, per slack/handlers/prompt.rs.
func (d *Dispatcher) handlePrompt(ctx context.Context, decision models.PromptDecision, promptID string, instruction *string, p *interactionPayload) {
	if err := d.Broker.ResolvePrompt(ctx, promptID, decision, instruction); err != nil {
		d.Logger.Warn("failed to resolve prompt", zap.String("prompt_id", promptID), zap.Error(err))
		return
	}

	var statusText string
	switch decision {
	case models.DecisionContinue:
		statusText = "▶️ *Continue* selected by <@" + p.User.ID + ">"
	case models.DecisionRefine:
		statusText = "✏️ *Refine* selected by <@" + p.User.ID + ">"
	case models.DecisionStop:
		statusText = "⏹️ *Stop* selected by <@" + p.User.ID + ">"
	}
	d.replaceButtons(ctx, p.Channel.ID, p.Message.TS, statusText)
}

func (d *Dispatcher) handleResume(ctx context.Context, sessionID string, instruction *string) {
	if err := d.Broker.ResolveWait(ctx, sessionID, instruction); err != nil {
		d.Logger.Warn("failed to resolve wait", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// handleNudge records an operator-initiated nudge/stop decision
// against the stall alert. The stall detector's own reset/pause is
// driven separately through internal/stall.Registry from the daemon's
// wiring layer, not from this handler.
func (d *Dispatcher) handleNudge(ctx context.Context, sessionID string, instruction *string) {
	alert, err := d.Store.StallAlerts().GetActiveForSession(ctx, sessionID)
	if err != nil {
		d.Logger.Warn("no active stall alert for session", zap.String("session_id", sessionID))
		return
	}
	next := models.StallNudged
	if instruction != nil && *instruction == "stop" {
		next = models.StallDismissed
	}
	if err := d.Store.StallAlerts().UpdateStatus(ctx, alert.ID, next); err != nil {
		d.Logger.Warn("failed to update stall alert status", zap.Error(err))
		return
	}
	if instruction != nil && *instruction != "stop" {
		msg := models.NewSteeringMessage(sessionID, models.SourceChat, *instruction)
		if err := d.Store.Steering().Create(ctx, msg); err != nil {
			d.Logger.Warn("failed to queue steering message", zap.Error(err))
		}
	}
}

func (d *Dispatcher) openInstructionModal(ctx context.Context, p *interactionPayload, kind, id, title, placeholder string) {
	callbackID := kind + ":" + id
	d.pendingModalContext[callbackID] = modalContext{channel: p.Channel.ID, ts: p.Message.TS, kind: kind, id: id}

	view := instructionModal(callbackID, title, placeholder)
	if err := d.Service.api.openModal(ctx, p.TriggerID, view); err != nil {
		d.Logger.Warn("failed to open instruction modal", zap.Error(err))
		delete(d.pendingModalContext, callbackID)
	}
}

func (d *Dispatcher) dispatchViewSubmission(ctx context.Context, p *interactionPayload) {
	callbackID := p.View.CallbackID
	mc, ok := d.pendingModalContext[callbackID]
	if !ok {
		d.Logger.Warn("view submission with no pending modal context", zap.String("callback_id", callbackID))
		return
	}
	delete(d.pendingModalContext, callbackID)

	text := p.instructionText()

	switch mc.kind {
	case "approval_reject":
		reason := text
		if reason == "" {
			reason = defaultRejectionReason
		}
		d.handleApproval(ctx, mc.id, false, &reason, &interactionPayload{
			User:    p.User,
			Channel: p.Channel,
			Message: struct {
				TS string `json:"ts"`
			}{TS: mc.ts},
		})
	case "prompt_refine":
		d.handlePrompt(ctx, models.DecisionRefine, mc.id, &text, &interactionPayload{
			User:    p.User,
			Channel: p.Channel,
			Message: struct {
				TS string `json:"ts"`
			}{TS: mc.ts},
		})
	case "wait_resume_instruct":
		d.handleResume(ctx, mc.id, &text)
	case "stall_nudge_instruct":
		d.handleNudge(ctx, mc.id, &text)
	}
}

func (d *Dispatcher) replaceButtons(ctx context.Context, channel, ts, statusText string) {
	if channel == "" || ts == "" {
		d.Logger.Warn("missing channel or ts; cannot replace interactive buttons")
		return
	}
	if err := d.Service.api.updateMessage(ctx, channel, ts, []map[string]any{textSection(statusText)}); err != nil {
		d.Logger.Warn("failed to replace interactive buttons", zap.Error(err))
	}
}

func (d *Dispatcher) audit(requestID string, eventType models.AuditEventType, operatorID string, reason *string) {
	if d.Audit == nil {
		return
	}
	rec := models.AuditRecord{
		EventType:  eventType,
		RequestID:  &requestID,
		OperatorID: &operatorID,
		Reason:     reason,
	}
	if err := d.Audit.Log(rec); err != nil {
		d.Logger.Warn("audit log write failed (interaction)", zap.Error(err))
	}
}

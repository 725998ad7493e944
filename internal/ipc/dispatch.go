package ipc

import (
	"context"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
	"github.com/softwaresalt/agent-intercom/internal/session"
)

const defaultRejectReason = "rejected via local CLI"

// SessionOperator is the narrow slice of the Session Manager that
// pause/terminate commands need. Satisfied by *session.Manager.
type SessionOperator interface {
	Pause(ctx context.Context, sessionID, actingUserID string) (*models.Session, error)
	Terminate(ctx context.Context, sessionID, actingUserID string) (*models.Session, error)
}

var _ SessionOperator = (*session.Manager)(nil)

// Dispatcher routes an IPC Request to the broker and session store,
// per spec 4.11. AuthToken, when non-empty, must match every request's
// auth_token field; an empty AuthToken disables the check entirely.
// Sessions is optional: a nil value makes "pause"/"terminate" fail
// cleanly rather than panic, for callers that wire the dispatcher
// without a Session Manager (e.g. unit tests of the other commands).
type Dispatcher struct {
	Store     persistence.Store
	Broker    *broker.Broker
	Sessions  SessionOperator
	AuthToken string
	Logger    *zap.Logger
}

// Dispatch routes a single decoded Request to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if d.AuthToken != "" {
		if req.AuthToken == nil || *req.AuthToken != d.AuthToken {
			d.Logger.Warn("IPC request rejected: invalid auth token", zap.String("command", req.Command))
			return errorResponse("unauthorized")
		}
	}

	switch req.Command {
	case "list":
		return d.handleList(ctx)
	case "approve":
		return d.handleApprove(ctx, req)
	case "reject":
		return d.handleReject(ctx, req)
	case "resume":
		return d.handleResume(ctx, req)
	case "mode":
		return d.handleMode(ctx, req)
	case "pause":
		return d.handlePause(ctx, req)
	case "terminate":
		return d.handleTerminate(ctx, req)
	default:
		return errorResponse("unknown command: " + req.Command)
	}
}

func (d *Dispatcher) handleList(ctx context.Context) Response {
	sessions, err := d.Store.Sessions().ListActive(ctx)
	if err != nil {
		return errorResponse("failed to list sessions: " + err.Error())
	}

	items := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		item := map[string]any{
			"session_id":     s.ID,
			"status":         string(s.Status),
			"mode":           string(s.Mode),
			"workspace_root": s.WorkspaceRoot,
			"updated_at":     s.UpdatedAt.Format(timeLayout),
		}
		if s.LastTool != nil {
			item["last_tool"] = *s.LastTool
		}
		items = append(items, item)
	}
	return success(map[string]any{"sessions": items})
}

func (d *Dispatcher) handleApprove(ctx context.Context, req Request) Response {
	if req.ID == nil || *req.ID == "" {
		return errorResponse("missing required 'id' field")
	}
	if err := d.Broker.ResolveApproval(ctx, *req.ID, true, nil); err != nil {
		return errorResponse("failed to approve: " + err.Error())
	}
	d.Logger.Info("approved via IPC", zap.String("request_id", *req.ID))
	return success(map[string]any{"request_id": *req.ID, "status": "approved"})
}

func (d *Dispatcher) handleReject(ctx context.Context, req Request) Response {
	if req.ID == nil || *req.ID == "" {
		return errorResponse("missing required 'id' field")
	}
	reason := defaultRejectReason
	if req.Reason != nil && *req.Reason != "" {
		reason = *req.Reason
	}
	if err := d.Broker.ResolveApproval(ctx, *req.ID, false, &reason); err != nil {
		return errorResponse("failed to reject: " + err.Error())
	}
	d.Logger.Info("rejected via IPC", zap.String("request_id", *req.ID))
	return success(map[string]any{"request_id": *req.ID, "status": "rejected"})
}

// handleResume resumes a waiting agent. When req.ID names a session
// id, that specific session is resumed; otherwise the first pending
// wait is used, matching original_source/src/ipc/server.rs's
// single-session fallback.
func (d *Dispatcher) handleResume(ctx context.Context, req Request) Response {
	var sessionID string
	if req.ID != nil && *req.ID != "" {
		if !d.Broker.HasPendingWait(*req.ID) {
			return errorResponse("session " + *req.ID + " is not waiting")
		}
		sessionID = *req.ID
	} else {
		pending := d.Broker.PendingWaitSessionIDs()
		if len(pending) == 0 {
			return errorResponse("no agent currently waiting for instruction")
		}
		sessionID = pending[0]
	}

	if err := d.Broker.ResolveWait(ctx, sessionID, req.Instruction); err != nil {
		return errorResponse("failed to resume: " + err.Error())
	}
	d.Logger.Info("agent resumed via IPC", zap.String("session_id", sessionID))
	return success(map[string]any{"session_id": sessionID, "status": "resumed"})
}

func (d *Dispatcher) handleMode(ctx context.Context, req Request) Response {
	if req.Mode == nil || *req.Mode == "" {
		return errorResponse("missing required 'mode' field")
	}

	var mode models.SessionMode
	switch *req.Mode {
	case "remote":
		mode = models.ModeRemote
	case "local":
		mode = models.ModeLocal
	case "hybrid":
		mode = models.ModeHybrid
	default:
		return errorResponse("invalid mode: " + *req.Mode)
	}

	sessions, err := d.Store.Sessions().ListActive(ctx)
	if err != nil {
		return errorResponse("failed to query sessions: " + err.Error())
	}
	if len(sessions) == 0 {
		return errorResponse("no active session found")
	}
	sess := sessions[0]
	previous := sess.Mode

	sess.Mode = mode
	if err := d.Store.Sessions().Update(ctx, sess); err != nil {
		return errorResponse("failed to update mode: " + err.Error())
	}

	d.Logger.Info("mode changed via IPC",
		zap.String("session_id", sess.ID),
		zap.String("previous_mode", string(previous)),
		zap.String("current_mode", string(mode)))

	return success(map[string]any{
		"previous_mode": string(previous),
		"current_mode":  string(mode),
	})
}

// resolveTargetSession resolves req.ID to a session, falling back to
// the oldest active session when no id is given, matching handleMode's
// first-active-session fallback.
func (d *Dispatcher) resolveTargetSession(ctx context.Context, req Request) (*models.Session, Response) {
	if req.ID != nil && *req.ID != "" {
		sess, err := d.Store.Sessions().GetByID(ctx, *req.ID)
		if err != nil {
			return nil, errorResponse("failed to find session: " + err.Error())
		}
		return sess, Response{}
	}
	sessions, err := d.Store.Sessions().ListActive(ctx)
	if err != nil {
		return nil, errorResponse("failed to query sessions: " + err.Error())
	}
	if len(sessions) == 0 {
		return nil, errorResponse("no active session found")
	}
	return sessions[0], Response{}
}

// handlePause pauses the targeted session (or the oldest active session
// when no id is given). The local IPC operator is trusted, so the
// ownership check is satisfied by acting as the session's own owner
// rather than requiring a user id on the wire.
func (d *Dispatcher) handlePause(ctx context.Context, req Request) Response {
	if d.Sessions == nil {
		return errorResponse("session manager is not available")
	}
	sess, errResp := d.resolveTargetSession(ctx, req)
	if sess == nil {
		return errResp
	}
	updated, err := d.Sessions.Pause(ctx, sess.ID, sess.OwnerUserID)
	if err != nil {
		return errorResponse("failed to pause: " + err.Error())
	}
	d.Logger.Info("session paused via IPC", zap.String("session_id", updated.ID))
	return success(map[string]any{"session_id": updated.ID, "status": string(updated.Status)})
}

// handleTerminate terminates the targeted session (or the oldest active
// session when no id is given).
func (d *Dispatcher) handleTerminate(ctx context.Context, req Request) Response {
	if d.Sessions == nil {
		return errorResponse("session manager is not available")
	}
	sess, errResp := d.resolveTargetSession(ctx, req)
	if sess == nil {
		return errResp
	}
	updated, err := d.Sessions.Terminate(ctx, sess.ID, sess.OwnerUserID)
	if err != nil {
		return errorResponse("failed to terminate: " + err.Error())
	}
	d.Logger.Info("session terminated via IPC", zap.String("session_id", updated.ID))
	return success(map[string]any{"session_id": updated.ID, "status": string(updated.Status)})
}

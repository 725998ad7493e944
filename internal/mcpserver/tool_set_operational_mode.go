package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

type setOperationalModeInput struct {
	Mode string `json:"mode" jsonschema:"remote, local, or hybrid"`
}

type setOperationalModeOutput struct {
	PreviousMode string `json:"previous_mode"`
	CurrentMode  string `json:"current_mode"`
}

func (h *handlers) setOperationalMode(ctx context.Context, _ *mcp.CallToolRequest, in setOperationalModeInput) (*mcp.CallToolResult, setOperationalModeOutput, error) {
	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, setOperationalModeOutput{}, err
	}

	previous := sess.Mode
	next := models.SessionMode(in.Mode)

	sess.Mode = next
	sess.LastTool = strPtr("set_operational_mode")
	if err := h.deps.Store.Sessions().Update(ctx, sess); err != nil {
		return nil, setOperationalModeOutput{}, err
	}

	if next == models.ModeLocal && h.deps.Stalls != nil {
		// Local mode has no chat-facing escalation path; pausing the
		// stall timer avoids nudging an operator who isn't watching chat.
		h.deps.Stalls.Pause(sess.ID)
	} else if previous == models.ModeLocal && h.deps.Stalls != nil {
		h.deps.Stalls.Resume(sess.ID)
	}

	h.logAudit(ctx, sess, "set_operational_mode", func(rec *models.AuditRecord) {
		rec.EventType = models.AuditToolCall
	})

	return nil, setOperationalModeOutput{PreviousMode: string(previous), CurrentMode: string(next)}, nil
}

package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

type heartbeatInput struct {
	LastTool         *string               `json:"last_tool,omitempty"`
	ProgressSnapshot []models.ProgressItem `json:"progress_snapshot,omitempty"`
}

type heartbeatOutput struct {
	Acknowledged bool `json:"acknowledged"`
}

// heartbeat mirrors original_source/src/mcp/tools/heartbeat.rs: resolve
// the single active session, optionally validate and store a progress
// snapshot, update last_activity/last_tool, and reset the session's
// stall timer via the shared detector registry.
func (h *handlers) heartbeat(ctx context.Context, _ *mcp.CallToolRequest, in heartbeatInput) (*mcp.CallToolResult, heartbeatOutput, error) {
	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, heartbeatOutput{}, err
	}

	if in.ProgressSnapshot != nil {
		if err := models.ValidateSnapshot(in.ProgressSnapshot); err != nil {
			return nil, heartbeatOutput{}, err
		}
		sess.ProgressSnapshot = in.ProgressSnapshot
	}
	if in.LastTool != nil {
		sess.LastTool = in.LastTool
	}
	now := time.Now().UTC()
	sess.LastActivityAt = &now

	if err := h.deps.Store.Sessions().Update(ctx, sess); err != nil {
		return nil, heartbeatOutput{}, err
	}

	if h.deps.Stalls != nil {
		h.deps.Stalls.Reset(sess.ID)
	}

	return nil, heartbeatOutput{Acknowledged: true}, nil
}

package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

type recoverStateInput struct {
	SessionID *string `json:"session_id,omitempty" jsonschema:"session to recover; defaults to the most recently interrupted session"`
}

type pendingRequestOutput struct {
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type checkpointOutput struct {
	CheckpointID string    `json:"checkpoint_id"`
	Label        *string   `json:"label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type recoverStateOutput struct {
	Status           string                 `json:"status"`
	SessionID        string                 `json:"session_id,omitempty"`
	PendingRequests  []pendingRequestOutput `json:"pending_requests,omitempty"`
	LastCheckpoint   *checkpointOutput      `json:"last_checkpoint,omitempty"`
	ProgressSnapshot []models.ProgressItem  `json:"progress_snapshot,omitempty"`
}

func (h *handlers) recoverState(ctx context.Context, _ *mcp.CallToolRequest, in recoverStateInput) (*mcp.CallToolResult, recoverStateOutput, error) {
	result, err := h.deps.Recovery.RecoverState(ctx, in.SessionID)
	if err != nil {
		return nil, recoverStateOutput{}, err
	}

	out := recoverStateOutput{Status: result.Status, SessionID: result.SessionID, ProgressSnapshot: result.ProgressSnapshot}
	for _, p := range result.PendingRequests {
		out.PendingRequests = append(out.PendingRequests, pendingRequestOutput{
			RequestID: p.RequestID, Kind: p.Kind, Title: p.Title, CreatedAt: p.CreatedAt,
		})
	}
	if result.LastCheckpoint != nil {
		out.LastCheckpoint = &checkpointOutput{
			CheckpointID: result.LastCheckpoint.CheckpointID,
			Label:        result.LastCheckpoint.Label,
			CreatedAt:    result.LastCheckpoint.CreatedAt,
		}
	}
	return nil, out, nil
}

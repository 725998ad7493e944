package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/diff"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

// askApprovalInput mirrors original_source/src/mcp/tools/ask_approval.rs's
// AskApprovalInput, trimmed of the Slack-specific snippet/file-upload
// fields the chat layer now derives itself from DiffContent.
type askApprovalInput struct {
	Title       string  `json:"title" jsonschema:"the one-line summary shown to the operator"`
	Description *string `json:"description,omitempty" jsonschema:"optional longer explanation of the change"`
	FilePath    string  `json:"file_path" jsonschema:"workspace-relative path of the file being changed"`
	DiffContent string  `json:"diff_content" jsonschema:"the proposed change, as a unified diff or full file content"`
	RiskLevel   string  `json:"risk_level" jsonschema:"one of low, high, critical"`
}

type askApprovalOutput struct {
	Status    string  `json:"status"`
	RequestID string  `json:"request_id"`
	Reason    *string `json:"reason,omitempty"`
}

func (h *handlers) askApproval(ctx context.Context, _ *mcp.CallToolRequest, in askApprovalInput) (*mcp.CallToolResult, askApprovalOutput, error) {
	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, askApprovalOutput{}, err
	}

	validated, err := diff.ValidateWorkspacePath(sess.WorkspaceRoot, in.FilePath)
	if err != nil {
		return nil, askApprovalOutput{}, err
	}
	originalHash := hashFile(validated)

	approval := models.NewApprovalRequest(sess.ID, in.Title, in.Description, in.DiffContent, in.FilePath, models.RiskLevel(in.RiskLevel), originalHash)
	if err := h.deps.Store.Approvals().Create(ctx, approval); err != nil {
		return nil, askApprovalOutput{}, err
	}

	outcome, err := h.deps.Broker.RequestApproval(ctx, approval)
	if err != nil {
		return nil, askApprovalOutput{}, err
	}

	h.logAudit(ctx, sess, "ask_approval", func(rec *models.AuditRecord) {
		eventType := models.AuditApproval
		if outcome.Status == models.ApprovalRejected || outcome.Status == models.ApprovalExpired {
			eventType = models.AuditRejection
		}
		rec.EventType = eventType
		rec.RequestID = &approval.ID
		rec.Reason = outcome.Reason
	})

	return nil, askApprovalOutput{
		Status:    string(outcome.Status),
		RequestID: approval.ID,
		Reason:    outcome.Reason,
	}, nil
}

// hashFile returns the sha256 hex digest of path's contents, or
// "new_file" if it does not yet exist, matching
// original_source/src/mcp/tools/util.rs's compute_file_hash.
func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "new_file"
		}
		return "unreadable"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

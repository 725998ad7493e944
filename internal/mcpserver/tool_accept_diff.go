package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/diff"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type acceptDiffInput struct {
	RequestID string `json:"request_id" jsonschema:"id of the approved approval request to apply"`
	Force     bool   `json:"force,omitempty" jsonschema:"overwrite even if the file content has diverged since the proposal"`
}

type writtenFile struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

type acceptDiffOutput struct {
	Status       string        `json:"status"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	FilesWritten []writtenFile `json:"files_written,omitempty"`
}

func (h *handlers) acceptDiff(ctx context.Context, _ *mcp.CallToolRequest, in acceptDiffInput) (*mcp.CallToolResult, acceptDiffOutput, error) {
	approval, err := h.deps.Store.Approvals().GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, acceptDiffOutput{}, err
	}
	if approval == nil {
		return nil, acceptDiffOutput{Status: "error", ErrorCode: "request_not_found", ErrorMessage: "no approval request found with the given id"}, nil
	}

	switch approval.Status {
	case models.ApprovalConsumed:
		return nil, acceptDiffOutput{Status: "error", ErrorCode: "already_consumed", ErrorMessage: "approved diff has already been applied"}, nil
	case models.ApprovalApproved:
		// fall through
	default:
		return nil, acceptDiffOutput{Status: "error", ErrorCode: "not_approved", ErrorMessage: "approval request is not in approved status"}, nil
	}

	sess, err := h.deps.Store.Sessions().GetByID(ctx, approval.SessionID)
	if err != nil {
		return nil, acceptDiffOutput{}, err
	}

	validatedPath, err := diff.ValidateWorkspacePath(sess.WorkspaceRoot, approval.FilePath)
	if err != nil {
		return nil, acceptDiffOutput{Status: "error", ErrorCode: "path_violation", ErrorMessage: "file path escapes workspace root"}, nil
	}
	currentHash := hashFile(validatedPath)
	hashMatches := currentHash == approval.OriginalHash

	if !hashMatches && !in.Force {
		h.logAudit(ctx, sess, "accept_diff", func(rec *models.AuditRecord) {
			rec.EventType = models.AuditRejection
			rec.RequestID = &approval.ID
		})
		return nil, acceptDiffOutput{Status: "error", ErrorCode: "patch_conflict", ErrorMessage: "file content has changed since proposal was created"}, nil
	}

	affected, err := h.deps.Patcher.Apply(sess.WorkspaceRoot, approval.FilePath, approval.DiffContent)
	if err != nil {
		return nil, acceptDiffOutput{Status: "error", ErrorCode: "patch_conflict", ErrorMessage: err.Error()}, nil
	}

	if err := h.deps.Store.Approvals().Consume(ctx, approval.ID); err != nil {
		h.deps.Logger.Warn("failed to mark approval consumed", zap.Error(err))
	}

	h.logAudit(ctx, sess, "accept_diff", func(rec *models.AuditRecord) {
		rec.EventType = models.AuditApproval
		rec.RequestID = &approval.ID
	})

	files := make([]writtenFile, 0, len(affected.Added)+len(affected.Modified))
	for _, p := range affected.Added {
		files = append(files, writtenFile{Path: p, Bytes: len(approval.DiffContent)})
	}
	for _, p := range affected.Modified {
		files = append(files, writtenFile{Path: p, Bytes: len(approval.DiffContent)})
	}

	return nil, acceptDiffOutput{Status: "applied", FilesWritten: files}, nil
}

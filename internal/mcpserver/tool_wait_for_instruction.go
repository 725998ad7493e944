package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

type waitForInstructionInput struct {
	Message string `json:"message,omitempty" jsonschema:"status message displayed while waiting"`
}

type waitForInstructionOutput struct {
	Status      string  `json:"status"`
	Instruction *string `json:"instruction,omitempty"`
}

// waitForInstruction mirrors
// original_source/src/mcp/tools/wait_for_instruction.rs, minus its
// per-call timeout_seconds override: this daemon's broker applies a
// single configured wait timeout uniformly across every wait point
// (spec 4.15's timeouts.wait_seconds), so a per-call override is not
// wired here.
func (h *handlers) waitForInstruction(ctx context.Context, _ *mcp.CallToolRequest, in waitForInstructionInput) (*mcp.CallToolResult, waitForInstructionOutput, error) {
	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, waitForInstructionOutput{}, err
	}

	outcome, err := h.deps.Broker.RequestWait(ctx, sess.ID)
	if err != nil {
		return nil, waitForInstructionOutput{}, err
	}

	sess.LastTool = strPtr("wait_for_instruction")
	if err := h.deps.Store.Sessions().Update(ctx, sess); err != nil {
		h.deps.Logger.Warn("failed to update session after wait_for_instruction")
	}

	h.logAudit(ctx, sess, "wait_for_instruction", func(rec *models.AuditRecord) {
		rec.EventType = models.AuditToolCall
	})

	return nil, waitForInstructionOutput{Status: string(outcome.Status), Instruction: outcome.Instruction}, nil
}

package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

type forwardPromptInput struct {
	PromptText     string `json:"prompt_text" jsonschema:"raw text of the continuation prompt"`
	PromptType     string `json:"prompt_type,omitempty" jsonschema:"continuation, clarification, error_recovery, or resource_warning"`
	ElapsedSeconds *int64 `json:"elapsed_seconds,omitempty"`
	ActionsTaken   *int64 `json:"actions_taken,omitempty"`
}

type forwardPromptOutput struct {
	Decision    string  `json:"decision"`
	Instruction *string `json:"instruction,omitempty"`
}

func (h *handlers) forwardPrompt(ctx context.Context, _ *mcp.CallToolRequest, in forwardPromptInput) (*mcp.CallToolResult, forwardPromptOutput, error) {
	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, forwardPromptOutput{}, err
	}

	promptType := models.PromptContinuation
	if in.PromptType != "" {
		promptType = models.PromptType(in.PromptType)
	}

	prompt := models.NewContinuationPrompt(sess.ID, in.PromptText, promptType, in.ElapsedSeconds, in.ActionsTaken)
	if err := h.deps.Store.Prompts().Create(ctx, prompt); err != nil {
		return nil, forwardPromptOutput{}, err
	}

	outcome, err := h.deps.Broker.RequestPrompt(ctx, prompt)
	if err != nil {
		return nil, forwardPromptOutput{}, err
	}

	sess.LastTool = strPtr("forward_prompt")
	if err := h.deps.Store.Sessions().Update(ctx, sess); err != nil {
		h.deps.Logger.Warn("failed to update session after forward_prompt")
	}

	return nil, forwardPromptOutput{Decision: string(outcome.Decision), Instruction: outcome.Instruction}, nil
}

func strPtr(s string) *string { return &s }

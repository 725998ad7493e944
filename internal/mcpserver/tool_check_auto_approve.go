package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/policy"
)

// checkAutoApproveInput mirrors
// original_source/src/mcp/tools/check_auto_approve.rs's CheckAutoApproveInput.
type checkAutoApproveInput struct {
	ToolName  string  `json:"tool_name" jsonschema:"name of the tool the agent is about to invoke"`
	Kind      *string `json:"kind,omitempty" jsonschema:"optional classification, e.g. terminal_command"`
	FilePath  *string `json:"file_path,omitempty" jsonschema:"target file path, for file-pattern rules"`
	RiskLevel *string `json:"risk_level,omitempty" jsonschema:"one of low, high, critical"`
}

type checkAutoApproveOutput struct {
	AutoApproved bool    `json:"auto_approved"`
	MatchedRule  *string `json:"matched_rule,omitempty"`
}

const kindTerminalCommand = "terminal_command"

func (h *handlers) checkAutoApprove(ctx context.Context, _ *mcp.CallToolRequest, in checkAutoApproveInput) (*mcp.CallToolResult, checkAutoApproveOutput, error) {
	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, checkAutoApproveOutput{}, err
	}

	wp := h.deps.PolicyCache.Get(sess.WorkspaceRoot)

	var polCtx policy.Context
	if in.FilePath != nil {
		polCtx.FilePath = in.FilePath
	}
	if in.RiskLevel != nil {
		risk := models.RiskLevel(*in.RiskLevel)
		polCtx.RiskLevel = &risk
	}
	isTerminalCommand := in.Kind != nil && *in.Kind == kindTerminalCommand
	if isTerminalCommand {
		polCtx.CommandTokens = strings.Fields(in.ToolName)
	}

	result := h.deps.Policy.Check(in.ToolName, &polCtx, wp)

	// Terminal-command gate: when the policy denies a shell command,
	// block and ask the operator instead of returning a bare denial,
	// since an agent that silently skips the command usually stalls
	// waiting for its output.
	if !result.AutoApproved && isTerminalCommand {
		result = h.blockOnCommandApproval(ctx, sess, in.ToolName)
	}

	h.logAudit(ctx, sess, in.ToolName, func(rec *models.AuditRecord) {
		if isTerminalCommand {
			rec.EventType = models.AuditCommandRejection
			if result.AutoApproved {
				rec.EventType = models.AuditCommandApproval
			}
			rec.Command = &in.ToolName
		}
		rec.ResultSummary = result.MatchedRule
	})

	return nil, checkAutoApproveOutput{AutoApproved: result.AutoApproved, MatchedRule: result.MatchedRule}, nil
}

// blockOnCommandApproval converts a denied terminal command into a
// synthetic approval request, reusing the broker's existing
// pending-approval/timeout/notify machinery instead of the original's
// bespoke pending_command_approvals correlation map.
func (h *handlers) blockOnCommandApproval(ctx context.Context, sess *models.Session, toolName string) policy.Result {
	title := "Run command: " + toolName
	approval := models.NewApprovalRequest(sess.ID, title, nil, toolName, "", models.RiskHigh, "")
	if err := h.deps.Store.Approvals().Create(ctx, approval); err != nil {
		h.deps.Logger.Warn("failed to persist command approval request")
		return policy.Result{AutoApproved: false}
	}

	outcome, err := h.deps.Broker.RequestApproval(ctx, approval)
	if err != nil {
		return policy.Result{AutoApproved: false}
	}
	if outcome.Status != models.ApprovalApproved {
		return policy.Result{AutoApproved: false}
	}

	// The one-off command is approved regardless of what the operator
	// does next; offering to remember a pattern for it is a separate,
	// non-blocking decision posted as its own message.
	if err := h.deps.Chat.PostAutoApproveSuggestion(ctx, sess.ID, sess.WorkspaceRoot, toolName); err != nil {
		h.deps.Logger.Warn("failed to post auto-approve suggestion")
	}

	rule := "operator:approved"
	return policy.Result{AutoApproved: true, MatchedRule: &rule}
}

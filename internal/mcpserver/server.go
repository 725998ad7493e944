// Package mcpserver implements the MCP Tool Server (spec 4.12): the
// agent-facing surface that exposes ask_approval, accept_diff,
// check_auto_approve, forward_prompt, heartbeat, recover_state,
// remote_log, set_operational_mode, and wait_for_instruction as MCP
// tools over both stdio and SSE transports.
//
// Grounded on: original_source/src/mcp/server.rs (the fixed tool list
// and per-tool routing shape) and original_source/src/mcp/transport.rs
// (serving the same handler over stdio for direct agent-CLI
// invocation). The teacher (mfateev-temporal-agent-harness) only uses
// github.com/modelcontextprotocol/go-sdk as an MCP client
// (internal/mcp/manager.go's gomcp.ClientSession); this package is the
// first server-side use of that SDK in this codebase, grounded on the
// SDK's own published API shape rather than a teacher file.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/audit"
	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/diff"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
	"github.com/softwaresalt/agent-intercom/internal/policy"
	"github.com/softwaresalt/agent-intercom/internal/recovery"
	"github.com/softwaresalt/agent-intercom/internal/stall"
)

// ChatPoster posts messages outside the broker's three mediated wait
// points: remote_log's one-off status line, and the terminal-command
// gate's post-approval offer to remember an auto-approve pattern.
type ChatPoster interface {
	PostLog(ctx context.Context, channelID, level, message, threadTS string) (posted bool, ts string, err error)

	// PostAutoApproveSuggestion offers the operator a one-click way to
	// persist an auto-approve pattern for command, derived from the
	// terminal command just approved for session sessionID, into
	// workspaceRoot's policy file.
	PostAutoApproveSuggestion(ctx context.Context, sessionID, workspaceRoot, command string) error
}

// NoopChatPoster discards every message; used when no chat layer is
// wired (IPC-only deployments, unit tests).
type NoopChatPoster struct{}

func (NoopChatPoster) PostLog(context.Context, string, string, string, string) (bool, string, error) {
	return false, "", nil
}

func (NoopChatPoster) PostAutoApproveSuggestion(context.Context, string, string, string) error {
	return nil
}

// Deps bundles every collaborator the tool handlers wire together.
type Deps struct {
	Store          persistence.Store
	Broker         *broker.Broker
	Policy         *policy.Evaluator
	PolicyCache    *policy.Cache
	Patcher        diff.Patcher
	Recovery       *recovery.Manager
	Audit          audit.Logger
	Stalls         *stall.Registry
	Chat           ChatPoster
	DefaultChannel string
	Logger         *zap.Logger
}

// New builds the MCP server and registers every tool against deps.
func New(deps Deps) *mcp.Server {
	if deps.Chat == nil {
		deps.Chat = NoopChatPoster{}
	}
	impl := &mcp.Implementation{Name: "agent-intercom", Version: "0.1.0"}
	server := mcp.NewServer(impl, nil)

	h := &handlers{deps: deps}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_approval",
		Description: "Request operator approval for a proposed code change before it is applied.",
	}, h.askApproval)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "accept_diff",
		Description: "Apply a previously approved code change to the workspace.",
	}, h.acceptDiff)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_auto_approve",
		Description: "Check whether a tool invocation is covered by the workspace's auto-approve policy.",
	}, h.checkAutoApprove)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "forward_prompt",
		Description: "Forward a continuation prompt to the operator and wait for a steering decision.",
	}, h.forwardPrompt)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "heartbeat",
		Description: "Report agent liveness, resetting the stall timer and optionally updating the progress snapshot.",
	}, h.heartbeat)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recover_state",
		Description: "Reconstruct a session's pending requests and last checkpoint after a crash or restart.",
	}, h.recoverState)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remote_log",
		Description: "Post a non-blocking status message to the operator's chat channel.",
	}, h.remoteLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_operational_mode",
		Description: "Switch the session between remote, local, and hybrid operator-interaction modes.",
	}, h.setOperationalMode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wait_for_instruction",
		Description: "Place the agent in standby and wait for the operator to resume or stop it.",
	}, h.waitForInstruction)

	return server
}

// handlers closes over Deps for every tool method.
type handlers struct {
	deps Deps
}

// ServeStdio runs server over stdio until ctx is canceled, matching
// the original's direct-invocation transport for agentic CLIs.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// SSEHandler returns an http.Handler serving server over SSE at
// whatever path the caller mounts it under (spec 6.7: /mcp/sse).
func SSEHandler(server *mcp.Server) http.Handler {
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return server
	})
}

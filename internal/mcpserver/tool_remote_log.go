package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

var validLogLevels = map[string]bool{"info": true, "success": true, "warning": true, "error": true}

type remoteLogInput struct {
	Message  string  `json:"message" jsonschema:"log message to post"`
	Level    string  `json:"level,omitempty" jsonschema:"info, success, warning, or error"`
	ThreadTS *string `json:"thread_ts,omitempty" jsonschema:"optional chat thread to reply within"`
}

type remoteLogOutput struct {
	Posted bool   `json:"posted"`
	TS     string `json:"ts,omitempty"`
}

func (h *handlers) remoteLog(ctx context.Context, _ *mcp.CallToolRequest, in remoteLogInput) (*mcp.CallToolResult, remoteLogOutput, error) {
	level := in.Level
	if level == "" {
		level = "info"
	}
	if !validLogLevels[level] {
		return nil, remoteLogOutput{}, &invalidLevelError{level: level}
	}

	sess, err := resolveActiveSession(ctx, h.deps.Store)
	if err != nil {
		return nil, remoteLogOutput{}, err
	}

	threadTS := ""
	if in.ThreadTS != nil {
		threadTS = *in.ThreadTS
	}
	posted, ts, err := h.deps.Chat.PostLog(ctx, effectiveChannel(sess, h.deps.DefaultChannel), level, in.Message, threadTS)
	if err != nil {
		h.deps.Logger.Warn("failed to post remote_log message")
		posted = false
	}

	sess.LastTool = strPtr("remote_log")
	if err := h.deps.Store.Sessions().Update(ctx, sess); err != nil {
		h.deps.Logger.Warn("failed to update session after remote_log")
	}

	h.logAudit(ctx, sess, "remote_log", func(rec *models.AuditRecord) {
		rec.EventType = models.AuditToolCall
	})

	return nil, remoteLogOutput{Posted: posted, TS: ts}, nil
}

type invalidLevelError struct{ level string }

func (e *invalidLevelError) Error() string {
	return "invalid level '" + e.level + "'; expected one of: info, success, warning, error"
}

package mcpserver

import (
	"context"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// resolveActiveSession returns the single active session a tool call
// implicitly operates on. Per the original handler contract, zero or
// more than one active session is a server error, not a tool-level
// one: a multi-session daemon routes each agent connection through
// its own MCP server instance, so exactly one active session is
// expected here.
func resolveActiveSession(ctx context.Context, store persistence.Store) (*models.Session, error) {
	sessions, err := store.Sessions().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ierrors.Protocol("no active session found")
	}
	if len(sessions) > 1 {
		return nil, ierrors.Protocol("multiple active sessions found; ambiguous tool call")
	}
	return sessions[0], nil
}

// effectiveChannel returns the session's bound chat channel, falling
// back to the daemon's configured default channel.
func effectiveChannel(sess *models.Session, defaultChannel string) string {
	if sess.ChannelID != nil && *sess.ChannelID != "" {
		return *sess.ChannelID
	}
	return defaultChannel
}

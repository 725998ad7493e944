// Package driver implements the polymorphic Agent Driver (spec §4.2):
// a fixed interface for turning operator decisions into
// protocol-specific messages on the agent channel, with one
// implementation per supported protocol.
package driver

import (
	"context"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// Driver is the fixed interface both protocol variants expose.
// Interrupt MUST be idempotent.
type Driver interface {
	ResolveClearance(ctx context.Context, requestID string, approved bool, reason *string) error
	SendPrompt(ctx context.Context, sessionID, text string) error
	Interrupt(ctx context.Context, sessionID string) error
	ResolvePrompt(ctx context.Context, promptID string, decision models.PromptDecision, instruction *string) error
	ResolveWait(ctx context.Context, sessionID string, instruction *string) error
}

package driver

import (
	"context"

	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

// mcpDriver delegates directly to the Request Broker's registries — it
// holds the same broker instance the MCP tool handlers call into. MCP
// is a response-driven RPC protocol with no server-initiated push
// channel, so SendPrompt and Interrupt are no-ops here.
type mcpDriver struct {
	broker *broker.Broker
}

// NewMCP builds the MCP variant of the Agent Driver.
func NewMCP(b *broker.Broker) Driver {
	return &mcpDriver{broker: b}
}

func (d *mcpDriver) ResolveClearance(ctx context.Context, requestID string, approved bool, reason *string) error {
	return d.broker.ResolveApproval(ctx, requestID, approved, reason)
}

// SendPrompt is a no-op: MCP has no server-initiated push channel to
// deliver it over.
func (d *mcpDriver) SendPrompt(ctx context.Context, sessionID, text string) error {
	return nil
}

// Interrupt is a no-op for the same reason, and is trivially
// idempotent.
func (d *mcpDriver) Interrupt(ctx context.Context, sessionID string) error {
	return nil
}

func (d *mcpDriver) ResolvePrompt(ctx context.Context, promptID string, decision models.PromptDecision, instruction *string) error {
	return d.broker.ResolvePrompt(ctx, promptID, decision, instruction)
}

func (d *mcpDriver) ResolveWait(ctx context.Context, sessionID string, instruction *string) error {
	return d.broker.ResolveWait(ctx, sessionID, instruction)
}

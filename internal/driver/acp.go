package driver

import (
	"context"
	"sync"

	"github.com/softwaresalt/agent-intercom/internal/acp"
	"github.com/softwaresalt/agent-intercom/internal/broker"
	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// streamHandle is the registered outbound channel for one connected
// session, plus whether the stream has since been torn down. Send
// attempts after teardown fail with an ACP error rather than panicking
// on a closed channel.
type streamHandle struct {
	writer chan acp.OutboundMessage
	closed bool
}

// acpDriver owns three internal registries per spec §4.2: stream
// writers keyed by session id, and two correlation maps (clearance
// request id / prompt id -> session id) populated by the event
// consumer as it observes ClearanceRequested/PromptForwarded events,
// so a later operator decision can find the owning session from the
// correlation id alone. ResolveWait has no ACP-specific wire
// representation, so it delegates to the same shared broker the MCP
// variant uses.
type acpDriver struct {
	mu                sync.Mutex
	streams           map[string]*streamHandle
	pendingClearances map[string]string
	pendingPrompts    map[string]string

	store  persistence.Store
	broker *broker.Broker
}

// ACPSessionRegistry is the registration surface the daemon's ACP
// stream orchestration needs beyond the fixed Driver interface:
// binding a connected session's outbound writer channel and recording
// the pending correlations its clearance/prompt events create.
// Declared here (rather than leaving callers to hold the unexported
// *acpDriver by type inference alone) so cmd/intercomd can name a
// field/parameter type for it.
type ACPSessionRegistry interface {
	RegisterSession(sessionID string, writer chan acp.OutboundMessage)
	UnregisterSession(sessionID string)
	RegisterClearance(requestID, sessionID string)
	RegisterPrompt(promptID, sessionID string)
}

// NewACP builds the ACP variant of the Agent Driver.
func NewACP(store persistence.Store, b *broker.Broker) *acpDriver {
	return &acpDriver{
		streams:           make(map[string]*streamHandle),
		pendingClearances: make(map[string]string),
		pendingPrompts:    make(map[string]string),
		store:             store,
		broker:            b,
	}
}

// RegisterSession registers a connected session's outbound writer
// channel, called when its ACP stream connects.
func (d *acpDriver) RegisterSession(sessionID string, writer chan acp.OutboundMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streams[sessionID] = &streamHandle{writer: writer}
}

// UnregisterSession marks a session's stream as torn down. Subsequent
// sends to it fail with an ACP error instead of panicking on a closed
// channel.
func (d *acpDriver) UnregisterSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.streams[sessionID]; ok {
		h.closed = true
	}
}

// RegisterClearance records that a pending clearance request
// correlates to sessionID, called by the event consumer when it
// observes a ClearanceRequested event.
func (d *acpDriver) RegisterClearance(requestID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingClearances[requestID] = sessionID
}

// RegisterPrompt records that a pending forwarded prompt correlates to
// sessionID, called by the event consumer when it observes a
// PromptForwarded event.
func (d *acpDriver) RegisterPrompt(promptID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingPrompts[promptID] = sessionID
}

func (d *acpDriver) takeClearanceSession(requestID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sessionID, ok := d.pendingClearances[requestID]
	if ok {
		delete(d.pendingClearances, requestID)
	}
	return sessionID, ok
}

func (d *acpDriver) takePromptSession(promptID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sessionID, ok := d.pendingPrompts[promptID]
	if ok {
		delete(d.pendingPrompts, promptID)
	}
	return sessionID, ok
}

func (d *acpDriver) send(ctx context.Context, sessionID string, msg acp.OutboundMessage) error {
	d.mu.Lock()
	h, ok := d.streams[sessionID]
	d.mu.Unlock()
	if !ok || h.closed {
		return ierrors.Protocol("acp stream for session %q is not connected", sessionID)
	}
	select {
	case h.writer <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendBestEffort writes to a registered session's stream without
// treating "not connected" as an error — used by SendPrompt/Interrupt,
// which per spec §4.2 succeed silently even when the receiver has
// gone away.
func (d *acpDriver) sendBestEffort(ctx context.Context, sessionID string, msg acp.OutboundMessage) error {
	d.mu.Lock()
	h, ok := d.streams[sessionID]
	d.mu.Unlock()
	if !ok || h.closed {
		return nil
	}
	select {
	case h.writer <- msg:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (d *acpDriver) ResolveClearance(ctx context.Context, requestID string, approved bool, reason *string) error {
	sessionID, ok := d.takeClearanceSession(requestID)
	if !ok {
		return ierrors.NotFound("pending_clearance", requestID)
	}

	status := models.ApprovalRejected
	if approved {
		status = models.ApprovalApproved
	}
	if err := d.store.Approvals().UpdateStatus(ctx, requestID, status); err != nil {
		return err
	}

	return d.send(ctx, sessionID, acp.OutboundMessage{
		Method: "clearance/response",
		ID:     requestID,
		Params: map[string]any{"approved": approved, "reason": reason},
	})
}

func (d *acpDriver) SendPrompt(ctx context.Context, sessionID, text string) error {
	return d.sendBestEffort(ctx, sessionID, acp.OutboundMessage{
		Method: "prompt/send",
		Params: map[string]any{"text": text},
	})
}

// Interrupt is idempotent: a session with no registered stream (or an
// unknown session id) is treated as already interrupted.
func (d *acpDriver) Interrupt(ctx context.Context, sessionID string) error {
	return d.sendBestEffort(ctx, sessionID, acp.OutboundMessage{
		Method: "session/interrupt",
	})
}

func (d *acpDriver) ResolvePrompt(ctx context.Context, promptID string, decision models.PromptDecision, instruction *string) error {
	sessionID, ok := d.takePromptSession(promptID)
	if !ok {
		return ierrors.NotFound("pending_prompt", promptID)
	}

	if err := d.store.Prompts().Resolve(ctx, promptID, decision, instruction); err != nil {
		return err
	}

	return d.send(ctx, sessionID, acp.OutboundMessage{
		Method: "prompt/response",
		ID:     promptID,
		Params: map[string]any{"decision": decision, "instruction": instruction},
	})
}

// ResolveWait has no ACP wire representation; the pending_waits
// registry lives in the shared broker regardless of which driver
// variant is active.
func (d *acpDriver) ResolveWait(ctx context.Context, sessionID string, instruction *string) error {
	return d.broker.ResolveWait(ctx, sessionID, instruction)
}

var _ Driver = (*acpDriver)(nil)
var _ ACPSessionRegistry = (*acpDriver)(nil)

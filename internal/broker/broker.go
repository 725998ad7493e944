// Package broker implements the Request Broker: three keyed registries
// of single-shot response channels (approvals, prompts, waits) that
// suspend a tool call until an operator decision arrives or a
// configured timeout elapses.
//
// Grounded on mfateev-temporal-agent-harness/internal/workflow/control.go's
// ResponseSlot[T]/LoopControl shape (bool+*T pair, delivered by a
// handler, awaited by the loop) — reimplemented here with real
// channels awaited via select/context/time.Timer, since this daemon
// has no workflow coordinator to call workflow.Await through.
package broker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/config"
	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// WaitStatus is the terminal status of a pending_waits entry.
type WaitStatus string

const (
	WaitResumed WaitStatus = "resumed"
	WaitTimeout WaitStatus = "timeout"
)

// ApprovalOutcome is delivered through the pending_approvals registry.
type ApprovalOutcome struct {
	Status models.ApprovalStatus
	Reason *string
}

// PromptOutcome is delivered through the pending_prompts registry.
type PromptOutcome struct {
	Decision    models.PromptDecision
	Instruction *string
}

// WaitOutcome is delivered through the pending_waits registry.
type WaitOutcome struct {
	Status      WaitStatus
	Instruction *string
}

// Broker owns the three correlation registries plus the timeouts and
// chat notifier used to mediate operator decisions.
type Broker struct {
	store    persistence.Store
	notifier Notifier
	logger   *zap.Logger

	approvalTimeout time.Duration
	promptTimeout   time.Duration
	waitTimeout     time.Duration

	approvals *registry[ApprovalOutcome]
	prompts   *registry[PromptOutcome]
	waits     *registry[WaitOutcome]
}

// New constructs a Broker. notifier may be NoopNotifier{} when no chat
// layer is wired.
func New(store persistence.Store, notifier Notifier, timeouts config.TimeoutsConfig, logger *zap.Logger) *Broker {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Broker{
		store:           store,
		notifier:        notifier,
		logger:          logger,
		approvalTimeout: time.Duration(timeouts.ApprovalSeconds) * time.Second,
		promptTimeout:   time.Duration(timeouts.PromptSeconds) * time.Second,
		waitTimeout:     time.Duration(timeouts.WaitSeconds) * time.Second,
		approvals:       newRegistry[ApprovalOutcome](),
		prompts:         newRegistry[PromptOutcome](),
		waits:           newRegistry[WaitOutcome](),
	}
}

// timeoutChan returns a channel that fires after d, or nil (which
// never becomes ready in a select) when d is zero or negative — the
// encoding for the wait point's "0 s (indefinite)" default.
func timeoutChan(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return time.After(d)
}

// RequestApproval installs a pending_approvals entry, posts the
// interactive message, and suspends until resolved or the approval
// timeout elapses. On timeout the approval is marked Expired.
func (b *Broker) RequestApproval(ctx context.Context, approval *models.ApprovalRequest) (*ApprovalOutcome, error) {
	sl := b.approvals.install(approval.ID)
	defer b.approvals.remove(approval.ID)

	if err := b.notifier.NotifyApprovalRequested(ctx, approval); err != nil {
		b.logger.Warn("failed to post approval notification", zap.String("approval_id", approval.ID), zap.Error(err))
	}

	select {
	case outcome, ok := <-sl.ch:
		if !ok {
			return b.expireApproval(ctx, approval.ID)
		}
		return &outcome, nil
	case <-timeoutChan(b.approvalTimeout):
		return b.expireApproval(ctx, approval.ID)
	case <-ctx.Done():
		return b.expireApproval(ctx, approval.ID)
	}
}

func (b *Broker) expireApproval(ctx context.Context, id string) (*ApprovalOutcome, error) {
	if err := b.store.Approvals().UpdateStatus(ctx, id, models.ApprovalExpired); err != nil {
		b.logger.Warn("failed to mark approval expired", zap.String("approval_id", id), zap.Error(err))
	}
	return &ApprovalOutcome{Status: models.ApprovalExpired}, nil
}

// ResolveApproval delivers an operator decision to a pending
// RequestApproval call, updating the domain record's terminal status
// first so readers observing the record see a consistent state.
func (b *Broker) ResolveApproval(ctx context.Context, id string, approved bool, reason *string) error {
	status := models.ApprovalRejected
	if approved {
		status = models.ApprovalApproved
	}
	if err := b.store.Approvals().UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if !b.approvals.deliver(id, ApprovalOutcome{Status: status, Reason: reason}) {
		return ierrors.NotFound("pending_approval", id)
	}
	return nil
}

// RequestPrompt installs a pending_prompts entry and suspends until
// resolved or the prompt timeout elapses. On timeout the prompt
// resolves with the default Continue decision so the agent never
// blocks indefinitely on operator inattention.
func (b *Broker) RequestPrompt(ctx context.Context, prompt *models.ContinuationPrompt) (*PromptOutcome, error) {
	sl := b.prompts.install(prompt.ID)
	defer b.prompts.remove(prompt.ID)

	if err := b.notifier.NotifyPromptRequested(ctx, prompt); err != nil {
		b.logger.Warn("failed to post prompt notification", zap.String("prompt_id", prompt.ID), zap.Error(err))
	}

	select {
	case outcome, ok := <-sl.ch:
		if !ok {
			return b.expirePrompt(ctx, prompt.ID)
		}
		return &outcome, nil
	case <-timeoutChan(b.promptTimeout):
		return b.expirePrompt(ctx, prompt.ID)
	case <-ctx.Done():
		return b.expirePrompt(ctx, prompt.ID)
	}
}

func (b *Broker) expirePrompt(ctx context.Context, id string) (*PromptOutcome, error) {
	if err := b.store.Prompts().Resolve(ctx, id, models.DecisionContinue, nil); err != nil {
		b.logger.Warn("failed to resolve prompt with default decision", zap.String("prompt_id", id), zap.Error(err))
	}
	return &PromptOutcome{Decision: models.DecisionContinue}, nil
}

// ResolvePrompt delivers an operator decision to a pending
// RequestPrompt call.
func (b *Broker) ResolvePrompt(ctx context.Context, id string, decision models.PromptDecision, instruction *string) error {
	if err := b.store.Prompts().Resolve(ctx, id, decision, instruction); err != nil {
		return err
	}
	if !b.prompts.deliver(id, PromptOutcome{Decision: decision, Instruction: instruction}) {
		return ierrors.NotFound("pending_prompt", id)
	}
	return nil
}

// RequestWait installs a pending_waits entry keyed by session id and
// suspends until resumed or the wait timeout elapses. A zero wait
// timeout blocks indefinitely (until ctx is canceled or resolved).
// There is no domain record keyed on "wait" itself — the session's own
// status already reflects why it is waiting — so no repository update
// occurs here.
func (b *Broker) RequestWait(ctx context.Context, sessionID string) (*WaitOutcome, error) {
	sl := b.waits.install(sessionID)
	defer b.waits.remove(sessionID)

	if err := b.notifier.NotifyWaitStarted(ctx, sessionID); err != nil {
		b.logger.Warn("failed to post wait notification", zap.String("session_id", sessionID), zap.Error(err))
	}

	select {
	case outcome, ok := <-sl.ch:
		if !ok {
			return &WaitOutcome{Status: WaitTimeout}, nil
		}
		return &outcome, nil
	case <-timeoutChan(b.waitTimeout):
		return &WaitOutcome{Status: WaitTimeout}, nil
	case <-ctx.Done():
		return &WaitOutcome{Status: WaitTimeout}, nil
	}
}

// ResolveWait delivers a resume decision to a pending RequestWait call.
func (b *Broker) ResolveWait(ctx context.Context, sessionID string, instruction *string) error {
	if !b.waits.deliver(sessionID, WaitOutcome{Status: WaitResumed, Instruction: instruction}) {
		return ierrors.NotFound("pending_wait", sessionID)
	}
	return nil
}

// HasPendingWait reports whether sessionID currently has a suspended
// RequestWait call awaiting resolution.
func (b *Broker) HasPendingWait(sessionID string) bool {
	return b.waits.has(sessionID)
}

// PendingWaitSessionIDs returns every session id currently suspended in
// RequestWait, in no particular order. Used by the IPC dispatcher's
// `resume` command when no explicit session id is supplied.
func (b *Broker) PendingWaitSessionIDs() []string {
	return b.waits.keys()
}

// Shutdown closes every pending slot's channel, releasing any
// suspended RequestApproval/RequestPrompt/RequestWait call with the
// sender-dropped-during-shutdown semantics the spec treats as a
// timeout.
func (b *Broker) Shutdown() {
	b.approvals.closeAll()
	b.prompts.closeAll()
	b.waits.closeAll()
}

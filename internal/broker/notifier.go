package broker

import (
	"context"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// Notifier posts the interactive message that accompanies each
// broker-mediated wait point. The chat layer implements this; the
// broker only depends on the interface (accept interfaces, return
// structs) so it can be tested and wired without a live chat backend.
type Notifier interface {
	NotifyApprovalRequested(ctx context.Context, approval *models.ApprovalRequest) error
	NotifyPromptRequested(ctx context.Context, prompt *models.ContinuationPrompt) error
	NotifyWaitStarted(ctx context.Context, sessionID string) error
}

// NoopNotifier discards every notification. Used where no chat layer
// is wired, such as unit tests or IPC-only deployments.
type NoopNotifier struct{}

func (NoopNotifier) NotifyApprovalRequested(context.Context, *models.ApprovalRequest) error {
	return nil
}

func (NoopNotifier) NotifyPromptRequested(context.Context, *models.ContinuationPrompt) error {
	return nil
}

func (NoopNotifier) NotifyWaitStarted(context.Context, string) error {
	return nil
}

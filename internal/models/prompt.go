package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptType categorizes a forwarded continuation prompt.
type PromptType string

const (
	PromptContinuation    PromptType = "continuation"
	PromptClarification   PromptType = "clarification"
	PromptErrorRecovery   PromptType = "error_recovery"
	PromptResourceWarning PromptType = "resource_warning"
)

// PromptDecision is the operator's response to a ContinuationPrompt.
type PromptDecision string

const (
	DecisionContinue PromptDecision = "continue"
	DecisionRefine   PromptDecision = "refine"
	DecisionStop     PromptDecision = "stop"
)

// ContinuationPrompt is an agent-originated request for operator
// steering between iterations.
type ContinuationPrompt struct {
	ID             string
	SessionID      string
	PromptText     string
	PromptType     PromptType
	ElapsedSeconds *int64
	ActionsTaken   *int64
	Decision       *PromptDecision
	Instruction    *string
	SlackTS        *string
	CreatedAt      time.Time
}

// NewContinuationPrompt constructs a pending continuation prompt.
func NewContinuationPrompt(sessionID, promptText string, promptType PromptType, elapsedSeconds, actionsTaken *int64) *ContinuationPrompt {
	return &ContinuationPrompt{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		PromptText:     promptText,
		PromptType:     promptType,
		ElapsedSeconds: elapsedSeconds,
		ActionsTaken:   actionsTaken,
		CreatedAt:      time.Now().UTC(),
	}
}

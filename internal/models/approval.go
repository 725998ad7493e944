package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies how disruptive a code proposal could be.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ApprovalStatus is the lifecycle state of an ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalPending     ApprovalStatus = "pending"
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalRejected    ApprovalStatus = "rejected"
	ApprovalExpired     ApprovalStatus = "expired"
	ApprovalConsumed    ApprovalStatus = "consumed"
	ApprovalInterrupted ApprovalStatus = "interrupted"
)

// ApprovalRequest is a code proposal awaiting operator review.
type ApprovalRequest struct {
	ID           string
	SessionID    string
	Title        string
	Description  *string
	DiffContent  string
	FilePath     string
	RiskLevel    RiskLevel
	Status       ApprovalStatus
	OriginalHash string
	SlackTS      *string
	CreatedAt    time.Time
	ConsumedAt   *time.Time
}

// NewApprovalRequest constructs a pending approval request.
func NewApprovalRequest(sessionID, title string, description *string, diffContent, filePath string, risk RiskLevel, originalHash string) *ApprovalRequest {
	return &ApprovalRequest{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Title:        title,
		Description:  description,
		DiffContent:  diffContent,
		FilePath:     filePath,
		RiskLevel:    risk,
		Status:       ApprovalPending,
		OriginalHash: originalHash,
		CreatedAt:    time.Now().UTC(),
	}
}

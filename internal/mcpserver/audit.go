package mcpserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// logAudit writes one audit record for toolName against sess, applying
// configure to fill in event-type-specific fields. Audit failures are
// logged and swallowed: a tool call that already succeeded must not
// fail the caller because the audit trail could not be written.
func (h *handlers) logAudit(ctx context.Context, sess *models.Session, toolName string, configure func(*models.AuditRecord)) {
	if h.deps.Audit == nil {
		return
	}
	rec := models.AuditRecord{
		SessionID: &sess.ID,
		ToolName:  &toolName,
		EventType: models.AuditToolCall,
	}
	if configure != nil {
		configure(&rec)
	}
	if err := h.deps.Audit.Log(rec); err != nil {
		h.deps.Logger.Warn("failed to write audit record",
			zap.String("tool", toolName), zap.String("session_id", sess.ID), zap.Error(err))
	}
}

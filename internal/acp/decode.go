package acp

import (
	"encoding/json"
	"fmt"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// decodeEvent parses one inbound frame into its AgentEvent per the
// method table in spec §4.3. A nil event with a nil error means the
// method is unrecognized and the frame is silently discarded (logged
// at debug by the caller). A non-nil error means a recognized method
// was missing a required field; the caller logs and skips the frame
// without treating it as fatal.
func decodeEvent(line []byte) (AgentEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return nil, fmt.Errorf("malformed ACP frame: %w", err)
	}

	switch frame.Method {
	case "clearance/request":
		var p clearanceRequestParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return nil, fmt.Errorf("malformed clearance/request params: %w", err)
		}
		if p.RequestID == "" || p.SessionID == "" || p.FilePath == "" {
			return nil, fmt.Errorf("clearance/request missing required fields")
		}
		return ClearanceRequested{
			RequestID:   p.RequestID,
			SessionID:   p.SessionID,
			Title:       p.Title,
			Description: p.Description,
			Diff:        p.Diff,
			FilePath:    p.FilePath,
			RiskLevel:   models.RiskLevel(p.RiskLevel),
		}, nil

	case "status/update":
		var p statusUpdateParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return nil, fmt.Errorf("malformed status/update params: %w", err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("status/update missing session_id")
		}
		return StatusUpdated{SessionID: p.SessionID, Message: p.Message}, nil

	case "prompt/forward":
		var p promptForwardParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return nil, fmt.Errorf("malformed prompt/forward params: %w", err)
		}
		if p.SessionID == "" || p.PromptID == "" {
			return nil, fmt.Errorf("prompt/forward missing required fields")
		}
		return PromptForwarded{
			SessionID: p.SessionID,
			PromptID:  p.PromptID,
			Text:      p.Text,
			Type:      models.PromptType(p.Type),
		}, nil

	case "heartbeat":
		var p heartbeatParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return nil, fmt.Errorf("malformed heartbeat params: %w", err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("heartbeat missing session_id")
		}
		var progress []models.ProgressItem
		for _, pw := range p.Progress {
			progress = append(progress, models.ProgressItem{
				Label:  pw.Label,
				Status: models.ProgressStatus(pw.Status),
			})
		}
		return HeartbeatReceived{SessionID: p.SessionID, Progress: progress}, nil

	default:
		return nil, nil
	}
}

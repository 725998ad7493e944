// Auto-approve suggestion flow, grounded on
// original_source/src/slack/handlers/command_approve.rs:
// suggestion_blocks posts the offer after a terminal command is
// approved, handle_auto_approve_action persists or dismisses it. Here
// the two halves live in one file, one on Service (posting) and one
// on Dispatcher (handling), since this package already keeps one
// method per handler rather than one type per handler.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/policy"
)

// autoApproveSuggestion is encoded into the suggestion buttons' value
// field so the click handler can recover which workspace and command
// the suggestion was about without any extra server-side state.
type autoApproveSuggestion struct {
	SessionID     string `json:"session_id"`
	WorkspaceRoot string `json:"workspace_root"`
	Command       string `json:"command"`
}

// PostAutoApproveSuggestion offers to remember command as an
// auto-approve pattern, posted as its own message once the one-off
// command has already been approved — the suggestion is a separate,
// non-blocking decision, not a condition of the approval itself.
func (s *Service) PostAutoApproveSuggestion(ctx context.Context, sessionID, workspaceRoot, command string) error {
	channel := s.channelForSession(ctx, sessionID)
	value, err := json.Marshal(autoApproveSuggestion{SessionID: sessionID, WorkspaceRoot: workspaceRoot, Command: command})
	if err != nil {
		return fmt.Errorf("failed to encode auto-approve suggestion: %w", err)
	}

	text := fmt.Sprintf("Remember this command for next time?\n`%s`", command)
	blocks := []map[string]any{textSection(text), autoApproveButtons("auto_approve_"+sessionID, string(value))}
	s.enqueue(outboundMessage{channel: channel, text: "Auto-approve suggestion", blocks: blocks})
	return nil
}

// handleAutoApprove routes an auto_approve_add/auto_approve_dismiss
// button click: add derives and persists a full-line regex pattern
// into the workspace's settings file via policy.AppendAutoApproveCommand,
// dismiss just replaces the buttons with a status line.
func (d *Dispatcher) handleAutoApprove(ctx context.Context, actionID, rawValue string, p *interactionPayload) {
	var sug autoApproveSuggestion
	if err := json.Unmarshal([]byte(rawValue), &sug); err != nil {
		d.Logger.Warn("malformed auto-approve suggestion value", zap.Error(err))
		return
	}

	var statusText string
	switch actionID {
	case "auto_approve_add":
		prefix := strings.Fields(sug.Command)
		if err := policy.AppendAutoApproveCommand(sug.WorkspaceRoot, prefix); err != nil {
			d.Logger.Warn("failed to persist auto-approve pattern", zap.String("command", sug.Command), zap.Error(err))
			return
		}
		statusText = "✅ Added to auto-approve policy by <@" + p.User.ID + "> — `" + sug.Command + "`"
	case "auto_approve_dismiss":
		statusText = "Dismissed by <@" + p.User.ID + ">"
	default:
		return
	}

	d.replaceButtons(ctx, p.Channel.ID, p.Message.TS, statusText)
}

package slack

import "fmt"

// Slack Block Kit blocks are built here as raw JSON shapes.
// No Slack SDK exists anywhere in the retrieval pack, so messages are
// built as map[string]any and marshaled directly rather than through
// typed wrappers — grounded on original_source/src/slack/blocks.rs's
// builder functions, one unexported builder func here per builder there.

// severityPrefix maps a remote_log level to its Block Kit emoji
// prefix, matching blocks.rs's severity_section.
func severityPrefix(level string) string {
	switch level {
	case "success":
		return "✅"
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	default:
		return "ℹ️"
	}
}

func textSection(text string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func severitySection(level, message string) map[string]any {
	return textSection(fmt.Sprintf("%s %s", severityPrefix(level), message))
}

func diffSection(diff string) map[string]any {
	return textSection(fmt.Sprintf("```\n%s\n```", diff))
}

type buttonSpec struct {
	actionID string
	text     string
	value    string
}

func actionButtons(blockID string, buttons []buttonSpec) map[string]any {
	elements := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		elements = append(elements, map[string]any{
			"type":      "button",
			"action_id": b.actionID,
			"text":      map[string]any{"type": "plain_text", "text": b.text},
			"value":     b.value,
		})
	}
	return map[string]any{
		"type":     "actions",
		"block_id": blockID,
		"elements": elements,
	}
}

func approvalButtons(requestID string) map[string]any {
	return actionButtons(fmt.Sprintf("approval_%s", requestID), []buttonSpec{
		{"approve_accept", "Accept", requestID},
		{"approve_reject", "Reject", requestID},
	})
}

func promptButtons(promptID string) map[string]any {
	return actionButtons(fmt.Sprintf("prompt_%s", promptID), []buttonSpec{
		{"prompt_continue", "Continue", promptID},
		{"prompt_refine", "Refine", promptID},
		{"prompt_stop", "Stop", promptID},
	})
}

func nudgeButtons(alertID string) map[string]any {
	return actionButtons(fmt.Sprintf("stall_%s", alertID), []buttonSpec{
		{"stall_nudge", "Nudge", alertID},
		{"stall_nudge_instruct", "Nudge with Instructions", alertID},
		{"stall_stop", "Stop", alertID},
	})
}

func waitButtons(sessionID string) map[string]any {
	return actionButtons(fmt.Sprintf("wait_%s", sessionID), []buttonSpec{
		{"wait_resume", "Resume", sessionID},
		{"wait_resume_instruct", "Resume with Instructions", sessionID},
		{"wait_stop", "Stop Session", sessionID},
	})
}

// autoApproveButtons offers the one-click choice posted after a
// terminal command is approved: remember a derived pattern for it, or
// dismiss, matching slack/handlers/command_approve.rs's
// suggestion_blocks (auto_approve_add / auto_approve_dismiss).
func autoApproveButtons(blockID, value string) map[string]any {
	return actionButtons(blockID, []buttonSpec{
		{"auto_approve_add", "Add to auto-approve", value},
		{"auto_approve_dismiss", "Dismiss", value},
	})
}

// instructionModal builds a single-input modal view used to collect
// free text (rejection reasons, resume/nudge instructions) from the
// operator, keyed by callbackID so the ViewSubmission handler can
// recover what prompted it.
func instructionModal(callbackID, title, placeholder string) map[string]any {
	return map[string]any{
		"type":        "modal",
		"callback_id": callbackID,
		"title":       map[string]any{"type": "plain_text", "text": title},
		"submit":      map[string]any{"type": "plain_text", "text": "Submit"},
		"close":       map[string]any{"type": "plain_text", "text": "Cancel"},
		"blocks": []map[string]any{
			{
				"type":     "input",
				"block_id": "instruction_block",
				"label":    map[string]any{"type": "plain_text", "text": title},
				"element": map[string]any{
					"type":        "plain_text_input",
					"action_id":   "instruction_input",
					"multiline":   true,
					"placeholder": map[string]any{"type": "plain_text", "text": placeholder},
				},
			},
		},
	}
}

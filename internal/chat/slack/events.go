package slack

import "encoding/json"

// socketEnvelope is the outer Socket Mode frame, per spec 6.8:
// {type, envelope_id?, payload?}. Grounded on original_source's
// slack/events.rs dispatch on envelope type.
type socketEnvelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type socketAck struct {
	EnvelopeID string `json:"envelope_id"`
}

// interactionPayload is the decoded body of a block_actions or
// view_submission interactive payload.
type interactionPayload struct {
	Type      string `json:"type"` // "block_actions" or "view_submission"
	TriggerID string `json:"trigger_id"`
	User      struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	View struct {
		CallbackID string `json:"callback_id"`
		State      struct {
			Values map[string]map[string]struct {
				Value string `json:"value"`
			} `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

// slashCommandPayload is the decoded body of a slash command
// invocation, per slack/commands.rs.
type slashCommandPayload struct {
	Command   string `json:"command"`
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// instructionText extracts the single free-text input value a modal
// built by instructionModal collects, regardless of its block id.
func (p *interactionPayload) instructionText() string {
	for _, block := range p.View.State.Values {
		if v, ok := block["instruction_input"]; ok {
			return v.Value
		}
	}
	return ""
}

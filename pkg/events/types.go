// Package events delivers the chat widget protocol over WebSocket.
//
// Every widget connection owns one turn machine. Client messages are decoded
// into machine events; after each handled event the connection receives a
// full snapshot of the renderable state.
//
//	client → server   {"action": "send", "text": "hoeveel kost ..."}
//	server → client   {"type": "snapshot", "snapshot": {...}}
//	server → client   {"type": "navigate", "url": "/afspraak-maken"}
package events

import (
	"fmt"

	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// Server message types.
const (
	MessageTypeEstablished = "connection.established"
	MessageTypeSnapshot    = "snapshot"
	MessageTypeNavigate    = "navigate"
	MessageTypeError       = "error"
	MessageTypePong        = "pong"
)

// Client actions.
const (
	ActionPing                = "ping"
	ActionOpen                = "open"
	ActionClose               = "close"
	ActionInput               = "input"
	ActionSend                = "send"
	ActionSuggestion          = "suggestion"
	ActionQuickReply          = "quick_reply"
	ActionLeadField           = "lead_field"
	ActionLeadNext            = "lead_next"
	ActionLeadBack            = "lead_back"
	ActionLeadSubmit          = "lead_submit"
	ActionExitShowSuggestions = "exit_show_suggestions"
	ActionExitClose           = "exit_close"
	ActionSummaryDismiss      = "summary_dismiss"
	ActionSummaryEmail        = "summary_email"
	ActionLanguage            = "language"
)

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action   string `json:"action"`
	Text     string `json:"text,omitempty"`
	ID       string `json:"id,omitempty"`    // suggestion id or quick reply option
	Field    string `json:"field,omitempty"` // lead form field
	Value    string `json:"value,omitempty"`
	Email    string `json:"email,omitempty"`
	Language string `json:"language,omitempty"`
}

// ServerMessage is the JSON structure for server → client WebSocket messages.
type ServerMessage struct {
	Type           string         `json:"type"`
	ConnectionID   string         `json:"connection_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Snapshot       *turn.Snapshot `json:"snapshot,omitempty"`
	URL            string         `json:"url,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// Event converts a client message into a machine event. Ping has no event
// and returns nil without error.
func (m ClientMessage) Event() (turn.Event, error) {
	switch m.Action {
	case ActionPing:
		return nil, nil
	case ActionOpen:
		return turn.Open{}, nil
	case ActionClose:
		return turn.Close{}, nil
	case ActionInput:
		return turn.InputChanged{Text: m.Text}, nil
	case ActionSend:
		return turn.SendText{Text: m.Text}, nil
	case ActionSuggestion:
		if m.ID == "" {
			return nil, fmt.Errorf("id is required for %s", m.Action)
		}
		return turn.SuggestionClicked{ID: m.ID}, nil
	case ActionQuickReply:
		if m.ID == "" {
			return nil, fmt.Errorf("id is required for %s", m.Action)
		}
		return turn.QuickReplySelected{Option: m.ID}, nil
	case ActionLeadField:
		switch m.Field {
		case turn.FieldName, turn.FieldEmail, turn.FieldConsent:
			return turn.LeadFieldChanged{Field: m.Field, Value: m.Value}, nil
		}
		return nil, fmt.Errorf("unknown lead field %q", m.Field)
	case ActionLeadNext:
		return turn.LeadNext{}, nil
	case ActionLeadBack:
		return turn.LeadBack{}, nil
	case ActionLeadSubmit:
		return turn.LeadSubmit{}, nil
	case ActionExitShowSuggestions:
		return turn.ExitShowSuggestions{}, nil
	case ActionExitClose:
		return turn.ExitClose{}, nil
	case ActionSummaryDismiss:
		return turn.SummaryDismissed{}, nil
	case ActionSummaryEmail:
		return turn.SummaryEmailRequested{Email: m.Email}, nil
	case ActionLanguage:
		if m.Language == "" {
			return nil, fmt.Errorf("language is required for %s", m.Action)
		}
		return turn.LanguageChanged{Language: m.Language}, nil
	}
	return nil, fmt.Errorf("unknown action %q", m.Action)
}

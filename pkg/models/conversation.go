// Package models contains the domain types shared across the engine,
// its stores and the API layer.
package models

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source records which path produced an assistant message.
type Source string

const (
	SourceMemory     Source = "memory"
	SourceBackend    Source = "backend"
	SourceFallback   Source = "fallback"
	SourceCanned     Source = "canned"
	SourceEscalation Source = "escalation"
)

// Conversation is one widget-open lifetime on one device.
type Conversation struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	VisitorID      string    `json:"visitor_id,omitempty"`
	Language       string    `json:"language"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// MessageMetadata carries orchestration flags alongside a message.
type MessageMetadata struct {
	PriceDetected         bool    `json:"price_detected,omitempty"`
	IsStyleConsultation   bool    `json:"is_style_consultation,omitempty"`
	ConsultationCompleted bool    `json:"consultation_completed,omitempty"`
	Automated             bool    `json:"automated,omitempty"`
	Error                 bool    `json:"error,omitempty"`
	Source                Source  `json:"source,omitempty"`
	Confidence            float64 `json:"confidence,omitempty"`
	Intent                string  `json:"intent,omitempty"`
	EscalationSuggested   bool    `json:"escalation_suggested,omitempty"`
	EscalationReason      string  `json:"escalation_reason,omitempty"`
}

// Message is an append-only transcript entry.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  MessageMetadata `json:"metadata"`
}

// UserTurns counts the user messages in msgs.
func UserTurns(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// LastN returns the trailing n messages of msgs (all of them when n <= 0 or
// n exceeds the length).
func LastN(msgs []Message, n int) []Message {
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// LastUserMessage returns the most recent user message of msgs.
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}

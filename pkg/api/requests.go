package api

import "github.com/codeready-toolchain/concierge/pkg/models"

// maxMessageLength bounds a visitor message.
const maxMessageLength = 4000

// CreateConversationRequest is the HTTP request body for POST /api/v1/conversations.
type CreateConversationRequest struct {
	SessionID string `json:"session_id"`
	VisitorID string `json:"visitor_id,omitempty"`
	Language  string `json:"language,omitempty"`
}

// SendMessageRequest is the HTTP request body for POST /api/v1/conversations/:id/messages.
type SendMessageRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// SubmitLeadRequest is the HTTP request body for POST /api/v1/conversations/:id/leads.
type SubmitLeadRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	GDPRConsent bool   `json:"gdpr_consent"`
	Language    string `json:"language,omitempty"`
}

// EscalateRequest is the HTTP request body for POST /api/v1/conversations/:id/escalations.
type EscalateRequest struct {
	Message        string                  `json:"message"`
	Language       string                  `json:"language,omitempty"`
	Reason         models.EscalationReason `json:"reason,omitempty"`
	Urgency        models.Urgency          `json:"urgency,omitempty"`
	Urgent         bool                    `json:"urgent,omitempty"`
	Category       string                  `json:"category,omitempty"`
	ContactChannel string                  `json:"contact_channel,omitempty"`
	ContactEmail   string                  `json:"contact_email,omitempty"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
}

// SummaryEmailRequest is the HTTP request body for POST /api/v1/summary-email.
type SummaryEmailRequest struct {
	Email    string `json:"email"`
	Summary  string `json:"summary"`
	Language string `json:"language,omitempty"`
}

// UpdateTicketRequest is the HTTP request body for PATCH /api/v1/escalations/:id.
type UpdateTicketRequest struct {
	Status models.TicketStatus `json:"status"`
}

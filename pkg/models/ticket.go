package models

import "time"

// EscalationReason is the trigger bucket that caused a handoff.
type EscalationReason string

const (
	ReasonUserRequest    EscalationReason = "user_request"
	ReasonPricingRequest EscalationReason = "pricing_request"
	ReasonComplaint      EscalationReason = "complaint"
	ReasonComplexQuery   EscalationReason = "complex_query"
	ReasonTechnicalIssue EscalationReason = "technical_issue"
)

// IsValid reports whether r is a known reason.
func (r EscalationReason) IsValid() bool {
	switch r {
	case ReasonUserRequest, ReasonPricingRequest, ReasonComplaint, ReasonComplexQuery, ReasonTechnicalIssue:
		return true
	}
	return false
}

// Urgency orders how quickly a human should respond.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// IsValid reports whether u is a known urgency.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// TicketStatus is the only mutable part of a ticket.
type TicketStatus string

const (
	TicketOpen         TicketStatus = "open"
	TicketAcknowledged TicketStatus = "acknowledged"
	TicketResolved     TicketStatus = "resolved"
)

// EscalationTicket is created exactly once per escalation decision.
type EscalationTicket struct {
	EscalationID   string           `json:"escalation_id"`
	TicketNumber   string           `json:"ticket_number"`
	SessionID      string           `json:"session_id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Reason         EscalationReason `json:"reason"`
	Urgency        Urgency          `json:"urgency"`
	Category       string           `json:"category"`
	Status         TicketStatus     `json:"status"`
	ContactChannel string           `json:"contact_channel"`
	ContactEmail   string           `json:"contact_email,omitempty"`
	Language       string           `json:"language"`
	CreatedAt      time.Time        `json:"created_at"`
}

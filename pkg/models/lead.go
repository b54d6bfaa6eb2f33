package models

import "time"

// Lead is a completed, validated contact request from the lead form.
type Lead struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	GDPRConsent    bool      `json:"gdpr_consent"`
	Language       string    `json:"language"`
	CreatedAt      time.Time `json:"created_at"`
}

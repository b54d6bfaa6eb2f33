// Package turn implements the per-session conversation state machine that
// decides which UI affordance the chat widget shows. The machine is
// single-threaded and pure apart from its injected store, scheduler and
// clock; a Runner serializes events from the widget, timers and async
// results into it.
package turn

import (
	"time"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Mode is the single active UI mode of a session.
type Mode string

const (
	ModeIdle             Mode = "idle"
	ModeGreeting         Mode = "greeting"
	ModeConversation     Mode = "conversation"
	ModeSmartSuggestions Mode = "smart_suggestions"
	ModeQuickReplies     Mode = "quick_replies"
	ModeLeadForm         Mode = "lead_form"
	ModeExitPrompt       Mode = "exit_prompt"
	ModeSummary          Mode = "summary"
)

// QuickReplyKind selects the quick reply set.
type QuickReplyKind string

const (
	QuickRepliesPriceRequest QuickReplyKind = "price_request"
	QuickRepliesGeneral      QuickReplyKind = "general"
)

// Quick reply options.
const (
	OptionYes      = "yes"
	OptionNo       = "no"
	OptionContinue = "continue"
	OptionHuman    = "human"
)

// LeadStep is the current step of the lead wizard.
type LeadStep string

const (
	LeadStepName    LeadStep = "name"
	LeadStepEmail   LeadStep = "email"
	LeadStepConsent LeadStep = "consent"
)

// Lead form fields accepted by LeadFieldChanged.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldConsent = "consent"
)

// ReengagementStore persists per-visitor values across sessions.
type ReengagementStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Option is a labelled choice rendered as a button.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// LeadView is the visible state of the lead wizard.
type LeadView struct {
	Step       LeadStep `json:"step"`
	Prompt     string   `json:"prompt"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Consent    bool     `json:"consent"`
	Error      string   `json:"error,omitempty"`
	Submitting bool     `json:"submitting"`
	CanGoBack  bool     `json:"can_go_back"`
}

// Summary is the end-of-conversation recap.
type Summary struct {
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	Turns         int      `json:"turns"`
	Topics        []string `json:"topics"`
	Products      []string `json:"products"`
	LeadSubmitted bool     `json:"lead_submitted"`
}

// Text renders the summary as plain text.
func (s *Summary) Text() string {
	return s.Title + "\n\n" + s.Body
}

// SummaryView is the visible state of the summary panel.
type SummaryView struct {
	Summary
	EmailError string `json:"email_error,omitempty"`
	Sending    bool   `json:"sending"`
	Status     string `json:"status,omitempty"`
}

// Snapshot is the complete renderable state of a session. QuickReplyKind is
// set iff Mode is quick_replies and Lead iff Mode is lead_form.
type Snapshot struct {
	Mode             Mode              `json:"mode"`
	Language         language.Language `json:"language"`
	Messages         []models.Message  `json:"messages"`
	Pending          bool              `json:"pending"`
	SuggestionsTitle string            `json:"suggestions_title,omitempty"`
	Suggestions      []Option          `json:"suggestions,omitempty"`
	Nudge            string            `json:"nudge,omitempty"`
	QuickReplyKind   QuickReplyKind    `json:"quick_reply_kind,omitempty"`
	Prompt           string            `json:"prompt,omitempty"`
	QuickReplies     []Option          `json:"quick_replies,omitempty"`
	Lead             *LeadView         `json:"lead,omitempty"`
	ExitOptions      []Option          `json:"exit_options,omitempty"`
	Summary          *SummaryView      `json:"summary,omitempty"`
	LastActivityAt   time.Time         `json:"last_activity_at"`
}

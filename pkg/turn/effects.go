package turn

import (
	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Effect is an output of the machine that the runner executes.
type Effect interface {
	isEffect()
}

type (
	// RequestReply asks the backend for an answer to Text.
	RequestReply struct {
		Text     string
		Language language.Language
	}
	// SubmitLead persists a validated lead.
	SubmitLead struct {
		Name        string
		Email       string
		GDPRConsent bool
		Language    language.Language
	}
	// SendSummaryEmail mails the conversation summary.
	SendSummaryEmail struct {
		Email    string
		Summary  string
		Language language.Language
	}
	// RequestEscalation hands the session to a human.
	RequestEscalation struct {
		Reason   models.EscalationReason
		Message  string
		Language language.Language
	}
	// Navigate sends the visitor to another page.
	Navigate struct {
		URL string
	}
)

func (RequestReply) isEffect()      {}
func (SubmitLead) isEffect()        {}
func (SendSummaryEmail) isEffect()  {}
func (RequestEscalation) isEffect() {}
func (Navigate) isEffect()          {}

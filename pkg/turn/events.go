package turn

import (
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Event is an input to the machine.
type Event interface {
	isEvent()
}

type (
	// Open is sent when the widget opens. History replays a stored transcript.
	Open struct {
		History []models.Message
	}
	// Close is sent when the widget closes.
	Close struct{}
	// InputChanged reports the current content of the input box.
	InputChanged struct {
		Text string
	}
	// SendText is a manually typed message.
	SendText struct {
		Text string
	}
	// ReplyReceived delivers the assistant reply to the pending message.
	ReplyReceived struct {
		Content  string
		Metadata models.MessageMetadata
	}
	// ReplyFailed reports that no reply could be obtained.
	ReplyFailed struct {
		Err error
	}
	SuggestionClicked struct {
		ID string
	}
	QuickReplySelected struct {
		Option string
	}
	LeadFieldChanged struct {
		Field string
		Value string
	}
	LeadNext   struct{}
	LeadBack   struct{}
	LeadSubmit struct{}
	// LeadSubmitted acknowledges a persisted lead.
	LeadSubmitted struct {
		Lead models.Lead
	}
	LeadSubmitFailed struct {
		Err error
	}
	ExitShowSuggestions struct{}
	ExitClose           struct{}
	SummaryDismissed    struct{}
	SummaryEmailRequested struct {
		Email string
	}
	SummaryEmailResult struct {
		Email string
		Err   error
	}
	// EscalationResult carries the customer-facing outcome of a handoff.
	EscalationResult struct {
		TicketNumber string
		Message      string
		Err          error
	}
	LanguageChanged struct {
		Language string
	}
	// TimerFired is posted by the scheduler.
	TimerFired struct {
		Token Token
	}
)

func (Open) isEvent()                  {}
func (Close) isEvent()                 {}
func (InputChanged) isEvent()          {}
func (SendText) isEvent()              {}
func (ReplyReceived) isEvent()         {}
func (ReplyFailed) isEvent()           {}
func (SuggestionClicked) isEvent()     {}
func (QuickReplySelected) isEvent()    {}
func (LeadFieldChanged) isEvent()      {}
func (LeadNext) isEvent()              {}
func (LeadBack) isEvent()              {}
func (LeadSubmit) isEvent()            {}
func (LeadSubmitted) isEvent()         {}
func (LeadSubmitFailed) isEvent()      {}
func (ExitShowSuggestions) isEvent()   {}
func (ExitClose) isEvent()             {}
func (SummaryDismissed) isEvent()      {}
func (SummaryEmailRequested) isEvent() {}
func (SummaryEmailResult) isEvent()    {}
func (EscalationResult) isEvent()      {}
func (LanguageChanged) isEvent()       {}
func (TimerFired) isEvent()            {}

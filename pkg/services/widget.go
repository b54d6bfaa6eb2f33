package services

import (
	"context"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// widgetBackend binds the service to one conversation for a turn runner.
type widgetBackend struct {
	svc            *ConversationService
	conversationID string
}

// WidgetBackend returns the turn.Backend of one conversation.
func (s *ConversationService) WidgetBackend(conversationID string) turn.Backend {
	return &widgetBackend{svc: s, conversationID: conversationID}
}

func (b *widgetBackend) Reply(ctx context.Context, text string, lang language.Language) (string, models.MessageMetadata, error) {
	reply, err := b.svc.SendMessage(ctx, b.conversationID, text, string(lang))
	if err != nil {
		return "", models.MessageMetadata{}, err
	}
	return reply.Content, reply.Metadata, nil
}

func (b *widgetBackend) SubmitLead(ctx context.Context, lead turn.SubmitLead) (*models.Lead, error) {
	return b.svc.SubmitLead(ctx, b.conversationID, LeadInput{
		Name:        lead.Name,
		Email:       lead.Email,
		GDPRConsent: lead.GDPRConsent,
	}, string(lead.Language))
}

func (b *widgetBackend) SendSummaryEmail(ctx context.Context, email, summary string, lang language.Language) error {
	return b.svc.RequestSummaryEmail(ctx, email, summary, string(lang))
}

func (b *widgetBackend) Escalate(ctx context.Context, req turn.RequestEscalation) (string, string, error) {
	resp, err := b.svc.Escalate(ctx, escalation.Request{
		ConversationID: b.conversationID,
		Message:        req.Message,
		Language:       req.Language,
		Reason:         req.Reason,
		ContactChannel: "chat",
	})
	if err != nil {
		return "", "", err
	}
	return resp.TicketNumber, resp.Message, nil
}

// Package services implements the conversation operations exposed to the
// widget and the HTTP API.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/llm"
	"github.com/codeready-toolchain/concierge/pkg/mail"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/memory"
	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/pkg/session"
	"github.com/codeready-toolchain/concierge/pkg/slack"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// apologyConfidence is reported for replies replaced by the backend apology.
const apologyConfidence = 0.1

// Dispatcher runs fire-and-forget jobs. Submit must not block.
type Dispatcher interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// LeadInput is the submitted lead form.
type LeadInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	GDPRConsent bool   `json:"gdpr_consent"`
}

// Reply is the assistant answer to a message.
type Reply struct {
	MessageID string                 `json:"message_id"`
	Content   string                 `json:"content"`
	Metadata  models.MessageMetadata `json:"metadata"`
}

// Config tunes the service.
type Config struct {
	// GenerateTimeout bounds one generative backend call.
	GenerateTimeout time.Duration
	// MatchLimit is the number of knowledge entries passed to the backend.
	MatchLimit int
}

// Deps are the service collaborators. Generator, Mailer, Slack and
// Dispatcher may be nil.
type Deps struct {
	Conversations session.Store
	Leads         LeadStore
	Dict          language.ContentDictionary
	Matcher       *matcher.Matcher
	Memory        *memory.Layer
	Generator     llm.Generator
	Escalation    *escalation.Engine
	Mailer        mail.Sender
	Slack         *slack.Service
	Dispatcher    Dispatcher
}

// ConversationService orchestrates one turn: memory recall, knowledge
// matching and the generative backend, plus leads, summaries and handoffs.
type ConversationService struct {
	deps Deps
	cfg  Config
	now  func() time.Time
	log  *slog.Logger
}

// NewConversationService creates the service.
func NewConversationService(deps Deps, cfg Config) *ConversationService {
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 30 * time.Second
	}
	return &ConversationService{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
		log:  slog.With("component", "conversation-service"),
	}
}

// CreateConversation starts a conversation bound to one language.
func (s *ConversationService) CreateConversation(ctx context.Context, sessionID, visitorID, lang string) (*models.Conversation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, NewValidationError("session_id", "required")
	}
	now := s.now()
	conv := models.Conversation{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		VisitorID:      visitorID,
		Language:       string(language.Resolve(lang, "")),
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := s.deps.Conversations.Create(ctx, conv); err != nil {
		return nil, translateError(fmt.Errorf("failed to create conversation: %w", err))
	}
	s.log.Info("Conversation created", "conversation_id", conv.ID, "session_id", sessionID, "language", conv.Language)
	return &conv, nil
}

// GetConversation returns a conversation and its transcript.
func (s *ConversationService) GetConversation(ctx context.Context, conversationID string) (*session.Record, error) {
	rec, err := s.deps.Conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, translateError(err)
	}
	return rec, nil
}

// SendMessage appends a user message and answers it. A backend failure is
// answered with the localized apology and never returned as an error.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, text, lang string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewValidationError("content", "required")
	}
	rec, err := s.deps.Conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, translateError(err)
	}
	bound := language.Resolve(lang, rec.Conversation.Language)
	history := rec.Messages

	userMsg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: s.now(),
	}
	content, meta := s.answer(ctx, rec.Conversation, history, userMsg, bound)

	if s.deps.Escalation != nil {
		if d := s.deps.Escalation.Evaluate(text, history, bound); d.Escalate {
			meta.EscalationSuggested = true
			meta.EscalationReason = string(d.Reason)
		}
	}

	reply := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   content,
		CreatedAt: s.now(),
		Metadata:  meta,
	}
	if _, err := s.deps.Conversations.Append(ctx, conversationID, userMsg, reply); err != nil {
		return nil, translateError(fmt.Errorf("failed to store messages: %w", err))
	}
	return &Reply{MessageID: reply.ID, Content: reply.Content, Metadata: reply.Metadata}, nil
}

// answer runs the reply pipeline: a safe learned response, otherwise the
// generative backend with matched knowledge, otherwise the knowledge base.
func (s *ConversationService) answer(ctx context.Context, conv models.Conversation, history []models.Message, userMsg models.Message, lang language.Language) (string, models.MessageMetadata) {
	transcript := append(append([]models.Message(nil), history...), userMsg)

	var recalled *memory.Match
	if s.deps.Memory != nil {
		sc := s.deps.Memory.BuildContext(transcript, lang)
		if m, ok := s.deps.Memory.Recall(ctx, userMsg.Content, sc, lang); ok {
			recalled = m
			if m.SafeToAnswer {
				s.deps.Memory.RecordUsage(m.Response)
				return m.Response.Response, models.MessageMetadata{
					Source:        models.SourceMemory,
					Confidence:    m.Confidence,
					PriceDetected: llm.DetectPrice(m.Response.Response),
					Intent:        string(sc.Intent),
				}
			}
		}
	}

	result := s.deps.Matcher.Match(ctx, userMsg.Content, lang, s.cfg.MatchLimit)
	best, matched := result.Best()
	intent := string(result.Analysis.Intent)

	if s.deps.Generator == nil {
		if matched {
			return best.Entry.Content, models.MessageMetadata{
				Source:        models.SourceFallback,
				Confidence:    best.Score,
				PriceDetected: llm.DetectPrice(best.Entry.Content),
				Intent:        intent,
			}
		}
		return result.Fallback, models.MessageMetadata{Source: models.SourceFallback, Intent: intent}
	}

	knowledge := matcher.Context(result)
	if recalled != nil {
		knowledge += fmt.Sprintf("- [learned] %s: %s\n", recalled.Response.OriginalQuestion, recalled.Response.Response)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()
	generated, err := s.deps.Generator.Generate(genCtx, llm.Request{
		ConversationID: conv.ID,
		Message:        userMsg.Content,
		Language:       string(lang),
		History:        llm.HistoryFrom(history),
		Knowledge:      knowledge,
		Intent:         intent,
	})
	if err == nil && strings.TrimSpace(generated.Content) == "" {
		err = llm.ErrEmptyReply
	}
	if err != nil {
		s.log.Error("Generative backend failed, answering with apology",
			"conversation_id", conv.ID, "error", err)
		return s.deps.Dict.Text(lang, "error.backend"), models.MessageMetadata{
			Error:      true,
			Source:     models.SourceFallback,
			Confidence: apologyConfidence,
			Intent:     intent,
		}
	}

	meta := generated.Metadata
	meta.Source = models.SourceBackend
	meta.Intent = intent
	if meta.Confidence == 0 {
		meta.Confidence = 0.5
		if matched {
			meta.Confidence = best.Score
		}
	}
	return generated.Content, meta
}

// SubmitLead validates and persists a completed lead form. Nothing is stored
// for an invalid lead.
func (s *ConversationService) SubmitLead(ctx context.Context, conversationID string, input LeadInput, lang string) (*models.Lead, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	switch {
	case !turn.ValidName(name):
		return nil, NewValidationError("name", "required")
	case !turn.ValidEmail(email):
		return nil, NewValidationError("email", "invalid email address")
	case !input.GDPRConsent:
		return nil, NewValidationError("gdpr_consent", "consent is required")
	}

	rec, err := s.deps.Conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, translateError(err)
	}
	lead := models.Lead{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Name:           name,
		Email:          email,
		GDPRConsent:    true,
		Language:       string(language.Resolve(lang, rec.Conversation.Language)),
		CreatedAt:      s.now(),
	}
	if err := s.deps.Leads.CreateLead(ctx, lead); err != nil {
		return nil, translateError(fmt.Errorf("failed to store lead: %w", err))
	}
	s.log.Info("Lead stored", "conversation_id", conversationID, "lead_id", lead.ID)

	if s.deps.Slack != nil {
		notice := slack.LeadInput{
			SessionID: rec.Conversation.SessionID,
			Name:      lead.Name,
			Email:     lead.Email,
			Language:  lead.Language,
		}
		s.dispatch("lead.slack", func(ctx context.Context) error {
			return s.deps.Slack.NotifyLead(ctx, notice)
		})
	}
	return &lead, nil
}

// RequestSummaryEmail mails a conversation summary to the visitor.
func (s *ConversationService) RequestSummaryEmail(ctx context.Context, email, summary, lang string) error {
	email = strings.TrimSpace(email)
	if !turn.ValidEmail(email) {
		return NewValidationError("email", "invalid email address")
	}
	if strings.TrimSpace(summary) == "" {
		return NewValidationError("summary", "required")
	}
	if s.deps.Mailer == nil {
		return mail.ErrNotConfigured
	}
	bound := language.Resolve(lang, "")
	err := s.deps.Mailer.Send(ctx, mail.Message{
		To:      email,
		Subject: s.deps.Dict.Text(bound, "summary.email.subject"),
		Body:    summary,
	})
	if err != nil {
		return fmt.Errorf("failed to send summary email: %w", err)
	}
	return nil
}

// Escalate hands a conversation to a human. The transcript is loaded from
// the conversation when the request does not carry one. The customer
// message and the handoff reply are recorded on the conversation.
func (s *ConversationService) Escalate(ctx context.Context, req escalation.Request) (*escalation.Response, error) {
	if s.deps.Escalation == nil {
		return nil, errors.New("escalation is not configured")
	}
	var rec *session.Record
	if req.ConversationID != "" {
		var err error
		rec, err = s.deps.Conversations.Get(ctx, req.ConversationID)
		if err != nil {
			return nil, translateError(err)
		}
		if req.SessionID == "" {
			req.SessionID = rec.Conversation.SessionID
		}
		if req.History == nil {
			req.History = rec.Messages
		}
		req.Language = language.Resolve(string(req.Language), rec.Conversation.Language)
	}

	resp, err := s.deps.Escalation.Process(ctx, req)
	if err != nil {
		return nil, translateError(err)
	}

	if rec != nil {
		var msgs []models.Message
		text := strings.TrimSpace(req.Message)
		if last, ok := models.LastUserMessage(rec.Messages); !ok || strings.TrimSpace(last.Content) != text {
			msgs = append(msgs, models.Message{
				ID:        uuid.NewString(),
				Role:      models.RoleUser,
				Content:   text,
				CreatedAt: s.now(),
			})
		}
		msgs = append(msgs, models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   resp.Message,
			CreatedAt: s.now(),
			Metadata: models.MessageMetadata{
				Source:           models.SourceEscalation,
				EscalationReason: string(resp.Reason),
			},
		})
		if _, err := s.deps.Conversations.Append(ctx, rec.Conversation.ID, msgs...); err != nil {
			s.log.Warn("Failed to record escalation message", "conversation_id", rec.Conversation.ID, "error", err)
		}
	}
	return resp, nil
}

// Ticket returns an escalation ticket.
func (s *ConversationService) Ticket(ctx context.Context, escalationID string) (*models.EscalationTicket, error) {
	if s.deps.Escalation == nil {
		return nil, ErrNotFound
	}
	t, err := s.deps.Escalation.Ticket(ctx, escalationID)
	return t, translateError(err)
}

// UpdateTicketStatus moves a ticket forward.
func (s *ConversationService) UpdateTicketStatus(ctx context.Context, escalationID string, status models.TicketStatus) (*models.EscalationTicket, error) {
	if s.deps.Escalation == nil {
		return nil, ErrNotFound
	}
	t, err := s.deps.Escalation.SetStatus(ctx, escalationID, status)
	return t, translateError(err)
}

// Match ranks knowledge entries for a question.
func (s *ConversationService) Match(ctx context.Context, question, lang string, limit int) *matcher.Result {
	return s.deps.Matcher.Match(ctx, question, language.Resolve(lang, ""), limit)
}

func (s *ConversationService) dispatch(name string, fn func(ctx context.Context) error) {
	if s.deps.Dispatcher != nil {
		s.deps.Dispatcher.Submit(name, fn)
		return
	}
	if err := fn(context.Background()); err != nil {
		s.log.Warn("Job failed", "job", name, "error", err)
	}
}

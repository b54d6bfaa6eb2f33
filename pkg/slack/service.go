// Package slack posts support-channel notifications for escalations and
// captured leads.
package slack

import (
	"context"
	"log/slog"
	"time"
)

const threadIndexSize = 1024

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// EscalationInput contains data for a human-handoff notification.
type EscalationInput struct {
	SessionID      string
	ConversationID string
	TicketNumber   string
	Reason         string
	Urgency        string
	Language       string
	ContactEmail   string
	// Transcript is the already masked recent conversation.
	Transcript string
}

// LeadInput contains data for a captured lead notification.
type LeadInput struct {
	SessionID string
	Name      string
	Email     string
	Language  string
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	threads      *threadIndex
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return NewServiceWithClient(NewClient(cfg.Token, cfg.Channel), cfg.DashboardURL)
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		threads:      newThreadIndex(threadIndexSize),
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyEscalation posts a handoff request, threaded onto an earlier
// notification for the same session when one exists.
func (s *Service) NotifyEscalation(ctx context.Context, input EscalationInput) error {
	if s == nil {
		return nil
	}
	err := s.post(ctx, input.SessionID, Post{
		Text:   escalationFallback(input),
		Blocks: BuildEscalationMessage(input, s.dashboardURL),
	}, 10*time.Second)
	if err != nil {
		s.logger.Error("Failed to send Slack escalation notification",
			"session_id", input.SessionID,
			"ticket_number", input.TicketNumber,
			"error", err)
	}
	return err
}

// NotifyLead posts a captured lead.
func (s *Service) NotifyLead(ctx context.Context, input LeadInput) error {
	if s == nil {
		return nil
	}
	err := s.post(ctx, input.SessionID, Post{
		Text:   leadFallback(input),
		Blocks: BuildLeadMessage(input),
	}, 5*time.Second)
	if err != nil {
		s.logger.Error("Failed to send Slack lead notification",
			"session_id", input.SessionID,
			"error", err)
	}
	return err
}

// post threads p onto the session's earlier notification and records the
// thread root when p starts a new one.
func (s *Service) post(ctx context.Context, sessionID string, p Post, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.ThreadTS = s.findThread(ctx, sessionID)
	ts, err := s.client.PostMessage(ctx, p)
	if err != nil {
		return err
	}
	if p.ThreadTS == "" {
		s.threads.remember(sessionID, ts)
	}
	return nil
}

func (s *Service) findThread(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if ts, ok := s.threads.get(sessionID); ok {
		return ts
	}
	ts, err := s.client.FindThread(ctx, SessionMarker(sessionID))
	if err != nil {
		s.logger.Warn("Failed to find Slack thread for session",
			"session_id", sessionID,
			"error", err)
		return ""
	}
	s.threads.remember(sessionID, ts)
	return ts
}

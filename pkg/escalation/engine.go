// Package escalation decides when a conversation must be handed to a human
// and mints the handoff ticket.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/mail"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/pkg/slack"
)

// buckets are checked in order; the first keyword hit wins.
var buckets = []struct {
	reason     models.EscalationReason
	confidence float64
}{
	{models.ReasonUserRequest, 0.95},
	{models.ReasonPricingRequest, 0.85},
	{models.ReasonComplaint, 0.90},
	{models.ReasonComplexQuery, 0.75},
	{models.ReasonTechnicalIssue, 0.80},
}

const turnLimitConfidence = 0.70

// Link is a self-service page offered while the visitor waits.
type Link struct {
	Key string `yaml:"key"`
	URL string `yaml:"url"`
}

// Config tunes the escalation engine.
type Config struct {
	// MaxTurns is the user-turn count above which a conversation escalates
	// as complex_query without any keyword hit.
	MaxTurns int `yaml:"max_turns"`
	// DedupWindow bounds how long an idempotency key is remembered.
	DedupWindow time.Duration `yaml:"dedup_window"`
	// TranscriptMessages is how much recent history goes to the support channel.
	TranscriptMessages int                 `yaml:"transcript_messages"`
	BusinessHours      BusinessHoursConfig `yaml:"business_hours"`
	// Links are the next steps offered with every ticket; the first three are used.
	Links []Link `yaml:"links"`
}

// DefaultConfig returns the built-in escalation settings.
func DefaultConfig() Config {
	return Config{
		MaxTurns:           10,
		DedupWindow:        10 * time.Minute,
		TranscriptMessages: 6,
		BusinessHours:      DefaultBusinessHours(),
		Links: []Link{
			{Key: "faq", URL: "/klantenservice/veelgestelde-vragen"},
			{Key: "measure", URL: "/meten-en-monteren"},
			{Key: "contact", URL: "/contact"},
		},
	}
}

// Decision is the outcome of evaluating a message.
type Decision struct {
	Escalate        bool                    `json:"escalate"`
	Reason          models.EscalationReason `json:"reason,omitempty"`
	Confidence      float64                 `json:"confidence"`
	MatchedKeywords []string                `json:"matched_keywords,omitempty"`
}

// Request asks for a human handoff.
type Request struct {
	SessionID      string                  `json:"session_id"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Message        string                  `json:"message"`
	History        []models.Message        `json:"-"`
	Language       language.Language       `json:"language"`
	Reason         models.EscalationReason `json:"reason,omitempty"`
	Urgency        models.Urgency          `json:"urgency,omitempty"`
	Urgent         bool                    `json:"urgent,omitempty"`
	Category       string                  `json:"category,omitempty"`
	ContactChannel string                  `json:"contact_channel,omitempty"`
	ContactEmail   string                  `json:"contact_email,omitempty"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
}

// NextStep is a labelled self-service link.
type NextStep struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Response describes an accepted escalation.
type Response struct {
	EscalationID      string                  `json:"escalation_id"`
	TicketNumber      string                  `json:"ticket_number"`
	Reason            models.EscalationReason `json:"reason"`
	Urgency           models.Urgency          `json:"urgency"`
	Confidence        float64                 `json:"confidence"`
	EstimatedWaitTime string                  `json:"estimated_wait_time"`
	NextSteps         []NextStep              `json:"next_steps"`
	Message           string                  `json:"message"`
	CreatedAt         time.Time               `json:"created_at"`
}

// ValidationError reports an invalid escalation request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Notifier posts escalations to the support channel. *slack.Service
// implements it.
type Notifier interface {
	NotifyEscalation(ctx context.Context, input slack.EscalationInput) error
}

// TranscriptMasker renders messages with personal data removed.
// *masking.Service implements it.
type TranscriptMasker interface {
	MaskTranscript(messages []models.Message) string
}

// Dispatcher runs fire-and-forget jobs. Submit must not block.
type Dispatcher interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// Deps are the collaborators of an Engine. Only Store and Dict are required.
type Deps struct {
	Store      TicketStore
	Dict       language.ContentDictionary
	Notifier   Notifier
	Mailer     mail.Sender
	Masker     TranscriptMasker
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics
}

// Engine evaluates and processes escalations.
type Engine struct {
	deps  Deps
	cfg   Config
	hours *BusinessHours
	ids   idGenerator
	dedup *dedupCache
	now   func() time.Time
	log   *slog.Logger

	// keyMu serializes requests carrying an idempotency key so concurrent
	// duplicates cannot both mint a ticket.
	keyMu sync.Mutex
}

// New creates an engine. It fails only on an invalid business-hours config.
func New(deps Deps, cfg Config) (*Engine, error) {
	def := DefaultConfig()
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = def.DedupWindow
	}
	if cfg.TranscriptMessages <= 0 {
		cfg.TranscriptMessages = def.TranscriptMessages
	}
	if cfg.BusinessHours.Timezone == "" {
		cfg.BusinessHours = def.BusinessHours
	}
	if len(cfg.Links) == 0 {
		cfg.Links = def.Links
	}
	hours, err := NewBusinessHours(cfg.BusinessHours)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		deps:  deps,
		cfg:   cfg,
		hours: hours,
		ids:   defaultIDGenerator(),
		now:   time.Now,
		log:   slog.With("component", "escalation"),
	}
	e.dedup = newDedupCache(cfg.DedupWindow, func() time.Time { return e.now() })
	return e, nil
}

// Evaluate decides whether message, following history, should escalate.
// history must not contain message itself.
func (e *Engine) Evaluate(message string, history []models.Message, lang language.Language) Decision {
	normalized := language.Normalize(message)
	for _, b := range buckets {
		hits := language.MatchKeywords(normalized, e.deps.Dict.Keywords(lang, "escalation."+string(b.reason)))
		if len(hits) > 0 {
			return Decision{Escalate: true, Reason: b.reason, Confidence: b.confidence, MatchedKeywords: hits}
		}
	}
	if models.UserTurns(history)+1 > e.cfg.MaxTurns {
		return Decision{Escalate: true, Reason: models.ReasonComplexQuery, Confidence: turnLimitConfidence}
	}
	return Decision{}
}

// Process validates req, persists a ticket and dispatches notifications.
// Only a ticket-store failure is returned as an error; notification
// failures are logged.
func (e *Engine) Process(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return e.process(ctx, req)
	}

	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	key := req.SessionID + "|" + req.IdempotencyKey
	if cached, ok := e.dedup.get(key); ok {
		e.log.Info("Duplicate escalation request, returning earlier ticket",
			"session_id", req.SessionID, "ticket_number", cached.TicketNumber)
		return &cached, nil
	}
	resp, err := e.process(ctx, req)
	if err != nil {
		return nil, err
	}
	e.dedup.set(key, *resp)
	return resp, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return &ValidationError{Field: "session_id", Message: "required"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return &ValidationError{Field: "message", Message: "required"}
	}
	if req.Reason != "" && !req.Reason.IsValid() {
		return &ValidationError{Field: "reason", Message: fmt.Sprintf("unknown reason %q", req.Reason)}
	}
	if req.Urgency != "" && !req.Urgency.IsValid() {
		return &ValidationError{Field: "urgency", Message: fmt.Sprintf("unknown urgency %q", req.Urgency)}
	}
	return nil
}

func (e *Engine) process(ctx context.Context, req Request) (*Response, error) {
	lang := req.Language
	if !lang.IsSupported() {
		lang = language.Default
	}

	decision := e.decide(req, lang)
	urgency := determineUrgency(req.Urgency, decision.Reason, req.Urgent)
	now := e.now()

	escalationID, err := e.ids.escalationID(now)
	if err != nil {
		return nil, err
	}
	ticketNumber, err := e.ids.ticketNumber(now)
	if err != nil {
		return nil, err
	}

	channel := req.ContactChannel
	if channel == "" {
		channel = "chat"
	}
	category := req.Category
	if category == "" {
		category = string(decision.Reason)
	}
	ticket := models.EscalationTicket{
		EscalationID:   escalationID,
		TicketNumber:   ticketNumber,
		SessionID:      req.SessionID,
		ConversationID: req.ConversationID,
		Reason:         decision.Reason,
		Urgency:        urgency,
		Category:       category,
		Status:         models.TicketOpen,
		ContactChannel: channel,
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		Language:       string(lang),
		CreatedAt:      now,
	}
	if err := e.deps.Store.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("persist escalation ticket: %w", err)
	}
	e.deps.Metrics.ObserveEscalation(string(decision.Reason), string(urgency))
	e.log.Info("Escalation ticket created",
		"session_id", req.SessionID,
		"ticket_number", ticketNumber,
		"reason", decision.Reason,
		"urgency", urgency)

	wait := e.waitTime(now, urgency, lang)
	e.notify(ticket, withMessage(req.History, req.Message, now), wait)

	steps := e.nextSteps(lang)
	links := make([]string, len(steps))
	for i, s := range steps {
		links[i] = s.Label + ": " + s.URL
	}
	return &Response{
		EscalationID:      escalationID,
		TicketNumber:      ticketNumber,
		Reason:            decision.Reason,
		Urgency:           urgency,
		Confidence:        decision.Confidence,
		EstimatedWaitTime: wait,
		NextSteps:         steps,
		Message: e.deps.Dict.Render(lang, "escalation.message", map[string]any{
			"TicketNumber": ticketNumber,
			"Wait":         wait,
			"Links":        links,
		}),
		CreatedAt: now,
	}, nil
}

// decide uses the requested reason, else the evaluated one. An explicit
// request that triggers nothing is still a request for a human.
func (e *Engine) decide(req Request, lang language.Language) Decision {
	if req.Reason != "" {
		for _, b := range buckets {
			if b.reason == req.Reason {
				return Decision{Escalate: true, Reason: b.reason, Confidence: b.confidence}
			}
		}
	}
	if d := e.Evaluate(req.Message, req.History, lang); d.Escalate {
		return d
	}
	return Decision{Escalate: true, Reason: models.ReasonUserRequest, Confidence: buckets[0].confidence}
}

// determineUrgency starts from requested (default low), applies the
// per-reason override, then the urgent flag.
func determineUrgency(requested models.Urgency, reason models.EscalationReason, urgent bool) models.Urgency {
	u := requested
	if u == "" {
		u = models.UrgencyLow
	}
	switch reason {
	case models.ReasonComplaint, models.ReasonTechnicalIssue:
		u = models.UrgencyHigh
	case models.ReasonPricingRequest:
		u = models.UrgencyMedium
	}
	if urgent {
		u = models.UrgencyUrgent
	}
	return u
}

func (e *Engine) waitTime(now time.Time, urgency models.Urgency, lang language.Language) string {
	if !e.hours.IsOpen(now) {
		return e.deps.Dict.Text(lang, "escalation.wait.next_business_day")
	}
	return e.deps.Dict.Text(lang, "escalation.wait."+string(urgency))
}

func (e *Engine) nextSteps(lang language.Language) []NextStep {
	links := e.cfg.Links
	if len(links) > 3 {
		links = links[:3]
	}
	steps := make([]NextStep, 0, len(links))
	for _, l := range links {
		steps = append(steps, NextStep{Label: e.deps.Dict.Text(lang, "escalation.link."+l.Key), URL: l.URL})
	}
	return steps
}

// withMessage returns history with the customer message that raised the
// escalation appended, unless it is already the latest user message.
func withMessage(history []models.Message, message string, at time.Time) []models.Message {
	message = strings.TrimSpace(message)
	if last, ok := models.LastUserMessage(history); ok && strings.TrimSpace(last.Content) == message {
		return history
	}
	out := make([]models.Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, models.Message{Role: models.RoleUser, Content: message, CreatedAt: at})
}

func (e *Engine) notify(ticket models.EscalationTicket, history []models.Message, wait string) {
	if e.deps.Notifier != nil {
		transcript := ""
		if e.deps.Masker != nil {
			transcript = e.deps.Masker.MaskTranscript(models.LastN(history, e.cfg.TranscriptMessages))
		}
		input := slack.EscalationInput{
			SessionID:      ticket.SessionID,
			ConversationID: ticket.ConversationID,
			TicketNumber:   ticket.TicketNumber,
			Reason:         string(ticket.Reason),
			Urgency:        string(ticket.Urgency),
			Language:       ticket.Language,
			ContactEmail:   ticket.ContactEmail,
			Transcript:     transcript,
		}
		e.dispatch("escalation.slack", ticket, func(ctx context.Context) error {
			return e.deps.Notifier.NotifyEscalation(ctx, input)
		})
	}

	if e.deps.Mailer != nil && ticket.ContactEmail != "" {
		lang := language.Language(ticket.Language)
		data := map[string]any{"TicketNumber": ticket.TicketNumber, "Wait": wait}
		msg := mail.Message{
			To:      ticket.ContactEmail,
			Subject: e.deps.Dict.Render(lang, "escalation.ack.subject", data),
			Body:    e.deps.Dict.Render(lang, "escalation.ack.body", data),
		}
		e.dispatch("escalation.email", ticket, func(ctx context.Context) error {
			return e.deps.Mailer.Send(ctx, msg)
		})
	}
}

func (e *Engine) dispatch(channel string, ticket models.EscalationTicket, fn func(ctx context.Context) error) {
	job := func(ctx context.Context) error {
		err := fn(ctx)
		e.deps.Metrics.ObserveNotification(channel, err)
		if err != nil {
			e.log.Warn("Escalation notification failed",
				"channel", channel,
				"ticket_number", ticket.TicketNumber,
				"error", err)
		}
		return err
	}
	if e.deps.Dispatcher == nil {
		_ = job(context.Background())
		return
	}
	if !e.deps.Dispatcher.Submit(channel, job) {
		e.log.Warn("Escalation notification dropped", "channel", channel, "ticket_number", ticket.TicketNumber)
	}
}

// Ticket returns a stored ticket.
func (e *Engine) Ticket(ctx context.Context, escalationID string) (*models.EscalationTicket, error) {
	return e.deps.Store.GetTicket(ctx, escalationID)
}

var statusRank = map[models.TicketStatus]int{
	models.TicketOpen:         0,
	models.TicketAcknowledged: 1,
	models.TicketResolved:     2,
}

// SetStatus moves a ticket forward through open, acknowledged, resolved.
func (e *Engine) SetStatus(ctx context.Context, escalationID string, status models.TicketStatus) (*models.EscalationTicket, error) {
	next, ok := statusRank[status]
	if !ok {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	t, err := e.deps.Store.GetTicket(ctx, escalationID)
	if err != nil {
		return nil, err
	}
	if next < statusRank[t.Status] {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	if err := e.deps.Store.UpdateStatus(ctx, escalationID, status); err != nil {
		return nil, err
	}
	t.Status = status
	return t, nil
}

package turn

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Re-engagement store keys.
const (
	KeyVisited      = "visited"
	KeyLastChatTime = "last_chat_time"
	KeyVisitorName  = "visitor_name"
)

// KeyClicks is the store key counting suggestion clicks of a session.
func KeyClicks(sessionID string) string {
	return "clicks." + sessionID
}

// Config holds the machine durations.
type Config struct {
	ReengagementWindow      time.Duration `yaml:"reengagement_window"`
	ReminderDelay           time.Duration `yaml:"reminder_delay"`
	InactivityDelay         time.Duration `yaml:"inactivity_delay"`
	ExitCheckInterval       time.Duration `yaml:"exit_check_interval"`
	ExitPromptAfter         time.Duration `yaml:"exit_prompt_after"`
	ExitPromptFinishedAfter time.Duration `yaml:"exit_prompt_finished_after"`
	ConsultationExitDelay   time.Duration `yaml:"consultation_exit_delay"`
	LeadExitDelay           time.Duration `yaml:"lead_exit_delay"`
	CloseResetDelay         time.Duration `yaml:"close_reset_delay"`
	// SummaryMinTurns is the number of user turns a summary needs to exceed.
	SummaryMinTurns int   `yaml:"summary_min_turns"`
	Links           Links `yaml:"links"`
}

// DefaultConfig returns the built-in durations.
func DefaultConfig() Config {
	return Config{
		ReengagementWindow:      24 * time.Hour,
		ReminderDelay:           20 * time.Second,
		InactivityDelay:         25 * time.Second,
		ExitCheckInterval:       5 * time.Second,
		ExitPromptAfter:         30 * time.Second,
		ExitPromptFinishedAfter: 10 * time.Second,
		ConsultationExitDelay:   3 * time.Second,
		LeadExitDelay:           2 * time.Second,
		CloseResetDelay:         3 * time.Second,
		SummaryMinTurns:         2,
	}
}

// Deps are the machine collaborators. Store, Binding and Now are optional.
type Deps struct {
	Store     ReengagementStore
	Scheduler Scheduler
	Dict      language.ContentDictionary
	Binding   *language.Binding
	Now       func() time.Time
}

type timer struct {
	gen    uint64
	cancel func()
}

// Machine is the turn state machine of one session. It is not safe for
// concurrent use; Runner serializes access.
type Machine struct {
	sessionID string
	store     ReengagementStore
	sched     Scheduler
	dict      language.ContentDictionary
	binding   *language.Binding
	now       func() time.Time
	cfg       Config
	log       *slog.Logger

	mode          Mode
	quickKind     QuickReplyKind
	lead          *leadForm
	leadInFlight  *leadForm
	summary       *SummaryView
	messages      []models.Message
	pending       bool
	nudge         string
	suppressed    bool
	closing       bool
	leadSubmitted bool
	lastActivity  time.Time

	timers map[TimerKind]timer
	gen    uint64
}

// NewMachine creates an idle machine for sessionID.
func NewMachine(sessionID string, deps Deps, cfg Config) *Machine {
	if deps.Store == nil {
		deps.Store = mapStore{}
	}
	if deps.Binding == nil {
		deps.Binding = language.NewBinding("", deps.Store)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Machine{
		sessionID: sessionID,
		store:     deps.Store,
		sched:     deps.Scheduler,
		dict:      deps.Dict,
		binding:   deps.Binding,
		now:       deps.Now,
		cfg:       cfg,
		log:       slog.With("component", "turn", "session_id", sessionID),
		mode:      ModeIdle,
		timers:    make(map[TimerKind]timer),
	}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Language returns the bound session language.
func (m *Machine) Language() language.Language {
	return m.binding.Current()
}

// Handle applies ev and returns the effects to execute.
func (m *Machine) Handle(ev Event) []Effect {
	switch ev := ev.(type) {
	case Open:
		m.open(ev)
	case Close:
		m.cancelAll()
		m.setMode(ModeIdle)
	case InputChanged:
		m.inputChanged(ev)
	case SendText:
		return m.sendText(ev)
	case ReplyReceived:
		return m.replyReceived(ev)
	case ReplyFailed:
		m.log.Warn("Reply failed", "error", ev.Err)
		m.pending = false
		m.appendAssistant(m.text("error.backend"), models.MessageMetadata{
			Error: true, Source: models.SourceFallback, Confidence: 0.1,
		})
	case SuggestionClicked:
		return m.suggestionClicked(ev)
	case QuickReplySelected:
		return m.quickReplySelected(ev)
	case LeadFieldChanged:
		if m.lead != nil && !m.lead.submitting {
			m.lead.set(ev.Field, ev.Value)
			m.lead.err = ""
		}
	case LeadNext:
		return m.leadNext()
	case LeadBack:
		if m.lead != nil && !m.lead.submitting {
			m.lead.back()
			m.lead.err = ""
		}
	case LeadSubmit:
		return m.leadSubmit()
	case LeadSubmitted:
		m.onLeadSubmitted(ev)
	case LeadSubmitFailed:
		if f := m.leadInFlight; f != nil {
			m.log.Warn("Lead submission failed", "error", ev.Err)
			m.leadInFlight = nil
			f.submitting = false
			m.appendAssistant(m.text("lead.error.submit"), models.MessageMetadata{Error: true, Source: models.SourceCanned})
		}
	case ExitShowSuggestions:
		if m.mode == ModeExitPrompt {
			m.suppressed = false
			m.lastActivity = m.now()
			m.showSuggestions()
		}
	case ExitClose:
		m.exitClose()
	case SummaryDismissed:
		if m.mode == ModeSummary {
			m.setMode(ModeConversation)
		}
	case SummaryEmailRequested:
		return m.summaryEmailRequested(ev)
	case SummaryEmailResult:
		m.summaryEmailResult(ev)
	case EscalationResult:
		m.pending = false
		if ev.Err != nil {
			m.log.Error("Escalation failed", "error", ev.Err)
			m.appendAssistant(m.text("escalation.failed"), models.MessageMetadata{Error: true, Source: models.SourceEscalation})
		} else {
			m.appendAssistant(ev.Message, models.MessageMetadata{Source: models.SourceEscalation})
		}
	case LanguageChanged:
		m.binding.Choose(ev.Language)
	case TimerFired:
		m.timerFired(ev.Token)
	}
	return nil
}

// Shutdown cancels every timer.
func (m *Machine) Shutdown() {
	m.cancelAll()
}

func (m *Machine) open(ev Open) {
	if len(m.messages) == 0 && len(ev.History) > 0 {
		m.messages = append([]models.Message(nil), ev.History...)
	}
	now := m.now()
	m.lastActivity = now
	m.closing = false

	_, visited := m.store.Get(KeyVisited)
	if len(m.messages) == 0 {
		m.appendAssistant(m.greeting(visited), models.MessageMetadata{Automated: true, Source: models.SourceCanned})
	}

	show := !m.suppressed && (!visited || m.windowElapsed(now))
	m.store.Set(KeyVisited, "true")
	if show {
		m.showSuggestions()
	} else {
		m.setMode(m.baseMode())
	}
	m.schedule(TimerExitCheck, m.cfg.ExitCheckInterval)
}

func (m *Machine) greeting(visited bool) string {
	if !visited {
		return m.text("greeting.generic")
	}
	if name, ok := m.store.Get(KeyVisitorName); ok && strings.TrimSpace(name) != "" {
		return m.dict.Render(m.binding.Current(), "greeting.returning_named", map[string]string{"Name": name})
	}
	return m.text("greeting.returning")
}

// windowElapsed reports whether the re-engagement window has passed since
// the last chat. A missing or unreadable timestamp counts as elapsed.
func (m *Machine) windowElapsed(now time.Time) bool {
	raw, ok := m.store.Get(KeyLastChatTime)
	if !ok {
		return true
	}
	last, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return true
	}
	return now.Sub(last) > m.cfg.ReengagementWindow
}

func (m *Machine) showSuggestions() {
	m.setMode(ModeSmartSuggestions)
	m.schedule(TimerReminder, m.cfg.ReminderDelay)
}

func (m *Machine) inputChanged(ev InputChanged) {
	m.lastActivity = m.now()
	if m.mode == ModeSmartSuggestions && strings.TrimSpace(ev.Text) != "" {
		m.setMode(m.baseMode())
	}
}

func (m *Machine) sendText(ev SendText) []Effect {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}
	m.cancel(TimerExitDelay)
	if m.closing {
		m.cancel(TimerCloseReset)
		m.closing = false
	}
	m.setMode(ModeConversation)
	return m.request(text, models.MessageMetadata{})
}

// sendCanned sends a templated message on behalf of the visitor.
func (m *Machine) sendCanned(text string) []Effect {
	if m.mode == ModeGreeting {
		m.setMode(ModeConversation)
	}
	return m.request(text, models.MessageMetadata{Automated: true, Source: models.SourceCanned})
}

func (m *Machine) request(text string, meta models.MessageMetadata) []Effect {
	m.lastActivity = m.now()
	m.appendMessage(models.RoleUser, text, meta)
	m.pending = true
	return []Effect{RequestReply{Text: text, Language: m.binding.Current()}}
}

func (m *Machine) replyReceived(ev ReplyReceived) []Effect {
	m.pending = false
	meta := ev.Metadata
	content := ev.Content
	if strings.TrimSpace(content) == "" {
		content = m.text("error.backend")
		meta = models.MessageMetadata{Error: true, Source: models.SourceFallback, Confidence: 0.1}
	}
	m.lastActivity = m.now()
	m.appendAssistant(content, meta)

	if meta.ConsultationCompleted {
		m.schedule(TimerExitDelay, m.cfg.ConsultationExitDelay)
	}

	reason := models.EscalationReason(meta.EscalationReason)
	switch {
	case meta.PriceDetected || meta.IsStyleConsultation,
		meta.EscalationSuggested && reason == models.ReasonPricingRequest:
		if m.mode != ModeLeadForm {
			m.setMode(ModeQuickReplies)
			m.quickKind = QuickRepliesPriceRequest
		}
	case meta.EscalationSuggested && m.summarizable():
		if reason == models.ReasonUserRequest {
			m.setMode(ModeConversation)
			last, _ := models.LastUserMessage(m.messages)
			return m.escalate(reason, last.Content)
		}
		// Offer the handoff and let the visitor decide.
		m.setMode(ModeQuickReplies)
		m.quickKind = QuickRepliesGeneral
	case m.mode == ModeQuickReplies, m.mode == ModeGreeting:
		m.setMode(ModeConversation)
	}
	return nil
}

func (m *Machine) escalate(reason models.EscalationReason, message string) []Effect {
	m.pending = true
	return []Effect{RequestEscalation{
		Reason:   reason,
		Message:  message,
		Language: m.binding.Current(),
	}}
}

func (m *Machine) suggestionClicked(ev SuggestionClicked) []Effect {
	if m.mode != ModeSmartSuggestions {
		return nil
	}
	var picked Action
	for _, s := range Suggestions(m.cfg.Links) {
		if s.ID == ev.ID {
			picked = s.Action
			break
		}
	}
	if picked == nil {
		m.log.Warn("Unknown suggestion clicked", "suggestion", ev.ID)
		return nil
	}

	m.setMode(m.baseMode())
	now := m.now()
	m.lastActivity = now
	key := KeyClicks(m.sessionID)
	raw, _ := m.store.Get(key)
	clicks, _ := strconv.Atoi(raw)
	m.store.Set(key, strconv.Itoa(clicks+1))
	m.store.Set(KeyLastChatTime, now.UTC().Format(time.RFC3339Nano))

	return picked.Accept(clickVisitor{m: m})
}

func (m *Machine) quickReplySelected(ev QuickReplySelected) []Effect {
	if m.mode != ModeQuickReplies {
		return nil
	}
	m.lastActivity = m.now()
	switch m.quickKind {
	case QuickRepliesPriceRequest:
		switch ev.Option {
		case OptionYes:
			m.openLeadForm()
			m.appendAssistant(m.text("quick_reply.yes_confirmation"), models.MessageMetadata{Automated: true, Source: models.SourceCanned})
		case OptionNo:
			m.quickKind = QuickRepliesGeneral
		}
	case QuickRepliesGeneral:
		switch ev.Option {
		case OptionContinue:
			m.setMode(ModeConversation)
		case OptionHuman:
			m.setMode(ModeConversation)
			text := m.text("quick_reply.human")
			m.appendMessage(models.RoleUser, text, models.MessageMetadata{Automated: true, Source: models.SourceCanned})
			return m.escalate(models.ReasonUserRequest, text)
		}
	}
	return nil
}

func (m *Machine) openLeadForm() {
	m.setMode(ModeLeadForm)
	m.lead = &leadForm{step: LeadStepName}
}

func (m *Machine) leadNext() []Effect {
	f := m.lead
	if f == nil || f.submitting {
		return nil
	}
	if !f.valid(f.step) {
		f.err = m.text("lead.error." + string(f.step))
		return nil
	}
	f.err = ""
	if f.step == LeadStepConsent {
		return m.leadSubmit()
	}
	f.next()
	return nil
}

func (m *Machine) leadSubmit() []Effect {
	f := m.lead
	if f == nil || f.submitting || m.leadInFlight != nil {
		return nil
	}
	if step, bad := f.firstInvalid(); bad {
		f.step = step
		f.err = m.text("lead.error." + string(step))
		return nil
	}
	f.err = ""
	f.submitting = true
	m.leadInFlight = f
	return []Effect{SubmitLead{
		Name:        strings.TrimSpace(f.name),
		Email:       f.email,
		GDPRConsent: f.consent,
		Language:    m.binding.Current(),
	}}
}

// onLeadSubmitted confirms the lead even when the visitor has left the form
// while it was being stored.
func (m *Machine) onLeadSubmitted(ev LeadSubmitted) {
	f := m.leadInFlight
	if f == nil {
		return
	}
	m.leadInFlight = nil
	name := strings.TrimSpace(f.name)
	if ev.Lead.Name != "" {
		name = ev.Lead.Name
	}
	if m.mode == ModeLeadForm {
		m.setMode(ModeConversation)
	}
	m.leadSubmitted = true
	m.lastActivity = m.now()
	m.appendAssistant(m.dict.Render(m.binding.Current(), "lead.success", map[string]string{"Name": name}),
		models.MessageMetadata{Source: models.SourceCanned})
	m.store.Set(KeyVisitorName, name)
	m.schedule(TimerExitDelay, m.cfg.LeadExitDelay)
}

func (m *Machine) exitClose() {
	if m.mode != ModeExitPrompt {
		return
	}
	m.setMode(ModeConversation)
	m.closing = true
	m.cancel(TimerInactivity)
	m.appendAssistant(m.text("exit.farewell"), models.MessageMetadata{Automated: true, Source: models.SourceCanned})
	m.store.Set(KeyLastChatTime, m.now().UTC().Format(time.RFC3339Nano))
	m.schedule(TimerCloseReset, m.cfg.CloseResetDelay)
}

func (m *Machine) summaryEmailRequested(ev SummaryEmailRequested) []Effect {
	s := m.summary
	if m.mode != ModeSummary || s == nil || s.Sending {
		return nil
	}
	email := strings.TrimSpace(ev.Email)
	if !ValidEmail(email) {
		s.EmailError = m.text("lead.error.email")
		return nil
	}
	s.EmailError = ""
	s.Status = ""
	s.Sending = true
	return []Effect{SendSummaryEmail{Email: email, Summary: s.Text(), Language: m.binding.Current()}}
}

func (m *Machine) summaryEmailResult(ev SummaryEmailResult) {
	s := m.summary
	if s == nil {
		return
	}
	s.Sending = false
	if ev.Err != nil {
		m.log.Warn("Summary email failed", "error", ev.Err)
		s.Status = m.text("summary.email.failed")
		return
	}
	s.Status = m.dict.Render(m.binding.Current(), "summary.email.sent", map[string]string{"Email": ev.Email})
}

func (m *Machine) timerFired(tok Token) {
	t, ok := m.timers[tok.Kind]
	if !ok || t.gen != tok.Gen {
		return
	}
	delete(m.timers, tok.Kind)

	switch tok.Kind {
	case TimerReminder:
		if m.mode == ModeSmartSuggestions {
			m.nudge = m.text("suggestions.reminder")
		}
	case TimerInactivity:
		if models.UserTurns(m.messages) > m.cfg.SummaryMinTurns && m.summarizable() {
			s := BuildSummary(m.dict, m.binding.Current(), m.messages, m.leadSubmitted)
			m.setMode(ModeSummary)
			m.summary = &SummaryView{Summary: s}
		}
	case TimerExitCheck:
		m.schedule(TimerExitCheck, m.cfg.ExitCheckInterval)
		if m.shouldPromptExit() {
			m.setMode(ModeExitPrompt)
		}
	case TimerExitDelay:
		if !m.closing && m.summarizable() {
			m.setMode(ModeExitPrompt)
		}
	case TimerCloseReset:
		m.reset()
	}
}

// summarizable reports whether the active mode may be replaced by a summary
// or a delayed exit prompt.
func (m *Machine) summarizable() bool {
	switch m.mode {
	case ModeGreeting, ModeConversation, ModeQuickReplies:
		return true
	}
	return false
}

func (m *Machine) shouldPromptExit() bool {
	if m.mode != ModeGreeting && m.mode != ModeConversation {
		return false
	}
	if m.pending || m.closing || models.UserTurns(m.messages) == 0 || len(m.messages) == 0 {
		return false
	}
	last := m.messages[len(m.messages)-1]
	if last.Role != models.RoleAssistant {
		return false
	}
	after := m.cfg.ExitPromptAfter
	finished := m.dict.Keywords(m.binding.Current(), "turn.finished")
	if len(language.MatchKeywords(language.Normalize(last.Content), finished)) > 0 {
		after = m.cfg.ExitPromptFinishedAfter
	}
	return m.now().Sub(m.lastActivity) >= after
}

// reset returns to a blank idle session with suggestions suppressed.
func (m *Machine) reset() {
	m.cancelAll()
	m.setMode(ModeIdle)
	m.messages = nil
	m.pending = false
	m.closing = false
	m.leadSubmitted = false
	m.leadInFlight = nil
	m.suppressed = true
}

// setMode switches the active mode and clears the state of the mode left.
func (m *Machine) setMode(next Mode) {
	if m.mode == ModeSmartSuggestions && next != ModeSmartSuggestions {
		m.cancel(TimerReminder)
		m.nudge = ""
	}
	if next != ModeQuickReplies {
		m.quickKind = ""
	}
	if next != ModeLeadForm {
		m.lead = nil
	}
	if next != ModeSummary {
		m.summary = nil
	}
	m.mode = next
}

func (m *Machine) baseMode() Mode {
	if models.UserTurns(m.messages) > 0 {
		return ModeConversation
	}
	return ModeGreeting
}

func (m *Machine) appendAssistant(content string, meta models.MessageMetadata) {
	m.appendMessage(models.RoleAssistant, content, meta)
}

// appendMessage adds to the transcript and restarts the inactivity timer
// once the visitor has spoken.
func (m *Machine) appendMessage(role models.Role, content string, meta models.MessageMetadata) {
	m.messages = append(m.messages, models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: m.now(),
		Metadata:  meta,
	})
	if models.UserTurns(m.messages) > 0 && m.mode != ModeSummary && !m.closing {
		m.schedule(TimerInactivity, m.cfg.InactivityDelay)
	}
}

func (m *Machine) text(key string) string {
	return m.dict.Text(m.binding.Current(), key)
}

func (m *Machine) schedule(kind TimerKind, delay time.Duration) {
	m.cancel(kind)
	if m.sched == nil {
		return
	}
	m.gen++
	tok := Token{Kind: kind, Gen: m.gen}
	m.timers[kind] = timer{gen: m.gen, cancel: m.sched.Schedule(delay, tok)}
}

func (m *Machine) cancel(kind TimerKind) {
	if t, ok := m.timers[kind]; ok {
		t.cancel()
		delete(m.timers, kind)
	}
}

func (m *Machine) cancelAll() {
	for kind := range m.timers {
		m.cancel(kind)
	}
}

// mapStore is the store used when none is injected.
type mapStore map[string]string

func (s mapStore) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

func (s mapStore) Set(key, value string) {
	s[key] = value
}

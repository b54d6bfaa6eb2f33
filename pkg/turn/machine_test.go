package turn

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

var t0 = time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	dict    *language.Dictionary
	sched   *FakeScheduler
	store   mapStore
	m       *Machine
	effects []Effect
}

func newFixture(t *testing.T, store mapStore) *fixture {
	t.Helper()
	if store == nil {
		store = mapStore{}
	}
	cfg := DefaultConfig()
	cfg.Links = Links{
		Appointment: "https://example.nl/afspraak",
		Gallery:     "https://example.nl/inspiratie",
		Business:    "https://example.nl/zakelijk",
	}
	f := &fixture{t: t, dict: language.Builtin(), sched: NewFakeScheduler(t0), store: store}
	f.m = NewMachine("s1", Deps{Store: store, Scheduler: f.sched, Dict: f.dict, Now: f.sched.Now}, cfg)
	f.sched.OnFire = func(tok Token) {
		f.effects = append(f.effects, f.m.Handle(TimerFired{Token: tok})...)
	}
	return f
}

// returningVisitor is a store for a visitor who chatted an hour ago.
func returningVisitor() mapStore {
	return mapStore{
		KeyVisited:      "true",
		KeyLastChatTime: t0.Add(-time.Hour).Format(time.RFC3339Nano),
	}
}

func (f *fixture) handle(ev Event) []Effect {
	eff := f.m.Handle(ev)
	f.effects = append(f.effects, eff...)
	return eff
}

func (f *fixture) text(key string) string {
	return f.dict.Text(language.NL, key)
}

func (f *fixture) lastMessage() models.Message {
	msgs := f.m.Snapshot().Messages
	require.NotEmpty(f.t, msgs)
	return msgs[len(msgs)-1]
}

// turn sends a user message and answers it.
func (f *fixture) turn(question, answer string, meta models.MessageMetadata) {
	f.handle(SendText{Text: question})
	f.handle(ReplyReceived{Content: answer, Metadata: meta})
}

func countContent(msgs []models.Message, content string) int {
	n := 0
	for _, m := range msgs {
		if m.Content == content {
			n++
		}
	}
	return n
}

func TestOpenSuggestionVisibility(t *testing.T) {
	tests := []struct {
		name            string
		store           mapStore
		wantSuggestions bool
		wantGreeting    string
	}{
		{
			name:            "first visitor",
			store:           mapStore{},
			wantSuggestions: true,
			wantGreeting:    "greeting.generic",
		},
		{
			name:            "returning after 23 hours",
			store:           mapStore{KeyVisited: "true", KeyLastChatTime: t0.Add(-23 * time.Hour).Format(time.RFC3339Nano)},
			wantSuggestions: false,
			wantGreeting:    "greeting.returning",
		},
		{
			name:            "returning after 25 hours",
			store:           mapStore{KeyVisited: "true", KeyLastChatTime: t0.Add(-25 * time.Hour).Format(time.RFC3339Nano)},
			wantSuggestions: true,
			wantGreeting:    "greeting.returning",
		},
		{
			name:            "visited without timestamp",
			store:           mapStore{KeyVisited: "true"},
			wantSuggestions: true,
			wantGreeting:    "greeting.returning",
		},
		{
			name:            "unreadable timestamp",
			store:           mapStore{KeyVisited: "true", KeyLastChatTime: "yesterday"},
			wantSuggestions: true,
			wantGreeting:    "greeting.returning",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.store)
			f.handle(Open{})

			snap := f.m.Snapshot()
			if tt.wantSuggestions {
				assert.Equal(t, ModeSmartSuggestions, snap.Mode)
				assert.Len(t, snap.Suggestions, 7)
				assert.Contains(t, f.sched.Pending(), TimerReminder)
			} else {
				assert.Equal(t, ModeGreeting, snap.Mode)
				assert.Empty(t, snap.Suggestions)
			}
			require.Len(t, snap.Messages, 1)
			assert.Equal(t, f.text(tt.wantGreeting), snap.Messages[0].Content)
			assert.Equal(t, "true", tt.store[KeyVisited])
			assert.Contains(t, f.sched.Pending(), TimerExitCheck)
		})
	}
}

func TestOpenGreetsReturningVisitorByName(t *testing.T) {
	store := returningVisitor()
	store[KeyVisitorName] = "Jan"
	f := newFixture(t, store)
	f.handle(Open{})
	assert.Equal(t, "Welkom terug, Jan! Waarmee kan ik je vandaag helpen?", f.lastMessage().Content)
}

func TestOpenWithHistoryDoesNotGreet(t *testing.T) {
	f := newFixture(t, returningVisitor())
	history := []models.Message{
		{ID: "1", Role: models.RoleUser, Content: "hallo", CreatedAt: t0.Add(-time.Minute)},
		{ID: "2", Role: models.RoleAssistant, Content: "Hoi!", CreatedAt: t0.Add(-time.Minute)},
	}
	f.handle(Open{History: history})

	snap := f.m.Snapshot()
	assert.Equal(t, history, snap.Messages)
	assert.Equal(t, ModeConversation, snap.Mode)
}

func TestSendTextRequestsReply(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})
	require.Equal(t, ModeSmartSuggestions, f.m.Mode())

	eff := f.handle(SendText{Text: "  Wat kost een rolgordijn?  "})

	require.Equal(t, []Effect{RequestReply{Text: "Wat kost een rolgordijn?", Language: language.NL}}, eff)
	snap := f.m.Snapshot()
	assert.Equal(t, ModeConversation, snap.Mode)
	assert.True(t, snap.Pending)
	assert.NotContains(t, f.sched.Pending(), TimerReminder)

	assert.Empty(t, f.handle(SendText{Text: "   "}), "blank messages are ignored")
}

func TestTypingHidesSuggestions(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})

	f.handle(InputChanged{Text: "   "})
	assert.Equal(t, ModeSmartSuggestions, f.m.Mode())

	f.handle(InputChanged{Text: "h"})
	assert.Equal(t, ModeGreeting, f.m.Mode())
	assert.NotContains(t, f.sched.Pending(), TimerReminder)
}

func TestReminderNudge(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})

	f.sched.Advance(19 * time.Second)
	assert.Empty(t, f.m.Snapshot().Nudge)
	f.sched.Advance(time.Second)
	assert.Equal(t, f.text("suggestions.reminder"), f.m.Snapshot().Nudge)
}

func TestSuggestionActions(t *testing.T) {
	t.Run("quote opens the lead form", func(t *testing.T) {
		f := newFixture(t, nil)
		f.handle(Open{})
		assert.Empty(t, f.handle(SuggestionClicked{ID: "quote"}))

		snap := f.m.Snapshot()
		assert.Equal(t, ModeLeadForm, snap.Mode)
		require.NotNil(t, snap.Lead)
		assert.Equal(t, LeadStepName, snap.Lead.Step)
		assert.False(t, snap.Lead.CanGoBack)
		assert.Equal(t, "1", f.store[KeyClicks("s1")])
		assert.Equal(t, t0.Format(time.RFC3339Nano), f.store[KeyLastChatTime])
		assert.NotContains(t, f.sched.Pending(), TimerReminder)
	})

	t.Run("style consultation sends a canned message", func(t *testing.T) {
		f := newFixture(t, nil)
		f.handle(Open{})
		eff := f.handle(SuggestionClicked{ID: "style"})

		require.Equal(t, []Effect{RequestReply{Text: f.text("suggestion.style.message"), Language: language.NL}}, eff)
		assert.True(t, f.m.Snapshot().Pending)
		assert.True(t, f.lastMessage().Metadata.Automated)
	})

	t.Run("product info renders the template", func(t *testing.T) {
		f := newFixture(t, nil)
		f.handle(Open{})
		eff := f.handle(SuggestionClicked{ID: "product"})
		require.Len(t, eff, 1)
		assert.Equal(t, "Kun je me meer vertellen over jullie rolgordijnen en plissés?", eff[0].(RequestReply).Text)
	})

	t.Run("navigation", func(t *testing.T) {
		for id, url := range map[string]string{
			"appointment": "https://example.nl/afspraak",
			"gallery":     "https://example.nl/inspiratie",
			"business":    "https://example.nl/zakelijk",
		} {
			f := newFixture(t, nil)
			f.handle(Open{})
			assert.Equal(t, []Effect{Navigate{URL: url}}, f.handle(SuggestionClicked{ID: id}), id)
			assert.Equal(t, ModeGreeting, f.m.Mode())
		}
	})

	t.Run("clicks accumulate and stale clicks are ignored", func(t *testing.T) {
		f := newFixture(t, mapStore{KeyClicks("s1"): "2"})
		f.handle(Open{})
		f.handle(SuggestionClicked{ID: "gallery"})
		assert.Equal(t, "3", f.store[KeyClicks("s1")])

		assert.Empty(t, f.handle(SuggestionClicked{ID: "gallery"}))
		assert.Equal(t, "3", f.store[KeyClicks("s1")])
	})
}

func TestPriceReplyLeadsToQuote(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.turn("Wat kost een rolgordijn?", "Vanaf €49.", models.MessageMetadata{PriceDetected: true})

	snap := f.m.Snapshot()
	require.Equal(t, ModeQuickReplies, snap.Mode)
	assert.Equal(t, QuickRepliesPriceRequest, snap.QuickReplyKind)
	assert.Equal(t, []Option{{ID: OptionYes, Label: f.text("quick_reply.yes")}, {ID: OptionNo, Label: f.text("quick_reply.no")}}, snap.QuickReplies)

	f.handle(QuickReplySelected{Option: OptionYes})
	snap = f.m.Snapshot()
	assert.Equal(t, ModeLeadForm, snap.Mode)
	assert.Empty(t, snap.QuickReplyKind)
	assert.Equal(t, f.text("quick_reply.yes_confirmation"), f.lastMessage().Content)
	assert.Equal(t, ModeLeadForm, f.m.Mode(), "the canned confirmation keeps the form")

	f.turn("Welke kleuren zijn er?", "Meer dan veertig kleuren.", models.MessageMetadata{})
	assert.Equal(t, ModeConversation, f.m.Mode(), "a manual message clears the form")
}

func TestPriceReplyKeepsActiveLeadForm(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})
	f.handle(SuggestionClicked{ID: "quote"})
	f.handle(ReplyReceived{Content: "Vanaf €49.", Metadata: models.MessageMetadata{PriceDetected: true}})
	assert.Equal(t, ModeLeadForm, f.m.Mode())
}

func TestQuickReplyFlows(t *testing.T) {
	t.Run("no then continue", func(t *testing.T) {
		f := newFixture(t, returningVisitor())
		f.handle(Open{})
		f.turn("Stijladvies graag", "Welke stijl?", models.MessageMetadata{IsStyleConsultation: true})
		f.handle(QuickReplySelected{Option: OptionNo})
		snap := f.m.Snapshot()
		assert.Equal(t, QuickRepliesGeneral, snap.QuickReplyKind)
		assert.Equal(t, f.text("quick_reply.general.prompt"), snap.Prompt)

		f.handle(QuickReplySelected{Option: OptionContinue})
		assert.Equal(t, ModeConversation, f.m.Mode())
	})

	t.Run("human escalates", func(t *testing.T) {
		f := newFixture(t, returningVisitor())
		f.handle(Open{})
		f.turn("Wat kost dat?", "€49", models.MessageMetadata{PriceDetected: true})
		f.handle(QuickReplySelected{Option: OptionNo})
		eff := f.handle(QuickReplySelected{Option: OptionHuman})

		require.Equal(t, []Effect{RequestEscalation{
			Reason:   models.ReasonUserRequest,
			Message:  f.text("quick_reply.human"),
			Language: language.NL,
		}}, eff)
		assert.True(t, f.m.Snapshot().Pending)

		f.handle(EscalationResult{TicketNumber: "TKT-1", Message: "Ticket TKT-1"})
		assert.False(t, f.m.Snapshot().Pending)
		assert.Equal(t, "Ticket TKT-1", f.lastMessage().Content)
		assert.Equal(t, models.SourceEscalation, f.lastMessage().Metadata.Source)

		f.handle(EscalationResult{Err: errors.New("store down")})
		assert.Equal(t, f.text("escalation.failed"), f.lastMessage().Content)
	})

	t.Run("plain reply clears quick replies", func(t *testing.T) {
		f := newFixture(t, returningVisitor())
		f.handle(Open{})
		f.turn("Prijs?", "€49", models.MessageMetadata{PriceDetected: true})
		f.handle(ReplyReceived{Content: "Nog iets?"})
		assert.Equal(t, ModeConversation, f.m.Mode())
	})
}

func TestLeadWizard(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.turn("Wat kost een rolgordijn?", "Vanaf €49.", models.MessageMetadata{PriceDetected: true})
	f.handle(QuickReplySelected{Option: OptionYes})

	lead := func() *LeadView {
		l := f.m.Snapshot().Lead
		require.NotNil(t, l)
		return l
	}

	f.handle(LeadNext{})
	assert.Equal(t, LeadStepName, lead().Step)
	assert.Equal(t, f.text("lead.error.name"), lead().Error)
	f.handle(LeadBack{})
	assert.Equal(t, LeadStepName, lead().Step, "no back from the first step")

	f.handle(LeadFieldChanged{Field: FieldName, Value: "Jan"})
	assert.Empty(t, lead().Error)
	f.handle(LeadNext{})
	assert.Equal(t, LeadStepEmail, lead().Step)
	assert.True(t, lead().CanGoBack)

	f.handle(LeadBack{})
	assert.Equal(t, LeadStepName, lead().Step)
	assert.Equal(t, "Jan", lead().Name)
	f.handle(LeadNext{})

	f.handle(LeadFieldChanged{Field: FieldEmail, Value: "jan@example"})
	f.handle(LeadNext{})
	assert.Equal(t, LeadStepEmail, lead().Step)
	assert.Equal(t, f.text("lead.error.email"), lead().Error)

	f.handle(LeadFieldChanged{Field: FieldEmail, Value: "jan@example.nl"})
	f.handle(LeadNext{})
	assert.Equal(t, LeadStepConsent, lead().Step)

	assert.Empty(t, f.handle(LeadSubmit{}))
	assert.Equal(t, f.text("lead.error.consent"), lead().Error)

	f.handle(LeadFieldChanged{Field: FieldConsent, Value: "true"})
	eff := f.handle(LeadSubmit{})
	require.Equal(t, []Effect{SubmitLead{Name: "Jan", Email: "jan@example.nl", GDPRConsent: true, Language: language.NL}}, eff)
	assert.True(t, lead().Submitting)
	assert.Empty(t, f.handle(LeadSubmit{}), "no double submit")

	f.handle(LeadSubmitFailed{Err: errors.New("db down")})
	assert.False(t, lead().Submitting)
	assert.Equal(t, ModeLeadForm, f.m.Mode())
	assert.Equal(t, f.text("lead.error.submit"), f.lastMessage().Content)
	assert.True(t, f.lastMessage().Metadata.Error)
}

func TestLeadSubmittedGoesToExitPrompt(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.handle(SendText{Text: "Ik wil een offerte"})
	f.handle(ReplyReceived{Content: "Prima, vanaf €49.", Metadata: models.MessageMetadata{PriceDetected: true}})
	f.handle(QuickReplySelected{Option: OptionYes})
	f.handle(LeadFieldChanged{Field: FieldName, Value: "Jan"})
	f.handle(LeadFieldChanged{Field: FieldEmail, Value: "jan@example.nl"})
	f.handle(LeadFieldChanged{Field: FieldConsent, Value: "true"})
	require.Len(t, f.handle(LeadSubmit{}), 1)

	f.handle(LeadSubmitted{Lead: models.Lead{Name: "Jan"}})
	f.handle(LeadSubmitted{Lead: models.Lead{Name: "Jan"}})

	confirmation := f.dict.Render(language.NL, "lead.success", map[string]string{"Name": "Jan"})
	assert.Equal(t, 1, countContent(f.m.Snapshot().Messages, confirmation))
	assert.Equal(t, "Jan", f.store[KeyVisitorName])
	assert.Equal(t, ModeConversation, f.m.Mode())

	f.sched.Advance(1999 * time.Millisecond)
	assert.Equal(t, ModeConversation, f.m.Mode())
	f.sched.Advance(time.Millisecond)
	assert.Equal(t, ModeExitPrompt, f.m.Mode())
	assert.Equal(t, 1, countContent(f.m.Snapshot().Messages, confirmation))
}

func TestLeadConfirmedAfterLeavingForm(t *testing.T) {
	fill := func(f *fixture) {
		f.handle(Open{})
		f.turn("Ik wil een offerte", "Prima, vanaf €49.", models.MessageMetadata{PriceDetected: true})
		f.handle(QuickReplySelected{Option: OptionYes})
		f.handle(LeadFieldChanged{Field: FieldName, Value: "Jan"})
		f.handle(LeadFieldChanged{Field: FieldEmail, Value: "jan@example.nl"})
		f.handle(LeadFieldChanged{Field: FieldConsent, Value: "true"})
		require.Len(t, f.handle(LeadSubmit{}), 1)
		f.turn("Hoe lang duurt de levering?", "Ongeveer twee weken.", models.MessageMetadata{})
		require.Equal(t, ModeConversation, f.m.Mode())
	}

	t.Run("stored", func(t *testing.T) {
		f := newFixture(t, returningVisitor())
		fill(f)
		f.handle(LeadSubmitted{Lead: models.Lead{Name: "Jan"}})

		confirmation := f.dict.Render(language.NL, "lead.success", map[string]string{"Name": "Jan"})
		assert.Equal(t, 1, countContent(f.m.Snapshot().Messages, confirmation))
		assert.Equal(t, "Jan", f.store[KeyVisitorName])
		assert.Equal(t, ModeConversation, f.m.Mode())

		f.sched.Advance(2 * time.Second)
		assert.Equal(t, ModeExitPrompt, f.m.Mode())
	})

	t.Run("failed", func(t *testing.T) {
		f := newFixture(t, returningVisitor())
		fill(f)
		f.handle(LeadSubmitFailed{Err: errors.New("db down")})
		assert.Equal(t, f.text("lead.error.submit"), f.lastMessage().Content)
		assert.Equal(t, ModeConversation, f.m.Mode())

		f.handle(LeadSubmitted{Lead: models.Lead{Name: "Jan"}})
		confirmation := f.dict.Render(language.NL, "lead.success", map[string]string{"Name": "Jan"})
		assert.Zero(t, countContent(f.m.Snapshot().Messages, confirmation))
	})
}

func TestEscalationSuggestedByReply(t *testing.T) {
	tests := []struct {
		name      string
		reason    models.EscalationReason
		mode      Mode
		quickKind QuickReplyKind
		escalate  bool
	}{
		{"explicit request hands off", models.ReasonUserRequest, ModeConversation, "", true},
		{"complaint offers a human", models.ReasonComplaint, ModeQuickReplies, QuickRepliesGeneral, false},
		{"complex query offers a human", models.ReasonComplexQuery, ModeQuickReplies, QuickRepliesGeneral, false},
		{"technical issue offers a human", models.ReasonTechnicalIssue, ModeQuickReplies, QuickRepliesGeneral, false},
		{"pricing offers a quote", models.ReasonPricingRequest, ModeQuickReplies, QuickRepliesPriceRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, returningVisitor())
			f.handle(Open{})
			for i := 0; i < 10; i++ {
				f.turn("vraag", "antwoord", models.MessageMetadata{})
			}
			f.handle(SendText{Text: "Ik wil iemand spreken"})
			eff := f.handle(ReplyReceived{Content: "Daar help ik u graag mee.", Metadata: models.MessageMetadata{
				EscalationSuggested: true,
				EscalationReason:    string(tt.reason),
			}})

			snap := f.m.Snapshot()
			assert.Equal(t, tt.mode, snap.Mode)
			assert.Equal(t, tt.quickKind, snap.QuickReplyKind)
			if !tt.escalate {
				assert.Empty(t, eff)
				assert.False(t, snap.Pending)
				return
			}
			require.Equal(t, []Effect{RequestEscalation{
				Reason:   models.ReasonUserRequest,
				Message:  "Ik wil iemand spreken",
				Language: language.NL,
			}}, eff)
			assert.True(t, snap.Pending)
		})
	}
}

func TestEscalationSuggestionKeepsLeadForm(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})
	f.handle(SuggestionClicked{ID: "quote"})
	eff := f.handle(ReplyReceived{Content: "Een medewerker neemt contact op.", Metadata: models.MessageMetadata{
		EscalationSuggested: true,
		EscalationReason:    string(models.ReasonUserRequest),
	}})
	assert.Empty(t, eff)
	assert.Equal(t, ModeLeadForm, f.m.Mode())
}

func TestConsultationCompletedSchedulesExit(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.turn("Stijladvies", "Klaar!", models.MessageMetadata{ConsultationCompleted: true})

	f.sched.Advance(3 * time.Second)
	assert.Equal(t, ModeExitPrompt, f.m.Mode())
}

func TestExitPromptAfterInactivity(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		after  time.Duration
	}{
		{"plain answer", "Een rolgordijn kost vanaf 49 euro.", 30 * time.Second},
		{"finished answer", "Graag gedaan, nog een fijne dag!", 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, returningVisitor())
			f.handle(Open{})
			f.turn("Wat kost een rolgordijn?", tt.answer, models.MessageMetadata{})

			f.sched.Advance(tt.after - time.Second)
			assert.Equal(t, ModeConversation, f.m.Mode())
			f.sched.Advance(time.Second)
			assert.Equal(t, ModeExitPrompt, f.m.Mode())
		})
	}
}

func TestExitPromptWaitsForPendingReply(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.handle(SendText{Text: "hallo"})

	f.sched.Advance(time.Minute)
	assert.Equal(t, ModeConversation, f.m.Mode())
}

func TestExitPromptChoices(t *testing.T) {
	toExitPrompt := func(t *testing.T) *fixture {
		f := newFixture(t, returningVisitor())
		f.handle(Open{})
		f.turn("hallo", "Hoi, wat kan ik doen?", models.MessageMetadata{})
		f.sched.Advance(30 * time.Second)
		require.Equal(t, ModeExitPrompt, f.m.Mode())
		return f
	}

	t.Run("show suggestions", func(t *testing.T) {
		f := toExitPrompt(t)
		f.handle(ExitShowSuggestions{})
		assert.Equal(t, ModeSmartSuggestions, f.m.Mode())
		assert.Equal(t, f.sched.Now(), f.m.Snapshot().LastActivityAt)
	})

	t.Run("close resets and suppresses suggestions", func(t *testing.T) {
		f := toExitPrompt(t)
		f.handle(ExitClose{})
		assert.Equal(t, f.text("exit.farewell"), f.lastMessage().Content)
		assert.Equal(t, f.sched.Now().Format(time.RFC3339Nano), f.store[KeyLastChatTime])

		f.sched.Advance(3 * time.Second)
		snap := f.m.Snapshot()
		assert.Equal(t, ModeIdle, snap.Mode)
		assert.Empty(t, snap.Messages)
		assert.Empty(t, f.sched.Pending())

		f.sched.Advance(25 * time.Hour)
		f.handle(Open{})
		assert.Equal(t, ModeGreeting, f.m.Mode(), "suggestions stay suppressed after a reset")
	})
}

func TestSummaryAfterInactivity(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.turn("Wat kost een rolgordijn?", "Vanaf 49 euro.", models.MessageMetadata{})
	f.turn("Hoe lang is de levertijd?", "Tien werkdagen.", models.MessageMetadata{})
	f.turn("Kan ik een afspraak maken in de showroom?", "Zeker.", models.MessageMetadata{})

	f.sched.Advance(25 * time.Second)
	snap := f.m.Snapshot()
	require.Equal(t, ModeSummary, snap.Mode)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 3, snap.Summary.Turns)
	assert.Equal(t, []string{"prijzen", "levering", "afspraken"}, snap.Summary.Topics)
	assert.Equal(t, []string{"rolgordijn"}, snap.Summary.Products)

	f.sched.Advance(time.Minute)
	assert.Equal(t, ModeSummary, f.m.Mode(), "the exit prompt never replaces the summary")

	assert.Empty(t, f.handle(SummaryEmailRequested{Email: "nope"}))
	assert.Equal(t, f.text("lead.error.email"), f.m.Snapshot().Summary.EmailError)

	eff := f.handle(SummaryEmailRequested{Email: "jan@example.nl"})
	require.Len(t, eff, 1)
	send := eff[0].(SendSummaryEmail)
	assert.Equal(t, "jan@example.nl", send.Email)
	assert.True(t, strings.HasPrefix(send.Summary, f.text("summary.title")))
	assert.True(t, f.m.Snapshot().Summary.Sending)

	f.handle(SummaryEmailResult{Email: "jan@example.nl"})
	assert.Equal(t, "De samenvatting is naar jan@example.nl gestuurd.", f.m.Snapshot().Summary.Status)

	f.handle(SummaryDismissed{})
	assert.Equal(t, ModeConversation, f.m.Mode())
	assert.Nil(t, f.m.Snapshot().Summary)
}

func TestNoSummaryForShortConversations(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})
	f.turn("hallo", "Hoi!", models.MessageMetadata{})
	f.turn("nog een vraag", "Zeg het maar.", models.MessageMetadata{})

	f.sched.Advance(25 * time.Second)
	assert.Equal(t, ModeConversation, f.m.Mode())
	f.sched.Advance(5 * time.Second)
	assert.Equal(t, ModeExitPrompt, f.m.Mode())
}

func TestReplyFailures(t *testing.T) {
	f := newFixture(t, returningVisitor())
	f.handle(Open{})

	f.handle(SendText{Text: "hallo"})
	f.handle(ReplyFailed{Err: errors.New("timeout")})
	msg := f.lastMessage()
	assert.Equal(t, f.text("error.backend"), msg.Content)
	assert.True(t, msg.Metadata.Error)
	assert.Equal(t, 0.1, msg.Metadata.Confidence)
	assert.False(t, f.m.Snapshot().Pending)

	f.handle(SendText{Text: "hallo"})
	f.handle(ReplyReceived{Content: "  "})
	assert.Equal(t, f.text("error.backend"), f.lastMessage().Content)
}

func TestLanguageChange(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})
	f.handle(LanguageChanged{Language: "en-GB"})

	snap := f.m.Snapshot()
	assert.Equal(t, language.EN, snap.Language)
	assert.Equal(t, f.dict.Text(language.EN, "suggestions.title"), snap.SuggestionsTitle)
	assert.Equal(t, "en", f.store[language.PreferenceKey])

	f.handle(LanguageChanged{Language: "fr"})
	assert.Equal(t, language.EN, f.m.Language())
}

func TestCloseCancelsTimers(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})
	require.NotEmpty(t, f.sched.Pending())

	f.handle(Close{})
	assert.Equal(t, ModeIdle, f.m.Mode())
	assert.Empty(t, f.sched.Pending())
}

func TestStaleTimerIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.handle(Open{})
	before := f.m.Snapshot()

	f.handle(TimerFired{Token: Token{Kind: TimerReminder, Gen: 999}})
	assert.Equal(t, before, f.m.Snapshot())
}

// TestRandomEventsKeepModesExclusive drives the machine with random event
// sequences and checks the mode invariants after every step.
func TestRandomEventsKeepModesExclusive(t *testing.T) {
	ids := []string{"quote", "style", "product", "qa", "appointment", "gallery", "business", "bogus"}
	options := []string{OptionYes, OptionNo, OptionContinue, OptionHuman}
	fields := []string{FieldName, FieldEmail, FieldConsent}
	values := []string{"Jan", "jan@example.nl", "true", "", "x"}

	events := []func(r *rand.Rand) Event{
		func(*rand.Rand) Event { return Open{} },
		func(*rand.Rand) Event { return Close{} },
		func(*rand.Rand) Event { return InputChanged{Text: "h"} },
		func(*rand.Rand) Event { return SendText{Text: "Wat kost een rolgordijn?"} },
		func(r *rand.Rand) Event {
			return ReplyReceived{Content: "Vanaf €49.", Metadata: models.MessageMetadata{
				PriceDetected:         r.Intn(2) == 0,
				IsStyleConsultation:   r.Intn(4) == 0,
				ConsultationCompleted: r.Intn(4) == 0,
				EscalationSuggested:   r.Intn(4) == 0,
				EscalationReason:      string(models.ReasonComplaint),
			}}
		},
		func(*rand.Rand) Event { return ReplyFailed{Err: errors.New("x")} },
		func(r *rand.Rand) Event { return SuggestionClicked{ID: ids[r.Intn(len(ids))]} },
		func(r *rand.Rand) Event { return QuickReplySelected{Option: options[r.Intn(len(options))]} },
		func(r *rand.Rand) Event {
			return LeadFieldChanged{Field: fields[r.Intn(len(fields))], Value: values[r.Intn(len(values))]}
		},
		func(*rand.Rand) Event { return LeadNext{} },
		func(*rand.Rand) Event { return LeadBack{} },
		func(*rand.Rand) Event { return LeadSubmit{} },
		func(*rand.Rand) Event { return LeadSubmitted{Lead: models.Lead{Name: "Jan"}} },
		func(*rand.Rand) Event { return LeadSubmitFailed{Err: errors.New("x")} },
		func(*rand.Rand) Event { return ExitShowSuggestions{} },
		func(*rand.Rand) Event { return ExitClose{} },
		func(*rand.Rand) Event { return SummaryDismissed{} },
		func(*rand.Rand) Event { return SummaryEmailRequested{Email: "jan@example.nl"} },
		func(*rand.Rand) Event { return SummaryEmailResult{Email: "jan@example.nl"} },
		func(*rand.Rand) Event { return EscalationResult{Message: "ok"} },
		func(r *rand.Rand) Event { return LanguageChanged{Language: []string{"nl", "en", "de"}[r.Intn(3)]} },
	}

	for seed := int64(1); seed <= 20; seed++ {
		r := rand.New(rand.NewSource(seed))
		f := newFixture(t, nil)
		for step := 0; step < 500; step++ {
			if r.Intn(5) == 0 {
				f.sched.Advance(time.Duration(r.Intn(40)) * time.Second)
			} else {
				f.handle(events[r.Intn(len(events))](r))
			}

			snap := f.m.Snapshot()
			require.Equal(t, snap.Mode == ModeQuickReplies, snap.QuickReplyKind != "", "seed %d step %d", seed, step)
			require.Equal(t, snap.Mode == ModeLeadForm, snap.Lead != nil, "seed %d step %d", seed, step)
			require.Equal(t, snap.Mode == ModeSummary, snap.Summary != nil, "seed %d step %d", seed, step)
			require.Equal(t, snap.Mode == ModeSmartSuggestions, snap.Suggestions != nil, "seed %d step %d", seed, step)
		}
	}
}

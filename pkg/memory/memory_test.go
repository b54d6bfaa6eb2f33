package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/knowledge"
	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// syncDispatcher runs jobs inline so tests can observe their effect.
type syncDispatcher struct {
	accept bool
	names  []string
}

func (d *syncDispatcher) Submit(name string, fn func(ctx context.Context) error) bool {
	d.names = append(d.names, name)
	if !d.accept {
		return false
	}
	_ = fn(context.Background())
	return true
}

type failingStore struct{}

func (failingStore) ActiveLearnedResponses(context.Context, string) ([]models.LearnedResponse, error) {
	return nil, errors.New("db down")
}

func (failingStore) RecordUsage(context.Context, string, time.Time) error {
	return errors.New("db down")
}

func user(text string) models.Message {
	return models.Message{Role: models.RoleUser, Content: text}
}

func assistant(text string) models.Message {
	return models.Message{Role: models.RoleAssistant, Content: text}
}

func learned(id, question string, keywords ...string) models.LearnedResponse {
	return models.LearnedResponse{
		ID:               id,
		OriginalQuestion: question,
		Response:         "antwoord " + id,
		Keywords:         keywords,
		Language:         "nl",
		Active:           true,
	}
}

func TestBuildContextFlows(t *testing.T) {
	dict := language.Builtin()
	tests := []struct {
		name     string
		messages []models.Message
		flow     Flow
		products []string
	}{
		{"no turns", []models.Message{assistant("Welkom!")}, FlowInitialContact, nil},
		{"first question", []models.Message{assistant("Welkom!"), user("Verkopen jullie shutters?")}, FlowFirstQuestion, []string{"shutter"}},
		{
			"pricing followup",
			[]models.Message{user("Wat kost een rolgordijn?"), assistant("Vanaf 49 euro."), user("En hoeveel kost een plissé?")},
			FlowPricingFollowup, []string{"plisse"},
		},
		{
			"product followup",
			[]models.Message{user("Ik zoek een rolgordijn"), assistant("Leuk!"), user("Welke kleuren heeft het rolgordijn?")},
			FlowProductFollowup, []string{"rolgordijn"},
		},
		{
			"closing",
			[]models.Message{user("Ik zoek een jaloezie"), assistant("Prima."), user("Bedankt voor de hulp")},
			FlowClosing, nil,
		},
		{
			"ongoing",
			[]models.Message{user("Hallo"), assistant("Hoi!"), user("Hoe gaat het?")},
			FlowOngoingConversation, []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildContext(dict, tt.messages, language.NL, 20)
			assert.Equal(t, tt.flow, got.Flow)
			assert.Equal(t, tt.products, got.Products)
		})
	}
}

func TestBuildContextTopicsAndIntent(t *testing.T) {
	msgs := []models.Message{
		user("Wanneer wordt mijn bestelling geleverd?"),
		assistant("Binnen 10 werkdagen."),
		user("Wat kost een vouwgordijn?"),
	}
	got := BuildContext(language.Builtin(), msgs, language.NL, 20)

	assert.Contains(t, got.Topics, "pricing")
	assert.Contains(t, got.Topics, "delivery")
	assert.Contains(t, got.Topics, "vouwgordijn")
	assert.Equal(t, "pricing", string(got.Intent))

	windowed := BuildContext(language.Builtin(), msgs, language.NL, 1)
	assert.NotContains(t, windowed.Topics, "delivery", "only the window is considered")
}

func TestRecallThresholds(t *testing.T) {
	question := "Hoeveel kost een rolgordijn op maat?"
	store := knowledge.NewMemoryStore(&knowledge.Seed{Learned: []models.LearnedResponse{
		learned("exact", question, "rolgordijn", "kost"),
		learned("other", "Wanneer wordt mijn bestelling geleverd?", "levering"),
	}})

	t.Run("verbatim question is safe to answer", func(t *testing.T) {
		l := New(store, language.Builtin(), nil, Config{}, nil)
		sc := l.BuildContext([]models.Message{user(question)}, language.NL)

		m, ok := l.Recall(context.Background(), question, sc, language.NL)
		require.True(t, ok)
		assert.Equal(t, "exact", m.Response.ID)
		assert.Greater(t, m.Confidence, 0.8)
		assert.True(t, m.SafeToAnswer)
	})

	t.Run("recalled but below the answer threshold", func(t *testing.T) {
		l := New(store, language.Builtin(), nil, Config{RecallThreshold: 0.5, AnswerThreshold: 0.99}, nil)
		m, ok := l.Recall(context.Background(), question, SessionContext{}, language.NL)
		require.True(t, ok)
		assert.False(t, m.SafeToAnswer)
	})

	t.Run("unrelated question misses", func(t *testing.T) {
		l := New(store, language.Builtin(), nil, Config{}, nil)
		_, ok := l.Recall(context.Background(), "Hebben jullie een showroom in Utrecht?", SessionContext{}, language.NL)
		assert.False(t, ok)
	})

	t.Run("other language misses", func(t *testing.T) {
		l := New(store, language.Builtin(), nil, Config{}, nil)
		_, ok := l.Recall(context.Background(), question, SessionContext{}, language.EN)
		assert.False(t, ok)
	})

	t.Run("store failure misses", func(t *testing.T) {
		l := New(failingStore{}, language.Builtin(), nil, Config{}, nil)
		_, ok := l.Recall(context.Background(), question, SessionContext{}, language.NL)
		assert.False(t, ok)
	})
}

func TestRecallSkipsInactive(t *testing.T) {
	question := "Hoeveel kost een rolgordijn op maat?"
	inactive := learned("off", question, "rolgordijn")
	inactive.Active = false
	l := New(knowledge.NewMemoryStore(&knowledge.Seed{Learned: []models.LearnedResponse{inactive}}), language.Builtin(), nil, Config{}, nil)

	_, ok := l.Recall(context.Background(), question, SessionContext{}, language.NL)
	assert.False(t, ok)
}

func TestConfidenceMonotoneInKeywordOverlap(t *testing.T) {
	l := New(knowledge.NewMemoryStore(nil), language.Builtin(), nil, Config{}, nil)
	question := "Zonwering voor serre veranda zolder schuur"
	hits := []string{"serre", "veranda", "zolder", "schuur"}
	misses := []string{"kelder", "garage", "tuinhuis", "balkon"}

	var prev Breakdown
	for k := 0; k <= len(hits); k++ {
		keywords := append(append([]string{}, hits[:k]...), misses[k:]...)
		b := l.Confidence(question, SessionContext{Flow: FlowFirstQuestion}, language.NL, learned("c", "Zonwering voor de serre", keywords...))

		assert.InDelta(t, float64(k)/4, b.KeywordOverlap, 1e-9)
		if k > 0 {
			assert.GreaterOrEqual(t, b.Confidence, prev.Confidence)
			assert.InDelta(t, 0.3*(b.KeywordOverlap-prev.KeywordOverlap), b.Confidence-prev.Confidence, 1e-9)
			assert.Equal(t, prev.TextSimilarity, b.TextSimilarity)
			assert.Equal(t, prev.ContextMatch, b.ContextMatch)
		}
		prev = b
	}
}

func TestConfidenceFlowAffinity(t *testing.T) {
	l := New(knowledge.NewMemoryStore(nil), language.Builtin(), nil, Config{}, nil)
	c := learned("c", "Wat kost een rolgordijn?")

	pricing := l.Confidence("prijs?", SessionContext{Flow: FlowPricingFollowup}, language.NL, c)
	ongoing := l.Confidence("prijs?", SessionContext{Flow: FlowOngoingConversation}, language.NL, c)
	product := l.Confidence("prijs?", SessionContext{Flow: FlowProductFollowup, Products: []string{"rolgordijn"}}, language.NL, c)
	first := l.Confidence("prijs?", SessionContext{Flow: FlowFirstQuestion}, language.NL, c)

	assert.InDelta(t, 0.3, pricing.ContextMatch, 1e-9)
	assert.InDelta(t, 0.3, product.ContextMatch, 1e-9)
	assert.InDelta(t, 0.15, first.ContextMatch, 1e-9)
	assert.Zero(t, ongoing.ContextMatch)
}

func TestRecordUsage(t *testing.T) {
	store := knowledge.NewMemoryStore(&knowledge.Seed{Learned: []models.LearnedResponse{learned("lr-1", "vraag")}})
	resp, _ := store.Learned("lr-1")

	t.Run("through the dispatcher", func(t *testing.T) {
		d := &syncDispatcher{accept: true}
		l := New(store, language.Builtin(), d, Config{}, nil)
		l.RecordUsage(resp)

		got, _ := store.Learned("lr-1")
		assert.Equal(t, 1, got.UsageCount)
		assert.NotNil(t, got.LastUsed)
		assert.Equal(t, []string{"memory.record_usage"}, d.names)
	})

	t.Run("dropped job is not an error", func(t *testing.T) {
		l := New(store, language.Builtin(), &syncDispatcher{}, Config{}, nil)
		assert.NotPanics(t, func() { l.RecordUsage(resp) })

		got, _ := store.Learned("lr-1")
		assert.Equal(t, 1, got.UsageCount)
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		l := New(failingStore{}, language.Builtin(), nil, Config{}, nil)
		assert.NotPanics(t, func() { l.RecordUsage(resp) })
	})
}

// Package memory reuses admin-approved learned responses when a new question
// is close enough to one that was answered before.
package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Confidence weights.
const (
	weightText    = 0.4
	weightKeyword = 0.3
	weightContext = 0.2
	weightIntent  = 0.1

	weightTopicOverlap = 0.7
	weightFlowAffinity = 0.3
)

// Config tunes recall.
type Config struct {
	// ContextMessages is the transcript window BuildContext looks at.
	ContextMessages int `yaml:"context_messages"`
	// RecallThreshold is the exclusive confidence floor for a recall.
	RecallThreshold float64 `yaml:"recall_threshold"`
	// AnswerThreshold is the exclusive confidence above which a recalled
	// response may be sent verbatim.
	AnswerThreshold float64 `yaml:"answer_threshold"`
}

// DefaultConfig returns the built-in memory settings.
func DefaultConfig() Config {
	return Config{ContextMessages: 20, RecallThreshold: 0.7, AnswerThreshold: 0.8}
}

// Store is what the memory layer needs from the knowledge store.
type Store interface {
	ActiveLearnedResponses(ctx context.Context, lang string) ([]models.LearnedResponse, error)
	RecordUsage(ctx context.Context, id string, at time.Time) error
}

// Dispatcher runs fire-and-forget jobs. Submit must not block.
type Dispatcher interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// Breakdown holds the components of a recall confidence.
type Breakdown struct {
	TextSimilarity  float64 `json:"text_similarity"`
	KeywordOverlap  float64 `json:"keyword_overlap"`
	ContextMatch    float64 `json:"context_match"`
	IntentAgreement float64 `json:"intent_agreement"`
	Confidence      float64 `json:"confidence"`
}

// Match is a recalled learned response.
type Match struct {
	Response     models.LearnedResponse `json:"response"`
	Confidence   float64                `json:"confidence"`
	SafeToAnswer bool                   `json:"safe_to_answer"`
	Breakdown    Breakdown              `json:"breakdown"`
}

// Layer recalls learned responses for a session.
type Layer struct {
	store      Store
	dict       language.ContentDictionary
	dispatcher Dispatcher
	cfg        Config
	metrics    *metrics.Metrics
	now        func() time.Time
	log        *slog.Logger
}

// New creates a memory layer. dispatcher and m may be nil; without a
// dispatcher usage is recorded inline and failures are only logged.
func New(store Store, dict language.ContentDictionary, dispatcher Dispatcher, cfg Config, m *metrics.Metrics) *Layer {
	def := DefaultConfig()
	if cfg.ContextMessages <= 0 {
		cfg.ContextMessages = def.ContextMessages
	}
	if cfg.RecallThreshold <= 0 {
		cfg.RecallThreshold = def.RecallThreshold
	}
	if cfg.AnswerThreshold <= 0 {
		cfg.AnswerThreshold = def.AnswerThreshold
	}
	return &Layer{
		store:      store,
		dict:       dict,
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    m,
		now:        time.Now,
		log:        slog.With("component", "memory"),
	}
}

// BuildContext derives the session context over the configured window.
func (l *Layer) BuildContext(messages []models.Message, lang language.Language) SessionContext {
	return BuildContext(l.dict, messages, lang, l.cfg.ContextMessages)
}

// Recall returns the best learned response for question when its confidence
// exceeds the recall threshold. Store failures count as a miss.
func (l *Layer) Recall(ctx context.Context, question string, sc SessionContext, lang language.Language) (*Match, bool) {
	candidates, err := l.store.ActiveLearnedResponses(ctx, string(lang))
	if err != nil {
		l.log.Error("Learned response lookup failed", "language", lang, "error", err)
		l.metrics.ObserveRecall("error")
		return nil, false
	}

	var best *Match
	for _, c := range candidates {
		if !c.Active || c.Language != string(lang) {
			continue
		}
		b := l.Confidence(question, sc, lang, c)
		if best == nil || b.Confidence > best.Confidence ||
			(b.Confidence == best.Confidence && c.UsageCount > best.Response.UsageCount) {
			best = &Match{Response: c, Confidence: b.Confidence, Breakdown: b}
		}
	}

	if best == nil || best.Confidence <= l.cfg.RecallThreshold {
		l.metrics.ObserveRecall("miss")
		return nil, false
	}
	best.SafeToAnswer = best.Confidence > l.cfg.AnswerThreshold
	if best.SafeToAnswer {
		l.metrics.ObserveRecall("answer")
	} else {
		l.metrics.ObserveRecall("hint")
	}
	return best, true
}

// Confidence scores candidate against question in the given session context.
func (l *Layer) Confidence(question string, sc SessionContext, lang language.Language, candidate models.LearnedResponse) Breakdown {
	stop := l.dict.Keywords(lang, "stopwords")
	normalized := language.Normalize(question)

	var b Breakdown
	b.TextSimilarity = language.Jaccard(
		language.TokenSet(question, stop),
		language.TokenSet(candidate.OriginalQuestion, stop),
	)

	if len(candidate.Keywords) > 0 {
		hits := 0
		for _, kw := range candidate.Keywords {
			if language.ContainsKeyword(normalized, language.Normalize(kw)) {
				hits++
			}
		}
		b.KeywordOverlap = float64(hits) / float64(len(candidate.Keywords))
	}

	b.ContextMatch = weightTopicOverlap*l.topicOverlap(sc, lang, candidate) +
		weightFlowAffinity*l.flowAffinity(sc, lang, candidate)

	candidateIntent, _ := matcher.Classify(l.dict, lang, candidate.OriginalQuestion)
	target := sc.Intent
	if target == "" {
		target, _ = matcher.Classify(l.dict, lang, question)
	}
	if candidateIntent == target {
		b.IntentAgreement = 1
	}

	b.Confidence = weightText*b.TextSimilarity + weightKeyword*b.KeywordOverlap +
		weightContext*b.ContextMatch + weightIntent*b.IntentAgreement
	return b
}

func (l *Layer) candidateTopics(lang language.Language, c models.LearnedResponse) []string {
	text := c.OriginalQuestion
	for _, kw := range c.Keywords {
		text += " " + kw
	}
	return topicsOf(l.dict, lang, text)
}

func (l *Layer) topicOverlap(sc SessionContext, lang language.Language, c models.LearnedResponse) float64 {
	topics := l.candidateTopics(lang, c)
	if len(topics) == 0 {
		return 0
	}
	shared := 0
	for _, t := range topics {
		if sc.HasTopic(t) {
			shared++
		}
	}
	return float64(shared) / float64(len(topics))
}

func (l *Layer) flowAffinity(sc SessionContext, lang language.Language, c models.LearnedResponse) float64 {
	switch sc.Flow {
	case FlowPricingFollowup:
		for _, t := range l.candidateTopics(lang, c) {
			if t == string(matcher.IntentPricing) {
				return 1
			}
		}
	case FlowProductFollowup:
		if len(intersect(sc.Products, matcher.DetectProducts(l.dict, lang, c.OriginalQuestion))) > 0 {
			return 1
		}
	case FlowFirstQuestion, FlowInitialContact:
		return 0.5
	}
	return 0
}

// RecordUsage bumps the usage counter of a recalled response. It never
// blocks on the store and never fails the caller.
func (l *Layer) RecordUsage(response models.LearnedResponse) {
	id, at := response.ID, l.now()
	job := func(ctx context.Context) error {
		return l.store.RecordUsage(ctx, id, at)
	}
	if l.dispatcher == nil {
		if err := job(context.Background()); err != nil {
			l.log.Warn("Failed to record learned response usage", "response_id", id, "error", err)
		}
		return
	}
	if !l.dispatcher.Submit("memory.record_usage", job) {
		l.log.Warn("Learned response usage not recorded", "response_id", id)
	}
}

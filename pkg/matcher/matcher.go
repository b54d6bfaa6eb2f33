// Package matcher scores a free-text utterance against the curated knowledge
// base and classifies its intent.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// MatchType is the score band of a match.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"
	MatchCategory MatchType = "category"
)

// Score weights.
const (
	weightTopic    = 0.4
	weightJaccard  = 0.3
	weightCategory = 0.2
	weightProduct  = 0.1
)

// KnowledgeSource supplies approved knowledge entries for a language.
type KnowledgeSource interface {
	ApprovedEntries(ctx context.Context, lang string) ([]models.KnowledgeEntry, error)
}

// Config tunes the matcher.
type Config struct {
	// MinScore is the exclusive floor; entries scoring at or below it are dropped.
	MinScore float64 `yaml:"min_score"`
	// DefaultLimit applies when Match is called with limit <= 0.
	DefaultLimit int `yaml:"default_limit"`
}

// DefaultConfig returns the built-in matcher settings.
func DefaultConfig() Config {
	return Config{MinScore: 0.3, DefaultLimit: 3}
}

// Match is one ranked knowledge entry.
type Match struct {
	Entry        models.KnowledgeEntry `json:"entry"`
	Score        float64               `json:"score"`
	MatchType    MatchType             `json:"match_type"`
	MatchedTerms []string              `json:"matched_terms"`
}

// Result is the outcome of a match. Fallback is set, and non-empty, exactly
// when Matches is empty.
type Result struct {
	Language language.Language `json:"language"`
	Analysis Analysis          `json:"analysis"`
	Matches  []Match           `json:"matches"`
	Fallback string            `json:"fallback,omitempty"`
}

// Best returns the top match, if any.
func (r *Result) Best() (Match, bool) {
	if r == nil || len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}

// Matcher ranks knowledge entries for an utterance.
type Matcher struct {
	source  KnowledgeSource
	dict    language.ContentDictionary
	cfg     Config
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a matcher. m may be nil.
func New(source KnowledgeSource, dict language.ContentDictionary, cfg Config, m *metrics.Metrics) *Matcher {
	def := DefaultConfig()
	if cfg.MinScore <= 0 {
		cfg.MinScore = def.MinScore
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	return &Matcher{
		source:  source,
		dict:    dict,
		cfg:     cfg,
		metrics: m,
		log:     slog.With("component", "matcher"),
	}
}

// query holds the precomputed features of an utterance.
type query struct {
	lang       language.Language
	normalized string
	tokens     map[string]struct{}
	analysis   Analysis
	stopwords  []string
}

// Match ranks the approved entries of lang for question. It never fails:
// a knowledge store error is logged and treated as an empty knowledge base.
func (m *Matcher) Match(ctx context.Context, question string, lang language.Language, limit int) *Result {
	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}
	q := m.newQuery(question, lang)
	result := &Result{Language: lang, Analysis: q.analysis, Matches: []Match{}}

	var entries []models.KnowledgeEntry
	if strings.TrimSpace(question) != "" && m.source != nil {
		var err error
		entries, err = m.source.ApprovedEntries(ctx, string(lang))
		if err != nil {
			m.log.Error("Knowledge lookup failed, using fallback", "language", lang, "error", err)
			entries = nil
		}
	}

	for _, e := range entries {
		if !e.Approved || e.Language != string(lang) {
			continue
		}
		score, terms := m.score(q, e)
		if score <= m.cfg.MinScore {
			continue
		}
		result.Matches = append(result.Matches, Match{
			Entry:        e,
			Score:        score,
			MatchType:    bandOf(score),
			MatchedTerms: terms,
		})
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		ra, rb := a.Score*priorityWeight(a.Entry.Priority), b.Score*priorityWeight(b.Entry.Priority)
		if ra != rb {
			return ra > rb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Entry.Topic < b.Entry.Topic
	})
	if len(result.Matches) > limit {
		result.Matches = result.Matches[:limit]
	}

	if len(result.Matches) == 0 {
		result.Fallback = m.Fallback(q.analysis.Intent, lang)
		m.metrics.ObserveMatch("fallback")
	} else {
		m.metrics.ObserveMatch(string(result.Matches[0].MatchType))
	}
	return result
}

// Score returns the relevance of entry for question in [0, 1].
func (m *Matcher) Score(question string, lang language.Language, entry models.KnowledgeEntry) float64 {
	s, _ := m.score(m.newQuery(question, lang), entry)
	return s
}

// Fallback returns the per-intent prompt used when nothing matched.
func (m *Matcher) Fallback(intent Intent, lang language.Language) string {
	key := "fallback." + string(intent)
	if text := m.dict.Text(lang, key); text != key && text != "" {
		return text
	}
	return m.dict.Text(lang, "fallback."+string(IntentGeneral))
}

func (m *Matcher) newQuery(question string, lang language.Language) query {
	stop := m.dict.Keywords(lang, "stopwords")
	return query{
		lang:       lang,
		normalized: language.Normalize(question),
		tokens:     language.TokenSet(question, stop),
		analysis:   Analyze(m.dict, lang, question),
		stopwords:  stop,
	}
}

func (m *Matcher) score(q query, e models.KnowledgeEntry) (float64, []string) {
	topic := language.Normalize(e.Topic)
	containment := 0.0
	if topic != "" && q.normalized != "" &&
		(strings.Contains(q.normalized, topic) || strings.Contains(topic, q.normalized)) {
		containment = 1
	}

	entryTokens := language.TokenSet(e.Topic+" "+e.Content, q.stopwords)
	jaccard := language.Jaccard(q.tokens, entryTokens)

	terms := make([]string, 0)
	for t := range q.tokens {
		if _, ok := entryTokens[t]; ok {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)

	category := categoryAlignment(q.analysis.Intent, e.Category)
	product := m.productAlignment(q, e)

	score := weightTopic*containment + weightJaccard*jaccard + weightCategory*category + weightProduct*product
	return clamp(score), terms
}

// productAlignment is the share of detected product types the entry mentions.
func (m *Matcher) productAlignment(q query, e models.KnowledgeEntry) float64 {
	detected := q.analysis.DetectedProductTypes
	if len(detected) == 0 {
		return 0
	}
	text := language.Normalize(e.Topic + " " + e.Content)
	groups := m.dict.Groups(q.lang, "product")
	hits := 0
	for _, name := range detected {
		if len(language.MatchKeywords(text, groups[name])) > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(detected))
}

func bandOf(score float64) MatchType {
	switch {
	case score >= 0.8:
		return MatchExact
	case score >= 0.6:
		return MatchSemantic
	case score >= 0.4:
		return MatchKeyword
	default:
		return MatchCategory
	}
}

func priorityWeight(p int) float64 {
	if p < 1 {
		return 1
	}
	return float64(p)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Context renders the matches of r as a compact knowledge block for the
// generative backend. It returns an empty string when nothing matched.
func Context(r *Result) string {
	if r == nil || len(r.Matches) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range r.Matches {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", m.Entry.Category, m.Entry.Topic, m.Entry.Content)
	}
	return b.String()
}

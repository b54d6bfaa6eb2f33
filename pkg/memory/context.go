package memory

import (
	"sort"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Flow labels where a conversation currently is.
type Flow string

const (
	FlowInitialContact      Flow = "initial_contact"
	FlowFirstQuestion       Flow = "first_question"
	FlowPricingFollowup     Flow = "pricing_followup"
	FlowProductFollowup     Flow = "product_followup"
	FlowClosing             Flow = "closing"
	FlowOngoingConversation Flow = "ongoing_conversation"
)

// SessionContext summarizes the recent transcript of a conversation.
type SessionContext struct {
	// Topics holds intent group names and canonical product names seen in the window.
	Topics []string `json:"topics"`
	// Intent is the classified intent of the latest user message, empty without one.
	Intent matcher.Intent `json:"intent,omitempty"`
	Flow   Flow           `json:"flow"`
	// Products are the product types of the last two user turns, shared by both
	// when Flow is product_followup.
	Products []string `json:"products,omitempty"`
}

// HasTopic reports whether topic was seen in the window.
func (c SessionContext) HasTopic(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// BuildContext derives the session context from the last window messages.
func BuildContext(dict language.ContentDictionary, messages []models.Message, lang language.Language, window int) SessionContext {
	recent := models.LastN(messages, window)

	topics := make(map[string]struct{})
	var userTexts []string
	for _, m := range recent {
		for _, t := range topicsOf(dict, lang, m.Content) {
			topics[t] = struct{}{}
		}
		if m.Role == models.RoleUser {
			userTexts = append(userTexts, m.Content)
		}
	}

	ctx := SessionContext{Topics: sortedKeys(topics)}
	if n := len(userTexts); n > 0 {
		ctx.Intent, _ = matcher.Classify(dict, lang, userTexts[n-1])
	}
	ctx.Flow, ctx.Products = flowOf(dict, lang, userTexts)
	return ctx
}

func flowOf(dict language.ContentDictionary, lang language.Language, userTexts []string) (Flow, []string) {
	switch len(userTexts) {
	case 0:
		return FlowInitialContact, nil
	case 1:
		return FlowFirstQuestion, matcher.DetectProducts(dict, lang, userTexts[0])
	}

	prev, last := userTexts[len(userTexts)-2], userTexts[len(userTexts)-1]
	prevNorm, lastNorm := language.Normalize(prev), language.Normalize(last)
	pricing := dict.Keywords(lang, "intent.pricing")
	if len(language.MatchKeywords(prevNorm, pricing)) > 0 && len(language.MatchKeywords(lastNorm, pricing)) > 0 {
		return FlowPricingFollowup, matcher.DetectProducts(dict, lang, last)
	}

	shared := intersect(matcher.DetectProducts(dict, lang, prev), matcher.DetectProducts(dict, lang, last))
	if len(shared) > 0 {
		return FlowProductFollowup, shared
	}
	if len(language.MatchKeywords(lastNorm, dict.Keywords(lang, "memory.closing"))) > 0 {
		return FlowClosing, nil
	}
	return FlowOngoingConversation, matcher.DetectProducts(dict, lang, last)
}

// topicsOf returns the intent groups and product names text mentions.
func topicsOf(dict language.ContentDictionary, lang language.Language, text string) []string {
	normalized := language.Normalize(text)
	var out []string
	for _, name := range language.GroupNames(dict, lang, "intent") {
		if len(language.MatchKeywords(normalized, dict.Keywords(lang, "intent."+name))) > 0 {
			out = append(out, name)
		}
	}
	return append(out, matcher.DetectProducts(dict, lang, text)...)
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range b {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

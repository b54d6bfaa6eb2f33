package turn

import (
	"strings"

	"github.com/codeready-toolchain/concierge/pkg/language"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/models"
)

// BuildSummary recaps a transcript: the number of user turns, the topics
// and products discussed, and whether a lead was submitted.
func BuildSummary(dict language.ContentDictionary, lang language.Language, msgs []models.Message, leadSubmitted bool) Summary {
	s := Summary{
		Title:         dict.Text(lang, "summary.title"),
		Turns:         models.UserTurns(msgs),
		Topics:        []string{},
		Products:      []string{},
		LeadSubmitted: leadSubmitted,
	}

	seenIntent := make(map[matcher.Intent]bool)
	seenProduct := make(map[string]bool)
	for _, m := range msgs {
		if m.Role != models.RoleUser {
			continue
		}
		if intent, _ := matcher.Classify(dict, lang, m.Content); intent != matcher.IntentGeneral && !seenIntent[intent] {
			seenIntent[intent] = true
			s.Topics = append(s.Topics, dict.Text(lang, "topic."+string(intent)))
		}
		for _, p := range matcher.DetectProducts(dict, lang, m.Content) {
			if !seenProduct[p] {
				seenProduct[p] = true
				s.Products = append(s.Products, p)
			}
		}
	}

	s.Body = dict.Render(lang, "summary.body", map[string]any{
		"Turns":         s.Turns,
		"Topics":        strings.Join(s.Topics, ", "),
		"Products":      strings.Join(s.Products, ", "),
		"LeadSubmitted": leadSubmitted,
	})
	return s
}

package matcher

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/codeready-toolchain/concierge/pkg/language"
)

// Intent is the classified purpose of an utterance.
type Intent string

const (
	IntentPricing      Intent = "pricing"
	IntentProductInfo  Intent = "product_info"
	IntentMeasurement  Intent = "measurement"
	IntentInstallation Intent = "installation"
	IntentDelivery     Intent = "delivery"
	IntentAppointment  Intent = "appointment"
	IntentComplaint    Intent = "complaint"
	IntentGeneral      Intent = "general"
)

// classified lists the intents that own a keyword table, in evaluation order.
var classified = []Intent{
	IntentPricing,
	IntentProductInfo,
	IntentMeasurement,
	IntentInstallation,
	IntentDelivery,
	IntentAppointment,
	IntentComplaint,
}

// Dimensions is a width x height pair in centimeters.
type Dimensions struct {
	WidthCM  int `json:"width_cm"`
	HeightCM int `json:"height_cm"`
}

// Analysis is everything the matcher extracts from an utterance.
type Analysis struct {
	Intent               Intent      `json:"intent"`
	Confidence           float64     `json:"confidence"`
	DetectedProductTypes []string    `json:"detected_product_types"`
	Dimensions           *Dimensions `json:"dimensions,omitempty"`
	RequiresPricing      bool        `json:"requires_pricing"`
	Keywords             []string    `json:"keywords"`
}

// Classify returns the intent whose keyword table has the highest hit ratio
// in text, with that ratio. Zero hits or a tie at the top yield IntentGeneral.
func Classify(dict language.ContentDictionary, lang language.Language, text string) (Intent, float64) {
	norm := language.Normalize(text)
	best, bestRatio, tied := IntentGeneral, 0.0, false
	for _, intent := range classified {
		keywords := dict.Keywords(lang, "intent."+string(intent))
		if len(keywords) == 0 {
			continue
		}
		hits := len(language.MatchKeywords(norm, keywords))
		if hits == 0 {
			continue
		}
		ratio := float64(hits) / float64(len(keywords))
		switch {
		case ratio > bestRatio:
			best, bestRatio, tied = intent, ratio, false
		case ratio == bestRatio:
			tied = true
		}
	}
	if bestRatio == 0 || tied {
		return IntentGeneral, bestRatio
	}
	return best, bestRatio
}

// Analyze classifies question and extracts product types, dimensions and
// content keywords.
func Analyze(dict language.ContentDictionary, lang language.Language, question string) Analysis {
	norm := language.Normalize(question)
	intent, confidence := Classify(dict, lang, question)

	requiresPricing := intent == IntentPricing ||
		len(language.MatchKeywords(norm, dict.Keywords(lang, "intent.pricing"))) > 0

	keywords := make([]string, 0)
	for t := range language.TokenSet(question, dict.Keywords(lang, "stopwords")) {
		keywords = append(keywords, t)
	}
	sort.Strings(keywords)

	return Analysis{
		Intent:               intent,
		Confidence:           confidence,
		DetectedProductTypes: DetectProducts(dict, lang, question),
		Dimensions:           ParseDimensions(question),
		RequiresPricing:      requiresPricing,
		Keywords:             keywords,
	}
}

// DetectProducts returns the sorted canonical product types mentioned in text.
func DetectProducts(dict language.ContentDictionary, lang language.Language, text string) []string {
	norm := language.Normalize(text)
	found := make([]string, 0)
	for name, aliases := range dict.Groups(lang, "product") {
		if len(language.MatchKeywords(norm, aliases)) > 0 {
			found = append(found, name)
		}
	}
	sort.Strings(found)
	return found
}

var dimensionPattern = regexp.MustCompile(`(\d{2,4})\s*(?:x|\*|×|bij|by|mal)\s*(\d{2,4})\s*(mm|cm)?`)

// ParseDimensions finds the first "W x H" pair in text. Values are taken as
// centimeters unless a mm unit follows.
func ParseDimensions(text string) *Dimensions {
	m := dimensionPattern.FindStringSubmatch(language.Normalize(text))
	if m == nil {
		return nil
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil {
		return nil
	}
	if m[3] == "mm" {
		w, h = w/10, h/10
	}
	return &Dimensions{WidthCM: w, HeightCM: h}
}

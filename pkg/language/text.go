package language

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// Normalize lower-cases s, folds common accents and collapses whitespace.
func Normalize(s string) string {
	s = accentFolder.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits s into normalized word tokens of at least two runes.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// TokenSet returns the distinct tokens of s minus stopwords.
func TokenSet(s string, stopwords []string) map[string]struct{} {
	stop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stop[w] = struct{}{}
	}
	set := make(map[string]struct{})
	for _, t := range Tokens(s) {
		if _, skip := stop[t]; skip {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// ContainsKeyword reports whether normalized text contains keyword starting at
// a word boundary. Keywords therefore match their inflections ("kost" matches
// "kosten") but not arbitrary substrings ("hor" does not match "schor").
func ContainsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], keyword)
		if i < 0 {
			return false
		}
		pos := offset + i
		if pos == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:pos])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		offset = pos + len(keyword)
	}
	return false
}

// MatchKeywords returns the keywords found in text. text must be normalized.
func MatchKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if ContainsKeyword(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

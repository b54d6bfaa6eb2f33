// Package language binds a chat session to exactly one response language
// and serves per-language content (messages and keyword tables).
package language

import (
	"log/slog"
	"strings"
)

// Language is a supported response language code.
type Language string

// Supported languages. NL is the last-resort default.
const (
	NL Language = "nl"
	EN Language = "en"
	DE Language = "de"

	Default = NL
)

// PreferenceKey is the store key under which an explicit language choice is kept.
const PreferenceKey = "language"

var supported = map[Language]bool{NL: true, EN: true, DE: true}

// IsSupported reports whether l has a content table.
func (l Language) IsSupported() bool {
	return supported[l]
}

// String implements fmt.Stringer.
func (l Language) String() string {
	return string(l)
}

// Parse normalizes a raw tag ("nl-BE", " EN ", "de_DE") to a supported language.
// The second return value is false when the tag has no content table.
func Parse(raw string) (Language, bool) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	l := Language(tag)
	if !l.IsSupported() {
		return Default, false
	}
	return l, true
}

// Resolve picks the session language: an explicit supported request wins,
// then the stored preference, then the default.
func Resolve(requested, stored string) Language {
	if l, ok := Parse(requested); ok {
		return l
	}
	if l, ok := Parse(stored); ok {
		return l
	}
	return Default
}

// PreferenceStore persists the explicit language choice of a visitor.
type PreferenceStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Binding holds the enforced language of one session.
// It is not safe for concurrent use; the owner serializes access.
type Binding struct {
	current Language
	prefs   PreferenceStore
}

// NewBinding resolves the initial language from the requested tag and the
// stored preference. prefs may be nil.
func NewBinding(requested string, prefs PreferenceStore) *Binding {
	var stored string
	if prefs != nil {
		stored, _ = prefs.Get(PreferenceKey)
	}
	return &Binding{current: Resolve(requested, stored), prefs: prefs}
}

// Current returns the bound language.
func (b *Binding) Current() Language {
	return b.current
}

// Choose switches the session to an explicitly selected language and persists
// it as the visitor preference. Unsupported tags are ignored.
func (b *Binding) Choose(raw string) (Language, bool) {
	l, ok := Parse(raw)
	if !ok {
		slog.Warn("Ignoring unsupported language choice", "language", raw, "bound", b.current)
		return b.current, false
	}
	b.current = l
	if b.prefs != nil {
		b.prefs.Set(PreferenceKey, string(l))
	}
	return l, true
}

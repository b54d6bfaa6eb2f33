// Package masking redacts personal data from transcripts before they leave
// the system (support-channel notifications, logs).
package masking

import (
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Config selects the patterns a Service applies.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Patterns names the built-in patterns to apply; empty means all.
	Patterns []string `yaml:"patterns,omitempty"`
	// Custom holds additional regex patterns.
	Custom []Pattern `yaml:"custom,omitempty"`
}

// DefaultConfig enables every built-in pattern.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Service applies code-based maskers and regex patterns to text. It is
// immutable after creation and safe for concurrent use. A nil *Service
// returns text unchanged.
type Service struct {
	enabled  bool
	maskers  []Masker
	patterns []*CompiledPattern
}

// NewService compiles the configured patterns eagerly.
func NewService(cfg Config) *Service {
	s := &Service{
		enabled:  cfg.Enabled,
		maskers:  []Masker{CardNumberMasker{}},
		patterns: compilePatterns(cfg),
	}
	slog.Info("Masking service initialized",
		"enabled", cfg.Enabled,
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.maskers))
	return s
}

// Mask redacts text. Code-based maskers run first, then the regex sweep.
func (s *Service) Mask(text string) string {
	if s == nil || !s.enabled || text == "" {
		return text
	}
	masked := text
	for _, m := range s.maskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskTranscript renders messages as "role: content" lines with every
// content masked.
func (s *Service) MaskTranscript(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(s.Mask(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}

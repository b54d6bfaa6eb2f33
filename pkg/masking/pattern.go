package masking

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
)

// Pattern is a regex masking rule as it appears in configuration.
type Pattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// BuiltinPatterns returns the built-in PII patterns keyed by name.
func BuiltinPatterns() map[string]Pattern {
	return map[string]Pattern{
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `__MASKED_EMAIL__`,
			Description: "Email addresses",
		},
		"iban": {
			Pattern:     `\b[A-Z]{2}\d{2}\s?(?:[A-Z0-9]{4}\s?){2,7}[A-Z0-9]{1,4}\b`,
			Replacement: `__MASKED_IBAN__`,
			Description: "IBAN account numbers",
		},
		"phone": {
			Pattern:     `(?:\+|00)\d{2}[\s-]?\(?0?\)?\d(?:[\s-]?\d){7,10}\b|\b0\d(?:[\s-]?\d){8}\b`,
			Replacement: `__MASKED_PHONE__`,
			Description: "International and Dutch national phone numbers",
		},
		"postcode": {
			Pattern:     `\b[1-9]\d{3}\s?[A-Z]{2}\b`,
			Replacement: `__MASKED_POSTCODE__`,
			Description: "Dutch postal codes",
		},
	}
}

// compilePatterns compiles the enabled built-in patterns followed by the
// custom ones. Invalid patterns are logged and skipped.
func compilePatterns(cfg Config) []*CompiledPattern {
	builtin := BuiltinPatterns()
	names := cfg.Patterns
	if len(names) == 0 {
		for name := range builtin {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var out []*CompiledPattern
	for _, name := range names {
		p, ok := builtin[name]
		if !ok {
			slog.Warn("Unknown built-in masking pattern, skipping", "pattern", name)
			continue
		}
		p.Name = name
		if cp := compile(p); cp != nil {
			out = append(out, cp)
		}
	}
	for i, p := range cfg.Custom {
		if p.Name == "" {
			p.Name = fmt.Sprintf("custom:%d", i)
		}
		if cp := compile(p); cp != nil {
			out = append(out, cp)
		}
	}
	return out
}

func compile(p Pattern) *CompiledPattern {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		slog.Error("Failed to compile masking pattern, skipping", "pattern", p.Name, "error", err)
		return nil
	}
	return &CompiledPattern{
		Name:        p.Name,
		Regex:       re,
		Replacement: p.Replacement,
		Description: p.Description,
	}
}

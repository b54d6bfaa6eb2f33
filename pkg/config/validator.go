package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/masking"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"matcher", v.validateMatcher},
		{"memory", v.validateMemory},
		{"escalation", v.validateEscalation},
		{"turn", v.validateTurn},
		{"backend", v.validateBackend},
		{"queue", v.validateQueue},
		{"server", v.validateServer},
		{"masking", v.validateMasking},
		{"notifications", v.validateNotifications},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s validation failed: %w", c.name, err)
		}
	}
	return nil
}

func unitInterval(section, field string, value float64) error {
	if value <= 0 || value >= 1 {
		return NewValidationError(section, field, fmt.Errorf("%w: must be between 0 and 1, got %v", ErrInvalidValue, value))
	}
	return nil
}

func (v *ConfigValidator) validateMatcher() error {
	m := v.cfg.Matcher
	if err := unitInterval("matcher", "min_score", m.MinScore); err != nil {
		return err
	}
	if m.DefaultLimit < 1 {
		return NewValidationError("matcher", "default_limit", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateMemory() error {
	m := v.cfg.Memory
	if err := unitInterval("memory", "recall_threshold", m.RecallThreshold); err != nil {
		return err
	}
	if err := unitInterval("memory", "answer_threshold", m.AnswerThreshold); err != nil {
		return err
	}
	if m.AnswerThreshold < m.RecallThreshold {
		return NewValidationError("memory", "answer_threshold", fmt.Errorf("%w: must not be below recall_threshold", ErrInvalidValue))
	}
	if m.ContextMessages < 1 {
		return NewValidationError("memory", "context_messages", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateEscalation() error {
	e := v.cfg.Escalation
	if e.MaxTurns < 1 {
		return NewValidationError("escalation", "max_turns", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if _, err := escalation.NewBusinessHours(e.BusinessHours); err != nil {
		return NewValidationError("escalation", "business_hours", err)
	}
	for i, l := range e.Links {
		if l.Key == "" || l.URL == "" {
			return NewValidationError("escalation", fmt.Sprintf("links[%d]", i), fmt.Errorf("%w: key and url", ErrMissingRequiredField))
		}
	}
	return nil
}

func (v *ConfigValidator) validateTurn() error {
	t := v.cfg.Turn
	durations := map[string]int64{
		"reengagement_window":        int64(t.ReengagementWindow),
		"reminder_delay":             int64(t.ReminderDelay),
		"inactivity_delay":           int64(t.InactivityDelay),
		"exit_check_interval":        int64(t.ExitCheckInterval),
		"exit_prompt_after":          int64(t.ExitPromptAfter),
		"exit_prompt_finished_after": int64(t.ExitPromptFinishedAfter),
		"consultation_exit_delay":    int64(t.ConsultationExitDelay),
		"lead_exit_delay":            int64(t.LeadExitDelay),
		"close_reset_delay":          int64(t.CloseResetDelay),
	}
	for field, d := range durations {
		if d <= 0 {
			return NewValidationError("turn", field, fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
	}
	if t.SummaryMinTurns < 0 {
		return NewValidationError("turn", "summary_min_turns", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if t.Links == (turn.Links{}) {
		return NewValidationError("turn", "links", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateBackend() error {
	b := v.cfg.Backend
	if !b.Transport.IsValid() {
		return NewValidationError("backend", "transport", fmt.Errorf("%w: %q", ErrInvalidValue, b.Transport))
	}
	switch b.Transport {
	case BackendTransportHTTP:
		if b.URL == "" {
			return NewValidationError("backend", "url", fmt.Errorf("%w: url required for http transport", ErrMissingRequiredField))
		}
	case BackendTransportGRPC:
		if b.Address == "" {
			return NewValidationError("backend", "address", fmt.Errorf("%w: address required for grpc transport", ErrMissingRequiredField))
		}
	}
	if b.MaxRetries < 0 {
		return NewValidationError("backend", "max_retries", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue
	if q.WorkerCount < 1 {
		return NewValidationError("queue", "worker_count", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if q.QueueSize < 1 {
		return NewValidationError("queue", "queue_size", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateServer() error {
	s := v.cfg.Server
	if s.RequestsPerSecond <= 0 {
		return NewValidationError("server", "requests_per_second", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.Burst < 1 {
		return NewValidationError("server", "burst", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateMasking() error {
	m := v.cfg.Masking
	builtin := masking.BuiltinPatterns()
	for _, name := range m.Patterns {
		if _, ok := builtin[name]; !ok {
			return NewValidationError("masking", "patterns", fmt.Errorf("%w: pattern '%s' not found", ErrInvalidValue, name))
		}
	}
	for i, p := range m.Custom {
		field := fmt.Sprintf("custom[%d]", i)
		if p.Pattern == "" || p.Replacement == "" {
			return NewValidationError("masking", field, fmt.Errorf("%w: pattern and replacement", ErrMissingRequiredField))
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return NewValidationError("masking", field, fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
	}
	return nil
}

func (v *ConfigValidator) validateNotifications() error {
	if s := v.cfg.Slack; s.Enabled {
		if s.Channel == "" {
			return NewValidationError("slack", "channel", ErrMissingRequiredField)
		}
		if os.Getenv(s.TokenEnv) == "" {
			return NewValidationError("slack", "token_env", fmt.Errorf("environment variable %s is not set", s.TokenEnv))
		}
	}
	if m := v.cfg.SMTP; m.Host != "" {
		if !turn.ValidEmail(m.From) {
			return NewValidationError("smtp", "from", fmt.Errorf("%w: %q is not an email address", ErrInvalidValue, m.From))
		}
		if m.Port < 1 || m.Port > 65535 {
			return NewValidationError("smtp", "port", fmt.Errorf("%w: %d", ErrInvalidValue, m.Port))
		}
	}
	return nil
}

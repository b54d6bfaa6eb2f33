package config

import (
	"time"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/masking"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/memory"
	"github.com/codeready-toolchain/concierge/pkg/queue"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// DefaultTurnLinks are the storefront pages the smart suggestions open.
var DefaultTurnLinks = turn.Links{
	Appointment: "/afspraak-maken",
	Gallery:     "/inspiratie",
	Business:    "/zakelijk",
}

// Default returns the built-in configuration used for every value the YAML
// leaves unset.
func Default() *Config {
	turnCfg := turn.DefaultConfig()
	turnCfg.Links = DefaultTurnLinks
	return &Config{
		Matcher:    matcher.DefaultConfig(),
		Memory:     memory.DefaultConfig(),
		Escalation: escalation.DefaultConfig(),
		Turn:       turnCfg,
		Masking:    masking.DefaultConfig(),
		Server: &ServerConfig{
			CORSOrigins:       []string{"http://localhost:3000"},
			RequestsPerSecond: 5,
			Burst:             20,
		},
		Backend: &BackendConfig{
			Transport:  BackendTransportNone,
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Queue: queue.DefaultConfig(),
		Storage: &StorageConfig{
			SessionTTL:         24 * time.Hour,
			VisitorTTL:         90 * 24 * time.Hour,
			KnowledgeCacheSize: 16,
			KnowledgeCacheTTL:  time.Minute,
		},
		Retention: &RetentionConfig{
			IdleTimeout:     2 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Slack: &SlackConfig{
			TokenEnv:     "SLACK_BOT_TOKEN",
			DashboardURL: "http://localhost:8080",
		},
		SMTP: &SMTPConfig{
			Port:        587,
			PasswordEnv: "SMTP_PASSWORD",
		},
		Knowledge: &KnowledgeConfig{},
	}
}

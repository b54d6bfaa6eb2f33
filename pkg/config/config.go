package config

import (
	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/masking"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/memory"
	"github.com/codeready-toolchain/concierge/pkg/queue"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application.
type Config struct {
	configDir string

	// Component tuning
	Matcher    matcher.Config
	Memory     memory.Config
	Escalation escalation.Config
	Turn       turn.Config
	Masking    masking.Config

	// Infrastructure
	Server    *ServerConfig
	Backend   *BackendConfig
	Queue     *queue.Config
	Storage   *StorageConfig
	Retention *RetentionConfig
	Slack     *SlackConfig
	SMTP      *SMTPConfig
	Knowledge *KnowledgeConfig
}

// Initialize is defined in loader.go

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

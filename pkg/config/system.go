package config

import "time"

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// CORSOrigins are the widget hosts allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins"`
	// AllowedWSOrigins are additional origin patterns for the widget socket.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	// RequestsPerSecond and Burst size the per-client token bucket.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// BackendConfig holds the generative backend settings.
type BackendConfig struct {
	Transport BackendTransport `yaml:"transport"`
	// URL is the HTTP endpoint; Address is the gRPC target.
	URL        string        `yaml:"url"`
	Address    string        `yaml:"address"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StorageConfig holds TTLs and cache sizes of the conversation stores.
type StorageConfig struct {
	SessionTTL         time.Duration `yaml:"session_ttl"`
	VisitorTTL         time.Duration `yaml:"visitor_ttl"`
	KnowledgeCacheSize int           `yaml:"knowledge_cache_size"`
	KnowledgeCacheTTL  time.Duration `yaml:"knowledge_cache_ttl"`
}

// RetentionConfig controls pruning of idle in-memory conversations.
type RetentionConfig struct {
	// IdleTimeout is how long a conversation may go without activity.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// SlackConfig holds resolved Slack notification configuration.
type SlackConfig struct {
	Enabled      bool
	TokenEnv     string // Env var name for Slack bot token (default: "SLACK_BOT_TOKEN")
	Channel      string // Slack channel ID (e.g., "C12345678")
	DashboardURL string // Base URL linked from notifications
}

// SMTPConfig holds resolved mail relay configuration. The password is read
// from PasswordEnv at startup.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	PasswordEnv string
	From        string
}

// KnowledgeConfig locates the optional knowledge seed.
type KnowledgeConfig struct {
	// SeedFile is resolved relative to the config directory.
	SeedFile string
}

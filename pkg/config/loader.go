package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/masking"
	"github.com/codeready-toolchain/concierge/pkg/matcher"
	"github.com/codeready-toolchain/concierge/pkg/memory"
	"github.com/codeready-toolchain/concierge/pkg/queue"
	"github.com/codeready-toolchain/concierge/pkg/turn"
)

// ConfigFile is the name of the main configuration file.
const ConfigFile = "concierge.yaml"

// ConciergeYAMLConfig represents the complete concierge.yaml file structure
type ConciergeYAMLConfig struct {
	Server     *ServerConfig        `yaml:"server"`
	Matcher    *matcher.Config      `yaml:"matcher"`
	Memory     *memory.Config       `yaml:"memory"`
	Escalation *escalation.Config   `yaml:"escalation"`
	Turn       *turn.Config         `yaml:"turn"`
	Backend    *BackendConfig       `yaml:"backend"`
	Queue      *queue.Config        `yaml:"queue"`
	Masking    *MaskingYAMLConfig   `yaml:"masking"`
	Storage    *StorageConfig       `yaml:"storage"`
	Retention  *RetentionConfig     `yaml:"retention"`
	Slack      *SlackYAMLConfig     `yaml:"slack"`
	SMTP       *SMTPYAMLConfig      `yaml:"smtp"`
	Knowledge  *KnowledgeYAMLConfig `yaml:"knowledge"`
}

// MaskingYAMLConfig holds masking settings from YAML. Enabled is a pointer
// so an explicit false can turn the built-in default off.
type MaskingYAMLConfig struct {
	Enabled  *bool             `yaml:"enabled,omitempty"`
	Patterns []string          `yaml:"patterns,omitempty"`
	Custom   []masking.Pattern `yaml:"custom,omitempty"`
}

// SlackYAMLConfig holds Slack notification settings from YAML.
type SlackYAMLConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`
	TokenEnv     string `yaml:"token_env,omitempty"`
	Channel      string `yaml:"channel,omitempty"`
	DashboardURL string `yaml:"dashboard_url,omitempty"`
}

// SMTPYAMLConfig holds mail relay settings from YAML.
type SMTPYAMLConfig struct {
	Host        string `yaml:"host,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	Username    string `yaml:"username,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	From        string `yaml:"from,omitempty"`
}

// KnowledgeYAMLConfig holds knowledge base settings from YAML.
type KnowledgeYAMLConfig struct {
	SeedFile string `yaml:"seed_file,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load concierge.yaml from configDir
//  2. Expand {{.VAR}} environment references
//  3. Parse YAML into structs
//  4. Merge user values over the built-in defaults
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"backend_transport", cfg.Backend.Transport,
		"queue_workers", cfg.Queue.WorkerCount,
		"slack_enabled", cfg.Slack.Enabled,
		"smtp_enabled", cfg.SMTP.Host != "",
		"knowledge_seed", cfg.Knowledge.SeedFile)
	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	var yml ConciergeYAMLConfig
	if err := loader.loadYAML(ConfigFile, &yml); err != nil {
		return nil, NewLoadError(ConfigFile, err)
	}

	cfg := Default()
	cfg.configDir = configDir

	// Non-zero user values override the defaults section by section.
	merges := []struct {
		name string
		dst  any
		src  any
	}{
		{"matcher", &cfg.Matcher, yml.Matcher},
		{"memory", &cfg.Memory, yml.Memory},
		{"escalation", &cfg.Escalation, yml.Escalation},
		{"turn", &cfg.Turn, yml.Turn},
		{"server", cfg.Server, yml.Server},
		{"backend", cfg.Backend, yml.Backend},
		{"queue", cfg.Queue, yml.Queue},
		{"storage", cfg.Storage, yml.Storage},
		{"retention", cfg.Retention, yml.Retention},
	}
	for _, m := range merges {
		if isNilPointer(m.src) {
			continue
		}
		if err := mergo.Merge(m.dst, m.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s config: %w", m.name, err)
		}
	}

	cfg.Masking = resolveMaskingConfig(yml.Masking)
	cfg.Slack = resolveSlackConfig(yml.Slack)
	cfg.SMTP = resolveSMTPConfig(yml.SMTP)
	cfg.Knowledge = resolveKnowledgeConfig(configDir, yml.Knowledge)
	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil())
}

// resolveMaskingConfig resolves masking configuration, applying defaults.
func resolveMaskingConfig(m *MaskingYAMLConfig) masking.Config {
	cfg := masking.DefaultConfig()
	if m == nil {
		return cfg
	}
	if m.Enabled != nil {
		cfg.Enabled = *m.Enabled
	}
	if len(m.Patterns) > 0 {
		cfg.Patterns = m.Patterns
	}
	cfg.Custom = m.Custom
	return cfg
}

// resolveSlackConfig resolves Slack configuration from YAML, applying defaults.
func resolveSlackConfig(s *SlackYAMLConfig) *SlackConfig {
	cfg := Default().Slack
	if s == nil {
		return cfg
	}
	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	if s.TokenEnv != "" {
		cfg.TokenEnv = s.TokenEnv
	}
	if s.Channel != "" {
		cfg.Channel = s.Channel
	}
	if s.DashboardURL != "" {
		cfg.DashboardURL = s.DashboardURL
	}
	return cfg
}

// resolveSMTPConfig resolves mail relay configuration, applying defaults.
// An empty host leaves summary emails disabled.
func resolveSMTPConfig(s *SMTPYAMLConfig) *SMTPConfig {
	cfg := Default().SMTP
	if s == nil {
		return cfg
	}
	cfg.Host = s.Host
	cfg.Username = s.Username
	cfg.From = s.From
	if s.Port != 0 {
		cfg.Port = s.Port
	}
	if s.PasswordEnv != "" {
		cfg.PasswordEnv = s.PasswordEnv
	}
	return cfg
}

// resolveKnowledgeConfig resolves the seed file path against configDir.
func resolveKnowledgeConfig(configDir string, k *KnowledgeYAMLConfig) *KnowledgeConfig {
	cfg := &KnowledgeConfig{}
	if k == nil || k.SeedFile == "" {
		return cfg
	}
	cfg.SeedFile = k.SeedFile
	if !filepath.IsAbs(cfg.SeedFile) {
		cfg.SeedFile = filepath.Join(configDir, cfg.SeedFile)
	}
	return cfg
}

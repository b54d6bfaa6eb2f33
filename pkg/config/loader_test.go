package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0o600))
	return dir
}

func TestInitializeDefaults(t *testing.T) {
	dir := writeConfig(t, "{}\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ConfigDir())
	assert.Equal(t, 0.3, cfg.Matcher.MinScore)
	assert.Equal(t, 0.7, cfg.Memory.RecallThreshold)
	assert.Equal(t, 0.8, cfg.Memory.AnswerThreshold)
	assert.Equal(t, 10, cfg.Escalation.MaxTurns)
	assert.Equal(t, 24*time.Hour, cfg.Turn.ReengagementWindow)
	assert.Equal(t, 30*time.Second, cfg.Turn.ExitPromptAfter)
	assert.Equal(t, DefaultTurnLinks, cfg.Turn.Links)
	assert.Equal(t, BackendTransportNone, cfg.Backend.Transport)
	assert.Equal(t, 4, cfg.Queue.WorkerCount)
	assert.True(t, cfg.Masking.Enabled)
	assert.False(t, cfg.Slack.Enabled)
	assert.Equal(t, "SLACK_BOT_TOKEN", cfg.Slack.TokenEnv)
	assert.Empty(t, cfg.SMTP.Host)
	assert.Empty(t, cfg.Knowledge.SeedFile)
}

func TestInitializeOverrides(t *testing.T) {
	t.Setenv("TEST_GENERATOR_URL", "http://generator:8000/v1/generate")
	dir := writeConfig(t, `
server:
  cors_origins: ["https://www.example.nl"]
  burst: 50
memory:
  answer_threshold: 0.9
escalation:
  max_turns: 6
  links:
    - key: faq
      url: /faq
turn:
  exit_prompt_after: 45s
  links:
    appointment: /afspraak
backend:
  transport: http
  url: "{{.TEST_GENERATOR_URL}}"
  timeout: 10s
queue:
  worker_count: 8
masking:
  enabled: false
slack:
  channel: C123
smtp:
  host: smtp.example.nl
  from: noreply@example.nl
knowledge:
  seed_file: knowledge.yaml
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.example.nl"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 50, cfg.Server.Burst)
	assert.Equal(t, 5.0, cfg.Server.RequestsPerSecond, "unset values keep defaults")

	assert.Equal(t, 0.9, cfg.Memory.AnswerThreshold)
	assert.Equal(t, 0.7, cfg.Memory.RecallThreshold)

	assert.Equal(t, 6, cfg.Escalation.MaxTurns)
	assert.Equal(t, []escalation.Link{{Key: "faq", URL: "/faq"}}, cfg.Escalation.Links)
	assert.Equal(t, "Europe/Amsterdam", cfg.Escalation.BusinessHours.Timezone)

	assert.Equal(t, 45*time.Second, cfg.Turn.ExitPromptAfter)
	assert.Equal(t, 20*time.Second, cfg.Turn.ReminderDelay)
	assert.Equal(t, "/afspraak", cfg.Turn.Links.Appointment)
	assert.Equal(t, DefaultTurnLinks.Gallery, cfg.Turn.Links.Gallery)

	assert.Equal(t, BackendTransportHTTP, cfg.Backend.Transport)
	assert.Equal(t, "http://generator:8000/v1/generate", cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2, cfg.Backend.MaxRetries)

	assert.Equal(t, 8, cfg.Queue.WorkerCount)
	assert.Equal(t, 256, cfg.Queue.QueueSize)

	assert.False(t, cfg.Masking.Enabled)
	assert.Equal(t, "C123", cfg.Slack.Channel)
	assert.False(t, cfg.Slack.Enabled)
	assert.Equal(t, "smtp.example.nl", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, filepath.Join(dir, "knowledge.yaml"), cfg.Knowledge.SeedFile)
}

func TestInitializeErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Initialize(context.Background(), t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigNotFound)
		var le *LoadError
		assert.ErrorAs(t, err, &le)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Initialize(context.Background(), writeConfig(t, "queue: [unclosed\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("invalid duration", func(t *testing.T) {
		_, err := Initialize(context.Background(), writeConfig(t, "turn:\n  reminder_delay: soon\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := Initialize(context.Background(), writeConfig(t, "backend:\n  transport: grpc\n"))
		require.Error(t, err)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "backend", ve.Section)
		assert.Equal(t, "address", ve.Field)
	})
}

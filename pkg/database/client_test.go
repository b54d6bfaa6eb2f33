//go:build integration

package database_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/database"
	"github.com/codeready-toolchain/concierge/test/util"
)

func TestClientMigratesSchema(t *testing.T) {
	client := util.SetupTestDatabase(t)
	ctx := context.Background()

	for _, table := range []string{"knowledge_entries", "learned_responses", "escalation_tickets", "leads"} {
		var exists bool
		err := client.Pool().QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s", table)
	}
}

func TestHealthStatus_JSONMilliseconds(t *testing.T) {
	client := util.SetupTestDatabase(t)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, database.StatusHealthy, health.Status)
	assert.Less(t, health.PingMillis, int64(1000), "a local ping is well under a second")

	raw, err := json.Marshal(health)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "response_time_ms")
	assert.Contains(t, decoded, "acquire_duration_ms")
	assert.Equal(t, float64(4), decoded["max_connections"])
}

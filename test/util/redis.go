package util

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var sharedRedis = &sharedService{
	name:  "Redis",
	ciEnv: "CI_REDIS_URL",
	start: func(ctx context.Context) (string, error) {
		c, err := tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			return "", fmt.Errorf("failed to start redis container: %w", err)
		}
		return c.ConnectionString(ctx)
	},
}

// SetupTestRedis returns a client on a flushed Redis database. Packages
// share one database, so tests using it must not run in parallel.
func SetupTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	opts, err := redis.ParseURL(sharedRedis.connString(t))
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

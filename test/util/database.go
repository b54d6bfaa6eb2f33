package util

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/concierge/pkg/database"
)

var sharedPostgres = &sharedService{
	name:  "PostgreSQL",
	ciEnv: "CI_DATABASE_URL",
	start: func(ctx context.Context) (string, error) {
		c, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("concierge_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			return "", fmt.Errorf("failed to start postgres container: %w", err)
		}
		return c.ConnectionString(ctx, "sslmode=disable")
	},
}

// SetupTestDatabase returns a migrated client whose connections all use a
// schema private to t. The schema is dropped when t ends.
func SetupTestDatabase(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()
	connStr := sharedPostgres.connString(t)
	schema := SchemaName(t)

	admin, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	dsn, err := WithSearchPath(connStr, schema)
	require.NoError(t, err)
	client, err := database.NewClientFromDSN(ctx, dsn, database.Config{MaxConns: 4})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})
	return client
}

// SchemaName returns a unique identifier-safe schema name derived from the
// test name. PostgreSQL truncates identifiers past 63 bytes.
func SchemaName(t *testing.T) string {
	var b strings.Builder
	for _, r := range strings.ToLower(t.Name()) {
		if b.Len() == 40 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	suffix := make([]byte, 4)
	_, err := rand.Read(suffix)
	require.NoError(t, err)
	return "t_" + b.String() + "_" + hex.EncodeToString(suffix)
}

// WithSearchPath sets search_path on a URL-form connection string so every
// pooled connection resolves tables in schema.
func WithSearchPath(connStr, schema string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("parse connection string: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

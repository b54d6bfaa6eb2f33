//go:build integration

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/pkg/session"
	"github.com/codeready-toolchain/concierge/test/util"
)

func TestRedisStore(t *testing.T) {
	client := util.SetupTestRedis(t)
	store := session.NewRedisStore(client, time.Hour)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)

	conv := models.Conversation{ID: "conv-1", SessionID: "sess-1", Language: "nl", StartedAt: t0, LastActivityAt: t0}
	require.NoError(t, store.Create(ctx, conv))
	assert.ErrorIs(t, store.Create(ctx, conv), session.ErrAlreadyExists)

	rec, err := store.Append(ctx, "conv-1", models.Message{ID: "m1", Role: models.RoleUser, Content: "hallo", CreatedAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.True(t, t0.Add(time.Minute).Equal(rec.Conversation.LastActivityAt))

	ttl, err := client.TTL(ctx, "concierge:conversation:conv-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = store.Append(ctx, "missing", models.Message{ID: "x"})
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "conv-1"))
	_, err = store.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStoreConcurrentAppends(t *testing.T) {
	store := session.NewRedisStore(util.SetupTestRedis(t), time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, models.Conversation{ID: "conv-1", SessionID: "s"}))

	const writers = 4
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Append(ctx, "conv-1", models.Message{Role: models.RoleUser, Content: "x", CreatedAt: time.Now()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, rec.Messages, writers)
	assert.Equal(t, int64(writers+1), rec.Version)
}

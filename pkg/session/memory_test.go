package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	start := time.Unix(1000, 0)

	require.NoError(t, s.Create(ctx, models.Conversation{ID: "c1", StartedAt: start, LastActivityAt: start}))
	assert.ErrorIs(t, s.Create(ctx, models.Conversation{ID: "c1"}), ErrAlreadyExists)

	r, err := s.Append(ctx, "c1",
		models.Message{ID: "m1", Role: models.RoleUser, Content: "hoi", CreatedAt: start.Add(time.Second)},
		models.Message{ID: "m2", Role: models.RoleAssistant, Content: "hallo", CreatedAt: start.Add(2 * time.Second)},
	)
	require.NoError(t, err)
	assert.Len(t, r.Messages, 2)
	assert.Equal(t, start.Add(2*time.Second), r.Conversation.LastActivityAt)
	assert.Equal(t, int64(2), r.Version)

	r.Messages[0].Content = "mutated"
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hoi", got.Messages[0].Content, "returned records are copies")

	_, err = s.Append(ctx, "missing", models.Message{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListIdleAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(10_000, 0)
	require.NoError(t, s.Create(ctx, models.Conversation{ID: "old", LastActivityAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Create(ctx, models.Conversation{ID: "new", LastActivityAt: now}))

	ids, err := s.ListIdle(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	require.NoError(t, s.Delete(ctx, "old"))
	require.NoError(t, s.Delete(ctx, "old"))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, models.Conversation{ID: "c"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Append(ctx, "c", models.Message{Role: models.RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	r, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, r.Messages, 50)
}

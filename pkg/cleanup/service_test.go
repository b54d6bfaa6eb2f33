package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codeready-toolchain/concierge/pkg/config"
	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/pkg/session"
)

var t0 = time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)

func retention() *config.RetentionConfig {
	return &config.RetentionConfig{IdleTimeout: 2 * time.Hour, CleanupInterval: time.Hour}
}

func seed(t *testing.T, store session.Store, id string, lastActivity time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), models.Conversation{
		ID: id, SessionID: "s-" + id, StartedAt: lastActivity, LastActivityAt: lastActivity,
	}))
}

func TestPruneIdleConversations(t *testing.T) {
	store := session.NewMemoryStore()
	seed(t, store, "stale", t0.Add(-3*time.Hour))
	seed(t, store, "edge", t0.Add(-2*time.Hour+time.Second))
	seed(t, store, "fresh", t0.Add(-time.Minute))

	s := NewService(retention(), store)
	s.now = func() time.Time { return t0 }

	assert.Equal(t, 1, s.pruneIdleConversations(context.Background()))
	assert.Equal(t, 2, store.Len())

	_, err := store.Get(context.Background(), "stale")
	assert.ErrorIs(t, err, session.ErrNotFound)

	assert.Zero(t, s.pruneIdleConversations(context.Background()), "pruning is idempotent")
}

type failingStore struct {
	session.Store
	listErr   error
	deleteErr error
	ids       []string
}

func (f *failingStore) ListIdle(context.Context, time.Time) ([]string, error) {
	return f.ids, f.listErr
}

func (f *failingStore) Delete(context.Context, string) error {
	return f.deleteErr
}

func TestPruneIdleConversationsErrors(t *testing.T) {
	tests := []struct {
		name  string
		store *failingStore
	}{
		{"list fails", &failingStore{listErr: errors.New("down")}},
		{"delete fails", &failingStore{ids: []string{"a", "b"}, deleteErr: errors.New("down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(retention(), tt.store)
			assert.Zero(t, s.pruneIdleConversations(context.Background()))
		})
	}
}

func TestServiceStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.NewMemoryStore()
	seed(t, store, "stale", time.Now().Add(-3*time.Hour))

	s := NewService(retention(), store)
	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond,
		"the first pass runs on start")

	s.Stop()
	s.Stop()
}

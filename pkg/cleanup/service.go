// Package cleanup prunes idle conversations from the session store.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/config"
	"github.com/codeready-toolchain/concierge/pkg/session"
)

// Service periodically deletes conversations whose last activity is older
// than the configured idle timeout. Stores that expire entries on their own
// (Redis) report nothing idle, so the loop is a no-op for them.
type Service struct {
	config *config.RetentionConfig
	store  session.Store
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, store session.Store) *Service {
	return &Service{
		config: cfg,
		store:  store,
		now:    time.Now,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"idle_timeout", s.config.IdleTimeout,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.pruneIdleConversations(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneIdleConversations(ctx)
		}
	}
}

// pruneIdleConversations returns the number of deleted conversations.
func (s *Service) pruneIdleConversations(ctx context.Context) int {
	cutoff := s.now().Add(-s.config.IdleTimeout)
	ids, err := s.store.ListIdle(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: listing idle conversations failed", "error", err)
		return 0
	}

	deleted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := s.store.Delete(ctx, id); err != nil {
			slog.Warn("Retention: delete conversation failed", "conversation_id", id, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		slog.Info("Retention: pruned idle conversations", "count", deleted)
	}
	return deleted
}

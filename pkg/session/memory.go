package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, conv models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[conv.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, conv.ID)
	}
	s.records[conv.ID] = &Record{Conversation: conv, Messages: []models.Message{}, Version: 1}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, id string, msgs ...models.Message) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	touch(r, msgs)
	return r.Clone(), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// ListIdle implements Store.
func (s *MemoryStore) ListIdle(_ context.Context, before time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, r := range s.records {
		if r.Conversation.LastActivityAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

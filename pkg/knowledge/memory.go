package knowledge

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// Seed is the YAML layout of a knowledge seed file.
type Seed struct {
	Entries []models.KnowledgeEntry  `yaml:"entries"`
	Learned []models.LearnedResponse `yaml:"learned_responses"`
}

// LoadSeedFile parses a knowledge seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse knowledge seed %s: %w", path, err)
	}
	return &seed, nil
}

// MemoryStore keeps the knowledge base in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.KnowledgeEntry
	learned map[string]*models.LearnedResponse
	order   []string
}

// NewMemoryStore creates a store pre-populated from seed (which may be nil).
func NewMemoryStore(seed *Seed) *MemoryStore {
	s := &MemoryStore{learned: make(map[string]*models.LearnedResponse)}
	if seed != nil {
		s.entries = append(s.entries, seed.Entries...)
		for i := range seed.Learned {
			s.AddLearned(seed.Learned[i])
		}
	}
	return s
}

// AddEntry appends a knowledge entry.
func (s *MemoryStore) AddEntry(e models.KnowledgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// AddLearned inserts or replaces a learned response by id.
func (s *MemoryStore) AddLearned(r models.LearnedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = fmt.Sprintf("lr-%d", len(s.order)+1)
	}
	if _, exists := s.learned[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	cp := r
	cp.Keywords = append([]string(nil), r.Keywords...)
	s.learned[r.ID] = &cp
}

// ApprovedEntries implements Store.
func (s *MemoryStore) ApprovedEntries(_ context.Context, lang string) ([]models.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.KnowledgeEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Approved && e.Language == lang {
			out = append(out, e)
		}
	}
	return out, nil
}

// ActiveLearnedResponses implements Store.
func (s *MemoryStore) ActiveLearnedResponses(_ context.Context, lang string) ([]models.LearnedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LearnedResponse, 0, len(s.order))
	for _, id := range s.order {
		r := s.learned[id]
		if r.Active && r.Language == lang {
			out = append(out, *r)
		}
	}
	return out, nil
}

// RecordUsage implements Store.
func (s *MemoryStore) RecordUsage(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.learned[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.UsageCount++
	t := at
	r.LastUsed = &t
	return nil
}

// Learned returns a copy of the learned response with id.
func (s *MemoryStore) Learned(id string) (models.LearnedResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.learned[id]
	if !ok {
		return models.LearnedResponse{}, false
	}
	return *r, true
}

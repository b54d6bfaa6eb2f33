package reengage

import (
	"context"
	"sync"
)

// MemoryBackend keeps visitor profiles in process memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	visitors map[string]map[string]string
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{visitors: make(map[string]map[string]string)}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, visitorID string) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.visitors[visitorID]))
	for k, v := range b.visitors[visitorID] {
		out[k] = v
	}
	return out, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, visitorID, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	values, ok := b.visitors[visitorID]
	if !ok {
		values = make(map[string]string)
		b.visitors[visitorID] = values
	}
	values[key] = value
	return nil
}

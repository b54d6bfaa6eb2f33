// Package reengage persists the per-visitor values that drive proactive
// suggestions and greetings across sessions.
package reengage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Backend stores visitor profiles. Writes are last-write-wins per key.
type Backend interface {
	Load(ctx context.Context, visitorID string) (map[string]string, error)
	Save(ctx context.Context, visitorID, key, value string) error
}

// Dispatcher runs fire-and-forget jobs. Submit must not block.
type Dispatcher interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// Option configures a Profile.
type Option func(*Profile)

// WithDispatcher runs backend writes on d instead of a dedicated goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(p *Profile) { p.dispatcher = d }
}

// Profile is the view of one visitor used by a single session. Reads are
// served from a snapshot taken at load time. Writes update the snapshot at
// once and reach the backend in the background, in order, with pending
// values per key coalesced.
//
// Profile implements the turn machine's ReengagementStore and the language
// PreferenceStore.
type Profile struct {
	visitorID    string
	backend      Backend
	dispatcher   Dispatcher
	writeTimeout time.Duration
	log          *slog.Logger

	mu       sync.Mutex
	values   map[string]string
	dirty    map[string]string
	order    []string
	flushing bool

	// saveMu serializes backend writes.
	saveMu sync.Mutex
}

// Open loads the profile of visitorID. A backend failure is logged and
// yields an empty profile, so a visitor is treated as new rather than
// failing the session. An empty visitorID gives a session-local profile.
func Open(ctx context.Context, backend Backend, visitorID string, opts ...Option) *Profile {
	p := &Profile{
		visitorID:    visitorID,
		backend:      backend,
		writeTimeout: 2 * time.Second,
		log:          slog.With("component", "reengage", "visitor_id", visitorID),
		values:       map[string]string{},
		dirty:        map[string]string{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if backend == nil || visitorID == "" {
		return p
	}
	values, err := backend.Load(ctx, visitorID)
	if err != nil {
		p.log.Warn("Failed to load visitor profile, starting empty", "error", err)
		return p
	}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Get returns the value stored under key.
func (p *Profile) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key. It never waits for the backend; backend
// failures are logged only.
func (p *Profile) Set(key, value string) {
	p.mu.Lock()
	p.values[key] = value
	if p.backend == nil || p.visitorID == "" {
		p.mu.Unlock()
		return
	}
	if _, ok := p.dirty[key]; !ok {
		p.order = append(p.order, key)
	}
	p.dirty[key] = value
	start := !p.flushing
	p.flushing = true
	p.mu.Unlock()

	if !start {
		return
	}
	if p.dispatcher != nil && p.dispatcher.Submit("reengage.save", p.flush) {
		return
	}
	go func() { _ = p.flush(context.Background()) }()
}

// Flush writes every pending value to the backend before returning.
func (p *Profile) Flush(ctx context.Context) error {
	return p.flush(ctx)
}

func (p *Profile) flush(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	var failed error
	for {
		p.mu.Lock()
		if len(p.order) == 0 {
			p.flushing = false
			p.mu.Unlock()
			return failed
		}
		keys, values := p.order, p.dirty
		p.order, p.dirty = nil, map[string]string{}
		p.mu.Unlock()

		for _, key := range keys {
			if err := p.save(ctx, key, values[key]); err != nil {
				p.log.Warn("Failed to persist visitor value", "key", key, "error", err)
				failed = err
			}
		}
	}
}

func (p *Profile) save(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	return p.backend.Save(ctx, p.visitorID, key, value)
}

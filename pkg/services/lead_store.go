package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// ErrLeadExists is returned when a lead id is reused.
var ErrLeadExists = errors.New("lead already exists")

// LeadStore persists completed leads.
type LeadStore interface {
	CreateLead(ctx context.Context, lead models.Lead) error
	ListLeads(ctx context.Context, conversationID string) ([]models.Lead, error)
}

// MemoryLeadStore keeps leads in process memory.
type MemoryLeadStore struct {
	mu    sync.RWMutex
	leads []models.Lead
}

// NewMemoryLeadStore creates an empty store.
func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{}
}

// CreateLead implements LeadStore.
func (s *MemoryLeadStore) CreateLead(_ context.Context, lead models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leads {
		if l.ID == lead.ID {
			return ErrLeadExists
		}
	}
	s.leads = append(s.leads, lead)
	return nil
}

// ListLeads implements LeadStore.
func (s *MemoryLeadStore) ListLeads(_ context.Context, conversationID string) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Lead{}
	for _, l := range s.leads {
		if l.ConversationID == conversationID {
			out = append(out, l)
		}
	}
	return out, nil
}

// PostgresLeadStore persists leads in the leads table.
type PostgresLeadStore struct {
	pool *pgxpool.Pool
}

// NewPostgresLeadStore creates a store on pool.
func NewPostgresLeadStore(pool *pgxpool.Pool) *PostgresLeadStore {
	return &PostgresLeadStore{pool: pool}
}

// CreateLead implements LeadStore.
func (s *PostgresLeadStore) CreateLead(ctx context.Context, lead models.Lead) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads (id, conversation_id, name, email, gdpr_consent, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lead.ID, lead.ConversationID, lead.Name, lead.Email, lead.GDPRConsent, lead.Language, lead.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrLeadExists
		}
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// ListLeads implements LeadStore.
func (s *PostgresLeadStore) ListLeads(ctx context.Context, conversationID string) ([]models.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, name, email, gdpr_consent, language, created_at
		FROM leads WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	out := []models.Lead{}
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.ConversationID, &l.Name, &l.Email, &l.GDPRConsent, &l.Language, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

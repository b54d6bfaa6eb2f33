package escalation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

var (
	// ErrTicketNotFound is returned for an unknown escalation id.
	ErrTicketNotFound = errors.New("escalation ticket not found")

	// ErrTicketExists is returned when an escalation id is reused.
	ErrTicketExists = errors.New("escalation ticket already exists")

	// ErrInvalidTransition is returned when a ticket status would move back.
	ErrInvalidTransition = errors.New("invalid ticket status transition")
)

// TicketStore persists escalation tickets. Tickets are immutable apart
// from their status.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket models.EscalationTicket) error
	GetTicket(ctx context.Context, escalationID string) (*models.EscalationTicket, error)
	UpdateStatus(ctx context.Context, escalationID string, status models.TicketStatus) error
	ListBySession(ctx context.Context, sessionID string) ([]models.EscalationTicket, error)
}

// MemoryTicketStore keeps tickets in process memory.
type MemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[string]models.EscalationTicket
}

// NewMemoryTicketStore creates an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string]models.EscalationTicket)}
}

// CreateTicket implements TicketStore.
func (s *MemoryTicketStore) CreateTicket(_ context.Context, ticket models.EscalationTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.EscalationID]; exists {
		return fmt.Errorf("%w: %s", ErrTicketExists, ticket.EscalationID)
	}
	s.tickets[ticket.EscalationID] = ticket
	return nil
}

// GetTicket implements TicketStore.
func (s *MemoryTicketStore) GetTicket(_ context.Context, escalationID string) (*models.EscalationTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[escalationID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return &t, nil
}

// UpdateStatus implements TicketStore.
func (s *MemoryTicketStore) UpdateStatus(_ context.Context, escalationID string, status models.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[escalationID]
	if !ok {
		return ErrTicketNotFound
	}
	t.Status = status
	s.tickets[escalationID] = t
	return nil
}

// ListBySession implements TicketStore. Tickets are ordered oldest first.
func (s *MemoryTicketStore) ListBySession(_ context.Context, sessionID string) ([]models.EscalationTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EscalationTicket
	for _, t := range s.tickets {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PostgresTicketStore persists tickets in the escalation_tickets table.
type PostgresTicketStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketStore creates a Postgres-backed ticket store.
func NewPostgresTicketStore(pool *pgxpool.Pool) *PostgresTicketStore {
	return &PostgresTicketStore{pool: pool}
}

const ticketColumns = `escalation_id, ticket_number, session_id, conversation_id, reason, urgency,
category, status, contact_channel, contact_email, language, created_at`

// CreateTicket implements TicketStore.
func (s *PostgresTicketStore) CreateTicket(ctx context.Context, t models.EscalationTicket) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO escalation_tickets (`+ticketColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.EscalationID, t.TicketNumber, t.SessionID, t.ConversationID, string(t.Reason), string(t.Urgency),
		t.Category, string(t.Status), t.ContactChannel, t.ContactEmail, t.Language, t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrTicketExists, t.EscalationID)
		}
		return fmt.Errorf("insert escalation ticket: %w", err)
	}
	return nil
}

// GetTicket implements TicketStore.
func (s *PostgresTicketStore) GetTicket(ctx context.Context, escalationID string) (*models.EscalationTicket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM escalation_tickets WHERE escalation_id = $1`, escalationID)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation ticket: %w", err)
	}
	return t, nil
}

// UpdateStatus implements TicketStore.
func (s *PostgresTicketStore) UpdateStatus(ctx context.Context, escalationID string, status models.TicketStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE escalation_tickets SET status = $2 WHERE escalation_id = $1`,
		escalationID, string(status))
	if err != nil {
		return fmt.Errorf("update escalation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// ListBySession implements TicketStore.
func (s *PostgresTicketStore) ListBySession(ctx context.Context, sessionID string) ([]models.EscalationTicket, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ticketColumns+`
FROM escalation_tickets WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list escalation tickets: %w", err)
	}
	defer rows.Close()

	var out []models.EscalationTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation ticket: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (*models.EscalationTicket, error) {
	var t models.EscalationTicket
	var reason, urgency, status string
	if err := row.Scan(&t.EscalationID, &t.TicketNumber, &t.SessionID, &t.ConversationID, &reason, &urgency,
		&t.Category, &status, &t.ContactChannel, &t.ContactEmail, &t.Language, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Reason = models.EscalationReason(reason)
	t.Urgency = models.Urgency(urgency)
	t.Status = models.TicketStatus(status)
	return &t, nil
}

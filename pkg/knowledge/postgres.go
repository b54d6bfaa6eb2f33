package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// PostgresStore reads the knowledge base from the knowledge_entries and
// learned_responses tables created by the database migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ApprovedEntries implements Store.
func (s *PostgresStore) ApprovedEntries(ctx context.Context, lang string) ([]models.KnowledgeEntry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, topic, content, category, language, priority, approved
FROM knowledge_entries
WHERE language = $1 AND approved = TRUE
ORDER BY priority DESC, id`, lang)
	if err != nil {
		return nil, fmt.Errorf("query knowledge entries: %w", err)
	}
	defer rows.Close()

	var out []models.KnowledgeEntry
	for rows.Next() {
		var e models.KnowledgeEntry
		var category string
		if err := rows.Scan(&e.ID, &e.Topic, &e.Content, &category, &e.Language, &e.Priority, &e.Approved); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		e.Category = models.Category(category)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ActiveLearnedResponses implements Store.
func (s *PostgresStore) ActiveLearnedResponses(ctx context.Context, lang string) ([]models.LearnedResponse, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, original_question, response, keywords, language, usage_count, last_used, active
FROM learned_responses
WHERE language = $1 AND active = TRUE
ORDER BY usage_count DESC, id`, lang)
	if err != nil {
		return nil, fmt.Errorf("query learned responses: %w", err)
	}
	defer rows.Close()

	var out []models.LearnedResponse
	for rows.Next() {
		var r models.LearnedResponse
		if err := rows.Scan(&r.ID, &r.OriginalQuestion, &r.Response, &r.Keywords, &r.Language,
			&r.UsageCount, &r.LastUsed, &r.Active); err != nil {
			return nil, fmt.Errorf("scan learned response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordUsage implements Store.
func (s *PostgresStore) RecordUsage(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE learned_responses
SET usage_count = usage_count + 1, last_used = $2
WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// InsertEntry stores a knowledge entry. Used by seeding and tests.
func (s *PostgresStore) InsertEntry(ctx context.Context, e models.KnowledgeEntry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO knowledge_entries (id, topic, content, category, language, priority, approved)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    topic = EXCLUDED.topic, content = EXCLUDED.content, category = EXCLUDED.category,
    language = EXCLUDED.language, priority = EXCLUDED.priority, approved = EXCLUDED.approved`,
		e.ID, e.Topic, e.Content, string(e.Category), e.Language, e.Priority, e.Approved)
	if err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}
	return nil
}

// InsertLearned stores a learned response. Used by seeding and tests.
func (s *PostgresStore) InsertLearned(ctx context.Context, r models.LearnedResponse) error {
	keywords := r.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO learned_responses (id, original_question, response, keywords, language, usage_count, last_used, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    original_question = EXCLUDED.original_question, response = EXCLUDED.response,
    keywords = EXCLUDED.keywords, language = EXCLUDED.language, active = EXCLUDED.active`,
		r.ID, r.OriginalQuestion, r.Response, keywords, r.Language, r.UsageCount, r.LastUsed, r.Active)
	if err != nil {
		return fmt.Errorf("insert learned response: %w", err)
	}
	return nil
}

// Seed upserts every entry and learned response of seed.
func (s *PostgresStore) Seed(ctx context.Context, seed *Seed) error {
	if seed == nil {
		return nil
	}
	for _, e := range seed.Entries {
		if err := s.InsertEntry(ctx, e); err != nil {
			return err
		}
	}
	for _, r := range seed.Learned {
		if err := s.InsertLearned(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Package knowledge stores the curated knowledge base and the learned
// (admin-approved) responses the engine reads from.
package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// ErrNotFound is returned when a learned response id is unknown.
var ErrNotFound = errors.New("learned response not found")

// Store is the read side of the knowledge base plus usage logging.
type Store interface {
	// ApprovedEntries returns approved entries in lang.
	ApprovedEntries(ctx context.Context, lang string) ([]models.KnowledgeEntry, error)
	// ActiveLearnedResponses returns active learned responses in lang.
	ActiveLearnedResponses(ctx context.Context, lang string) ([]models.LearnedResponse, error)
	// RecordUsage increments the usage counter of a learned response.
	RecordUsage(ctx context.Context, id string, at time.Time) error
}

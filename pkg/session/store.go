// Package session stores conversations and their transcripts.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

var (
	// ErrNotFound is returned for an unknown conversation id.
	ErrNotFound = errors.New("conversation not found")

	// ErrAlreadyExists is returned when a conversation id is reused.
	ErrAlreadyExists = errors.New("conversation already exists")
)

// Record is a conversation with its transcript.
type Record struct {
	Conversation models.Conversation `json:"conversation"`
	Messages     []models.Message    `json:"messages"`
	// Version increments on every write.
	Version int64 `json:"version"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Messages = append([]models.Message(nil), r.Messages...)
	return &cp
}

// Store persists conversations. Implementations are safe for concurrent use.
type Store interface {
	// Create stores a new conversation with an empty transcript.
	Create(ctx context.Context, conv models.Conversation) error
	// Get returns a copy of the conversation and its transcript.
	Get(ctx context.Context, id string) (*Record, error)
	// Append adds messages in order and bumps LastActivityAt. It returns
	// the updated record.
	Append(ctx context.Context, id string, msgs ...models.Message) (*Record, error)
	// Delete removes a conversation. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// ListIdle returns the ids of conversations inactive since before.
	// Stores that expire records on their own may return nothing.
	ListIdle(ctx context.Context, before time.Time) ([]string, error)
}

func touch(r *Record, msgs []models.Message) {
	r.Messages = append(r.Messages, msgs...)
	for _, m := range msgs {
		if m.CreatedAt.After(r.Conversation.LastActivityAt) {
			r.Conversation.LastActivityAt = m.CreatedAt
		}
	}
	r.Version++
}

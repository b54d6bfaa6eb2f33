//go:build integration

package escalation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/concierge/pkg/escalation"
	"github.com/codeready-toolchain/concierge/pkg/models"
	"github.com/codeready-toolchain/concierge/test/util"
)

func TestPostgresTicketStore(t *testing.T) {
	client := util.SetupTestDatabase(t)
	store := escalation.NewPostgresTicketStore(client.Pool())
	ctx := context.Background()

	ticket := models.EscalationTicket{
		EscalationID:   "esc_20260114100000_abcd1234",
		TicketNumber:   "TK-20260114-0001",
		SessionID:      "sess-1",
		ConversationID: "conv-1",
		Reason:         models.ReasonComplaint,
		Urgency:        models.UrgencyHigh,
		Category:       "complaint",
		Status:         models.TicketOpen,
		ContactChannel: "chat",
		Language:       "nl",
		CreatedAt:      time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateTicket(ctx, ticket))
	assert.ErrorIs(t, store.CreateTicket(ctx, ticket), escalation.ErrTicketExists)

	got, err := store.GetTicket(ctx, ticket.EscalationID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketNumber, got.TicketNumber)
	assert.Equal(t, models.UrgencyHigh, got.Urgency)
	assert.True(t, ticket.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, store.UpdateStatus(ctx, ticket.EscalationID, models.TicketAcknowledged))
	got, err = store.GetTicket(ctx, ticket.EscalationID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketAcknowledged, got.Status)

	list, err := store.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.GetTicket(ctx, "esc_missing")
	assert.ErrorIs(t, err, escalation.ErrTicketNotFound)
	assert.ErrorIs(t, store.UpdateStatus(ctx, "esc_missing", models.TicketResolved), escalation.ErrTicketNotFound)
}

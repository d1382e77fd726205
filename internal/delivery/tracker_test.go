package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRow(t *testing.T, store *memStore, status string) uuid.UUID {
	t.Helper()
	entry := &Log{
		ID:             uuid.New(),
		RecipientEmail: "ada@example.edu",
		Status:         status,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, store.Insert(context.Background(), entry))
	return entry.ID
}

func TestTrackerFullLifecycle(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	id := seedRow(t, store, StatusPending)

	require.NoError(t, tracker.MarkSent(ctx, id, time.Now()))
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventDelivered, time.Now()))
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventOpened, time.Now()))
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventClicked, time.Now()))

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusClicked, row.Status)
	assert.NotNil(t, row.SentAt)
	assert.NotNil(t, row.DeliveredAt)
	assert.NotNil(t, row.OpenedAt)
	assert.NotNil(t, row.ClickedAt)
}

func TestTrackerDuplicateEventIsNoOp(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	id := seedRow(t, store, StatusSent)

	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventDelivered, first))
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventOpened, first.Add(time.Minute)))

	// Duplicate delivered webhook retry after the row has moved on.
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventDelivered, first.Add(time.Hour)))

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusOpened, row.Status)
	assert.Equal(t, first, *row.DeliveredAt, "deliveredAt must be stamped exactly once")
}

func TestTrackerForwardJumpWhenEventDropped(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	// The delivered event was dropped upstream; opened arrives on a sent row.
	id := seedRow(t, store, StatusSent)
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventOpened, time.Now()))

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusOpened, row.Status)
	assert.Nil(t, row.DeliveredAt, "skipped milestone stays unstamped")
}

func TestTrackerRejectsBackwardTransition(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	id := seedRow(t, store, StatusOpened)
	err := tracker.ApplyEvent(ctx, id, EventBounced, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	row, _ := store.Get(ctx, id)
	assert.Equal(t, StatusOpened, row.Status, "rejected transition leaves row untouched")
}

func TestTrackerTerminalStates(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	// No transition leaves failed.
	failed := seedRow(t, store, StatusFailed)
	assert.ErrorIs(t, tracker.ApplyEvent(ctx, failed, EventDelivered, time.Now()), ErrInvalidTransition)

	// Duplicate terminal events are idempotent no-ops.
	bounced := seedRow(t, store, StatusBounced)
	assert.NoError(t, tracker.ApplyEvent(ctx, bounced, EventBounced, time.Now()))

	clicked := seedRow(t, store, StatusClicked)
	assert.NoError(t, tracker.ApplyEvent(ctx, clicked, EventClicked, time.Now()))

	// But a different event on a terminal row is invalid.
	assert.ErrorIs(t, tracker.ApplyEvent(ctx, bounced, EventDelivered, time.Now()), ErrInvalidTransition)
}

func TestTrackerBounceFromSent(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	id := seedRow(t, store, StatusSent)
	require.NoError(t, tracker.ApplyEvent(ctx, id, EventBounced, time.Now()))

	row, _ := store.Get(ctx, id)
	assert.Equal(t, StatusBounced, row.Status)
}

func TestTrackerUnknownEvent(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)

	id := seedRow(t, store, StatusSent)
	err := tracker.ApplyEvent(context.Background(), id, "unsubscribed", time.Now())
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestTrackerMissingRow(t *testing.T) {
	tracker := NewTracker(newMemStore())
	err := tracker.ApplyEvent(context.Background(), uuid.New(), EventDelivered, time.Now())
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestTrackerMarkFailedFromSent(t *testing.T) {
	store := newMemStore()
	tracker := NewTracker(store)
	ctx := context.Background()

	id := seedRow(t, store, StatusSent)
	require.NoError(t, tracker.MarkFailed(ctx, id, "mailbox full", time.Now()))

	row, _ := store.Get(ctx, id)
	assert.Equal(t, StatusFailed, row.Status)
	assert.Equal(t, "mailbox full", row.FailureReason)
}

func TestAtOrPast(t *testing.T) {
	assert.True(t, AtOrPast(StatusClicked, StatusDelivered))
	assert.True(t, AtOrPast(StatusDelivered, StatusDelivered))
	assert.False(t, AtOrPast(StatusSent, StatusDelivered))
	assert.False(t, AtOrPast(StatusFailed, StatusDelivered))
	assert.True(t, AtOrPast(StatusBounced, StatusBounced))
}

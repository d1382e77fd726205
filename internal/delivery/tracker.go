package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/portal-mailer/internal/pkg/logger"
)

// eventTargets maps an inbound delivery event to the status it requests and
// the states it may legally be applied from. The chain events accept forward
// jumps (e.g. opened arriving on a sent row) because upstream providers drop
// intermediate events; the skipped milestone timestamp simply stays unset.
var eventTargets = map[string]struct {
	target string
	from   []string
}{
	EventDelivered: {StatusDelivered, []string{StatusSent}},
	EventOpened:    {StatusOpened, []string{StatusSent, StatusDelivered}},
	EventClicked:   {StatusClicked, []string{StatusSent, StatusDelivered, StatusOpened}},
	EventBounced:   {StatusBounced, []string{StatusSent}},
}

// Tracker is the state machine governing delivery log lifecycle transitions.
// It is the only writer of a row's status and milestone timestamps.
type Tracker struct {
	store LogStore
}

// NewTracker creates a tracker over the given storage port.
func NewTracker(store LogStore) *Tracker {
	return &Tracker{store: store}
}

// MarkSent advances a freshly created row from pending to sent.
func (t *Tracker) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return t.apply(ctx, id, StatusSent, []string{StatusPending}, at, "")
}

// MarkFailed records a terminal per-send failure with its reason.
func (t *Tracker) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return t.apply(ctx, id, StatusFailed, []string{StatusPending, StatusSent}, at, reason)
}

// ApplyEvent advances a row in response to an inbound delivery event.
// Duplicate or stale events for a state the row already reached are
// idempotent no-ops; anything else out of order is ErrInvalidTransition and
// leaves the row untouched.
func (t *Tracker) ApplyEvent(ctx context.Context, id uuid.UUID, event string, occurredAt time.Time) error {
	rule, ok := eventTargets[event]
	if !ok {
		return ErrUnknownEvent
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return t.apply(ctx, id, rule.target, rule.from, occurredAt, event)
}

func (t *Tracker) apply(ctx context.Context, id uuid.UUID, target string, from []string, at time.Time, reason string) error {
	ok, err := t.store.Advance(ctx, id, from, target, at, reason)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// No row matched the guard: either the row is gone, the event is a
	// duplicate of ground already covered, or the transition is invalid.
	entry, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if AtOrPast(entry.Status, target) {
		logger.Debug("duplicate delivery event ignored",
			"log_id", id.String(), "status", entry.Status, "target", target)
		return nil
	}
	return ErrInvalidTransition
}

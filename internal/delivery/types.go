// Package delivery owns the delivery log: one durable row per send attempt,
// the lifecycle state machine that advances it, and the dispatcher that
// creates rows for single and bulk sends.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Lifecycle states
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusOpened    = "opened"
	StatusClicked   = "clicked"
	StatusFailed    = "failed"
	StatusBounced   = "bounced"
)

// Inbound delivery events
const (
	EventDelivered = "delivered"
	EventOpened    = "opened"
	EventClicked   = "clicked"
	EventBounced   = "bounced"
)

var (
	// ErrLogNotFound is returned when a delivery log row does not exist.
	ErrLogNotFound = errors.New("delivery log entry not found")

	// ErrInvalidTransition is returned when a requested lifecycle transition
	// is not allowed from the row's current state. The row is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStorageUnavailable is returned when the backing store is not ready.
	// A not-ready store is never allowed to masquerade as an empty result.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnknownEvent is returned for delivery events outside the known set.
	ErrUnknownEvent = errors.New("unknown delivery event")
)

// statusRank orders the forward lifecycle chain. Failed and bounced sit
// outside the chain; they are terminal.
var statusRank = map[string]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusOpened:    3,
	StatusClicked:   4,
}

// IsTerminal reports whether no further transition may leave the state.
func IsTerminal(status string) bool {
	return status == StatusFailed || status == StatusBounced || status == StatusClicked
}

// AtOrPast reports whether current already reached target, by status
// ordering. Counting always follows status, never timestamp presence.
func AtOrPast(current, target string) bool {
	if current == target {
		return true
	}
	cr, cok := statusRank[current]
	tr, tok := statusRank[target]
	return cok && tok && cr >= tr
}

// Log is the durable record of one send attempt to one recipient.
type Log struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty" db:"template_id"`
	TemplateName    string     `json:"template_name,omitempty" db:"template_name"`
	CampaignID      *uuid.UUID `json:"campaign_id,omitempty" db:"campaign_id"`
	CampaignName    string     `json:"campaign_name,omitempty" db:"campaign_name"`
	RecipientEmail  string     `json:"recipient_email" db:"recipient_email"`
	RecipientName   string     `json:"recipient_name,omitempty" db:"recipient_name"`
	RecipientUserID *uuid.UUID `json:"recipient_user_id,omitempty" db:"recipient_user_id"`
	Subject         string     `json:"subject" db:"subject"`
	BodyRef         string     `json:"body_ref,omitempty" db:"body_ref"`
	Status          string     `json:"status" db:"status"`
	FailureReason   string     `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	SentAt          *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	OpenedAt        *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt       *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
}

// Recipient is one target of a bulk send.
type Recipient struct {
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	UserID    *uuid.UUID        `json:"user_id,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// BulkResult is the caller's immediate acknowledgement of a bulk send.
// Per-recipient outcomes live in the delivery log.
type BulkResult struct {
	CampaignID   uuid.UUID `json:"campaign_id"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
}

// LogStore is the storage port the tracker and dispatcher are constructed
// with, resolved once at process startup.
type LogStore interface {
	Insert(ctx context.Context, entry *Log) error
	Get(ctx context.Context, id uuid.UUID) (*Log, error)

	// Advance atomically moves a row to the target status, stamping the
	// matching milestone timestamp exactly once, but only if the current
	// status is in from. Returns false when no row matched.
	Advance(ctx context.Context, id uuid.UUID, from []string, target string, at time.Time, reason string) (bool, error)
}

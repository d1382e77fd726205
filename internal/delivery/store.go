package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// stampColumns maps a target status to the milestone timestamp it stamps.
var stampColumns = map[string]string{
	StatusSent:      "sent_at",
	StatusDelivered: "delivered_at",
	StatusOpened:    "opened_at",
	StatusClicked:   "clicked_at",
}

// Store is the Postgres-backed delivery log.
type Store struct {
	db *sql.DB
}

// NewStore creates a new delivery log store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ready reports whether the backing database is reachable.
func (s *Store) Ready(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

const logColumns = `id, template_id, template_name, campaign_id, campaign_name,
	recipient_email, recipient_name, recipient_user_id, subject, body_ref,
	status, failure_reason, created_at, sent_at, delivered_at, opened_at, clicked_at`

// Insert persists a new delivery log row.
func (s *Store) Insert(ctx context.Context, entry *Log) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `INSERT INTO mailing_delivery_log (id, template_id, template_name, campaign_id,
		campaign_name, recipient_email, recipient_name, recipient_user_id, subject, body_ref,
		status, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query, entry.ID, entry.TemplateID, entry.TemplateName,
		entry.CampaignID, entry.CampaignName, entry.RecipientEmail, entry.RecipientName,
		entry.RecipientUserID, entry.Subject, entry.BodyRef, entry.Status,
		entry.FailureReason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

func scanLog(row interface{ Scan(...interface{}) error }) (*Log, error) {
	entry := &Log{}
	err := row.Scan(&entry.ID, &entry.TemplateID, &entry.TemplateName, &entry.CampaignID,
		&entry.CampaignName, &entry.RecipientEmail, &entry.RecipientName, &entry.RecipientUserID,
		&entry.Subject, &entry.BodyRef, &entry.Status, &entry.FailureReason, &entry.CreatedAt,
		&entry.SentAt, &entry.DeliveredAt, &entry.OpenedAt, &entry.ClickedAt)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Get retrieves a delivery log row by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Log, error) {
	query := `SELECT ` + logColumns + ` FROM mailing_delivery_log WHERE id = $1`

	entry, err := scanLog(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery log: %w", err)
	}
	return entry, nil
}

// Advance applies a guarded status update: the status check and the write
// happen in one statement, so concurrent callbacks for the same row cannot
// interleave. Milestone timestamps are stamped at most once via COALESCE.
func (s *Store) Advance(ctx context.Context, id uuid.UUID, from []string, target string, at time.Time, reason string) (bool, error) {
	var query string
	var args []interface{}
	if col, ok := stampColumns[target]; ok {
		query = fmt.Sprintf(`UPDATE mailing_delivery_log
			SET status = $1, %s = COALESCE(%s, $2)
			WHERE id = $3 AND status = ANY($4)`, col, col)
		args = []interface{}{target, at, id, pq.Array(from)}
	} else {
		query = `UPDATE mailing_delivery_log
			SET status = $1, failure_reason = $2
			WHERE id = $3 AND status = ANY($4)`
		args = []interface{}{target, reason, id, pq.Array(from)}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("advance delivery log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByCampaign retrieves all rows of one bulk send.
func (s *Store) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*Log, error) {
	query := `SELECT ` + logColumns + ` FROM mailing_delivery_log
		WHERE campaign_id = $1 ORDER BY created_at`

	return s.queryLogs(ctx, query, campaignID)
}

// ListRecent retrieves the most recent rows for the admin dashboard.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Log, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `SELECT ` + logColumns + ` FROM mailing_delivery_log
		ORDER BY created_at DESC LIMIT $1`

	return s.queryLogs(ctx, query, limit)
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...interface{}) ([]*Log, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query delivery log: %w", err)
	}
	defer rows.Close()

	var entries []*Log
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// Store computes tallies directly in Postgres so the aggregator never
// pages raw log rows into memory.
type Store struct {
	db *sql.DB
}

// NewStore creates a new analytics store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const countColumns = `
	SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'opened' THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'clicked' THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
	SUM(CASE WHEN status = 'bounced' THEN 1 ELSE 0 END)`

func scanCounts(row interface{ Scan(...interface{}) error }, extra ...interface{}) (StatusCounts, error) {
	var c StatusCounts
	var pending, sent, delivered, opened, clicked, failed, bounced sql.NullInt64
	dest := append(extra, &pending, &sent, &delivered, &opened, &clicked, &failed, &bounced)
	if err := row.Scan(dest...); err != nil {
		return c, err
	}
	c.Pending = pending.Int64
	c.Sent = sent.Int64
	c.Delivered = delivered.Int64
	c.Opened = opened.Int64
	c.Clicked = clicked.Int64
	c.Failed = failed.Int64
	c.Bounced = bounced.Int64
	return c, nil
}

// StatusCounts tallies every status within the period.
func (s *Store) StatusCounts(ctx context.Context, p Period) (StatusCounts, error) {
	query := `SELECT` + countColumns + `
		FROM mailing_delivery_log
		WHERE created_at >= $1 AND created_at < $2`

	c, err := scanCounts(s.db.QueryRowContext(ctx, query, p.From, p.To))
	if err != nil {
		return c, fmt.Errorf("status counts: %w", err)
	}
	return c, nil
}

// DailyCounts tallies per calendar day. Days without traffic are absent
// from the result; the aggregator zero-fills them.
func (s *Store) DailyCounts(ctx context.Context, p Period) ([]DayCounts, error) {
	query := `SELECT TO_CHAR(created_at, 'YYYY-MM-DD') AS day,` + countColumns + `
		FROM mailing_delivery_log
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()

	var out []DayCounts
	for rows.Next() {
		var d DayCounts
		c, err := scanCounts(rows, &d.Day)
		if err != nil {
			return nil, err
		}
		d.Counts = c
		out = append(out, d)
	}
	return out, rows.Err()
}

// TemplateCounts tallies per template, keyed by template ID.
func (s *Store) TemplateCounts(ctx context.Context, p Period) ([]GroupCounts, error) {
	query := `SELECT template_id::text, MAX(template_name),` + countColumns + `
		FROM mailing_delivery_log
		WHERE created_at >= $1 AND created_at < $2 AND template_id IS NOT NULL
		GROUP BY template_id`

	return s.queryGroups(ctx, query, p.From, p.To)
}

// CampaignCounts tallies per bulk send, keyed by campaign ID.
func (s *Store) CampaignCounts(ctx context.Context, p Period) ([]GroupCounts, error) {
	query := `SELECT campaign_id::text, MAX(campaign_name),` + countColumns + `
		FROM mailing_delivery_log
		WHERE created_at >= $1 AND created_at < $2 AND campaign_id IS NOT NULL
		GROUP BY campaign_id`

	return s.queryGroups(ctx, query, p.From, p.To)
}

// DomainCounts tallies per recipient domain, largest senders first.
func (s *Store) DomainCounts(ctx context.Context, p Period, limit int) ([]GroupCounts, error) {
	if limit <= 0 || limit > 200 {
		limit = 25
	}
	query := `SELECT LOWER(SPLIT_PART(recipient_email, '@', 2)) AS domain, '',` + countColumns + `
		FROM mailing_delivery_log
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY domain ORDER BY COUNT(*) DESC LIMIT $3`

	return s.queryGroups(ctx, query, p.From, p.To, limit)
}

func (s *Store) queryGroups(ctx context.Context, query string, args ...interface{}) ([]GroupCounts, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group counts: %w", err)
	}
	defer rows.Close()

	var out []GroupCounts
	for rows.Next() {
		var g GroupCounts
		c, err := scanCounts(rows, &g.Key, &g.Name)
		if err != nil {
			return nil, err
		}
		g.Counts = c
		out = append(out, g)
	}
	return out, rows.Err()
}

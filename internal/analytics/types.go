package analytics

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPeriod signals a reporting period whose bounds are inverted
// or missing.
var ErrInvalidPeriod = errors.New("invalid reporting period")

// Period is a half-open reporting window [From, To).
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects empty or inverted windows.
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return ErrInvalidPeriod
	}
	if !p.From.Before(p.To) {
		return ErrInvalidPeriod
	}
	return nil
}

// StatusCounts holds raw per-status tallies for a slice of the delivery
// log. Lifecycle statuses are mutually exclusive, so the cumulative
// accessors below sum every status a message passed through.
type StatusCounts struct {
	Pending   int64 `json:"pending"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Opened    int64 `json:"opened"`
	Clicked   int64 `json:"clicked"`
	Failed    int64 `json:"failed"`
	Bounced   int64 `json:"bounced"`
}

// Total is every logged attempt.
func (c StatusCounts) Total() int64 {
	return c.Pending + c.Sent + c.Delivered + c.Opened + c.Clicked + c.Failed + c.Bounced
}

// SentOrLater counts messages accepted by the transport, whatever
// happened to them afterwards.
func (c StatusCounts) SentOrLater() int64 {
	return c.Sent + c.Delivered + c.Opened + c.Clicked + c.Bounced
}

// DeliveredOrLater counts messages that reached an inbox.
func (c StatusCounts) DeliveredOrLater() int64 {
	return c.Delivered + c.Opened + c.Clicked
}

// OpenedOrLater counts messages the recipient engaged with.
func (c StatusCounts) OpenedOrLater() int64 {
	return c.Opened + c.Clicked
}

// DayCounts is one day bucket in a trend series.
type DayCounts struct {
	Day    string       `json:"day"`
	Counts StatusCounts `json:"counts"`
}

// GroupCounts ties a tally to a grouping key (template, campaign or
// recipient domain).
type GroupCounts struct {
	Key    string       `json:"key"`
	Name   string       `json:"name,omitempty"`
	Counts StatusCounts `json:"counts"`
}

// Report is a tally plus the derived engagement rates.
type Report struct {
	Counts       StatusCounts `json:"counts"`
	DeliveryRate float64      `json:"delivery_rate"`
	OpenRate     float64      `json:"open_rate"`
	ClickRate    float64      `json:"click_rate"`
	BounceRate   float64      `json:"bounce_rate"`
	FailureRate  float64      `json:"failure_rate"`
}

// GroupReport is a Report for one grouping key.
type GroupReport struct {
	Key    string `json:"key"`
	Name   string `json:"name,omitempty"`
	Report Report `json:"report"`
}

// StatsStore is the read side of the delivery log the aggregator
// consumes. The Postgres implementation lives in this package; tests
// substitute a fake.
type StatsStore interface {
	StatusCounts(ctx context.Context, p Period) (StatusCounts, error)
	DailyCounts(ctx context.Context, p Period) ([]DayCounts, error)
	TemplateCounts(ctx context.Context, p Period) ([]GroupCounts, error)
	CampaignCounts(ctx context.Context, p Period) ([]GroupCounts, error)
	DomainCounts(ctx context.Context, p Period, limit int) ([]GroupCounts, error)
}

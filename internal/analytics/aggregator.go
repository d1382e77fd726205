package analytics

import (
	"context"
	"sort"
	"time"
)

// Aggregator turns raw delivery tallies into dashboard reports.
type Aggregator struct {
	store StatsStore
}

// NewAggregator creates an aggregator over the given stats source.
func NewAggregator(store StatsStore) *Aggregator {
	return &Aggregator{store: store}
}

func buildReport(c StatusCounts) Report {
	return Report{
		Counts:       c,
		DeliveryRate: DeliveryRate(c),
		OpenRate:     OpenRate(c),
		ClickRate:    ClickRate(c),
		BounceRate:   BounceRate(c),
		FailureRate:  FailureRate(c),
	}
}

// Dashboard returns the headline report for the period.
func (a *Aggregator) Dashboard(ctx context.Context, p Period) (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	counts, err := a.store.StatusCounts(ctx, p)
	if err != nil {
		return Report{}, err
	}
	return buildReport(counts), nil
}

// TrendPoint is one day of a trend series with its derived rates.
type TrendPoint struct {
	Day    string `json:"day"`
	Report Report `json:"report"`
}

// Trends returns one point per calendar day in the period. Days with no
// traffic appear as zero-count points so chart axes stay contiguous.
func (a *Aggregator) Trends(ctx context.Context, p Period) ([]TrendPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	days, err := a.store.DailyCounts(ctx, p)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]StatusCounts, len(days))
	for _, d := range days {
		byDay[d.Day] = d.Counts
	}

	var points []TrendPoint
	for day := p.From.Truncate(24 * time.Hour); day.Before(p.To); day = day.Add(24 * time.Hour) {
		key := day.Format("2006-01-02")
		points = append(points, TrendPoint{Day: key, Report: buildReport(byDay[key])})
	}
	return points, nil
}

// ByTemplate returns a report per template, busiest first.
func (a *Aggregator) ByTemplate(ctx context.Context, p Period) ([]GroupReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	groups, err := a.store.TemplateCounts(ctx, p)
	if err != nil {
		return nil, err
	}
	return buildGroupReports(groups), nil
}

// ByCampaign returns a report per bulk send, busiest first.
func (a *Aggregator) ByCampaign(ctx context.Context, p Period) ([]GroupReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	groups, err := a.store.CampaignCounts(ctx, p)
	if err != nil {
		return nil, err
	}
	return buildGroupReports(groups), nil
}

// ByDomain returns a report per recipient domain, busiest first.
func (a *Aggregator) ByDomain(ctx context.Context, p Period, limit int) ([]GroupReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	groups, err := a.store.DomainCounts(ctx, p, limit)
	if err != nil {
		return nil, err
	}
	return buildGroupReports(groups), nil
}

func buildGroupReports(groups []GroupCounts) []GroupReport {
	out := make([]GroupReport, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupReport{Key: g.Key, Name: g.Name, Report: buildReport(g.Counts)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Report.Counts.Total() > out[j].Report.Counts.Total()
	})
	return out
}

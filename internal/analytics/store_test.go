package analytics

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStatsStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewStore(db), mock, func() { db.Close() }
}

func countRow(extra ...string) *sqlmock.Rows {
	cols := []string{"pending", "sent", "delivered", "opened", "clicked", "failed", "bounced"}
	return sqlmock.NewRows(append(extra, cols...))
}

func TestStatusCounts(t *testing.T) {
	store, mock, cleanup := setupStatsStore(t)
	defer cleanup()

	rows := countRow().AddRow(1, 2, 3, 4, 5, 6, 7)
	mock.ExpectQuery("SELECT.+FROM mailing_delivery_log").WillReturnRows(rows)

	c, err := store.StatusCounts(context.Background(), week())
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Pending)
	assert.Equal(t, int64(7), c.Bounced)
	assert.Equal(t, int64(28), c.Total())
}

func TestStatusCountsEmptyTableYieldsZeroes(t *testing.T) {
	store, mock, cleanup := setupStatsStore(t)
	defer cleanup()

	// SUM over zero rows returns NULL for every column.
	rows := countRow().AddRow(nil, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT.+FROM mailing_delivery_log").WillReturnRows(rows)

	c, err := store.StatusCounts(context.Background(), week())
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Total())
}

func TestDailyCounts(t *testing.T) {
	store, mock, cleanup := setupStatsStore(t)
	defer cleanup()

	rows := countRow("day").
		AddRow("2025-03-11", 0, 0, 5, 0, 0, 0, 0).
		AddRow("2025-03-12", 0, 1, 2, 1, 0, 0, 0)
	mock.ExpectQuery("GROUP BY day").WillReturnRows(rows)

	days, err := store.DailyCounts(context.Background(), week())
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-03-11", days[0].Day)
	assert.Equal(t, int64(5), days[0].Counts.Delivered)
}

func TestDomainCountsClampsLimit(t *testing.T) {
	store, mock, cleanup := setupStatsStore(t)
	defer cleanup()

	p := week()
	rows := countRow("domain", "name").
		AddRow("example.edu", "", 0, 0, 10, 0, 0, 0, 0)
	mock.ExpectQuery("SPLIT_PART").
		WithArgs(p.From, p.To, 25).
		WillReturnRows(rows)

	groups, err := store.DomainCounts(context.Background(), p, -1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "example.edu", groups[0].Key)
}

func TestTemplateCounts(t *testing.T) {
	store, mock, cleanup := setupStatsStore(t)
	defer cleanup()

	rows := countRow("template_id", "name").
		AddRow("7b0f2c66-0000-0000-0000-000000000001", "Welcome", 0, 2, 6, 1, 1, 0, 0)
	mock.ExpectQuery("GROUP BY template_id").WillReturnRows(rows)

	groups, err := store.TemplateCounts(context.Background(), week())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Welcome", groups[0].Name)
	assert.Equal(t, int64(10), groups[0].Counts.Total())
}

func TestCampaignCounts(t *testing.T) {
	store, mock, cleanup := setupStatsStore(t)
	defer cleanup()

	rows := countRow("campaign_id", "name").
		AddRow("7b0f2c66-0000-0000-0000-000000000002", "Spring launch", 0, 0, 3, 0, 0, 1, 0)
	mock.ExpectQuery("GROUP BY campaign_id").WillReturnRows(rows)

	groups, err := store.CampaignCounts(context.Background(), week())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Spring launch", groups[0].Name)
}

package store

import (
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortfolioDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    ":memory:",
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestPositionRepository_UpsertAndUpdatePrice(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewPositionRepository(newPortfolioDB(t).Conn(), log)

	bought := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(domain.Position{
		Symbol:        "VWCE.DE",
		Quantity:      5,
		AverageCost:   95,
		CurrentPrice:  95,
		Currency:      domain.EUR,
		FirstBoughtAt: &bought,
	}))

	require.NoError(t, repo.UpdatePrice("VWCE.DE", 101.5))

	got, err := repo.Get("VWCE.DE")
	require.NoError(t, err)
	assert.Equal(t, 101.5, got.CurrentPrice)
	assert.Equal(t, 95.0, got.AverageCost, "UpdatePrice must not touch cost basis")
	require.NotNil(t, got.FirstBoughtAt)
	assert.True(t, got.FirstBoughtAt.Equal(bought))

	require.NoError(t, repo.Upsert(domain.Position{Symbol: "CLOSED", Quantity: 0, Currency: domain.EUR}))
	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "VWCE.DE", active[0].Symbol)
}

func TestSnapshotRepository_UpsertGetRangeLatest(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewSnapshotRepository(newPortfolioDB(t).Conn(), log)

	_, err := repo.Latest()
	assert.Error(t, err, "no snapshot rows yet must surface as an error, not a zero value")

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, repo.Upsert(domain.PortfolioSnapshot{
		Date:    day1,
		CashEUR: 100,
		Positions: map[string]domain.SnapshotPosition{
			"VWCE.DE": {Quantity: 5, ValueEUR: 500},
		},
	}))
	require.NoError(t, repo.Upsert(domain.PortfolioSnapshot{
		Date:    day2,
		CashEUR: 80,
		Positions: map[string]domain.SnapshotPosition{
			"VWCE.DE": {Quantity: 5, ValueEUR: 510},
		},
	}))

	got, err := repo.Get(day1)
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.TotalValueEUR())

	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.True(t, latest.Date.Equal(day2))

	all, err := repo.Range(day1, day2)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Upsert is idempotent for a day already written.
	require.NoError(t, repo.Upsert(domain.PortfolioSnapshot{Date: day1, CashEUR: 200}))
	got, err = repo.Get(day1)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.CashEUR)
}

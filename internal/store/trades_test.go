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

func newLedgerDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    ":memory:",
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestTradeRepository_InsertDeduplicatesOnBrokerTradeID(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewTradeRepository(newLedgerDB(t).Conn(), log)

	trade := domain.Trade{
		BrokerTradeID: "tn-1",
		Symbol:        "VWCE.DE",
		Side:          domain.Buy,
		Quantity:      10,
		Price:         95.5,
		Currency:      domain.EUR,
		ExecutedAt:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}

	inserted, err := repo.Insert(trade)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(trade)
	require.NoError(t, err)
	assert.False(t, inserted, "re-ingesting the same broker_trade_id must be a no-op")

	last, err := repo.LastForSymbol("VWCE.DE")
	require.NoError(t, err)
	assert.Equal(t, "tn-1", last.BrokerTradeID)
}

func TestTradeRepository_ListBetweenOrdersAscendingAndExcludesTo(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewTradeRepository(newLedgerDB(t).Conn(), log)

	day := func(d int) time.Time { return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC) }

	trades := []domain.Trade{
		{BrokerTradeID: "3", Symbol: "A", Side: domain.Buy, Quantity: 1, Price: 1, Currency: domain.EUR, ExecutedAt: day(3)},
		{BrokerTradeID: "1", Symbol: "A", Side: domain.Buy, Quantity: 1, Price: 1, Currency: domain.EUR, ExecutedAt: day(1)},
		{BrokerTradeID: "2", Symbol: "A", Side: domain.Sell, Quantity: 1, Price: 1, Currency: domain.EUR, ExecutedAt: day(2)},
	}
	for _, tr := range trades {
		_, err := repo.Insert(tr)
		require.NoError(t, err)
	}

	got, err := repo.ListBetween(day(1), day(3))
	require.NoError(t, err)
	require.Len(t, got, 2, "upper bound is exclusive")
	assert.Equal(t, "1", got[0].BrokerTradeID)
	assert.Equal(t, "2", got[1].BrokerTradeID)
}

func TestCashFlowRepository_InsertDeduplicatesOnContentHash(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewCashFlowRepository(newLedgerDB(t).Conn(), log)

	cf := domain.CashFlow{
		ContentHash: "hash-1",
		Date:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Type:        domain.CashFlowDeposit,
		Amount:      500,
		Currency:    domain.EUR,
	}
	inserted, err := repo.Insert(cf)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(cf)
	require.NoError(t, err)
	assert.False(t, inserted)

	flows, err := repo.ListBetween(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, 500.0, flows[0].Amount)
}

func TestCashBalanceRepository_AdjustAccumulates(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := NewCashBalanceRepository(newLedgerDB(t).Conn(), log)

	require.NoError(t, repo.Adjust(domain.EUR, 100))
	require.NoError(t, repo.Adjust(domain.EUR, -30))

	balance, err := repo.Get(domain.EUR)
	require.NoError(t, err)
	assert.Equal(t, 70.0, balance)

	require.NoError(t, repo.Set(domain.USD, 42))
	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, 42.0, all[domain.USD])
}

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/store"
)

// mockBroker implements broker.Broker for testing. Only the method(s) a
// given test cares about are overridden; every other method returns a
// zero value so handlers that never reach them are unaffected.
type mockBroker struct {
	getTradesHistoryFn func(ctx context.Context, start, end string) ([]broker.TradeHistoryRow, error)
	getCashFlowsFn     func(ctx context.Context, start, end string) ([]broker.CashFlowRow, error)
}

func (m *mockBroker) GetQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	return broker.Quote{}, nil
}
func (m *mockBroker) GetQuotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error) {
	return nil, nil
}
func (m *mockBroker) GetHistoricalPricesBulk(ctx context.Context, symbols []string, years int) (map[string][]broker.Bar, error) {
	return nil, nil
}
func (m *mockBroker) GetPortfolio(ctx context.Context) (broker.Portfolio, error) {
	return broker.Portfolio{}, nil
}
func (m *mockBroker) Buy(ctx context.Context, symbol string, quantity, price float64) (broker.OrderResult, error) {
	return broker.OrderResult{}, nil
}
func (m *mockBroker) Sell(ctx context.Context, symbol string, quantity, price float64) (broker.OrderResult, error) {
	return broker.OrderResult{}, nil
}
func (m *mockBroker) GetTradesHistory(ctx context.Context, start, end string) ([]broker.TradeHistoryRow, error) {
	if m.getTradesHistoryFn != nil {
		return m.getTradesHistoryFn(ctx, start, end)
	}
	return nil, nil
}
func (m *mockBroker) GetCashFlows(ctx context.Context, start, end string) ([]broker.CashFlowRow, error) {
	if m.getCashFlowsFn != nil {
		return m.getCashFlowsFn(ctx, start, end)
	}
	return nil, nil
}
func (m *mockBroker) GetCorporateActions(ctx context.Context, start, end string) ([]broker.CorporateAction, error) {
	return nil, nil
}
func (m *mockBroker) GetMarketStatus(ctx context.Context, marketID string) (broker.MarketStatus, error) {
	return broker.MarketStatus{}, nil
}
func (m *mockBroker) GetAvailableSecurities(ctx context.Context) ([]broker.AvailableSecurity, error) {
	return nil, nil
}

// newTestHandlers wires a Handlers against an in-memory ledger.db and a
// mockBroker, leaving every collaborator a given test's handler doesn't
// exercise as nil - safe because tradeSync/cashFlowSync never touch them.
func newTestHandlers(t *testing.T, b broker.Broker) (*Handlers, *store.TradeRepository, *store.CashFlowRepository) {
	t.Helper()
	log := zerolog.Nop()

	ledgerDB, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileLedger, Name: "ledger"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledgerDB.Close() })
	require.NoError(t, ledgerDB.Migrate())

	trades := store.NewTradeRepository(ledgerDB.Conn(), log)
	cashFlows := store.NewCashFlowRepository(ledgerDB.Conn(), log)

	eventManager := events.NewManager(events.NewBus(log), log)

	h := NewHandlers(b, nil, nil, nil, cashFlows, trades, nil, nil, nil, nil, nil, nil, nil, eventManager, nil, nil, log)
	return h, trades, cashFlows
}

func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestHandlers_TradeSync_InsertsNewTradesAndSkipsDuplicates(t *testing.T) {
	b := &mockBroker{
		getTradesHistoryFn: func(ctx context.Context, start, end string) ([]broker.TradeHistoryRow, error) {
			return []broker.TradeHistoryRow{
				{BrokerTradeID: "tn-1", Symbol: "VWCE.DE", Side: 1, Quantity: 10, Price: 95, Currency: "EUR", ExecutedAt: "2026-01-05T09:00:00Z"},
				{BrokerTradeID: "tn-2", Symbol: "VWCE.DE", Side: 2, Quantity: 3, Price: 101, Currency: "EUR", ExecutedAt: "2026-01-06T09:00:00Z"},
			}, nil
		},
	}
	h, trades, _ := newTestHandlers(t, b)

	require.NoError(t, h.tradeSync(context.Background()))

	got, err := trades.ListForSymbol("VWCE.DE")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BUY", string(got[0].Side))
	assert.Equal(t, "SELL", string(got[1].Side))

	// Re-running must not duplicate rows already seen by broker_trade_id.
	require.NoError(t, h.tradeSync(context.Background()))
	got, err = trades.ListForSymbol("VWCE.DE")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHandlers_TradeSync_PropagatesBrokerError(t *testing.T) {
	b := &mockBroker{
		getTradesHistoryFn: func(ctx context.Context, start, end string) ([]broker.TradeHistoryRow, error) {
			return nil, assert.AnError
		},
	}
	h, _, _ := newTestHandlers(t, b)

	err := h.tradeSync(context.Background())
	assert.Error(t, err)
}

func TestHandlers_CashFlowSync_InsertsNewFlows(t *testing.T) {
	b := &mockBroker{
		getCashFlowsFn: func(ctx context.Context, start, end string) ([]broker.CashFlowRow, error) {
			return []broker.CashFlowRow{
				{ContentHash: "h1", Date: "2026-02-01", Type: "deposit", Amount: 500, Currency: "EUR"},
			}, nil
		},
	}
	h, _, cashFlows := newTestHandlers(t, b)

	require.NoError(t, h.cashFlowSync(context.Background()))

	got, err := cashFlows.ListBetween(
		mustParseDate(t, "2026-01-01"),
		mustParseDate(t, "2026-03-01"),
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 500.0, got[0].Amount)
}

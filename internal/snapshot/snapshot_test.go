package snapshot

import (
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func day(t *testing.T, s string) time.Time {
	tm, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func TestIsDerivative(t *testing.T) {
	assert.True(t, IsDerivative("EUR/USD"))
	assert.True(t, IsDerivative("+AAPL250101C150"))
	assert.False(t, IsDerivative("AAPL"))
}

func TestReconstructor_BuyThenPriceReflectsHolding(t *testing.T) {
	trades := []Trade{
		{Symbol: "AAPL", Side: domain.Buy, Quantity: 10, Price: 100, Currency: domain.EUR, ExecutedAt: day(t, "2024-01-01")},
	}
	rateOf := func(ccy domain.Currency, onOrBefore time.Time) float64 { return 1.0 }
	priceOf := func(symbol string, onOrBefore time.Time) (float64, time.Time, bool) { return 110, onOrBefore, true }

	r := NewReconstructor(trades, rateOf)
	result := r.Reconstruct(day(t, "2024-01-05"), priceOf)

	assert.InDelta(t, 1100, result.PositionsValueEUR, 1e-9)
	assert.InDelta(t, 1000, result.NetDepositsEUR, 1e-9)
	assert.InDelta(t, 100, result.UnrealizedPnLEUR, 1e-9)
	assert.Equal(t, 10.0, result.Positions["AAPL"].Quantity)
}

func TestReconstructor_SellReducesCostBasisProportionally(t *testing.T) {
	trades := []Trade{
		{Symbol: "AAPL", Side: domain.Buy, Quantity: 10, Price: 100, Currency: domain.EUR, ExecutedAt: day(t, "2024-01-01")},
		{Symbol: "AAPL", Side: domain.Sell, Quantity: 4, Price: 120, Currency: domain.EUR, ExecutedAt: day(t, "2024-01-10")},
	}
	rateOf := func(ccy domain.Currency, onOrBefore time.Time) float64 { return 1.0 }
	priceOf := func(symbol string, onOrBefore time.Time) (float64, time.Time, bool) { return 130, onOrBefore, true }

	r := NewReconstructor(trades, rateOf)
	result := r.Reconstruct(day(t, "2024-01-15"), priceOf)

	// old_cost=1000, qty_sold=4, old_qty=10 -> new_cost = 1000 - 4*(1000/10) = 600
	assert.InDelta(t, 600, result.NetDepositsEUR, 1e-9)
	assert.InDelta(t, 6, result.Positions["AAPL"].Quantity, 1e-9)
	assert.InDelta(t, 780, result.PositionsValueEUR, 1e-9) // 6 * 130
}

func TestReconstructor_UsesTradeDateFXRateNotSnapshotDate(t *testing.T) {
	trades := []Trade{
		{Symbol: "VOD", Side: domain.Buy, Quantity: 10, Price: 100, Currency: domain.GBP, ExecutedAt: day(t, "2024-01-01")},
	}
	calls := map[string]float64{}
	rateOf := func(ccy domain.Currency, onOrBefore time.Time) float64 {
		calls[onOrBefore.Format("2006-01-02")] = 1.2
		if onOrBefore.Equal(day(t, "2024-01-01")) {
			return 1.1 // rate on the trade date
		}
		return 1.3 // rate on the snapshot date, should only apply to valuation not cost basis
	}
	priceOf := func(symbol string, onOrBefore time.Time) (float64, time.Time, bool) { return 100, onOrBefore, true }

	r := NewReconstructor(trades, rateOf)
	result := r.Reconstruct(day(t, "2024-02-01"), priceOf)

	// cost basis uses the trade-date rate: 10*100*1.1 = 1100
	assert.InDelta(t, 1100, result.NetDepositsEUR, 1e-9)
	// valuation uses the snapshot-date rate: 10*100*1.3 = 1300
	assert.InDelta(t, 1300, result.PositionsValueEUR, 1e-9)
}

func TestReconstructor_MissingPriceExcludesPosition(t *testing.T) {
	trades := []Trade{
		{Symbol: "AAPL", Side: domain.Buy, Quantity: 10, Price: 100, Currency: domain.EUR, ExecutedAt: day(t, "2024-01-01")},
	}
	rateOf := func(ccy domain.Currency, onOrBefore time.Time) float64 { return 1.0 }
	priceOf := func(symbol string, onOrBefore time.Time) (float64, time.Time, bool) { return 0, time.Time{}, false }

	r := NewReconstructor(trades, rateOf)
	result := r.Reconstruct(day(t, "2024-01-05"), priceOf)

	assert.Empty(t, result.Positions)
	assert.Equal(t, 0.0, result.PositionsValueEUR)
}

func TestReconstructor_DerivativeSymbolsFilteredOut(t *testing.T) {
	trades := []Trade{
		{Symbol: "EUR/USD", Side: domain.Buy, Quantity: 1000, Price: 1.1, Currency: domain.EUR, ExecutedAt: day(t, "2024-01-01")},
	}
	rateOf := func(ccy domain.Currency, onOrBefore time.Time) float64 { return 1.0 }
	priceOf := func(symbol string, onOrBefore time.Time) (float64, time.Time, bool) { return 1.1, onOrBefore, true }

	r := NewReconstructor(trades, rateOf)
	result := r.Reconstruct(day(t, "2024-01-05"), priceOf)

	assert.Empty(t, result.Positions)
}

func TestDay_ToPortfolioSnapshot(t *testing.T) {
	d := Day{Date: day(t, "2024-01-01"), Positions: map[string]domain.SnapshotPosition{"AAPL": {Quantity: 1, ValueEUR: 100}}}
	snap := d.ToPortfolioSnapshot(50)
	assert.Equal(t, 50.0, snap.CashEUR)
	assert.InDelta(t, 150, snap.TotalValueEUR(), 1e-9)
}

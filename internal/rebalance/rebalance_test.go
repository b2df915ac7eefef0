package rebalance

import (
	"testing"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildRecommendation_NegligibleDeltaIsSkipped(t *testing.T) {
	ideal := map[string]float64{"AAPL": 0.10}
	current := map[string]float64{"AAPL": 0.1001}
	data := SecurityData{Price: 100, Currency: domain.EUR, LotSize: 1, AllowBuy: true, AllowSell: true}

	_, ok := BuildRecommendation("AAPL", ideal, current, 10000, data, 0.1, 100, 1.0)
	assert.False(t, ok)
}

func TestBuildRecommendation_BuildsBuyWhenUnderweight(t *testing.T) {
	ideal := map[string]float64{"AAPL": 0.20}
	current := map[string]float64{"AAPL": 0.0}
	data := SecurityData{Price: 100, Currency: domain.EUR, LotSize: 1, AllowBuy: true, AllowSell: true}

	rec, ok := BuildRecommendation("AAPL", ideal, current, 10000, data, 0.15, 100, 1.0)
	assert := assert.New(t)
	assert.True(ok)
	assert.Equal(domain.Buy, rec.Action)
	assert.Greater(rec.Quantity, 0.0)
	assert.Contains(rec.Reason, "New position")
}

func TestBuildRecommendation_BlockedWhenAllowSellFalse(t *testing.T) {
	ideal := map[string]float64{"AAPL": 0.0}
	current := map[string]float64{"AAPL": 0.20}
	data := SecurityData{Price: 100, Currency: domain.EUR, LotSize: 1, CurrentQty: 20, AllowSell: false, AllowBuy: true}

	_, ok := BuildRecommendation("AAPL", ideal, current, 10000, data, -0.05, 100, 1.0)
	assert.False(t, ok)
}

// TradeBlocked is the direction-agnostic gate (price missing or a Price
// Validator anomaly, internal/livedata.Source.checkPriceAnomaly); it blocks
// both buy and sell regardless of delta's sign.
func TestBuildRecommendation_TradeBlockedBlocksBuy(t *testing.T) {
	ideal := map[string]float64{"AAPL": 0.20}
	current := map[string]float64{"AAPL": 0.0}
	data := SecurityData{Price: 100, Currency: domain.EUR, LotSize: 1, TradeBlocked: true, BlockReason: "price anomaly", AllowBuy: true}

	_, ok := BuildRecommendation("AAPL", ideal, current, 10000, data, 0.1, 100, 1.0)
	assert.False(t, ok)
}

// S5 — cooldown is direction-specific: a buy is only blocked by a recent
// opposite-side (sell) trade, never by a recent same-side (buy) one.
func TestBuildRecommendation_S5_BuyBlockedByOppositeSideCooloffOnly(t *testing.T) {
	ideal := map[string]float64{"AAPL": 0.20}
	current := map[string]float64{"AAPL": 0.0}

	blocked := SecurityData{Price: 100, Currency: domain.EUR, LotSize: 1, AllowBuy: true, BuyCooloffBlocked: true, BuyCooloffReason: "cooling off"}
	_, ok := BuildRecommendation("AAPL", ideal, current, 10000, blocked, 0.1, 100, 1.0)
	assert.False(t, ok)

	allowed := SecurityData{Price: 100, Currency: domain.EUR, LotSize: 1, AllowBuy: true, SellCooloffBlocked: true}
	_, ok = BuildRecommendation("AAPL", ideal, current, 10000, allowed, 0.1, 100, 1.0)
	assert.True(t, ok, "a sell-side cooloff must not block a buy")
}

func TestSortRecommendations_SellsFirstThenPriorityDescending(t *testing.T) {
	recs := []*Recommendation{
		{Symbol: "A", Action: domain.Buy, Priority: 5},
		{Symbol: "B", Action: domain.Sell, Priority: 1},
		{Symbol: "C", Action: domain.Buy, Priority: 9},
	}
	SortRecommendations(recs)
	assert.Equal(t, "B", recs[0].Symbol)
	assert.Equal(t, "C", recs[1].Symbol)
	assert.Equal(t, "A", recs[2].Symbol)
}

// S6 — deficit sells: a negative EUR cash balance with no offsetting
// positive balance must generate priority-1000 sells that cover it.
func TestGenerateDeficitSells_S6_CoversUncoveredDeficit(t *testing.T) {
	valueEUR := func(amount float64, ccy domain.Currency) float64 { return amount }
	fromEUR := func(amountEUR float64, ccy domain.Currency) float64 { return amountEUR }

	balances := []CashBalance{{Currency: domain.EUR, Amount: -500}}
	deficit := UncoveredDeficit(balances, valueEUR)
	assert.InDelta(t, 510, deficit, 1e-9)

	positions := []DeficitPosition{
		{Symbol: "LOW", Quantity: 50, Price: 10, Currency: domain.EUR, LotSize: 1, Score: 0.1, AllowSell: true},
		{Symbol: "HIGH", Quantity: 50, Price: 10, Currency: domain.EUR, LotSize: 1, Score: 0.9, AllowSell: true},
	}

	sells := GenerateDeficitSells(deficit, positions, valueEUR, fromEUR)
	assert := assert.New(t)
	assert.NotEmpty(sells)
	assert.Equal("LOW", sells[0].Symbol, "lowest-score position sold first")
	for _, s := range sells {
		assert.Equal(domain.Sell, s.Action)
		assert.Equal(1000.0, s.Priority)
		assert.Contains(s.Reason, "deficit")
	}
	assert.Contains(sells[0].Reason, "Sell to cover negative balance deficit (510 EUR remaining)")

	var totalCovered float64
	for _, s := range sells {
		totalCovered += -s.ValueDeltaEUR
	}
	assert.GreaterOrEqual(totalCovered, deficit)
}

func TestGenerateDeficitSells_NoDeficitYieldsNoSells(t *testing.T) {
	valueEUR := func(amount float64, ccy domain.Currency) float64 { return amount }
	fromEUR := func(amountEUR float64, ccy domain.Currency) float64 { return amountEUR }
	sells := GenerateDeficitSells(0, []DeficitPosition{{Symbol: "X", Quantity: 10, Price: 10, AllowSell: true}}, valueEUR, fromEUR)
	assert.Empty(t, sells)
}

// S2 — cash-constrained rebalance: total buy cost exceeds available cash,
// so buys must be scaled down to fit, highest priority first, without
// exceeding the budget.
func TestApplyCashConstraint_S2_ScalesDownBuysToFitBudget(t *testing.T) {
	recs := []*Recommendation{
		{Symbol: "A", Action: domain.Buy, Quantity: 100, Price: 10, Currency: domain.EUR, LotSize: 1, ValueDeltaEUR: 1000, Priority: 10},
		{Symbol: "B", Action: domain.Buy, Quantity: 100, Price: 10, Currency: domain.EUR, LotSize: 1, ValueDeltaEUR: 1000, Priority: 5},
	}
	fees := FeeSettings{FixedFee: 0, PctFee: 0}
	rateToEUR := func(ccy domain.Currency) float64 { return 1.0 }

	result := ApplyCashConstraint(recs, 500, 100, fees, rateToEUR)

	var totalSpent float64
	for _, r := range result {
		if r.Action == domain.Buy {
			totalSpent += r.ValueDeltaEUR
		}
	}
	assert.LessOrEqual(t, totalSpent, 500.5)
	assert.NotEmpty(t, result)
}

func TestApplyCashConstraint_SufficientBudgetLeavesRecommendationsUnchanged(t *testing.T) {
	recs := []*Recommendation{
		{Symbol: "A", Action: domain.Buy, Quantity: 10, Price: 10, Currency: domain.EUR, LotSize: 1, ValueDeltaEUR: 100, Priority: 10},
	}
	fees := FeeSettings{FixedFee: 0, PctFee: 0}
	result := ApplyCashConstraint(recs, 10000, 100, fees, func(domain.Currency) float64 { return 1.0 })
	assert.Equal(t, recs, result)
}

func TestTransactionCost(t *testing.T) {
	assert.InDelta(t, 2.2, TransactionCost(100, 2.0, 0.002), 1e-9)
}

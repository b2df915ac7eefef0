// Package calculations provides the Position Calculator: pure, stateless
// arithmetic over a single position (spec.md §4.2). Every function here is
// side-effect free so it can be reused verbatim by the live Planner, the
// Portfolio Analyzer, and the Backtester.
package calculations

import (
	"context"

	"github.com/aristath/sentinel/internal/domain"
)

// EURConverter is the subset of the Currency Converter these functions need.
type EURConverter interface {
	ToEUR(ctx context.Context, amount float64, ccy domain.Currency) float64
}

// ValueLocal returns quantity * price in the position's own currency.
func ValueLocal(quantity, price float64) float64 {
	return quantity * price
}

// ValueEUR converts a local value to EUR using the supplied rate (EUR per
// unit of the position's currency), so callers that already hold a
// currency.Converter rate don't need to thread a currency code through.
func ValueEUR(quantity, price, rateToEUR float64) float64 {
	return ValueLocal(quantity, price) * rateToEUR
}

// ValueEURViaConverter is the same computation but delegates the rate
// lookup to a live EURConverter, matching the original position calculator's
// calculate_value_eur signature.
func ValueEURViaConverter(ctx context.Context, conv EURConverter, quantity, price float64, ccy domain.Currency) float64 {
	return conv.ToEUR(ctx, ValueLocal(quantity, price), ccy)
}

// AllocationPct returns valueEUR / totalEUR, with the convention that a
// zero (or negative) total yields zero rather than dividing.
func AllocationPct(valueEUR, totalEUR float64) float64 {
	if totalEUR <= 0 {
		return 0
	}
	return valueEUR / totalEUR
}

// PnLAbsolute returns (price - avgCost) * quantity.
func PnLAbsolute(price, avgCost, quantity float64) float64 {
	return (price - avgCost) * quantity
}

// PnLPercent returns (price - avgCost) / avgCost, with the convention that
// a zero avgCost (a position with no recorded cost basis) yields zero.
func PnLPercent(price, avgCost float64) float64 {
	if avgCost == 0 {
		return 0
	}
	return (price - avgCost) / avgCost
}

// PortfolioValues is the two-pass aggregate over every held position: each
// position's EUR value, the portfolio total, and each symbol's allocation.
type PortfolioValues struct {
	TotalEUR    float64
	ValuesEUR   map[string]float64
	Allocations map[string]float64
}

// PortfolioValuesFromPositions runs the two-pass computation the Portfolio
// Analyzer and Rebalance Engine both need: first sum every position's EUR
// value, then divide each by the resulting total.
func PortfolioValuesFromPositions(ctx context.Context, conv EURConverter, positions []domain.Position) PortfolioValues {
	values := make(map[string]float64, len(positions))
	var total float64
	for _, p := range positions {
		v := ValueEURViaConverter(ctx, conv, p.Quantity, p.CurrentPrice, p.Currency)
		values[p.Symbol] = v
		total += v
	}

	allocations := make(map[string]float64, len(positions))
	for symbol, v := range values {
		allocations[symbol] = AllocationPct(v, total)
	}

	return PortfolioValues{TotalEUR: total, ValuesEUR: values, Allocations: allocations}
}

// Package pricevalidator implements the Price Validator of spec.md §4.5
// step 7: a guard over a quote against its own trailing history, catching
// feed glitches (a stale decimal-point error, a bad split adjustment, a
// zeroed print) before they reach the Rebalance Engine, grounded on
// original_source/sentinel/planner/rebalance.py's _check_price_anomaly and
// the deviation-threshold idiom of original_source/sentinel/planner/analyzer.py
// (max_deviation compared against a fixed threshold).
package pricevalidator

import (
	"fmt"
	"sort"

	"github.com/aristath/sentinel/internal/domain"
)

// maxDeviationThreshold is how far a quote may stray from its trailing
// median close before it's treated as an anomaly rather than a real move.
// original_source's check_trade_blocking is not in the retrieved source
// pack (filtered out of the original_source copy), so this threshold is a
// judgment call rather than a port: 50% catches decimal-point and stale-feed
// errors without flagging legitimate single-day moves.
const maxDeviationThreshold = 0.50

// minHistoryPoints is the fewest closes needed before a deviation is
// treated as meaningful; thin history makes the median unreliable.
const minHistoryPoints = 5

// CheckTradeBlocking compares price against the trailing median of
// historicalCloses (already filtered to positive values) and reports
// whether the quote should be treated as an anomaly. Mirrors
// check_trade_blocking's (allow_trade, reason) -> (blocked, reason) shape
// from _check_price_anomaly's call site.
func CheckTradeBlocking(price float64, historicalCloses []float64, symbol string) (blocked bool, reason string) {
	if price <= 0 || len(historicalCloses) < minHistoryPoints {
		return false, ""
	}

	med := median(historicalCloses)
	if med <= 0 {
		return false, ""
	}

	deviation := (price - med) / med
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation <= maxDeviationThreshold {
		return false, ""
	}

	return true, fmt.Sprintf("price anomaly: %s quote %.4f deviates %.0f%% from trailing median %.4f", symbol, price, deviation*100, med)
}

// AnomalyFromBars filters bars to positive closes, ascending by date, and
// runs CheckTradeBlocking against them. Grounded on
// _check_price_anomaly's sort-then-filter-then-check shape; bars is
// expected already sorted ascending by date (store.PriceBarRepository.ListRange's
// contract), so only the positive-close filter is applied here.
func AnomalyFromBars(price float64, bars []domain.PriceBar, symbol string) (blocked bool, reason string) {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close)
		}
	}
	return CheckTradeBlocking(price, closes, symbol)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

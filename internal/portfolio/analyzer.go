// Package portfolio implements the Portfolio Analyzer of spec.md §4.6:
// current-state allocation queries and target-deviation reporting.
package portfolio

// SecurityAllocation is one held security's current EUR value and tags,
// pre-joined by the caller from domain.Security/Position.
type SecurityAllocation struct {
	Symbol       string
	ValueEUR     float64
	CountryTags  []string
	IndustryTags []string
}

// State is a snapshot of portfolio composition the Analyzer computes
// over — either the live current state or a backtest's simulated
// as-of-date snapshot, per spec.md §4.6.
type State struct {
	Positions []SecurityAllocation
	CashEUR   float64
}

// TotalValueEUR sums every position's EUR value plus cash.
func (s State) TotalValueEUR() float64 {
	total := s.CashEUR
	for _, p := range s.Positions {
		total += p.ValueEUR
	}
	return total
}

// AllocationBySymbol returns each symbol's share of total portfolio value.
func (s State) AllocationBySymbol() map[string]float64 {
	total := s.TotalValueEUR()
	result := make(map[string]float64, len(s.Positions))
	if total <= 0 {
		return result
	}
	for _, p := range s.Positions {
		result[p.Symbol] = p.ValueEUR / total
	}
	return result
}

// allocationByTag splits each position's value equally across every tag it
// carries in one dimension, then sums per tag, per spec.md §4.6's
// "multi-tag weights split equally" rule.
func allocationByTag(positions []SecurityAllocation, totalEUR float64, tagsOf func(SecurityAllocation) []string) map[string]float64 {
	result := make(map[string]float64)
	if totalEUR <= 0 {
		return result
	}
	for _, p := range positions {
		tags := tagsOf(p)
		if len(tags) == 0 {
			continue
		}
		share := (p.ValueEUR / totalEUR) / float64(len(tags))
		for _, tag := range tags {
			result[tag] += share
		}
	}
	return result
}

// AllocationByCountry returns each country tag's share of total portfolio
// value, splitting multi-country securities equally across their tags.
func (s State) AllocationByCountry() map[string]float64 {
	return allocationByTag(s.Positions, s.TotalValueEUR(), func(p SecurityAllocation) []string { return p.CountryTags })
}

// AllocationByIndustry returns each industry tag's share of total
// portfolio value, splitting multi-industry securities equally.
func (s State) AllocationByIndustry() map[string]float64 {
	return allocationByTag(s.Positions, s.TotalValueEUR(), func(p SecurityAllocation) []string { return p.IndustryTags })
}

// Deviation is how far one symbol's actual allocation sits from its ideal
// target, current - target (positive means overweight).
type Deviation struct {
	Symbol  string
	Current float64
	Target  float64
	Delta   float64
}

// Deviations compares the current per-symbol allocation against an ideal
// allocation map (typically from internal/allocation.Calculate), covering
// every symbol present in either side.
func (s State) Deviations(ideal map[string]float64) []Deviation {
	current := s.AllocationBySymbol()
	symbols := make(map[string]struct{}, len(current)+len(ideal))
	for symbol := range current {
		symbols[symbol] = struct{}{}
	}
	for symbol := range ideal {
		symbols[symbol] = struct{}{}
	}

	deviations := make([]Deviation, 0, len(symbols))
	for symbol := range symbols {
		c := current[symbol]
		target := ideal[symbol]
		deviations = append(deviations, Deviation{Symbol: symbol, Current: c, Target: target, Delta: c - target})
	}
	return deviations
}

// RebalanceBucket classifies a deviation's severity, per spec.md §4.6.
type RebalanceBucket string

const (
	BucketAligned         RebalanceBucket = "aligned"          // |deviation| < 5%
	BucketMinorDrift       RebalanceBucket = "minor_drift"      // |deviation| < 10%
	BucketNeedsRebalance   RebalanceBucket = "needs_rebalance"  // |deviation| >= 10%
)

// Bucket classifies one deviation's magnitude into an operator-facing
// severity bucket. These thresholds are advisory only — they never gate
// the Rebalance Engine, which acts on raw deviations regardless of bucket.
func Bucket(deviation Deviation) RebalanceBucket {
	abs := deviation.Delta
	if abs < 0 {
		abs = -abs
	}
	// A small tolerance keeps a delta such as 0.50-0.40, which float64
	// yields as 0.0999...98, on the >= side of its threshold.
	const tolerance = 1e-9
	switch {
	case abs+tolerance < 0.05:
		return BucketAligned
	case abs+tolerance < 0.10:
		return BucketMinorDrift
	default:
		return BucketNeedsRebalance
	}
}

// RebalanceSummary buckets every deviation for an operator-facing report.
func RebalanceSummary(deviations []Deviation) map[RebalanceBucket][]Deviation {
	summary := map[RebalanceBucket][]Deviation{
		BucketAligned:       {},
		BucketMinorDrift:    {},
		BucketNeedsRebalance: {},
	}
	for _, d := range deviations {
		bucket := Bucket(d)
		summary[bucket] = append(summary[bucket], d)
	}
	return summary
}

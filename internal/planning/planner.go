// Package planning implements the Planner facade of spec.md §4.7: a thin
// composition of the Allocation Calculator, Portfolio Analyzer, and
// Rebalance Engine into one recommendation-generating call.
package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/allocation"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/portfolio"
	"github.com/aristath/sentinel/internal/rebalance"
	"github.com/rs/zerolog"
)

// RecommendationCache is the subset of store.RecommendationCacheRepository
// the Planner needs for its 5-minute live cache, skipped entirely whenever
// AsOfDate is set.
type RecommendationCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DataSource gathers every input the Planner needs in one call, so the
// facade itself stays free of store/broker wiring details.
type DataSource interface {
	SecurityInputs(ctx context.Context, asOfDate *time.Time) ([]allocation.SecurityInput, error)
	Targets(ctx context.Context) (allocation.Targets, error)
	CurrentState(ctx context.Context, asOfDate *time.Time) (portfolio.State, error)
	RebalanceData(ctx context.Context, asOfDate *time.Time) (RebalanceInputs, error)
}

// RebalanceInputs bundles everything BuildRecommendation/ApplyCashConstraint
// need beyond the ideal/current allocation maps.
type RebalanceInputs struct {
	SecurityData     map[string]rebalance.SecurityData
	ExpectedReturns  map[string]float64
	CashEUR          float64
	Fees             rebalance.FeeSettings
	RateToEUR        map[domain.Currency]float64
	DeficitPositions []rebalance.DeficitPosition
	CashBalances     []rebalance.CashBalance
}

// Planner composes the three calculation stages, grounded on
// internal/modules/planning/planner/planner.go's constructor-injected,
// thin-orchestration-method style.
type Planner struct {
	data         DataSource
	cache        RecommendationCache
	constraints  allocation.Constraints
	log          zerolog.Logger
}

// NewPlanner wires a Planner against its data source and cache.
func NewPlanner(data DataSource, cache RecommendationCache, constraints allocation.Constraints, log zerolog.Logger) *Planner {
	return &Planner{
		data:        data,
		cache:       cache,
		constraints: constraints,
		log:         log.With().Str("component", "planner").Logger(),
	}
}

// Result is the Planner's output: the recommendations plus the current
// deviations/allocations they were derived from, useful for reporting.
type Result struct {
	Recommendations []*rebalance.Recommendation
	Deviations      []portfolio.Deviation
	IdealAllocation map[string]float64
}

// GetRecommendations runs Allocation Calculator -> Portfolio Analyzer ->
// Rebalance Engine and returns the prioritized trade list, per spec.md
// §4.7. When asOfDate is non-nil (backtest replay), every live cache is
// skipped and data is read as-of that date end-to-end.
func (p *Planner) GetRecommendations(ctx context.Context, asOfDate *time.Time, minTradeValueEUR float64) (*Result, error) {
	cacheKey := fmt.Sprintf("planner:recommendations:%.2f", minTradeValueEUR)

	if asOfDate == nil && p.cache != nil {
		if cached, ok, err := p.cache.Get(ctx, cacheKey); err == nil && ok {
			if result, decodeErr := decodeResult(cached); decodeErr == nil {
				return result, nil
			}
		}
	}

	securityInputs, err := p.data.SecurityInputs(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("load security inputs: %w", err)
	}
	targets, err := p.data.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allocation targets: %w", err)
	}
	state, err := p.data.CurrentState(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("load current state: %w", err)
	}
	rebalanceInputs, err := p.data.RebalanceData(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("load rebalance data: %w", err)
	}

	ideal := allocation.Calculate(securityInputs, targets, p.constraints)

	totalValueEUR := state.TotalValueEUR()
	current := state.AllocationBySymbol()
	deviations := state.Deviations(ideal)

	allSymbols := make(map[string]struct{}, len(ideal)+len(current))
	for s := range ideal {
		allSymbols[s] = struct{}{}
	}
	for s := range current {
		allSymbols[s] = struct{}{}
	}

	var recs []*rebalance.Recommendation
	for symbol := range allSymbols {
		data, ok := rebalanceInputs.SecurityData[symbol]
		if !ok {
			continue
		}
		rate := rebalanceInputs.RateToEUR[data.Currency]
		if rate <= 0 {
			rate = 1
		}
		rec, built := rebalance.BuildRecommendation(symbol, ideal, current, totalValueEUR, data, rebalanceInputs.ExpectedReturns[symbol], minTradeValueEUR, rate)
		if built {
			recs = append(recs, rec)
		}
	}
	rebalance.SortRecommendations(recs)

	valueEUR := func(amount float64, ccy domain.Currency) float64 {
		rate := rebalanceInputs.RateToEUR[ccy]
		if rate <= 0 {
			rate = 1
		}
		if ccy == domain.EUR {
			return amount
		}
		return amount * rate
	}
	fromEUR := func(amountEUR float64, ccy domain.Currency) float64 {
		if ccy == domain.EUR {
			return amountEUR
		}
		rate := rebalanceInputs.RateToEUR[ccy]
		if rate <= 0 {
			return amountEUR
		}
		return amountEUR / rate
	}
	deficit := rebalance.UncoveredDeficit(rebalanceInputs.CashBalances, valueEUR)
	deficitSells := rebalance.GenerateDeficitSells(deficit, rebalanceInputs.DeficitPositions, valueEUR, fromEUR)
	recs = rebalance.PrependDeficitSells(recs, deficitSells)

	rateFn := func(ccy domain.Currency) float64 {
		if r := rebalanceInputs.RateToEUR[ccy]; r > 0 {
			return r
		}
		return 1
	}
	recs = rebalance.ApplyCashConstraint(recs, rebalanceInputs.CashEUR, minTradeValueEUR, rebalanceInputs.Fees, rateFn)

	result := &Result{Recommendations: recs, Deviations: deviations, IdealAllocation: ideal}

	if asOfDate == nil && p.cache != nil {
		if encoded, err := encodeResult(result); err == nil {
			if err := p.cache.Set(ctx, cacheKey, encoded, 5*time.Minute); err != nil {
				p.log.Warn().Err(err).Msg("failed to cache recommendations")
			}
		}
	}

	return result, nil
}

package planning

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/allocation"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/portfolio"
	"github.com/aristath/sentinel/internal/rebalance"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataSource struct {
	securities []allocation.SecurityInput
	targets    allocation.Targets
	state      portfolio.State
	rebalance  RebalanceInputs
}

func (f *fakeDataSource) SecurityInputs(ctx context.Context, asOfDate *time.Time) ([]allocation.SecurityInput, error) {
	return f.securities, nil
}
func (f *fakeDataSource) Targets(ctx context.Context) (allocation.Targets, error) { return f.targets, nil }
func (f *fakeDataSource) CurrentState(ctx context.Context, asOfDate *time.Time) (portfolio.State, error) {
	return f.state, nil
}
func (f *fakeDataSource) RebalanceData(ctx context.Context, asOfDate *time.Time) (RebalanceInputs, error) {
	return f.rebalance, nil
}

type memCache struct {
	store map[string][]byte
}

func newMemCache() *memCache { return &memCache{store: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.store[key]
	return v, ok, nil
}
func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.store[key] = value
	return nil
}

func buildFakeDataSource() *fakeDataSource {
	return &fakeDataSource{
		securities: []allocation.SecurityInput{
			{Symbol: "AAPL", BaseScore: 0.8, UserMultiplier: 1.0},
			{Symbol: "MSFT", BaseScore: 0.3, UserMultiplier: 1.0},
		},
		state: portfolio.State{
			CashEUR: 1000,
			Positions: []portfolio.SecurityAllocation{
				{Symbol: "MSFT", ValueEUR: 9000},
			},
		},
		rebalance: RebalanceInputs{
			SecurityData: map[string]rebalance.SecurityData{
				"AAPL": {Price: 100, Currency: domain.EUR, LotSize: 1, AllowBuy: true, AllowSell: true},
				"MSFT": {Price: 100, Currency: domain.EUR, LotSize: 1, CurrentQty: 90, AllowBuy: true, AllowSell: true},
			},
			ExpectedReturns: map[string]float64{"AAPL": 0.2, "MSFT": 0.05},
			CashEUR:         1000,
			Fees:            rebalance.FeeSettings{FixedFee: 1, PctFee: 0.001},
			RateToEUR:       map[domain.Currency]float64{domain.EUR: 1.0},
		},
	}
}

func TestPlanner_GetRecommendations_ProducesRecommendations(t *testing.T) {
	ds := buildFakeDataSource()
	planner := NewPlanner(ds, newMemCache(), allocation.Constraints{MaxPositionPct: 0.5, MinPositionPct: 0.02, CashTargetPct: 0.05}, zerolog.Nop())

	result, err := planner.GetRecommendations(context.Background(), nil, 100)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.NotEmpty(t, result.IdealAllocation)
}

func TestPlanner_GetRecommendations_UsesCacheOnSecondCall(t *testing.T) {
	ds := buildFakeDataSource()
	cache := newMemCache()
	planner := NewPlanner(ds, cache, allocation.Constraints{MaxPositionPct: 0.5, MinPositionPct: 0.02, CashTargetPct: 0.05}, zerolog.Nop())

	first, err := planner.GetRecommendations(context.Background(), nil, 100)
	require.NoError(t, err)

	ds.securities = nil // if cache weren't used, recomputing would now yield no ideal allocation
	second, err := planner.GetRecommendations(context.Background(), nil, 100)
	require.NoError(t, err)

	assert.Equal(t, first.IdealAllocation, second.IdealAllocation)
}

func TestPlanner_GetRecommendations_AsOfDateSkipsCache(t *testing.T) {
	ds := buildFakeDataSource()
	cache := newMemCache()
	planner := NewPlanner(ds, cache, allocation.Constraints{MaxPositionPct: 0.5, MinPositionPct: 0.02, CashTargetPct: 0.05}, zerolog.Nop())

	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := planner.GetRecommendations(context.Background(), &asOf, 100)
	require.NoError(t, err)

	assert.Empty(t, cache.store)
}

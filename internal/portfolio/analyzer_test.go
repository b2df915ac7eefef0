package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleState() State {
	return State{
		CashEUR: 500,
		Positions: []SecurityAllocation{
			{Symbol: "US_TECH", ValueEUR: 4500, CountryTags: []string{"US"}, IndustryTags: []string{"Tech"}},
			{Symbol: "GLOBAL_DIVERSIFIED", ValueEUR: 5000, CountryTags: []string{"US", "EU"}, IndustryTags: []string{"Tech", "Industrial"}},
		},
	}
}

func TestState_TotalValueEUR(t *testing.T) {
	assert.Equal(t, 10000.0, sampleState().TotalValueEUR())
}

func TestState_AllocationBySymbol(t *testing.T) {
	alloc := sampleState().AllocationBySymbol()
	assert.InDelta(t, 0.45, alloc["US_TECH"], 1e-9)
	assert.InDelta(t, 0.50, alloc["GLOBAL_DIVERSIFIED"], 1e-9)
}

func TestState_AllocationByCountry_SplitsMultiTagEqually(t *testing.T) {
	alloc := sampleState().AllocationByCountry()
	// US_TECH: 0.45 all to US. GLOBAL_DIVERSIFIED: 0.50 split 0.25/0.25 US/EU.
	assert.InDelta(t, 0.70, alloc["US"], 1e-9)
	assert.InDelta(t, 0.25, alloc["EU"], 1e-9)
}

func TestState_AllocationByIndustry_SplitsMultiTagEqually(t *testing.T) {
	alloc := sampleState().AllocationByIndustry()
	assert.InDelta(t, 0.70, alloc["Tech"], 1e-9)
	assert.InDelta(t, 0.25, alloc["Industrial"], 1e-9)
}

func TestDeviations_And_Bucket(t *testing.T) {
	state := sampleState()
	ideal := map[string]float64{"US_TECH": 0.46, "GLOBAL_DIVERSIFIED": 0.40}

	deviations := state.Deviations(ideal)
	summary := RebalanceSummary(deviations)

	assert.Len(t, summary[BucketAligned], 1)        // US_TECH: 0.45-0.46 = -0.01 -> aligned
	assert.Len(t, summary[BucketNeedsRebalance], 1)  // GLOBAL_DIVERSIFIED: 0.50-0.40 = 0.10 -> needs_rebalance
}

func TestBucket_Thresholds(t *testing.T) {
	assert.Equal(t, BucketAligned, Bucket(Deviation{Delta: 0.04}))
	assert.Equal(t, BucketMinorDrift, Bucket(Deviation{Delta: -0.09}))
	assert.Equal(t, BucketNeedsRebalance, Bucket(Deviation{Delta: 0.15}))
}

func TestState_EmptyPortfolioYieldsEmptyAllocations(t *testing.T) {
	state := State{}
	assert.Empty(t, state.AllocationBySymbol())
	assert.Empty(t, state.AllocationByCountry())
}

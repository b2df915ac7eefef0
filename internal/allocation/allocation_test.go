package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultConstraints() Constraints {
	return Constraints{
		MaxPositionPct: 0.20,
		MinPositionPct: 0.02,
		CashTargetPct:  0.05,
	}
}

// S1 — three securities A/B/C with descending scores, equal conviction, no
// tag/dividend adjustments: each weight lands in [min,max], A>B>C, and the
// allocated sum leaves exactly cash_target uninvested.
func TestCalculate_S1_ThreeSecuritiesDescendingScores(t *testing.T) {
	inputs := []SecurityInput{
		{Symbol: "A", BaseScore: 0.8, UserMultiplier: 1.0},
		{Symbol: "B", BaseScore: 0.4, UserMultiplier: 1.0},
		{Symbol: "C", BaseScore: 0.2, UserMultiplier: 1.0},
	}

	result := Calculate(inputs, Targets{}, defaultConstraints())

	require := assert.New(t)
	require.Len(result, 3)

	var sum float64
	for _, symbol := range []string{"A", "B", "C"} {
		w, ok := result[symbol]
		require.True(ok, "missing symbol %s", symbol)
		require.GreaterOrEqual(w, 0.02)
		require.LessOrEqual(w, 0.20)
		sum += w
	}

	require.Greater(result["A"], result["B"])
	require.Greater(result["B"], result["C"])
	require.InDelta(0.95, sum, 1e-6)
}

// Property 5: for any set of positive scores, every weight stays within
// [min,max] and the allocated sum never exceeds 1 - cash_target.
func TestIdealPortfolio_WeightsWithinBoundsAndSum(t *testing.T) {
	scores := map[string]float64{
		"A": 1.0, "B": 0.9, "C": 0.1, "D": 0.05, "E": 0.5,
	}
	constraints := defaultConstraints()

	result := IdealPortfolio(scores, constraints)

	var sum float64
	for symbol, w := range result {
		assert.GreaterOrEqualf(t, w, constraints.MinPositionPct, "symbol %s below min", symbol)
		assert.LessOrEqualf(t, w, constraints.MaxPositionPct+1e-9, "symbol %s above max", symbol)
		sum += w
	}
	assert.LessOrEqual(t, sum, 1.0-constraints.CashTargetPct+1e-6)
}

func TestIdealPortfolio_NoPositiveScoresYieldsEmpty(t *testing.T) {
	result := IdealPortfolio(map[string]float64{"A": -0.1, "B": 0}, defaultConstraints())
	assert.Empty(t, result)
}

func TestScoreSecurities_NonPositiveMultiplierExitsPosition(t *testing.T) {
	inputs := []SecurityInput{
		{Symbol: "A", BaseScore: 0.5, UserMultiplier: 0},
	}
	result := ScoreSecurities(inputs, Targets{}, defaultConstraints())
	assert.Empty(t, result)
}

func TestScoreSecurities_DiversificationPenalizesOverweightTag(t *testing.T) {
	constraints := defaultConstraints()
	constraints.DiversificationImpact = 0.5

	targets := Targets{
		CurrentByCountry: map[string]float64{"US": 0.80},
		TargetByCountry:  map[string]float64{"US": 0.20},
	}

	inputs := []SecurityInput{
		{Symbol: "OVERWEIGHT", BaseScore: 0.5, UserMultiplier: 1.0, CountryTags: []string{"US"}},
		{Symbol: "NEUTRAL", BaseScore: 0.5, UserMultiplier: 1.0},
	}

	result := ScoreSecurities(inputs, targets, constraints)
	assert.Less(t, result["OVERWEIGHT"], result["NEUTRAL"])
}

func TestScoreSecurities_DividendBoostFavorsLargerPool(t *testing.T) {
	constraints := defaultConstraints()
	constraints.MaxDividendReinvestBoost = 0.2

	inputs := []SecurityInput{
		{Symbol: "A", BaseScore: 0.5, UserMultiplier: 1.0, DividendPoolEUR: 100},
		{Symbol: "B", BaseScore: 0.5, UserMultiplier: 1.0, DividendPoolEUR: 10},
	}

	result := ScoreSecurities(inputs, Targets{}, constraints)
	assert.Greater(t, result["A"], result["B"])
}

package scoring

import "math"

// Weights are the fixed sell-score weights from spec.md §4.3, normalized to
// sum to 1.0. Unlike allocation/rebalance tunables these are not
// settings-driven: the weights encode a scoring model, not an operator
// preference.
var Weights = map[string]float64{
	"underperformance":   0.35,
	"time_held":          0.18,
	"portfolio_balance":  0.18,
	"instability":        0.14,
	"drawdown":           0.15,
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// targetReturnLow and targetReturnHigh bound the "acceptable" annualized
// return band from spec.md §4.3: within the band the position is
// performing as expected and scores low for sell priority.
const (
	targetReturnLow  = 0.08
	targetReturnHigh = 0.15
)

// UnderperformanceScore scores a position against the 8-15% annual return
// band. Below the band scores high (underperforming, sell candidate); above
// it scores moderate (windfall, trim candidate); inside it scores low.
func UnderperformanceScore(profitPct float64, daysHeld int) float64 {
	annualized := profitPct
	if daysHeld > 0 {
		annualized = profitPct * (365.0 / float64(daysHeld))
	}

	switch {
	case annualized < 0:
		return 0.9
	case annualized < targetReturnLow:
		// Linear ramp from 0.9 (no return) down to 0.3 (approaching the band).
		frac := annualized / targetReturnLow
		return 0.9 - frac*0.6
	case annualized <= targetReturnHigh:
		return 0.1
	default:
		// Windfall: moderate trim signal, rising gently with excess return,
		// capped at 0.65.
		excess := annualized - targetReturnHigh
		return math.Min(0.65, 0.5+excess)
	}
}

// TimeHeldScore is the step function from spec.md §4.3: <90d is unreachable
// here (the hard block already excludes it), 90-365d is low, 1-2y is
// medium, beyond 2y is maximum.
func TimeHeldScore(daysHeld, minHoldDays int) float64 {
	switch {
	case daysHeld < minHoldDays:
		return 0
	case daysHeld < 365:
		return 0.3
	case daysHeld < 730:
		return 0.6
	default:
		return 1.0
	}
}

// TagWeight is one tag's current and target portfolio allocation.
type TagWeight struct {
	Current float64
	Target  float64
}

// averageOverweight splits a security's tags equally and averages each
// tag's (current - target) overweight, per spec.md §4.3. Underweight
// (negative) tags don't suppress the average below zero on their own, but
// the final mean is clamped at the call site.
func averageOverweight(tags []TagWeight) float64 {
	if len(tags) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tags {
		sum += t.Current - t.Target
	}
	return sum / float64(len(tags))
}

// PortfolioBalanceScore averages the country and industry overweight
// signals and adds a concentration bump when the position alone exceeds
// 10% of the portfolio.
func PortfolioBalanceScore(countryTags, industryTags []TagWeight, positionValueEUR, totalPortfolioEUR float64) float64 {
	countryOverweight := math.Max(0, averageOverweight(countryTags))
	industryOverweight := math.Max(0, averageOverweight(industryTags))

	score := (countryOverweight + industryOverweight) / 2

	if totalPortfolioEUR > 0 && positionValueEUR/totalPortfolioEUR > 0.10 {
		score += 0.2
	}

	return clamp01(score)
}

// TechnicalIndicators carries the price-series-derived signals the
// Instability component needs. A missing/unavailable set of indicators
// scores a neutral 0.3 rather than blocking evaluation.
type TechnicalIndicators struct {
	CurrentVolatility    float64
	HistoricalVolatility float64
	DistanceFromMA200    float64 // (price - ma200) / ma200
	Available            bool
}

// InstabilityScore blends a volatility-ratio signal with a moving-average
// distance signal, per spec.md §4.3.
func InstabilityScore(ind TechnicalIndicators) float64 {
	if !ind.Available {
		return 0.3
	}

	volRatio := 1.0
	if ind.HistoricalVolatility > 0 {
		volRatio = ind.CurrentVolatility / ind.HistoricalVolatility
	}
	volScore := clamp01(volRatio - 1.0)

	maScore := clamp01(math.Abs(ind.DistanceFromMA200) / 0.30)

	return clamp01(0.5*volScore + 0.5*maScore)
}

// DrawdownAnalytics is the position-drawdown summary the Drawdown component
// consumes.
type DrawdownAnalytics struct {
	CurrentDrawdown float64 // negative, e.g. -0.18 for an 18% drawdown
	DaysInDrawdown  int
	Available       bool
}

// DrawdownScore applies the severity/duration step function from spec.md
// §4.3, grounded on the teacher's drawdown-based sell heuristic.
func DrawdownScore(dd DrawdownAnalytics) float64 {
	if !dd.Available {
		return 0.3
	}

	switch {
	case dd.CurrentDrawdown < -0.25:
		return 1.0
	case dd.CurrentDrawdown < -0.15:
		switch {
		case dd.DaysInDrawdown > 180:
			return 0.9
		case dd.DaysInDrawdown > 90:
			return 0.7
		default:
			return 0.5
		}
	case dd.CurrentDrawdown < -0.10:
		return 0.3
	default:
		return 0.1
	}
}

// TotalScore combines the five weighted components, clamped to [0,1].
func TotalScore(underperformance, timeHeld, portfolioBalance, instability, drawdown float64) float64 {
	total := underperformance*Weights["underperformance"] +
		timeHeld*Weights["time_held"] +
		portfolioBalance*Weights["portfolio_balance"] +
		instability*Weights["instability"] +
		drawdown*Weights["drawdown"]
	return clamp01(total)
}

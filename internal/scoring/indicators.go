package scoring

import (
	"github.com/markcheno/go-talib"
)

// ComputeTechnicalIndicators derives the Instability component's inputs
// from a symbol's close-price history: a 200-day simple moving average
// for DistanceFromMA200, and 20-day/200-day rolling standard deviations
// for the current/historical volatility ratio. closes must be ordered
// oldest-first; fewer than 200 points means the indicator isn't available
// yet, matching InstabilityScore's Available-gated fallback.
func ComputeTechnicalIndicators(closes []float64) TechnicalIndicators {
	const (
		shortWindow = 20
		longWindow  = 200
	)
	if len(closes) < longWindow {
		return TechnicalIndicators{Available: false}
	}

	ma200 := talib.Sma(closes, longWindow)
	currentPrice := closes[len(closes)-1]
	currentMA200 := ma200[len(ma200)-1]
	if currentMA200 == 0 {
		return TechnicalIndicators{Available: false}
	}

	shortStdDev := talib.StdDev(closes, shortWindow, 1)
	longStdDev := talib.StdDev(closes, longWindow, 1)

	return TechnicalIndicators{
		CurrentVolatility:    shortStdDev[len(shortStdDev)-1],
		HistoricalVolatility: longStdDev[len(longStdDev)-1],
		DistanceFromMA200:    (currentPrice - currentMA200) / currentMA200,
		Available:            true,
	}
}

// ComputeDrawdownAnalytics derives the Drawdown component's inputs from a
// symbol's close-price history: the current retracement from the running
// peak and how many trailing days the price has stayed below that peak.
// closes must be ordered oldest-first.
func ComputeDrawdownAnalytics(closes []float64) DrawdownAnalytics {
	if len(closes) < 2 {
		return DrawdownAnalytics{Available: false}
	}

	peak := closes[0]
	peakIndex := 0
	for i, c := range closes {
		if c > peak {
			peak = c
			peakIndex = i
		}
	}
	if peak <= 0 {
		return DrawdownAnalytics{Available: false}
	}

	current := closes[len(closes)-1]
	return DrawdownAnalytics{
		CurrentDrawdown: (current - peak) / peak,
		DaysInDrawdown:  len(closes) - 1 - peakIndex,
		Available:       true,
	}
}

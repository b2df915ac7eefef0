package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func defaultSettings() Settings {
	return Settings{
		MinHoldDays:      90,
		SellCooldownDays: 180,
		MaxLossThreshold: -0.20,
		MinSellValueEUR:  25,
	}
}

func TestScore_HardBlock_AllowSellFalse(t *testing.T) {
	now := time.Now()
	firstBought := now.AddDate(-2, 0, 0)
	pos := Position{
		Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 130,
		MinLot: 1, AllowSell: false, FirstBoughtAt: &firstBought,
	}
	result := Score(pos, 10000, TechnicalIndicators{}, DrawdownAnalytics{}, defaultSettings(), now)
	assert.False(t, result.Eligible)
	assert.Equal(t, "allow_sell=false", result.BlockReason)
}

// S3 — Sell hard block (loss): avg_cost=100, current=70, held 365 days.
func TestScore_S3_HardBlock_Loss(t *testing.T) {
	now := time.Now()
	firstBought := now.AddDate(-1, 0, -1)
	pos := Position{
		Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 70,
		MinLot: 1, AllowSell: true, FirstBoughtAt: &firstBought,
	}
	result := Score(pos, 10000, TechnicalIndicators{}, DrawdownAnalytics{}, defaultSettings(), now)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.BlockReason, "Loss 30.0%")
	assert.Contains(t, result.BlockReason, "20%")
}

func TestScore_HardBlock_MinHoldDays(t *testing.T) {
	now := time.Now()
	firstBought := now.AddDate(0, 0, -10)
	pos := Position{
		Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 130,
		MinLot: 1, AllowSell: true, FirstBoughtAt: &firstBought,
	}
	result := Score(pos, 10000, TechnicalIndicators{}, DrawdownAnalytics{}, defaultSettings(), now)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.BlockReason, "held only")
}

func TestScore_HardBlock_SellCooldown(t *testing.T) {
	now := time.Now()
	firstBought := now.AddDate(0, 0, -100) // past min hold, inside cooldown
	pos := Position{
		Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 130,
		MinLot: 1, AllowSell: true, FirstBoughtAt: &firstBought,
	}
	result := Score(pos, 10000, TechnicalIndicators{}, DrawdownAnalytics{}, defaultSettings(), now)
	assert.False(t, result.Eligible)
	assert.Contains(t, result.BlockReason, "cooldown")
}

// S4 — Sell eligible: avg_cost=100, current=130, held 365 days, portfolio
// 10,000 EUR, country US at 50%, industry Tech at 30%, drawdown mocked 0.3.
func TestScore_S4_SellEligible(t *testing.T) {
	now := time.Now()
	firstBought := now.AddDate(-1, 0, -1)
	pos := Position{
		Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 130,
		ValueEUR: 1300, MinLot: 1, AllowSell: true, FirstBoughtAt: &firstBought,
		CountryTags:  []TagWeight{{Current: 0.50, Target: 0.20}},
		IndustryTags: []TagWeight{{Current: 0.30, Target: 0.15}},
	}
	drawdown := DrawdownAnalytics{CurrentDrawdown: -0.05, DaysInDrawdown: 0, Available: false} // mocked -> neutral 0.3

	result := Score(pos, 10000, TechnicalIndicators{Available: false}, drawdown, defaultSettings(), now)

	assert.True(t, result.Eligible)
	assert.Greater(t, result.TotalScore, 0.0)
	assert.LessOrEqual(t, result.TotalScore, 1.0)
	assert.GreaterOrEqual(t, result.SuggestedSellPct, MinSellPct)
	assert.LessOrEqual(t, result.SuggestedSellPct, MaxSellPct)
	assert.Equal(t, 0.0, float64(int(result.SuggestedSellQuantity)%int(pos.MinLot)))
	// Property 4: sell_quantity <= position_quantity - min_lot.
	assert.LessOrEqual(t, result.SuggestedSellQuantity, pos.Quantity-pos.MinLot)
}

func TestScore_HardBlock_BelowMinSellValue(t *testing.T) {
	now := time.Now()
	firstBought := now.AddDate(-1, 0, -1)
	pos := Position{
		Symbol: "PENNY", Quantity: 1, AverageCost: 1, CurrentPrice: 1.05,
		ValueEUR: 1.05, MinLot: 1, AllowSell: true, FirstBoughtAt: &firstBought,
	}
	settings := defaultSettings()
	settings.MinSellValueEUR = 25

	result := Score(pos, 10000, TechnicalIndicators{}, DrawdownAnalytics{}, settings, now)
	assert.False(t, result.Eligible)
	assert.Equal(t, "below minimum sell value", result.BlockReason)
}

func TestDetermineSellQuantity_NeverLiquidatesEntirePosition(t *testing.T) {
	qty, pct := DetermineSellQuantity(1.0, 10, 1, 100, 25)
	assert.LessOrEqual(t, qty, 10.0-1)
	assert.Greater(t, pct, 0.0)
}

func TestDrawdownScore_StepFunction(t *testing.T) {
	cases := []struct {
		dd   DrawdownAnalytics
		want float64
	}{
		{DrawdownAnalytics{CurrentDrawdown: -0.30, Available: true}, 1.0},
		{DrawdownAnalytics{CurrentDrawdown: -0.20, DaysInDrawdown: 200, Available: true}, 0.9},
		{DrawdownAnalytics{CurrentDrawdown: -0.20, DaysInDrawdown: 100, Available: true}, 0.7},
		{DrawdownAnalytics{CurrentDrawdown: -0.20, DaysInDrawdown: 10, Available: true}, 0.5},
		{DrawdownAnalytics{CurrentDrawdown: -0.12, Available: true}, 0.3},
		{DrawdownAnalytics{CurrentDrawdown: -0.02, Available: true}, 0.1},
		{DrawdownAnalytics{Available: false}, 0.3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DrawdownScore(c.dd))
	}
}

func TestTimeHeldScore_StepFunction(t *testing.T) {
	assert.Equal(t, 0.3, TimeHeldScore(100, 90))
	assert.Equal(t, 0.6, TimeHeldScore(400, 90))
	assert.Equal(t, 1.0, TimeHeldScore(800, 90))
}

package scoring

import "time"

// Result is the full outcome of scoring one position for sale.
type Result struct {
	Symbol              string
	Eligible            bool
	BlockReason         string
	UnderperformanceScore float64
	TimeHeldScore         float64
	PortfolioBalanceScore float64
	InstabilityScore      float64
	DrawdownScore         float64
	TotalScore            float64
	SuggestedSellPct      float64
	SuggestedSellQuantity float64
	ProfitPct             float64
	DaysHeld              int
}

// Settings bundles the tunables the scorer reads from the settings store,
// so callers build one value once per evaluation pass instead of passing
// five separate numbers.
type Settings struct {
	MinHoldDays      int
	SellCooldownDays int
	MaxLossThreshold float64
	MinSellValueEUR  float64
}

// Position is everything the scorer needs about one held security, sourced
// from domain.Position + domain.Security joined together.
type Position struct {
	Symbol        string
	Quantity      float64
	AverageCost   float64
	CurrentPrice  float64
	ValueEUR      float64 // quantity * price converted to EUR, supplied by the caller
	MinLot        float64
	AllowSell     bool
	FirstBoughtAt *time.Time
	LastSoldAt    *time.Time
	CountryTags   []TagWeight
	IndustryTags  []TagWeight
}

// Score evaluates one position against the 5-component sell model,
// returning an ineligible Result immediately if any hard block trips.
func Score(pos Position, totalPortfolioEUR float64, indicators TechnicalIndicators, drawdown DrawdownAnalytics, settings Settings, now time.Time) Result {
	profitPct := 0.0
	if pos.AverageCost > 0 {
		profitPct = (pos.CurrentPrice - pos.AverageCost) / pos.AverageCost
	}

	lastTxn := LastTransactionAt(pos.FirstBoughtAt, pos.LastSoldAt)
	daysHeld := 0
	if pos.FirstBoughtAt != nil {
		daysHeld = int(now.Sub(*pos.FirstBoughtAt).Hours() / 24)
	}

	eligible, reason := CheckEligibility(EligibilityInput{
		AllowSell:         pos.AllowSell,
		ProfitPct:         profitPct,
		LastTransactionAt: lastTxn,
		Now:               now,
		MaxLossThreshold:  settings.MaxLossThreshold,
		MinHoldDays:       settings.MinHoldDays,
		SellCooldownDays:  settings.SellCooldownDays,
	})
	if !eligible {
		return Result{Symbol: pos.Symbol, Eligible: false, BlockReason: reason, ProfitPct: profitPct, DaysHeld: daysHeld}
	}

	underperformance := UnderperformanceScore(profitPct, daysHeld)
	timeHeld := TimeHeldScore(daysHeld, settings.MinHoldDays)
	portfolioBalance := PortfolioBalanceScore(pos.CountryTags, pos.IndustryTags, pos.ValueEUR, totalPortfolioEUR)
	instability := InstabilityScore(indicators)
	drawdownScore := DrawdownScore(drawdown)

	total := TotalScore(underperformance, timeHeld, portfolioBalance, instability, drawdownScore)

	sellQty, sellPct := DetermineSellQuantity(total, pos.Quantity, pos.MinLot, pos.CurrentPrice, settings.MinSellValueEUR)
	if sellQty <= 0 {
		return Result{
			Symbol:                pos.Symbol,
			Eligible:              false,
			BlockReason:           "below minimum sell value",
			UnderperformanceScore: underperformance,
			TimeHeldScore:         timeHeld,
			PortfolioBalanceScore: portfolioBalance,
			InstabilityScore:      instability,
			DrawdownScore:         drawdownScore,
			TotalScore:            total,
			ProfitPct:             profitPct,
			DaysHeld:              daysHeld,
		}
	}

	return Result{
		Symbol:                pos.Symbol,
		Eligible:              true,
		UnderperformanceScore: underperformance,
		TimeHeldScore:         timeHeld,
		PortfolioBalanceScore: portfolioBalance,
		InstabilityScore:      instability,
		DrawdownScore:         drawdownScore,
		TotalScore:            total,
		SuggestedSellPct:      sellPct,
		SuggestedSellQuantity: sellQty,
		ProfitPct:             profitPct,
		DaysHeld:              daysHeld,
	}
}

// Package rebalance implements the Rebalance Engine of spec.md §4.5: turns
// an ideal allocation and a current allocation into a prioritized list of
// trade recommendations, deficit-covering sells, and a cash-constrained
// buy schedule.
package rebalance

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/sentinel/internal/domain"
)

// balanceBufferEUR is the cushion kept above zero when sizing deficit
// sells, avoiding an oscillating recommendation at the exact boundary.
const balanceBufferEUR = 10.0

// SecurityData is everything the engine needs about one symbol to size a
// recommendation, pre-joined by the caller from domain.Security/Position.
type SecurityData struct {
	Price        float64
	Currency     domain.Currency
	LotSize      float64
	CurrentQty   float64
	AllowBuy     bool
	AllowSell    bool
	TradeBlocked bool
	BlockReason  string

	// BuyCooloffBlocked/SellCooloffBlocked are direction-specific: spec.md
	// §4.5 step 6's cool-off only blocks a trade opposite the most recent
	// one, so a buy after a buy (or a sell after a sell) is unaffected.
	// Grounded on rebalance.py's _check_cooloff_violation, which is called
	// after the proposed action's direction is known.
	BuyCooloffBlocked  bool
	BuyCooloffReason   string
	SellCooloffBlocked bool
	SellCooloffReason  string
}

// Recommendation is one proposed trade, grounded on
// internal/domain.TradeRecommendation.
type Recommendation struct {
	Symbol             string
	Action             domain.TradeSide
	CurrentAllocation  float64
	TargetAllocation   float64
	AllocationDelta    float64
	CurrentValueEUR    float64
	TargetValueEUR     float64
	ValueDeltaEUR       float64
	Quantity           float64
	Price              float64
	Currency           domain.Currency
	LotSize            float64
	ExpectedReturn     float64
	Priority           float64
	Reason             string
}

// roundDownToLot rounds raw down to the nearest whole multiple of lotSize.
func roundDownToLot(raw, lotSize float64) float64 {
	if lotSize <= 0 {
		lotSize = 1
	}
	return math.Floor(raw/lotSize) * lotSize
}

// roundUpToLot rounds raw up to the nearest whole multiple of lotSize, used
// where under-covering a sell is worse than a small overshoot (spec.md
// §4.5's deficit sell).
func roundUpToLot(raw, lotSize float64) float64 {
	if lotSize <= 0 {
		lotSize = 1
	}
	return math.Ceil(raw/lotSize) * lotSize
}

// BuildRecommendation derives one symbol's trade from its allocation delta,
// per spec.md §4.5 steps 1-4. Returns (nil, false) when no trade is
// warranted (delta negligible, blocked, below minimum size, etc).
func BuildRecommendation(symbol string, ideal, current map[string]float64, totalValueEUR float64, data SecurityData, expectedReturn, minTradeValueEUR float64, rateToEUR float64) (*Recommendation, bool) {
	currentAlloc := current[symbol]
	targetAlloc := ideal[symbol]
	delta := targetAlloc - currentAlloc

	if math.Abs(delta) < 0.0001 {
		return nil, false
	}
	if data.Price <= 0 || data.TradeBlocked {
		return nil, false
	}
	if delta > 0 && data.BuyCooloffBlocked {
		return nil, false
	}
	if delta < 0 && data.SellCooloffBlocked {
		return nil, false
	}
	if delta > 0 && !data.AllowBuy {
		return nil, false
	}
	if delta < 0 && !data.AllowSell {
		return nil, false
	}

	rawValueDeltaEUR := delta * totalValueEUR

	rate := rateToEUR
	if rate <= 0 {
		rate = 1
	}
	localValueDelta := rawValueDeltaEUR
	if data.Currency != domain.EUR {
		localValueDelta = rawValueDeltaEUR / rate
	}

	rawQty := math.Abs(localValueDelta) / data.Price
	roundedQty := roundDownToLot(rawQty, data.LotSize)
	if roundedQty < data.LotSize {
		return nil, false
	}

	if delta < 0 {
		roundedQty = math.Min(roundedQty, data.CurrentQty)
		if roundedQty < data.LotSize {
			return nil, false
		}
	}

	localValue := roundedQty * data.Price
	actualValueEUR := localValue
	if data.Currency != domain.EUR {
		actualValueEUR = localValue * rate
	}
	if actualValueEUR < minTradeValueEUR {
		return nil, false
	}

	action := domain.Buy
	var reason string
	if delta > 0 {
		reason = buyReason(symbol, expectedReturn, currentAlloc, targetAlloc)
	} else {
		action = domain.Sell
		reason = sellReason(symbol, expectedReturn, currentAlloc, targetAlloc)
	}

	valueDelta := actualValueEUR
	if delta < 0 {
		valueDelta = -actualValueEUR
	}

	return &Recommendation{
		Symbol:            symbol,
		Action:            action,
		CurrentAllocation: currentAlloc,
		TargetAllocation:  targetAlloc,
		AllocationDelta:   delta,
		CurrentValueEUR:   currentAlloc * totalValueEUR,
		TargetValueEUR:    targetAlloc * totalValueEUR,
		ValueDeltaEUR:     valueDelta,
		Quantity:          roundedQty,
		Price:             data.Price,
		Currency:          data.Currency,
		LotSize:           data.LotSize,
		ExpectedReturn:    expectedReturn,
		Priority:          priority(action, delta, expectedReturn),
		Reason:            reason,
	}, true
}

// priority ranks buys by expected-return-adjusted delta magnitude and sells
// by the inverse, per spec.md §4.5's priority formula.
func priority(action domain.TradeSide, delta, expectedReturn float64) float64 {
	base := math.Abs(delta) * 10
	if action == domain.Buy {
		return base + expectedReturn
	}
	return base - expectedReturn
}

func buyReason(symbol string, expectedReturn, currentAlloc, targetAlloc float64) string {
	underweight := (targetAlloc - currentAlloc) * 100
	switch {
	case currentAlloc == 0:
		return fmt.Sprintf("New position: %s has expected return of %.2f", symbol, expectedReturn)
	case expectedReturn > 0.3:
		return fmt.Sprintf("Underweight by %.1f%%. High expected return (%.2f)", underweight, expectedReturn)
	case expectedReturn > 0:
		return fmt.Sprintf("Underweight by %.1f%%. Positive expected return (%.2f)", underweight, expectedReturn)
	default:
		return fmt.Sprintf("Underweight by %.1f%% despite neutral outlook", underweight)
	}
}

func sellReason(symbol string, expectedReturn, currentAlloc, targetAlloc float64) string {
	overweight := (currentAlloc - targetAlloc) * 100
	if targetAlloc == 0 {
		if expectedReturn < 0 {
			return fmt.Sprintf("Exit position: %s has negative expected return (%.2f)", symbol, expectedReturn)
		}
		return fmt.Sprintf("Exit position: %s not in ideal portfolio", symbol)
	}
	if expectedReturn < 0 {
		return fmt.Sprintf("Overweight by %.1f%%. Negative expected return (%.2f)", overweight, expectedReturn)
	}
	return fmt.Sprintf("Overweight by %.1f%%. Reduce to target allocation", overweight)
}

// SortRecommendations orders sells before buys, then descending priority,
// per spec.md §4.5.
func SortRecommendations(recs []*Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		iSell, jSell := recs[i].Action == domain.Sell, recs[j].Action == domain.Sell
		if iSell != jSell {
			return iSell
		}
		return recs[i].Priority > recs[j].Priority
	})
}

// PrependDeficitSells puts deficit-covering sells at the front of the list,
// dropping any regular sell recommendation the engine already produced for
// the same symbol (the deficit sell supersedes it).
func PrependDeficitSells(recs []*Recommendation, deficitSells []*Recommendation) []*Recommendation {
	if len(deficitSells) == 0 {
		return recs
	}
	deficitSymbols := make(map[string]bool, len(deficitSells))
	for _, d := range deficitSells {
		deficitSymbols[d.Symbol] = true
	}
	filtered := make([]*Recommendation, 0, len(recs))
	for _, r := range recs {
		if deficitSymbols[r.Symbol] && r.Action == domain.Sell {
			continue
		}
		filtered = append(filtered, r)
	}
	return append(append([]*Recommendation{}, deficitSells...), filtered...)
}

package scoring

import "math"

// MinSellPct and MaxSellPct bound the target sell percentage spec.md §4.3
// derives from the total sell score.
const (
	MinSellPct = 0.10
	MaxSellPct = 0.50
)

// RoundDownToLot truncates a raw quantity to the nearest multiple of
// minLot at or below it. A non-positive minLot disables rounding.
func RoundDownToLot(raw, minLot float64) float64 {
	if minLot <= 0 {
		return raw
	}
	return math.Floor(raw/minLot) * minLot
}

// DetermineSellQuantity implements spec.md §4.3's quantity determination:
// target percentage scales linearly with the total score between
// MinSellPct and MaxSellPct, the raw quantity is rounded down to a lot,
// capped so at least one lot remains, and finally checked against
// minSellValueEUR (which can zero the quantity back out).
func DetermineSellQuantity(totalScore, quantity, minLot, currentPrice, minSellValueEUR float64) (sellQuantity, sellPct float64) {
	targetPct := MinSellPct + totalScore*(MaxSellPct-MinSellPct)
	targetPct = math.Min(MaxSellPct, math.Max(MinSellPct, targetPct))

	raw := quantity * targetPct
	sellQuantity = RoundDownToLot(raw, minLot)

	maxSell := quantity - minLot
	if sellQuantity >= maxSell {
		sellQuantity = RoundDownToLot(maxSell, minLot)
	}

	if sellQuantity < minLot {
		return 0, 0
	}

	sellValue := sellQuantity * currentPrice
	if sellValue < minSellValueEUR {
		return 0, 0
	}

	if quantity > 0 {
		sellPct = sellQuantity / quantity
	}
	return sellQuantity, sellPct
}

package rebalance

import (
	"sort"

	"github.com/aristath/sentinel/internal/domain"
)

// TransactionCost returns the fixed-plus-percentage broker fee on a trade
// value, per spec.md §4.5 / §6 settings.
func TransactionCost(value, fixedFee, pctFee float64) float64 {
	return fixedFee + value*pctFee
}

// FeeSettings bundles the transaction-cost tunables.
type FeeSettings struct {
	FixedFee float64
	PctFee   float64 // fraction, e.g. 0.002 for 0.2%
}

// ApplyCashConstraint scales down buy recommendations to fit the cash
// available after selling, per spec.md §4.5 steps 5-8: compute the budget
// from current cash plus net sell proceeds, include the highest-priority
// buys whose minimum viable lot fits, distribute the remainder
// proportionally to unmet demand, then top up lot-by-lot with any
// leftover budget (capped at 1000 iterations to guarantee termination).
func ApplyCashConstraint(recs []*Recommendation, currentCashEUR, minTradeValueEUR float64, fees FeeSettings, rateToEUR func(ccy domain.Currency) float64) []*Recommendation {
	var sells, buys []*Recommendation
	for _, r := range recs {
		if r.Action == domain.Sell {
			sells = append(sells, r)
		} else {
			buys = append(buys, r)
		}
	}
	if len(buys) == 0 {
		return recs
	}

	var netSellProceeds float64
	for _, s := range sells {
		value := -s.ValueDeltaEUR
		netSellProceeds += value - TransactionCost(value, fees.FixedFee, fees.PctFee)
	}
	availableBudget := currentCashEUR + netSellProceeds

	var totalBuyCost float64
	for _, b := range buys {
		totalBuyCost += b.ValueDeltaEUR + TransactionCost(b.ValueDeltaEUR, fees.FixedFee, fees.PctFee)
	}
	if totalBuyCost <= availableBudget {
		return recs
	}

	sort.SliceStable(buys, func(i, j int) bool { return buys[i].Priority > buys[j].Priority })

	type minViable struct {
		buy      *Recommendation
		minQty   float64
		minEUR   float64
		minCost  float64
		idealEUR float64
		idealCost float64
	}

	remainingBudget := availableBudget
	var minimums []minViable
	for _, buy := range buys {
		rate := 1.0
		if rateToEUR != nil {
			rate = rateToEUR(buy.Currency)
		}
		oneLotLocal := buy.LotSize * buy.Price
		oneLotEUR := oneLotLocal
		if buy.Currency != domain.EUR {
			oneLotEUR = oneLotLocal * rate
		}

		var minQty, minEUR float64
		switch {
		case oneLotEUR >= minTradeValueEUR:
			minQty, minEUR = buy.LotSize, oneLotEUR
		case oneLotEUR <= 0:
			continue
		default:
			lotsNeeded := int(minTradeValueEUR/oneLotEUR) + 1
			minQty = float64(lotsNeeded) * buy.LotSize
			minEUR = float64(lotsNeeded) * oneLotEUR
		}

		if minQty > buy.Quantity {
			minQty = buy.Quantity
			minLocal := minQty * buy.Price
			minEUR = minLocal
			if buy.Currency != domain.EUR {
				minEUR = minLocal * rate
			}
		}

		minCost := minEUR + TransactionCost(minEUR, fees.FixedFee, fees.PctFee)
		idealCost := buy.ValueDeltaEUR + TransactionCost(buy.ValueDeltaEUR, fees.FixedFee, fees.PctFee)

		minimums = append(minimums, minViable{buy, minQty, minEUR, minCost, buy.ValueDeltaEUR, idealCost})
	}

	var included []minViable
	for _, m := range minimums {
		if m.minCost <= remainingBudget {
			included = append(included, m)
			remainingBudget -= m.minCost
		}
	}
	if len(included) == 0 {
		return sells
	}

	var totalExtraNeeded float64
	for _, m := range included {
		if extra := m.idealCost - m.minCost; extra > 0 {
			totalExtraNeeded += extra
		}
	}

	var finalBuys []*Recommendation
	for _, m := range included {
		rate := 1.0
		if rateToEUR != nil {
			rate = rateToEUR(m.buy.Currency)
		}
		allocatedEUR := m.minEUR

		if totalExtraNeeded > 0 && remainingBudget > 0 {
			extraNeeded := m.idealCost - m.minCost
			if extraNeeded < 0 {
				extraNeeded = 0
			}
			proportion := extraNeeded / totalExtraNeeded
			extraBudget := proportion * remainingBudget
			extraTradeValue := extraBudget / (1 + fees.PctFee)
			allocatedEUR += extraTradeValue
		}

		localValue := allocatedEUR
		if m.buy.Currency != domain.EUR && rate > 0 {
			localValue = allocatedEUR / rate
		}
		rawQty := localValue / m.buy.Price
		roundedQty := roundDownToLot(rawQty, m.buy.LotSize)
		if roundedQty < m.buy.LotSize {
			continue
		}

		actualLocal := roundedQty * m.buy.Price
		actualEUR := actualLocal
		if m.buy.Currency != domain.EUR {
			actualEUR = actualLocal * rate
		}
		if actualEUR < minTradeValueEUR {
			continue
		}

		scaled := *m.buy
		scaled.Quantity = roundedQty
		scaled.ValueDeltaEUR = actualEUR
		finalBuys = append(finalBuys, &scaled)
	}

	sort.SliceStable(finalBuys, func(i, j int) bool { return finalBuys[i].Priority > finalBuys[j].Priority })

	var totalFinalCost float64
	for _, b := range finalBuys {
		totalFinalCost += b.ValueDeltaEUR + TransactionCost(b.ValueDeltaEUR, fees.FixedFee, fees.PctFee)
	}
	leftover := availableBudget - totalFinalCost

	iterations := 0
	for leftover > 0 && iterations < 1000 {
		iterations++
		addedAny := false
		for i, buy := range finalBuys {
			rate := 1.0
			if rateToEUR != nil {
				rate = rateToEUR(buy.Currency)
			}
			oneLotLocal := buy.LotSize * buy.Price
			oneLotEUR := oneLotLocal
			if buy.Currency != domain.EUR {
				oneLotEUR = oneLotLocal * rate
			}
			oneLotCost := oneLotEUR + TransactionCost(oneLotEUR, fees.FixedFee, fees.PctFee)

			if oneLotCost <= leftover {
				newQty := buy.Quantity + buy.LotSize
				newLocal := newQty * buy.Price
				newEUR := newLocal
				if buy.Currency != domain.EUR {
					newEUR = newLocal * rate
				}
				updated := *buy
				updated.Quantity = newQty
				updated.ValueDeltaEUR = newEUR
				finalBuys[i] = &updated

				leftover -= oneLotCost
				addedAny = true
			}
		}
		if !addedAny {
			break
		}
	}

	return append(sells, finalBuys...)
}

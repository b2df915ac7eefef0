package rebalance

import (
	"fmt"
	"sort"

	"github.com/aristath/sentinel/internal/domain"
)

// CashBalance is one currency's cash position, as returned by
// store.CashBalanceRepository.GetAll.
type CashBalance struct {
	Currency domain.Currency
	Amount   float64
}

// DeficitPosition is one held position's data for deficit-sell candidate
// selection, pre-joined by the caller.
type DeficitPosition struct {
	Symbol    string
	Quantity  float64
	Price     float64
	Currency  domain.Currency
	LotSize   float64
	Score     float64
	AllowSell bool
}

// UncoveredDeficit computes the EUR amount of negative cash balances that
// positive balances can't absorb, per spec.md §4.5's deficit-sell trigger.
// valueEUR converts one currency's signed amount to EUR.
func UncoveredDeficit(balances []CashBalance, valueEUR func(amount float64, ccy domain.Currency) float64) float64 {
	var totalDeficit, totalPositive float64
	for _, b := range balances {
		if b.Amount < 0 {
			totalDeficit += -valueEUR(b.Amount, b.Currency) + balanceBufferEUR
		} else if b.Amount > 0 {
			totalPositive += valueEUR(b.Amount, b.Currency)
		}
	}
	uncovered := totalDeficit - totalPositive
	if uncovered <= 0 {
		return 0
	}
	return uncovered
}

// GenerateDeficitSells greedily sells the lowest-score, lowest-value
// positions first until the deficit is covered, per spec.md §4.5 and
// rebalance.py's _generate_deficit_sells. Priority 1000 marks these as
// must-execute, ahead of every ordinary recommendation. valueEUR converts a
// local-currency amount to EUR; fromEUR is its inverse, used to size the
// partial sell that still needs to cover the remaining deficit.
func GenerateDeficitSells(deficitEUR float64, positions []DeficitPosition, valueEUR func(amount float64, ccy domain.Currency) float64, fromEUR func(amountEUR float64, ccy domain.Currency) float64) []*Recommendation {
	if deficitEUR <= 0 || len(positions) == 0 {
		return nil
	}

	candidates := make([]DeficitPosition, 0, len(positions))
	for _, p := range positions {
		if p.Quantity > 0 && p.Price > 0 && p.AllowSell {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		return valueEUR(candidates[i].Quantity*candidates[i].Price, candidates[i].Currency) <
			valueEUR(candidates[j].Quantity*candidates[j].Price, candidates[j].Currency)
	})

	remaining := deficitEUR
	var sells []*Recommendation
	for _, p := range candidates {
		if remaining <= 0 {
			break
		}
		lotSize := p.LotSize
		if lotSize <= 0 {
			lotSize = 1
		}

		positionEURValue := valueEUR(p.Quantity*p.Price, p.Currency)

		var qty float64
		if positionEURValue <= remaining {
			// Selling everything still won't cover the deficit: take the
			// whole position, rounded down to a whole number of lots.
			qty = roundDownToLot(p.Quantity, lotSize)
		} else {
			localNeeded := fromEUR(remaining, p.Currency)
			sharesNeeded := localNeeded / p.Price
			qty = roundUpToLot(sharesNeeded, lotSize)
			qty = minFloat(qty, p.Quantity)
		}

		if qty < lotSize {
			continue
		}

		localValue := qty * p.Price
		eurValue := valueEUR(localValue, p.Currency)

		sells = append(sells, &Recommendation{
			Symbol:        p.Symbol,
			Action:        domain.Sell,
			ValueDeltaEUR: -eurValue,
			Quantity:      qty,
			Price:         p.Price,
			Currency:      p.Currency,
			LotSize:       lotSize,
			Priority:      1000,
			Reason:        fmt.Sprintf("Sell to cover negative balance deficit (%.0f EUR remaining)", remaining),
		})
		remaining -= eurValue
	}
	return sells
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

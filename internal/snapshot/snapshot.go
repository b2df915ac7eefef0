// Package snapshot implements the Snapshot Service of spec.md §4.9:
// reconstructing daily portfolio snapshots from immutable trade, price,
// and FX history so the equity curve survives later data corrections.
package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

// Trade is the subset of domain.Trade the reconstruction walks.
type Trade struct {
	Symbol      string
	Side        domain.TradeSide
	Quantity    float64
	Price       float64
	Commission  float64
	Currency    domain.Currency
	ExecutedAt  time.Time
}

// IsDerivative reports whether a symbol should be excluded from
// reconstruction: FX pairs (contain "/"), options (leading "+"), and other
// derivatives, per spec.md §4.9.
func IsDerivative(symbol string) bool {
	return strings.Contains(symbol, "/") || strings.HasPrefix(symbol, "+")
}

// PriceLookup resolves a symbol's close price on or before a date, in the
// symbol's local currency, plus the date the price actually came from.
type PriceLookup func(symbol string, onOrBefore time.Time) (price float64, asOf time.Time, ok bool)

// RateLookup resolves a currency's EUR rate on or before a date.
type RateLookup func(ccy domain.Currency, onOrBefore time.Time) float64

// positionState tracks one symbol's running quantity and EUR cost basis
// as trades are walked chronologically.
type positionState struct {
	symbol   string
	currency domain.Currency
	quantity float64
	costEUR  float64
}

// Reconstructor rebuilds one day's snapshot at a time by walking trades
// chronologically, maintaining running position/cost-basis state between
// calls so a full history only needs to be walked once.
type Reconstructor struct {
	positions map[string]*positionState
	trades    []Trade
	nextTrade int
	rateOf    RateLookup
}

// NewReconstructor prepares a Reconstructor over trades sorted
// chronologically and ready to walk day by day via Day.
func NewReconstructor(trades []Trade, rateOf RateLookup) *Reconstructor {
	filtered := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if !IsDerivative(t.Symbol) {
			filtered = append(filtered, t)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].ExecutedAt.Before(filtered[j].ExecutedAt) })

	return &Reconstructor{
		positions: make(map[string]*positionState),
		trades:    filtered,
		rateOf:    rateOf,
	}
}

// applyTradesThrough walks every unconsumed trade with ExecutedAt <= day,
// updating running quantity and cost basis, per spec.md §4.9 step 1.
// Trade value converts to EUR using the FX rate of the TRADE date, never
// the snapshot date D.
func (r *Reconstructor) applyTradesThrough(day time.Time) {
	for r.nextTrade < len(r.trades) {
		t := r.trades[r.nextTrade]
		if t.ExecutedAt.After(day) {
			break
		}
		r.nextTrade++

		state, ok := r.positions[t.Symbol]
		if !ok {
			state = &positionState{symbol: t.Symbol, currency: t.Currency}
			r.positions[t.Symbol] = state
		}

		rate := r.rateOf(t.Currency, t.ExecutedAt)
		if rate <= 0 {
			rate = 1
		}
		tradeValueEUR := t.Quantity*t.Price*rate + t.Commission*rate

		switch t.Side {
		case domain.Buy:
			state.quantity += t.Quantity
			state.costEUR += tradeValueEUR
		case domain.Sell:
			if state.quantity > 0 {
				avgCostPerUnit := state.costEUR / state.quantity
				soldCost := t.Quantity * avgCostPerUnit
				state.costEUR -= soldCost
				if state.costEUR < 0 {
					state.costEUR = 0
				}
			}
			state.quantity -= t.Quantity
			if state.quantity < 0 {
				state.quantity = 0
			}
		}
	}
}

// Day result: one reconstructed day's snapshot values.
type Day struct {
	Date               time.Time
	PositionsValueEUR  float64
	NetDepositsEUR     float64
	UnrealizedPnLEUR   float64
	Positions          map[string]domain.SnapshotPosition
}

// Reconstruct walks every trade through day D (inclusive) and prices every
// still-open position as of D, per spec.md §4.9 steps 1-3. Call with
// strictly increasing days for correct incremental cost-basis tracking.
func (r *Reconstructor) Reconstruct(day time.Time, priceOf PriceLookup) Day {
	r.applyTradesThrough(day)

	var positionsValueEUR, netDepositsEUR float64
	positions := make(map[string]domain.SnapshotPosition)

	symbols := make([]string, 0, len(r.positions))
	for symbol := range r.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		state := r.positions[symbol]
		if state.quantity <= 0 {
			continue
		}

		price, _, ok := priceOf(symbol, day)
		if !ok {
			continue
		}
		rate := r.rateOf(state.currency, day)
		if rate <= 0 {
			rate = 1
		}
		valueEUR := state.quantity * price * rate

		positionsValueEUR += valueEUR
		netDepositsEUR += state.costEUR
		positions[symbol] = domain.SnapshotPosition{Quantity: state.quantity, ValueEUR: valueEUR}
	}

	return Day{
		Date:              day,
		PositionsValueEUR: positionsValueEUR,
		NetDepositsEUR:    netDepositsEUR,
		UnrealizedPnLEUR:  positionsValueEUR - netDepositsEUR,
		Positions:         positions,
	}
}

// ToPortfolioSnapshot converts a reconstructed Day into the persisted
// domain.PortfolioSnapshot shape, adding the day's cash balance.
func (d Day) ToPortfolioSnapshot(cashEUR float64) domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{Date: d.Date, Positions: d.Positions, CashEUR: cashEUR}
}

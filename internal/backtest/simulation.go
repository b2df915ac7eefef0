package backtest

import (
	"context"
	"time"

	"github.com/aristath/sentinel/internal/allocation"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/planning"
	"github.com/aristath/sentinel/internal/portfolio"
	"github.com/aristath/sentinel/internal/rebalance"
)

// simPosition tracks one symbol's running quantity and local-currency
// average cost as simulated trades execute, mirroring backtester.py's
// per-symbol rows in the simulation database's positions table.
type simPosition struct {
	quantity    float64
	avgCostLocal float64
}

// trackingEntry is the per-symbol bookkeeping backtester.py keeps in its
// security_tracking dict: invested/sold totals for performance reporting
// plus the last trade for cool-off checks.
type trackingEntry struct {
	Name          string
	TotalInvested float64
	TotalSold     float64
	NumBuys       int
	NumSells      int
	LastAction    domain.TradeSide
	LastDate      time.Time
	HasTrade      bool
}

// simulation is the in-memory stand-in for backtester.py's
// SimulationDatabase + BacktestBroker: a static security catalog plus
// mutable cash/position/tracking state that advances one simulated day at
// a time. It implements planning.DataSource so the Backtester can drive
// the ACTUAL Planner against it, per backtester.py's design note that the
// real database is never modified by a run.
type simulation struct {
	catalog map[string]CatalogEntry
	prices  PriceSource
	fx      FXSource
	targets allocation.Targets

	currentDate time.Time
	cashEUR     float64
	positions   map[string]*simPosition
	tracking    map[string]*trackingEntry
	trades      []SimulatedTrade
}

func newSimulation(catalog []CatalogEntry, prices PriceSource, fx FXSource, targets allocation.Targets, initialCashEUR float64) *simulation {
	catalogBySymbol := make(map[string]CatalogEntry, len(catalog))
	for _, c := range catalog {
		catalogBySymbol[c.Symbol] = c
	}
	return &simulation{
		catalog:   catalogBySymbol,
		prices:    prices,
		fx:        fx,
		targets:   targets,
		cashEUR:   initialCashEUR,
		positions: make(map[string]*simPosition),
		tracking:  make(map[string]*trackingEntry),
	}
}

func (s *simulation) setDate(d time.Time) { s.currentDate = d }

func (s *simulation) priceOf(ctx context.Context, symbol string) (float64, bool) {
	return s.prices.Price(ctx, symbol, s.currentDate)
}

func (s *simulation) rateOf(ctx context.Context, ccy domain.Currency) float64 {
	if ccy == domain.EUR {
		return 1
	}
	rate := s.fx.RateToEUR(ctx, ccy, s.currentDate)
	if rate <= 0 {
		return 1
	}
	return rate
}

// SecurityInputs implements planning.DataSource. Dividend reinvestment is
// not modeled in a backtest (backtester.py never populates a dividend
// pool either), so DividendPoolEUR is always zero.
func (s *simulation) SecurityInputs(ctx context.Context, _ *time.Time) ([]allocation.SecurityInput, error) {
	inputs := make([]allocation.SecurityInput, 0, len(s.catalog))
	for _, c := range s.catalog {
		inputs = append(inputs, allocation.SecurityInput{
			Symbol:         c.Symbol,
			BaseScore:      c.BaseScore,
			UserMultiplier: 1.0,
			CountryTags:    c.CountryTags,
			IndustryTags:   c.IndustryTags,
		})
	}
	return inputs, nil
}

// Targets implements planning.DataSource, recomputing the current side of
// the allocation targets from today's simulated holdings each call while
// keeping the target side static (copied once from the real settings at
// build time, per backtester.py's _copy_settings).
func (s *simulation) Targets(ctx context.Context) (allocation.Targets, error) {
	state, err := s.buildState(ctx)
	if err != nil {
		return allocation.Targets{}, err
	}
	return allocation.Targets{
		CurrentByCountry:  state.AllocationByCountry(),
		TargetByCountry:   s.targets.TargetByCountry,
		CurrentByIndustry: state.AllocationByIndustry(),
		TargetByIndustry:  s.targets.TargetByIndustry,
	}, nil
}

func (s *simulation) buildState(ctx context.Context) (portfolio.State, error) {
	state := portfolio.State{CashEUR: s.cashEUR}
	for symbol, pos := range s.positions {
		if pos.quantity <= 0 {
			continue
		}
		c, ok := s.catalog[symbol]
		if !ok {
			continue
		}
		price, ok := s.priceOf(ctx, symbol)
		if !ok {
			continue
		}
		valueEUR := pos.quantity * price * s.rateOf(ctx, c.Currency)
		state.Positions = append(state.Positions, portfolio.SecurityAllocation{
			Symbol:       symbol,
			ValueEUR:     valueEUR,
			CountryTags:  c.CountryTags,
			IndustryTags: c.IndustryTags,
		})
	}
	return state, nil
}

// CurrentState implements planning.DataSource.
func (s *simulation) CurrentState(ctx context.Context, _ *time.Time) (portfolio.State, error) {
	return s.buildState(ctx)
}

// RebalanceData implements planning.DataSource. ExpectedReturn is sourced
// from each catalog entry's static ExpectedReturn since a backtest has no live Sell Scorer
// to call; CashBalances only ever carries EUR because deposits and trade
// settlement are modeled in EUR only, matching backtester.py's
// set_cash_balance("EUR", ...) calls.
func (s *simulation) RebalanceData(ctx context.Context, _ *time.Time) (planning.RebalanceInputs, error) {
	securityData := make(map[string]rebalance.SecurityData, len(s.catalog))
	expectedReturns := make(map[string]float64, len(s.catalog))
	rateToEUR := make(map[domain.Currency]float64)

	for symbol, c := range s.catalog {
		price, ok := s.priceOf(ctx, symbol)
		qty := 0.0
		if pos, exists := s.positions[symbol]; exists {
			qty = pos.quantity
		}
		securityData[symbol] = rebalance.SecurityData{
			Price:        price,
			Currency:     c.Currency,
			LotSize:      c.LotSize,
			CurrentQty:   qty,
			AllowBuy:     c.AllowBuy,
			AllowSell:    c.AllowSell,
			TradeBlocked: !ok,
			BlockReason:  blockReasonIfMissingPrice(ok),
		}
		expectedReturns[symbol] = c.ExpectedReturn
		if _, seen := rateToEUR[c.Currency]; !seen {
			rateToEUR[c.Currency] = s.rateOf(ctx, c.Currency)
		}
	}

	return planning.RebalanceInputs{
		SecurityData:    securityData,
		ExpectedReturns: expectedReturns,
		CashEUR:         s.cashEUR,
		Fees:            rebalance.FeeSettings{},
		RateToEUR:       rateToEUR,
		CashBalances:    []rebalance.CashBalance{{Currency: domain.EUR, Amount: s.cashEUR}},
	}, nil
}

func blockReasonIfMissingPrice(hasPrice bool) string {
	if hasPrice {
		return ""
	}
	return "no historical price as of simulation date"
}

// isInCooloff reports whether action would oppose the symbol's most recent
// trade within cooloffDays, per backtester.py's Backtester._is_in_cooloff.
func (s *simulation) isInCooloff(symbol string, action domain.TradeSide, cooloffDays int) bool {
	t, ok := s.tracking[symbol]
	if !ok || !t.HasTrade {
		return false
	}
	daysSince := int(s.currentDate.Sub(t.LastDate).Hours() / 24)
	if daysSince >= cooloffDays {
		return false
	}
	if action == domain.Buy && t.LastAction == domain.Sell {
		return true
	}
	if action == domain.Sell && t.LastAction == domain.Buy {
		return true
	}
	return false
}

// executeTrade applies one recommendation to the simulated cash/position
// state, mirroring backtester.py's Backtester._execute_trade.
func (s *simulation) executeTrade(ctx context.Context, rec *rebalance.Recommendation) *SimulatedTrade {
	if rec.Quantity <= 0 {
		return nil
	}
	c, ok := s.catalog[rec.Symbol]
	if !ok {
		return nil
	}

	t, ok := s.tracking[rec.Symbol]
	if !ok {
		t = &trackingEntry{Name: c.Name}
		s.tracking[rec.Symbol] = t
	}

	costLocal := rec.Quantity * rec.Price
	costEUR := costLocal * s.rateOf(ctx, c.Currency)

	switch rec.Action {
	case domain.Buy:
		if s.cashEUR < costEUR {
			return nil
		}
		s.cashEUR -= costEUR

		pos, exists := s.positions[rec.Symbol]
		if exists && pos.quantity > 0 {
			newQty := pos.quantity + rec.Quantity
			pos.avgCostLocal = ((pos.quantity * pos.avgCostLocal) + (rec.Quantity * rec.Price)) / newQty
			pos.quantity = newQty
		} else {
			s.positions[rec.Symbol] = &simPosition{quantity: rec.Quantity, avgCostLocal: rec.Price}
		}

		t.TotalInvested += costEUR
		t.NumBuys++

	case domain.Sell:
		pos, exists := s.positions[rec.Symbol]
		if !exists || pos.quantity < rec.Quantity {
			return nil
		}
		pos.quantity -= rec.Quantity
		s.cashEUR += costEUR

		t.TotalSold += costEUR
		t.NumSells++
	}

	t.LastAction = rec.Action
	t.LastDate = s.currentDate
	t.HasTrade = true

	trade := SimulatedTrade{
		Date:     s.currentDate,
		Symbol:   rec.Symbol,
		Action:   string(rec.Action),
		Quantity: rec.Quantity,
		Price:    rec.Price,
		ValueEUR: costEUR,
	}
	s.trades = append(s.trades, trade)
	return &trade
}

// depositCash implements backtester.py's monthly-deposit branch.
func (s *simulation) depositCash(amount float64) {
	s.cashEUR += amount
}

// snapshot values every open position as of the current simulated date,
// mirroring backtester.py's Backtester._create_snapshot.
func (s *simulation) snapshot(ctx context.Context) Snapshot {
	positions := make(map[string]SnapshotPosition)
	var positionsValueEUR float64

	for symbol, pos := range s.positions {
		if pos.quantity <= 0 {
			continue
		}
		c, ok := s.catalog[symbol]
		if !ok {
			continue
		}
		price, ok := s.priceOf(ctx, symbol)
		if !ok {
			continue
		}
		valueEUR := pos.quantity * price * s.rateOf(ctx, c.Currency)
		positionsValueEUR += valueEUR
		positions[symbol] = SnapshotPosition{Quantity: pos.quantity, Price: price, ValueEUR: valueEUR}
	}

	return Snapshot{
		Date:              s.currentDate,
		TotalValueEUR:     s.cashEUR + positionsValueEUR,
		CashEUR:           s.cashEUR,
		PositionsValueEUR: positionsValueEUR,
		Positions:         positions,
	}
}

// portfolioValueEUR is a cheap total-value read without building full
// position detail, used for cancellation progress updates.
func (s *simulation) portfolioValueEUR(ctx context.Context) float64 {
	state, err := s.buildState(ctx)
	if err != nil {
		return s.cashEUR
	}
	return state.TotalValueEUR()
}

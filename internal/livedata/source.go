// Package livedata implements planning.DataSource against the live store
// databases, the currency converter, and settings — the real-time
// counterpart to internal/backtest/simulation.go's simulation-backed
// implementation of the same interface. cmd/server wires one Source per
// process; internal/backtest builds its own for replay instead of using
// this package, since a backtest must never read or write the live
// databases (original_source/sentinel/backtester.py's design note).
package livedata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/allocation"
	"github.com/aristath/sentinel/internal/currency"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/planning"
	"github.com/aristath/sentinel/internal/portfolio"
	"github.com/aristath/sentinel/internal/pricevalidator"
	"github.com/aristath/sentinel/internal/rebalance"
	"github.com/aristath/sentinel/internal/settings"
	"github.com/aristath/sentinel/internal/store"
)

// trailingReturnWindow mirrors internal/backtestdata's trailing one-year
// momentum estimate, the same ExpectedReturn proxy used for a live run's
// Rebalance Engine input since spec.md doesn't prescribe a forecaster.
const trailingReturnWindow = 365 * 24 * time.Hour

// Source wires the six store databases' repositories, the currency
// converter, and settings into one planning.DataSource.
type Source struct {
	securities   *store.SecurityRepository
	scores       *store.ScoreRepository
	allocTargets *store.AllocationTargetRepository
	positions    *store.PositionRepository
	cashBalances *store.CashBalanceRepository
	priceBars    *store.PriceBarRepository
	trades       *store.TradeRepository
	settings     *settings.Repository
	converter    *currency.Converter
	log          zerolog.Logger
}

// NewSource wires a live planning.DataSource.
func NewSource(
	securities *store.SecurityRepository,
	scores *store.ScoreRepository,
	allocTargets *store.AllocationTargetRepository,
	positions *store.PositionRepository,
	cashBalances *store.CashBalanceRepository,
	priceBars *store.PriceBarRepository,
	trades *store.TradeRepository,
	settingsRepo *settings.Repository,
	converter *currency.Converter,
	log zerolog.Logger,
) *Source {
	return &Source{
		securities:   securities,
		scores:       scores,
		allocTargets: allocTargets,
		positions:    positions,
		cashBalances: cashBalances,
		priceBars:    priceBars,
		trades:       trades,
		settings:     settingsRepo,
		converter:    converter,
		log:          log.With().Str("component", "live_data_source").Logger(),
	}
}

// SecurityInputs implements planning.DataSource. asOfDate must be nil: live
// data is always read as of now, unlike internal/backtest's replay source.
func (s *Source) SecurityInputs(ctx context.Context, asOfDate *time.Time) ([]allocation.SecurityInput, error) {
	if asOfDate != nil {
		return nil, fmt.Errorf("livedata: as-of-date queries are not supported, use internal/backtest for replay")
	}

	securities, err := s.securities.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list active securities: %w", err)
	}

	inputs := make([]allocation.SecurityInput, 0, len(securities))
	for _, sec := range securities {
		baseScore := 0.0
		if score, err := s.scores.Latest(sec.Symbol); err == nil {
			baseScore = score.Value
		}
		inputs = append(inputs, allocation.SecurityInput{
			Symbol:         sec.Symbol,
			BaseScore:      baseScore,
			UserMultiplier: sec.UserMultiplier,
			CountryTags:    sec.Countries,
			IndustryTags:   sec.Industries,
		})
	}
	return inputs, nil
}

// Targets implements planning.DataSource, pairing the persisted target
// weights against the portfolio's current allocation.
func (s *Source) Targets(ctx context.Context) (allocation.Targets, error) {
	targetByCountry, err := s.allocTargets.NormalizedWeights(domain.TargetGeography)
	if err != nil {
		return allocation.Targets{}, fmt.Errorf("load geography targets: %w", err)
	}
	targetByIndustry, err := s.allocTargets.NormalizedWeights(domain.TargetIndustry)
	if err != nil {
		return allocation.Targets{}, fmt.Errorf("load industry targets: %w", err)
	}

	state, err := s.CurrentState(ctx, nil)
	if err != nil {
		return allocation.Targets{}, err
	}
	return allocation.Targets{
		CurrentByCountry:  state.AllocationByCountry(),
		TargetByCountry:   targetByCountry,
		CurrentByIndustry: state.AllocationByIndustry(),
		TargetByIndustry:  targetByIndustry,
	}, nil
}

// CurrentState implements planning.DataSource, valuing every held position
// in EUR via the currency converter.
func (s *Source) CurrentState(ctx context.Context, asOfDate *time.Time) (portfolio.State, error) {
	if asOfDate != nil {
		return portfolio.State{}, fmt.Errorf("livedata: as-of-date queries are not supported, use internal/backtest for replay")
	}

	positions, err := s.positions.ListActive()
	if err != nil {
		return portfolio.State{}, fmt.Errorf("list active positions: %w", err)
	}

	cashBalances, err := s.cashBalances.GetAll()
	if err != nil {
		return portfolio.State{}, fmt.Errorf("load cash balances: %w", err)
	}
	var cashEUR float64
	for ccy, amount := range cashBalances {
		cashEUR += s.converter.ToEUR(ctx, amount, ccy)
	}

	state := portfolio.State{CashEUR: cashEUR}
	for _, pos := range positions {
		sec, err := s.securities.Get(pos.Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("skipping position with no security metadata")
			continue
		}
		valueEUR := s.converter.ToEUR(ctx, pos.Quantity*pos.CurrentPrice, pos.Currency)
		state.Positions = append(state.Positions, portfolio.SecurityAllocation{
			Symbol:       pos.Symbol,
			ValueEUR:     valueEUR,
			CountryTags:  sec.Countries,
			IndustryTags: sec.Industries,
		})
	}
	return state, nil
}

// RebalanceData implements planning.DataSource. Fees and deficit-sell
// candidates are read live from settings and the store so a recommendation
// run always reflects the operator's current configuration.
func (s *Source) RebalanceData(ctx context.Context, asOfDate *time.Time) (planning.RebalanceInputs, error) {
	if asOfDate != nil {
		return planning.RebalanceInputs{}, fmt.Errorf("livedata: as-of-date queries are not supported, use internal/backtest for replay")
	}

	securities, err := s.securities.ListActive()
	if err != nil {
		return planning.RebalanceInputs{}, fmt.Errorf("list active securities: %w", err)
	}
	positions, err := s.positions.ListActive()
	if err != nil {
		return planning.RebalanceInputs{}, fmt.Errorf("list active positions: %w", err)
	}
	positionBySymbol := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		positionBySymbol[p.Symbol] = p
	}

	cashBalancesMap, err := s.cashBalances.GetAll()
	if err != nil {
		return planning.RebalanceInputs{}, fmt.Errorf("load cash balances: %w", err)
	}

	securityData := make(map[string]rebalance.SecurityData, len(securities))
	expectedReturns := make(map[string]float64, len(securities))
	rateToEUR := make(map[domain.Currency]float64)
	var deficitPositions []rebalance.DeficitPosition
	var cashBalances []rebalance.CashBalance

	for ccy, amount := range cashBalancesMap {
		cashBalances = append(cashBalances, rebalance.CashBalance{Currency: ccy, Amount: amount})
	}

	cooloffDays := s.settings.GetInt(settings.KeyTradeCooloffDays, settings.DefaultTradeCooloffDays)

	for _, sec := range securities {
		pos, held := positionBySymbol[sec.Symbol]
		price := pos.CurrentPrice
		qty := pos.Quantity

		anomalyBlocked, anomalyReason := s.checkPriceAnomaly(ctx, sec.Symbol, price)
		buyBlocked, buyReason := s.checkCooloff(sec.Symbol, domain.Buy, cooloffDays)
		sellBlocked, sellReason := s.checkCooloff(sec.Symbol, domain.Sell, cooloffDays)

		securityData[sec.Symbol] = rebalance.SecurityData{
			Price:              price,
			Currency:           sec.Currency,
			LotSize:            sec.MinLot,
			CurrentQty:         qty,
			AllowBuy:           sec.AllowBuy,
			AllowSell:          sec.AllowSell,
			TradeBlocked:       price <= 0 || anomalyBlocked,
			BlockReason:        firstNonEmpty(blockReasonIfNoPrice(price), anomalyReason),
			BuyCooloffBlocked:  buyBlocked,
			BuyCooloffReason:   buyReason,
			SellCooloffBlocked: sellBlocked,
			SellCooloffReason:  sellReason,
		}
		expectedReturns[sec.Symbol] = s.trailingReturn(ctx, sec.Symbol)

		if _, seen := rateToEUR[sec.Currency]; !seen {
			rateToEUR[sec.Currency] = s.converter.Rate(ctx, sec.Currency)
		}

		if held && qty > 0 && sec.AllowSell {
			score := 0.0
			if sc, err := s.scores.Latest(sec.Symbol); err == nil {
				score = sc.Value
			}
			deficitPositions = append(deficitPositions, rebalance.DeficitPosition{
				Symbol:    sec.Symbol,
				Quantity:  qty,
				Price:     price,
				Currency:  sec.Currency,
				LotSize:   sec.MinLot,
				Score:     score,
				AllowSell: sec.AllowSell,
			})
		}
	}

	var cashEUR float64
	for ccy, amount := range cashBalancesMap {
		cashEUR += s.converter.ToEUR(ctx, amount, ccy)
	}

	fees := rebalance.FeeSettings{
		FixedFee: s.settings.GetFloat(settings.KeyTransactionFeeFixed, 0),
		PctFee:   s.settings.GetFloat(settings.KeyTransactionFeePercent, 0),
	}

	return planning.RebalanceInputs{
		SecurityData:     securityData,
		ExpectedReturns:  expectedReturns,
		CashEUR:          cashEUR,
		Fees:             fees,
		RateToEUR:        rateToEUR,
		DeficitPositions: deficitPositions,
		CashBalances:     cashBalances,
	}, nil
}

func blockReasonIfNoPrice(price float64) string {
	if price > 0 {
		return ""
	}
	return "no current price on file"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// checkPriceAnomaly runs the Price Validator (spec.md §4.5 step 7) against
// a symbol's trailing history, mirroring rebalance.py's
// _check_price_anomaly: only historical closes are consulted, never the
// quote itself against a fixed bound.
func (s *Source) checkPriceAnomaly(ctx context.Context, symbol string, price float64) (blocked bool, reason string) {
	now := time.Now()
	bars, err := s.priceBars.ListRange(symbol, now.Add(-trailingReturnWindow), now)
	if err != nil || len(bars) == 0 {
		return false, ""
	}
	return pricevalidator.AnomalyFromBars(price, bars, symbol)
}

// checkCooloff implements spec.md §4.5 step 6 / rebalance.py's
// _check_cooloff_violation: a proposed trade is blocked only if the most
// recent trade of the OPPOSITE side happened within cooloffDays. A
// same-side trade, or no trade at all, never blocks.
func (s *Source) checkCooloff(symbol string, action domain.TradeSide, cooloffDays int) (blocked bool, reason string) {
	if cooloffDays <= 0 || s.trades == nil {
		return false, ""
	}

	opposite := domain.Sell
	if action == domain.Sell {
		opposite = domain.Buy
	}

	last, err := s.trades.LastForSymbolSide(symbol, opposite)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ""
		}
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("cooloff check: failed to load last opposite-side trade")
		return false, ""
	}

	daysSince := int(time.Since(last.ExecutedAt).Hours() / 24)
	if daysSince >= cooloffDays {
		return false, ""
	}

	lastActionWord := "sell"
	if opposite == domain.Buy {
		lastActionWord = "buy"
	}
	return true, fmt.Sprintf("Cool-off period: %d days remaining after last %s", cooloffDays-daysSince, lastActionWord)
}

// trailingReturn estimates a symbol's expected return as its trailing
// one-year price change — the same momentum proxy
// internal/backtestdata.PriceBars uses for a backtest catalog's static
// ExpectedReturn, applied here against the live history.db instead.
func (s *Source) trailingReturn(ctx context.Context, symbol string) float64 {
	now := time.Now()
	bars, err := s.priceBars.ListRange(symbol, now.Add(-trailingReturnWindow), now)
	if err != nil || len(bars) < 2 {
		return 0
	}
	first, last := bars[0], bars[len(bars)-1]
	if first.Close <= 0 {
		return 0
	}
	return (last.Close - first.Close) / first.Close
}

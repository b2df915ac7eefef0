// Package backtestdata adapts the real store repositories and broker onto
// the three read-only interfaces backtest.Backtester needs (UniverseProvider,
// PriceSource, FXSource), so a backtest run replays the ACTUAL persisted
// universe/prices/fx history without ever opening a write path into it,
// grounded on original_source/sentinel/backtester.py's BacktestDatabaseBuilder
// (which copies the same three slices of data into its isolated temp DB).
package backtestdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/calculations"
	"github.com/aristath/sentinel/internal/domain"
)

// trailingReturnWindow is how far back CatalogEntry.ExpectedReturn looks for
// its trailing price-momentum estimate.
const trailingReturnWindow = 365 * 24 * time.Hour

// Securities is the subset of store.SecurityRepository the universe
// provider needs.
type Securities interface {
	Get(symbol string) (domain.Security, error)
	ListActive() ([]domain.Security, error)
}

// Scores is the subset of store.ScoreRepository needed to seed a catalog
// entry's BaseScore from the most recent persisted Sell Scorer evaluation.
type Scores interface {
	Latest(symbol string) (domain.Score, error)
}

// Universe resolves backtest.CatalogEntry rows from the real universe.db
// and history.db, implementing backtest.UniverseProvider.
type Universe struct {
	securities Securities
	scores     Scores
	prices     *PriceBars
	brokerAPI  broker.Broker
	log        zerolog.Logger
}

// NewUniverse wires a Universe provider.
func NewUniverse(securities Securities, scores Scores, prices *PriceBars, brokerAPI broker.Broker, log zerolog.Logger) *Universe {
	return &Universe{securities: securities, scores: scores, prices: prices, brokerAPI: brokerAPI, log: log.With().Str("component", "backtest_universe").Logger()}
}

// ExistingUniverse returns every active security as a catalog entry.
func (u *Universe) ExistingUniverse(ctx context.Context) ([]backtest.CatalogEntry, error) {
	securities, err := u.securities.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list active securities: %w", err)
	}
	return u.toCatalog(ctx, securities), nil
}

// RandomSample draws count securities from pool (or, if pool is empty, from
// the broker's available-securities listing) and resolves each to a catalog
// entry, skipping symbols with no persisted metadata.
func (u *Universe) RandomSample(ctx context.Context, count int, pool []string) ([]backtest.CatalogEntry, error) {
	symbols := pool
	if len(symbols) == 0 && u.brokerAPI != nil {
		available, err := u.brokerAPI.GetAvailableSecurities(ctx)
		if err != nil {
			return nil, fmt.Errorf("list broker available securities: %w", err)
		}
		for _, a := range available {
			symbols = append(symbols, a.Symbol)
		}
	}
	rand.Shuffle(len(symbols), func(i, j int) { symbols[i], symbols[j] = symbols[j], symbols[i] })
	if count < len(symbols) {
		symbols = symbols[:count]
	}
	return u.Lookup(ctx, symbols)
}

// Lookup resolves an explicit symbol list to catalog entries, skipping
// symbols with no persisted security row.
func (u *Universe) Lookup(ctx context.Context, symbols []string) ([]backtest.CatalogEntry, error) {
	var securities []domain.Security
	for _, symbol := range symbols {
		s, err := u.securities.Get(symbol)
		if err != nil {
			u.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping unknown symbol in backtest universe")
			continue
		}
		securities = append(securities, s)
	}
	return u.toCatalog(ctx, securities), nil
}

func (u *Universe) toCatalog(ctx context.Context, securities []domain.Security) []backtest.CatalogEntry {
	out := make([]backtest.CatalogEntry, 0, len(securities))
	for _, s := range securities {
		entry := backtest.CatalogEntry{
			Symbol:       s.Symbol,
			Name:         s.Name,
			Currency:     s.Currency,
			LotSize:      s.MinLot,
			AllowBuy:     s.AllowBuy,
			AllowSell:    s.AllowSell,
			CountryTags:  s.Countries,
			IndustryTags: s.Industries,
		}
		if u.scores != nil {
			if score, err := u.scores.Latest(s.Symbol); err == nil {
				entry.BaseScore = score.Value
			}
		}
		if u.prices != nil {
			entry.ExpectedReturn = u.prices.trailingReturn(ctx, s.Symbol, time.Now())
		}
		out = append(out, entry)
	}
	return out
}

// PriceBarSource is the subset of store.PriceBarRepository the price source
// and the universe's trailing-return estimate need.
type PriceBarSource interface {
	LatestBefore(symbol string, asOf time.Time) (domain.PriceBar, error)
	ListRange(symbol string, from, to time.Time) ([]domain.PriceBar, error)
}

// PriceBars resolves as-of-date close prices from history.db, implementing
// backtest.PriceSource.
type PriceBars struct {
	bars PriceBarSource
	log  zerolog.Logger
}

// NewPriceBars wires a PriceBars source.
func NewPriceBars(bars PriceBarSource, log zerolog.Logger) *PriceBars {
	return &PriceBars{bars: bars, log: log.With().Str("component", "backtest_prices").Logger()}
}

// Price resolves the most recent close at or before onOrBefore.
func (p *PriceBars) Price(ctx context.Context, symbol string, onOrBefore time.Time) (float64, bool) {
	bar, err := p.bars.LatestBefore(symbol, onOrBefore)
	if err != nil {
		return 0, false
	}
	return bar.Close, true
}

// trailingReturn estimates a symbol's expected return as its trailing
// one-year price change, the simplest momentum signal available from
// persisted history (spec.md doesn't prescribe a specific estimator for
// the backtest catalog; live runs get ExpectedReturn from the scoring
// pipeline instead).
func (p *PriceBars) trailingReturn(ctx context.Context, symbol string, asOf time.Time) float64 {
	bars, err := p.bars.ListRange(symbol, asOf.Add(-trailingReturnWindow), asOf)
	if err != nil || len(bars) < 2 {
		return 0
	}
	first, last := bars[0], bars[len(bars)-1]
	if first.Close <= 0 {
		return 0
	}
	return calculations.PnLPercent(last.Close, first.Close)
}

// FXRateSource is the subset of store.FXRateRepository needed to resolve an
// as-of-date EUR rate.
type FXRateSource interface {
	LatestBefore(currency domain.Currency, asOf time.Time) (domain.FXRate, error)
}

// FXRates resolves as-of-date EUR rates from history.db, implementing
// backtest.FXSource.
type FXRates struct {
	rates FXRateSource
	log   zerolog.Logger
}

// NewFXRates wires an FXRates source.
func NewFXRates(rates FXRateSource, log zerolog.Logger) *FXRates {
	return &FXRates{rates: rates, log: log.With().Str("component", "backtest_fx").Logger()}
}

// RateToEUR resolves the most recent rate at or before onOrBefore. EUR
// itself is always 1.0; a currency with no cached history defaults to 1.0,
// mirroring the live Currency Converter's silent-fallback behavior
// (spec.md §4.1).
func (f *FXRates) RateToEUR(ctx context.Context, ccy domain.Currency, onOrBefore time.Time) float64 {
	if ccy == domain.EUR {
		return 1.0
	}
	rate, err := f.rates.LatestBefore(ccy, onOrBefore)
	if err != nil {
		return 1.0
	}
	return rate.RateToEUR
}

var _ backtest.UniverseProvider = (*Universe)(nil)
var _ backtest.PriceSource = (*PriceBars)(nil)
var _ backtest.FXSource = (*FXRates)(nil)

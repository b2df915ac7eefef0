package backtest

import (
	"context"
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

// CatalogEntry is one symbol's static backtest inputs: the data a real
// metadata/scoring sync would have produced, copied once at build time
// rather than replayed per simulated day. Grounded on backtester.py's
// BacktestDatabaseBuilder, which copies securities (and their prices) from
// the real database into an isolated temp database before the simulation
// loop starts.
type CatalogEntry struct {
	Symbol         string
	Name           string
	Currency       domain.Currency
	LotSize        float64
	AllowBuy       bool
	AllowSell      bool
	BaseScore      float64
	ExpectedReturn float64
	CountryTags    []string
	IndustryTags   []string
}

// UniverseProvider resolves the symbol universe for a backtest run,
// grounded on backtester.py's BacktestDatabaseBuilder._get_symbols: the
// three config-driven branches (existing universe, random sample from a
// broker-available pool, or an explicit symbol list).
type UniverseProvider interface {
	ExistingUniverse(ctx context.Context) ([]CatalogEntry, error)
	RandomSample(ctx context.Context, count int, pool []string) ([]CatalogEntry, error)
	Lookup(ctx context.Context, symbols []string) ([]CatalogEntry, error)
}

// PriceSource resolves a symbol's close price on or before a date, in its
// local currency. Backed by the real price history in live use; backed by
// an isolated in-memory fixture in tests, per S7 (the real database is
// never mutated by a backtest).
type PriceSource interface {
	Price(ctx context.Context, symbol string, onOrBefore time.Time) (price float64, ok bool)
}

// FXSource resolves a currency's EUR rate on or before a date.
type FXSource interface {
	RateToEUR(ctx context.Context, ccy domain.Currency, onOrBefore time.Time) float64
}

// discoverUniverse resolves the catalog entries a run will simulate over,
// per backtester.py's three UniverseMode branches.
func discoverUniverse(ctx context.Context, cfg Config, universe UniverseProvider) ([]CatalogEntry, error) {
	switch cfg.UniverseMode {
	case UniverseRandomSample:
		return universe.RandomSample(ctx, cfg.RandomCount, cfg.Symbols)
	case UniverseExplicit:
		return universe.Lookup(ctx, cfg.Symbols)
	default:
		return universe.ExistingUniverse(ctx)
	}
}

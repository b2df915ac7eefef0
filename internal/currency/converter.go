package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
)

// rateCacheTTL is how long an in-memory live rate stays valid before the
// converter re-fetches it (spec.md §4.1).
const rateCacheTTL = 2 * time.Hour

// RateSource is the primary live-rate tier.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

// BrokerRateSource is the broker cross-rate fallback tier (Tradernet FX
// instruments in the teacher codebase).
type BrokerRateSource interface {
	GetFXRate(ctx context.Context, from, to string) (float64, error)
}

// hardcodedRatesToEUR is the last-resort fallback table: EUR value of one
// unit of each non-EUR currency. Values mirror the teacher's broker-derived
// approximations and are only ever used when every live source and the DB
// cache have failed.
var hardcodedRatesToEUR = map[domain.Currency]float64{
	domain.USD: 0.90,
	domain.GBP: 1.20,
	domain.HKD: 0.11,
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// Converter is the Currency Converter of spec.md §4.1: it resolves any
// amount between currencies by pivoting through EUR, with a five-tier
// fallback (live API, broker, Yahoo, DB cache, hardcoded table) backing the
// rate-to-EUR lookup for each currency.
type Converter struct {
	primary RateSource
	broker  BrokerRateSource
	yahoo   RateSource
	fxRates *store.FXRateRepository
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[domain.Currency]cachedRate
}

// NewConverter wires the fallback chain. broker and yahoo may be nil (the
// tier is then skipped).
func NewConverter(primary RateSource, broker BrokerRateSource, yahoo RateSource, fxRates *store.FXRateRepository, log zerolog.Logger) *Converter {
	return &Converter{
		primary: primary,
		broker:  broker,
		yahoo:   yahoo,
		fxRates: fxRates,
		log:     log.With().Str("component", "currency_converter").Logger(),
		cache:   make(map[domain.Currency]cachedRate),
	}
}

// Rate returns the current EUR value of one unit of ccy. A currency this
// converter has never heard of returns 1.0, logged rather than errored,
// since a missing rate should degrade gracefully rather than abort a
// scoring or rebalance run.
func (c *Converter) Rate(ctx context.Context, ccy domain.Currency) float64 {
	if ccy == domain.EUR {
		return 1.0
	}

	c.mu.Lock()
	if cached, ok := c.cache[ccy]; ok && time.Since(cached.fetchedAt) < rateCacheTTL {
		c.mu.Unlock()
		return cached.rate
	}
	c.mu.Unlock()

	rate, source, err := c.resolveRateToEUR(ctx, ccy)
	if err != nil {
		c.log.Warn().Err(err).Str("currency", string(ccy)).Msg("no rate available for currency, defaulting to 1.0")
		return 1.0
	}

	c.mu.Lock()
	c.cache[ccy] = cachedRate{rate: rate, fetchedAt: time.Now()}
	c.mu.Unlock()

	if source != "cache" && source != "hardcoded" {
		if err := c.fxRates.Upsert(domain.FXRate{Date: todayUTC(), Currency: ccy, RateToEUR: rate}); err != nil {
			c.log.Warn().Err(err).Str("currency", string(ccy)).Msg("failed to persist fetched rate")
		}
	}
	return rate
}

// resolveRateToEUR walks the five-tier fallback chain: live API, broker,
// Yahoo, DB cache, hardcoded table.
func (c *Converter) resolveRateToEUR(ctx context.Context, ccy domain.Currency) (float64, string, error) {
	if c.primary != nil {
		if rate, err := c.primary.GetRate(ctx, string(ccy), string(domain.EUR)); err == nil && rate > 0 {
			return rate, "primary", nil
		} else if err != nil {
			c.log.Debug().Err(err).Str("currency", string(ccy)).Msg("primary rate API failed, trying broker")
		}
	}

	if c.broker != nil {
		if rate, err := c.broker.GetFXRate(ctx, string(ccy), string(domain.EUR)); err == nil && rate > 0 {
			return rate, "broker", nil
		} else if err != nil {
			c.log.Debug().Err(err).Str("currency", string(ccy)).Msg("broker rate failed, trying Yahoo")
		}
	}

	if c.yahoo != nil {
		if rate, err := c.yahoo.GetRate(ctx, string(ccy), string(domain.EUR)); err == nil && rate > 0 {
			return rate, "yahoo", nil
		} else if err != nil {
			c.log.Debug().Err(err).Str("currency", string(ccy)).Msg("Yahoo rate failed, trying cache")
		}
	}

	if cached, err := c.fxRates.LatestBefore(ccy, time.Now()); err == nil {
		return cached.RateToEUR, "cache", nil
	}

	if rate, ok := hardcodedRatesToEUR[ccy]; ok {
		return rate, "hardcoded", nil
	}

	return 0, "", fmt.Errorf("no rate source succeeded for %s", ccy)
}

// ToEUR converts a local-currency amount to EUR.
func (c *Converter) ToEUR(ctx context.Context, amount float64, ccy domain.Currency) float64 {
	return amount * c.Rate(ctx, ccy)
}

// FromEUR converts a EUR amount into a local currency.
func (c *Converter) FromEUR(ctx context.Context, amountEUR float64, ccy domain.Currency) float64 {
	rate := c.Rate(ctx, ccy)
	if rate == 0 {
		return 0
	}
	return amountEUR / rate
}

// Convert converts an amount between any two currencies, pivoting through
// EUR per spec.md §4.1's cross-rate rule.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to domain.Currency) float64 {
	if from == to {
		return amount
	}
	return c.ToEUR(ctx, amount, from) / rateOrOne(c.Rate(ctx, to))
}

func rateOrOne(r float64) float64 {
	if r == 0 {
		return 1
	}
	return r
}

// RateForDate returns the EUR rate for ccy on a specific date, checking the
// per-date cache first and falling back to a live broker fetch (upserted on
// success) for date-specific historical reconstructions (spec.md §4.9).
func (c *Converter) RateForDate(ctx context.Context, ccy domain.Currency, date time.Time) (float64, error) {
	if ccy == domain.EUR {
		return 1.0, nil
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if cached, err := c.fxRates.ForDate(ccy, day); err == nil {
		return cached.RateToEUR, nil
	}

	if c.broker != nil {
		if rate, err := c.broker.GetFXRate(ctx, string(ccy), string(domain.EUR)); err == nil && rate > 0 {
			if err := c.fxRates.Upsert(domain.FXRate{Date: day, Currency: ccy, RateToEUR: rate}); err != nil {
				c.log.Warn().Err(err).Str("currency", string(ccy)).Msg("failed to persist dated rate")
			}
			return rate, nil
		}
	}

	if cached, err := c.fxRates.LatestBefore(ccy, day); err == nil {
		return cached.RateToEUR, nil
	}

	if rate, ok := hardcodedRatesToEUR[ccy]; ok {
		return rate, nil
	}

	return 0, fmt.Errorf("no rate for %s on %s", ccy, day)
}

// Prefetch batches per-date fetches for a set of currencies across a set of
// dates: exactly one resolution pass per (currency, date) missing from the
// cache, used by the Snapshot Service and Backtester to avoid re-fetching
// the same historical rate for every symbol on a given day.
func (c *Converter) Prefetch(ctx context.Context, currencies []domain.Currency, dates []time.Time) error {
	var firstErr error
	for _, date := range dates {
		for _, ccy := range currencies {
			if ccy == domain.EUR {
				continue
			}
			if _, err := c.RateForDate(ctx, ccy, date); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

package currency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/pkg/logger"
)

type stubRateSource struct {
	rate float64
	err  error
}

func (s stubRateSource) GetRate(ctx context.Context, from, to string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.rate, nil
}

func newTestConverter(t *testing.T, primary RateSource) (*Converter, *store.FXRateRepository) {
	t.Helper()
	db, err := database.New(database.Config{Profile: database.ProfileCache, Path: "file::memory:?cache=shared", Name: "currency_test"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec(`
		CREATE TABLE IF NOT EXISTS fx_rate_history (
			date INTEGER NOT NULL, currency TEXT NOT NULL, rate_to_eur REAL NOT NULL,
			PRIMARY KEY (date, currency)
		)
	`)
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: "error"})
	fxRates := store.NewFXRateRepository(db.Conn(), log)
	return NewConverter(primary, nil, nil, fxRates, log), fxRates
}

func TestConverter_Rate_SameCurrencyIsOne(t *testing.T) {
	conv, _ := newTestConverter(t, stubRateSource{err: fmt.Errorf("should not be called")})
	assert.Equal(t, 1.0, conv.Rate(context.Background(), domain.EUR))
}

func TestConverter_Rate_UsesPrimarySource(t *testing.T) {
	conv, _ := newTestConverter(t, stubRateSource{rate: 0.9})
	assert.Equal(t, 0.9, conv.Rate(context.Background(), domain.USD))
}

func TestConverter_Rate_FallsBackToCacheThenHardcoded(t *testing.T) {
	conv, _ := newTestConverter(t, stubRateSource{err: fmt.Errorf("network down")})
	// No cached rate and no successful live tier: falls through to the
	// hardcoded table rather than erroring.
	rate := conv.Rate(context.Background(), domain.USD)
	assert.Equal(t, hardcodedRatesToEUR[domain.USD], rate)
}

func TestConverter_Rate_MissingCurrencyDefaultsToOne(t *testing.T) {
	conv, _ := newTestConverter(t, stubRateSource{err: fmt.Errorf("down")})
	assert.Equal(t, 1.0, conv.Rate(context.Background(), domain.Currency("XYZ")))
}

func TestConverter_Convert_PivotsThroughEUR(t *testing.T) {
	conv, _ := newTestConverter(t, nil)
	conv.cache[domain.USD] = cachedRate{rate: 0.9, fetchedAt: time.Now()}
	conv.cache[domain.GBP] = cachedRate{rate: 1.2, fetchedAt: time.Now()}

	// 100 USD -> EUR (90) -> GBP (90/1.2 = 75)
	got := conv.Convert(context.Background(), 100, domain.USD, domain.GBP)
	assert.InDelta(t, 75.0, got, 0.001)
}

func TestConverter_ToEURAndFromEUR_RoundTrip(t *testing.T) {
	conv, _ := newTestConverter(t, nil)
	conv.cache[domain.USD] = cachedRate{rate: 0.9, fetchedAt: time.Now()}

	eur := conv.ToEUR(context.Background(), 100, domain.USD)
	assert.InDelta(t, 90.0, eur, 0.001)

	back := conv.FromEUR(context.Background(), eur, domain.USD)
	assert.InDelta(t, 100.0, back, 0.001)
}

func TestConverter_RateForDate_UsesExistingCacheBeforeFetching(t *testing.T) {
	conv, fxRates := newTestConverter(t, stubRateSource{err: fmt.Errorf("should not be called")})
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fxRates.Upsert(domain.FXRate{Date: day, Currency: domain.USD, RateToEUR: 0.88}))

	rate, err := conv.RateForDate(context.Background(), domain.USD, day)
	require.NoError(t, err)
	assert.Equal(t, 0.88, rate)
}

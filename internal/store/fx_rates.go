package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// FXRateRepository wraps history.db's fx_rate_history table: the lowest
// tier of the Currency Converter's fallback chain (spec.md §4.1).
type FXRateRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewFXRateRepository creates a repository over an open history.db connection.
func NewFXRateRepository(db *sql.DB, log zerolog.Logger) *FXRateRepository {
	return &FXRateRepository{db: db, log: log.With().Str("repository", "fx_rates").Logger()}
}

// Upsert writes or replaces one day's EUR rate for a currency.
func (r *FXRateRepository) Upsert(rate domain.FXRate) error {
	_, err := r.db.Exec(`
		INSERT INTO fx_rate_history (date, currency, rate_to_eur) VALUES (?, ?, ?)
		ON CONFLICT(date, currency) DO UPDATE SET rate_to_eur = excluded.rate_to_eur
	`, rate.Date.Unix(), string(rate.Currency), rate.RateToEUR)
	if err != nil {
		return fmt.Errorf("upsert fx rate %s/%s: %w", rate.Currency, rate.Date, err)
	}
	return nil
}

// LatestBefore returns the most recent cached rate at or before asOf, or
// (zero, sql.ErrNoRows) if the cache has never seen this currency.
func (r *FXRateRepository) LatestBefore(currency domain.Currency, asOf time.Time) (domain.FXRate, error) {
	var rate domain.FXRate
	var date int64
	err := r.db.QueryRow(`
		SELECT date, currency, rate_to_eur FROM fx_rate_history
		WHERE currency = ? AND date <= ? ORDER BY date DESC LIMIT 1
	`, string(currency), asOf.Unix()).Scan(&date, &rate.Currency, &rate.RateToEUR)
	if err != nil {
		return domain.FXRate{}, fmt.Errorf("latest fx rate %s before %s: %w", currency, asOf, err)
	}
	rate.Date = time.Unix(date, 0).UTC()
	return rate, nil
}

// ForDate returns the exact cached rate for a date, or (zero, sql.ErrNoRows).
func (r *FXRateRepository) ForDate(currency domain.Currency, date time.Time) (domain.FXRate, error) {
	var rate domain.FXRate
	var d int64
	err := r.db.QueryRow(`
		SELECT date, currency, rate_to_eur FROM fx_rate_history WHERE currency = ? AND date = ?
	`, string(currency), date.Unix()).Scan(&d, &rate.Currency, &rate.RateToEUR)
	if err != nil {
		return domain.FXRate{}, fmt.Errorf("fx rate %s on %s: %w", currency, date, err)
	}
	rate.Date = time.Unix(d, 0).UTC()
	return rate, nil
}

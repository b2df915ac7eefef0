package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// PriceBarRepository wraps history.db's price_bars table.
type PriceBarRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceBarRepository creates a repository over an open history.db connection.
func NewPriceBarRepository(db *sql.DB, log zerolog.Logger) *PriceBarRepository {
	return &PriceBarRepository{db: db, log: log.With().Str("repository", "price_bars").Logger()}
}

func scanPriceBar(row interface {
	Scan(dest ...any) error
}) (domain.PriceBar, error) {
	var b domain.PriceBar
	var date int64
	err := row.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	if err != nil {
		return domain.PriceBar{}, err
	}
	b.Date = time.Unix(date, 0).UTC()
	return b, nil
}

const priceBarColumns = `symbol, date, open, high, low, close, volume`

// Upsert writes or replaces one day's OHLCV bar.
func (r *PriceBarRepository) Upsert(b domain.PriceBar) error {
	_, err := r.db.Exec(`
		INSERT INTO price_bars (`+priceBarColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`, b.Symbol, b.Date.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
	if err != nil {
		return fmt.Errorf("upsert price bar %s/%s: %w", b.Symbol, b.Date, err)
	}
	return nil
}

// LatestBefore returns the most recent bar for a symbol at or before asOf,
// or (zero, sql.ErrNoRows). Used by the backtester and any as-of-date price
// lookup (spec.md §4.2, §4.10).
func (r *PriceBarRepository) LatestBefore(symbol string, asOf time.Time) (domain.PriceBar, error) {
	row := r.db.QueryRow(`
		SELECT `+priceBarColumns+` FROM price_bars WHERE symbol = ? AND date <= ? ORDER BY date DESC LIMIT 1
	`, symbol, asOf.Unix())
	b, err := scanPriceBar(row)
	if err != nil {
		return domain.PriceBar{}, fmt.Errorf("latest price bar %s before %s: %w", symbol, asOf, err)
	}
	return b, nil
}

// ListRange returns every bar for one symbol in [from, to], ascending.
// Used by the instability score component (talib input series) and the
// portfolio analyzer's return series.
func (r *PriceBarRepository) ListRange(symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	rows, err := r.db.Query(`
		SELECT `+priceBarColumns+` FROM price_bars WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date ASC
	`, symbol, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list price bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []domain.PriceBar
	for rows.Next() {
		b, err := scanPriceBar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

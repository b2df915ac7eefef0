package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// PositionRepository wraps portfolio.db's positions table.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a repository over an open portfolio.db connection.
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{db: db, log: log.With().Str("repository", "positions").Logger()}
}

func scanPosition(row interface {
	Scan(dest ...any) error
}) (domain.Position, error) {
	var p domain.Position
	var firstBought, lastSold sql.NullInt64
	err := row.Scan(&p.Symbol, &p.Quantity, &p.AverageCost, &p.CurrentPrice, &p.Currency, &firstBought, &lastSold)
	if err != nil {
		return domain.Position{}, err
	}
	if firstBought.Valid {
		t := time.Unix(firstBought.Int64, 0).UTC()
		p.FirstBoughtAt = &t
	}
	if lastSold.Valid {
		t := time.Unix(lastSold.Int64, 0).UTC()
		p.LastSoldAt = &t
	}
	return p, nil
}

const positionColumns = `symbol, quantity, average_cost, current_price, currency, first_bought_at, last_sold_at`

// Get returns one position by symbol, or (zero, sql.ErrNoRows) if never held.
func (r *PositionRepository) Get(symbol string) (domain.Position, error) {
	row := r.db.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE symbol = ?`, symbol)
	p, err := scanPosition(row)
	if err != nil {
		return domain.Position{}, fmt.Errorf("get position %s: %w", symbol, err)
	}
	return p, nil
}

// ListActive returns every position with a positive quantity.
func (r *PositionRepository) ListActive() ([]domain.Position, error) {
	rows, err := r.db.Query(`SELECT ` + positionColumns + ` FROM positions WHERE quantity > 0`)
	if err != nil {
		return nil, fmt.Errorf("list active positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert writes the full current state of one position.
func (r *PositionRepository) Upsert(p domain.Position) error {
	var firstBought, lastSold sql.NullInt64
	if p.FirstBoughtAt != nil {
		firstBought = sql.NullInt64{Int64: p.FirstBoughtAt.Unix(), Valid: true}
	}
	if p.LastSoldAt != nil {
		lastSold = sql.NullInt64{Int64: p.LastSoldAt.Unix(), Valid: true}
	}
	_, err := r.db.Exec(`
		INSERT INTO positions (symbol, quantity, average_cost, current_price, currency, first_bought_at, last_sold_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity, average_cost = excluded.average_cost,
			current_price = excluded.current_price, currency = excluded.currency,
			first_bought_at = excluded.first_bought_at, last_sold_at = excluded.last_sold_at,
			updated_at = excluded.updated_at
	`, p.Symbol, p.Quantity, p.AverageCost, p.CurrentPrice, string(p.Currency), firstBought, lastSold, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.Symbol, err)
	}
	return nil
}

// UpdatePrice updates only current_price, leaving cost-basis fields intact.
// Used by the price-sync job, which never touches quantity/cost.
func (r *PositionRepository) UpdatePrice(symbol string, price float64) error {
	_, err := r.db.Exec(`UPDATE positions SET current_price = ?, updated_at = ? WHERE symbol = ?`,
		price, time.Now().Unix(), symbol)
	if err != nil {
		return fmt.Errorf("update position price %s: %w", symbol, err)
	}
	return nil
}

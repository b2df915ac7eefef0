package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// ScoreRepository wraps portfolio.db's scores table: an append-only log of
// every Sell Scorer evaluation, kept for audit and backtesting comparison.
type ScoreRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewScoreRepository creates a repository over an open portfolio.db connection.
func NewScoreRepository(db *sql.DB, log zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{db: db, log: log.With().Str("repository", "scores").Logger()}
}

// Insert appends one scoring event.
func (r *ScoreRepository) Insert(s domain.Score) error {
	components, err := json.Marshal(s.Components)
	if err != nil {
		return fmt.Errorf("marshal score components for %s: %w", s.Symbol, err)
	}
	_, err = r.db.Exec(`
		INSERT INTO scores (symbol, value, components, calculated_at) VALUES (?, ?, ?, ?)
	`, s.Symbol, s.Value, string(components), s.CalculatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert score for %s: %w", s.Symbol, err)
	}
	return nil
}

// Latest returns the most recent score for a symbol, or (zero, sql.ErrNoRows).
func (r *ScoreRepository) Latest(symbol string) (domain.Score, error) {
	var s domain.Score
	var components string
	var calculatedAt int64
	err := r.db.QueryRow(`
		SELECT symbol, value, components, calculated_at FROM scores
		WHERE symbol = ? ORDER BY calculated_at DESC LIMIT 1
	`, symbol).Scan(&s.Symbol, &s.Value, &components, &calculatedAt)
	if err != nil {
		return domain.Score{}, fmt.Errorf("latest score for %s: %w", symbol, err)
	}
	if err := json.Unmarshal([]byte(components), &s.Components); err != nil {
		return domain.Score{}, fmt.Errorf("unmarshal score components for %s: %w", symbol, err)
	}
	s.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
	return s, nil
}

// History returns every scoring event for a symbol in [from, to], ascending.
func (r *ScoreRepository) History(symbol string, from, to time.Time) ([]domain.Score, error) {
	rows, err := r.db.Query(`
		SELECT symbol, value, components, calculated_at FROM scores
		WHERE symbol = ? AND calculated_at >= ? AND calculated_at <= ? ORDER BY calculated_at ASC
	`, symbol, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("score history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []domain.Score
	for rows.Next() {
		var s domain.Score
		var components string
		var calculatedAt int64
		if err := rows.Scan(&s.Symbol, &s.Value, &components, &calculatedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if err := json.Unmarshal([]byte(components), &s.Components); err != nil {
			return nil, fmt.Errorf("unmarshal score components: %w", err)
		}
		s.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// snapshotDocument is the JSON shape stored in snapshots.document.
type snapshotDocument struct {
	Positions map[string]domain.SnapshotPosition `json:"positions"`
	CashEUR   float64                             `json:"cash_eur"`
}

// SnapshotRepository wraps portfolio.db's snapshots table: one row per UTC
// day, written by the Snapshot Service (spec.md §4.9).
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a repository over an open portfolio.db connection.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, log: log.With().Str("repository", "snapshots").Logger()}
}

// Upsert writes or replaces the snapshot for one UTC day, idempotent so a
// re-run for the same day simply overwrites.
func (r *SnapshotRepository) Upsert(s domain.PortfolioSnapshot) error {
	doc := snapshotDocument{Positions: s.Positions, CashEUR: s.CashEUR}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", s.Date, err)
	}
	_, err = r.db.Exec(`
		INSERT INTO snapshots (date, document) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET document = excluded.document
	`, s.Date.Unix(), string(body))
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", s.Date, err)
	}
	return nil
}

func rowToSnapshot(date int64, body string) (domain.PortfolioSnapshot, error) {
	var doc snapshotDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return domain.PortfolioSnapshot{
		Date:      time.Unix(date, 0).UTC(),
		Positions: doc.Positions,
		CashEUR:   doc.CashEUR,
	}, nil
}

// Get returns the snapshot for one UTC day, or (zero, sql.ErrNoRows).
func (r *SnapshotRepository) Get(date time.Time) (domain.PortfolioSnapshot, error) {
	var body string
	err := r.db.QueryRow(`SELECT document FROM snapshots WHERE date = ?`, date.Unix()).Scan(&body)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("get snapshot %s: %w", date, err)
	}
	snap, err := rowToSnapshot(date.Unix(), body)
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	return snap, nil
}

// Range returns every snapshot in [from, to], ascending, for the Portfolio
// Analyzer's time-series views and the Backtester's result computation.
func (r *SnapshotRepository) Range(from, to time.Time) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT date, document FROM snapshots WHERE date >= ? AND date <= ? ORDER BY date ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("snapshot range %s to %s: %w", from, to, err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		var date int64
		var body string
		if err := rows.Scan(&date, &body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap, err := rowToSnapshot(date, body)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Latest returns the most recently written snapshot, or (zero, sql.ErrNoRows).
func (r *SnapshotRepository) Latest() (domain.PortfolioSnapshot, error) {
	var date int64
	var body string
	err := r.db.QueryRow(`SELECT date, document FROM snapshots ORDER BY date DESC LIMIT 1`).Scan(&date, &body)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return rowToSnapshot(date, body)
}

// Package store holds the SQLite-backed repositories for every entity in
// spec.md §3. Each repository wraps one table and returns domain types,
// never raw rows, so callers never see database/sql directly.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// SecurityRepository wraps universe.db's securities table.
type SecurityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSecurityRepository creates a repository over an open universe.db connection.
func NewSecurityRepository(db *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{db: db, log: log.With().Str("repository", "securities").Logger()}
}

func scanSecurity(row interface {
	Scan(dest ...any) error
}) (domain.Security, error) {
	var s domain.Security
	var countries, industries string
	var active, allowBuy, allowSell, lastDivCut int
	err := row.Scan(&s.Symbol, &s.Name, &s.Currency, &countries, &industries,
		&s.MinLot, &active, &allowBuy, &allowSell, &s.UserMultiplier, &lastDivCut)
	if err != nil {
		return domain.Security{}, err
	}
	s.Countries = splitCSV(countries)
	s.Industries = splitCSV(industries)
	s.Active = active != 0
	s.AllowBuy = allowBuy != 0
	s.AllowSell = allowSell != 0
	s.LastDividendCut = lastDivCut != 0
	return s, nil
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinCSV(v []string) string {
	return strings.Join(v, ",")
}

const securityColumns = `symbol, name, currency, countries, industries, min_lot, active, allow_buy, allow_sell, user_multiplier, last_dividend_cut`

// Get returns one security by symbol, or (zero, sql.ErrNoRows).
func (r *SecurityRepository) Get(symbol string) (domain.Security, error) {
	row := r.db.QueryRow(`SELECT `+securityColumns+` FROM securities WHERE symbol = ?`, symbol)
	s, err := scanSecurity(row)
	if err != nil {
		return domain.Security{}, fmt.Errorf("get security %s: %w", symbol, err)
	}
	return s, nil
}

// ListActive returns all securities with active = 1.
func (r *SecurityRepository) ListActive() ([]domain.Security, error) {
	rows, err := r.db.Query(`SELECT ` + securityColumns + ` FROM securities WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("list active securities: %w", err)
	}
	defer rows.Close()

	var out []domain.Security
	for rows.Next() {
		s, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a security row.
func (r *SecurityRepository) Upsert(s domain.Security) error {
	now := time.Now().Unix()
	lastDivCut := 0
	if s.LastDividendCut {
		lastDivCut = 1
	}
	active, allowBuy, allowSell := 0, 0, 0
	if s.Active {
		active = 1
	}
	if s.AllowBuy {
		allowBuy = 1
	}
	if s.AllowSell {
		allowSell = 1
	}
	_, err := r.db.Exec(`
		INSERT INTO securities (symbol, name, currency, countries, industries, min_lot, active, allow_buy, allow_sell, user_multiplier, last_dividend_cut, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name, currency = excluded.currency, countries = excluded.countries,
			industries = excluded.industries, min_lot = excluded.min_lot, active = excluded.active,
			allow_buy = excluded.allow_buy, allow_sell = excluded.allow_sell,
			user_multiplier = excluded.user_multiplier, last_dividend_cut = excluded.last_dividend_cut,
			updated_at = excluded.updated_at
	`, s.Symbol, s.Name, string(s.Currency), joinCSV(s.Countries), joinCSV(s.Industries),
		s.MinLot, active, allowBuy, allowSell, s.UserMultiplier, lastDivCut, now, now)
	if err != nil {
		return fmt.Errorf("upsert security %s: %w", s.Symbol, err)
	}
	return nil
}

// AllocationTargetRepository wraps universe.db's allocation_targets table.
type AllocationTargetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAllocationTargetRepository creates a repository over an open universe.db connection.
func NewAllocationTargetRepository(db *sql.DB, log zerolog.Logger) *AllocationTargetRepository {
	return &AllocationTargetRepository{db: db, log: log.With().Str("repository", "allocation_targets").Logger()}
}

// ListByKind returns every target for one dimension (geography or industry).
func (r *AllocationTargetRepository) ListByKind(kind domain.AllocationTargetKind) ([]domain.AllocationTarget, error) {
	rows, err := r.db.Query(`SELECT kind, name, weight FROM allocation_targets WHERE kind = ?`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list allocation targets %s: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.AllocationTarget
	for rows.Next() {
		var t domain.AllocationTarget
		var k string
		if err := rows.Scan(&k, &t.Name, &t.Weight); err != nil {
			return nil, fmt.Errorf("scan allocation target: %w", err)
		}
		t.Kind = domain.AllocationTargetKind(k)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces one target weight.
func (r *AllocationTargetRepository) Upsert(t domain.AllocationTarget) error {
	_, err := r.db.Exec(`
		INSERT INTO allocation_targets (kind, name, weight) VALUES (?, ?, ?)
		ON CONFLICT(kind, name) DO UPDATE SET weight = excluded.weight
	`, string(t.Kind), t.Name, t.Weight)
	if err != nil {
		return fmt.Errorf("upsert allocation target %s/%s: %w", t.Kind, t.Name, err)
	}
	return nil
}

// NormalizedWeights returns name -> weight for one kind, normalized so the
// weights sum to 1.0. A kind with zero total weight returns an empty map
// (spec.md §3 invariant 1: skip any kind whose targets sum to zero).
func (r *AllocationTargetRepository) NormalizedWeights(kind domain.AllocationTargetKind) (map[string]float64, error) {
	targets, err := r.ListByKind(kind)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, t := range targets {
		total += t.Weight
	}
	if total <= 0 {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64, len(targets))
	for _, t := range targets {
		out[t.Name] = t.Weight / total
	}
	return out, nil
}

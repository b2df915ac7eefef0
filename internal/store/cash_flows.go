package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// CashFlowRepository wraps ledger.db's cash_flows table, deduplicated on a
// content hash since the broker feed has no stable per-event id.
type CashFlowRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCashFlowRepository creates a repository over an open ledger.db connection.
func NewCashFlowRepository(db *sql.DB, log zerolog.Logger) *CashFlowRepository {
	return &CashFlowRepository{db: db, log: log.With().Str("repository", "cash_flows").Logger()}
}

func scanCashFlow(row interface {
	Scan(dest ...any) error
}) (domain.CashFlow, error) {
	var c domain.CashFlow
	var date int64
	err := row.Scan(&c.ContentHash, &date, &c.Type, &c.Amount, &c.Currency, &c.Comment, &c.RawPayload)
	if err != nil {
		return domain.CashFlow{}, err
	}
	c.Date = time.Unix(date, 0).UTC()
	return c, nil
}

const cashFlowColumns = `content_hash, date, type_id, amount, currency, comment, raw_payload`

// Insert records a cash flow, ignoring it silently if the content hash was
// already seen. Returns whether a new row was actually inserted.
func (r *CashFlowRepository) Insert(c domain.CashFlow) (bool, error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO cash_flows (`+cashFlowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ContentHash, c.Date.Unix(), string(c.Type), c.Amount, string(c.Currency), c.Comment, c.RawPayload)
	if err != nil {
		return false, fmt.Errorf("insert cash flow %s: %w", c.ContentHash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert cash flow %s: %w", c.ContentHash, err)
	}
	return n > 0, nil
}

// ListBetween returns every cash flow in [from, to), ascending, for
// snapshot reconstruction and backtesting.
func (r *CashFlowRepository) ListBetween(from, to time.Time) ([]domain.CashFlow, error) {
	rows, err := r.db.Query(`
		SELECT `+cashFlowColumns+` FROM cash_flows WHERE date >= ? AND date < ? ORDER BY date ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list cash flows between %s and %s: %w", from, to, err)
	}
	defer rows.Close()

	var out []domain.CashFlow
	for rows.Next() {
		c, err := scanCashFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cash flow: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CashBalanceRepository wraps ledger.db's cash_balances table: the current
// spendable cash per currency, maintained incrementally as trades and cash
// flows are ingested.
type CashBalanceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCashBalanceRepository creates a repository over an open ledger.db connection.
func NewCashBalanceRepository(db *sql.DB, log zerolog.Logger) *CashBalanceRepository {
	return &CashBalanceRepository{db: db, log: log.With().Str("repository", "cash_balances").Logger()}
}

// Get returns the balance for one currency, defaulting to zero if unseen.
func (r *CashBalanceRepository) Get(currency domain.Currency) (float64, error) {
	var amount float64
	err := r.db.QueryRow(`SELECT amount FROM cash_balances WHERE currency = ?`, string(currency)).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cash balance %s: %w", currency, err)
	}
	return amount, nil
}

// GetAll returns every currency's balance.
func (r *CashBalanceRepository) GetAll() (map[domain.Currency]float64, error) {
	rows, err := r.db.Query(`SELECT currency, amount FROM cash_balances`)
	if err != nil {
		return nil, fmt.Errorf("list cash balances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Currency]float64)
	for rows.Next() {
		var cur string
		var amount float64
		if err := rows.Scan(&cur, &amount); err != nil {
			return nil, fmt.Errorf("scan cash balance: %w", err)
		}
		out[domain.Currency(cur)] = amount
	}
	return out, rows.Err()
}

// Adjust adds delta to the stored balance for a currency (negative to
// debit), creating the row if it does not yet exist.
func (r *CashBalanceRepository) Adjust(currency domain.Currency, delta float64) error {
	_, err := r.db.Exec(`
		INSERT INTO cash_balances (currency, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(currency) DO UPDATE SET amount = amount + excluded.amount, updated_at = excluded.updated_at
	`, string(currency), delta, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("adjust cash balance %s: %w", currency, err)
	}
	return nil
}

// Set overwrites the stored balance for a currency, used when reconciling
// against a broker-reported figure.
func (r *CashBalanceRepository) Set(currency domain.Currency, amount float64) error {
	_, err := r.db.Exec(`
		INSERT INTO cash_balances (currency, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(currency) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at
	`, string(currency), amount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set cash balance %s: %w", currency, err)
	}
	return nil
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// TradeRepository wraps ledger.db's trades table. Every write is
// deduplicated on broker_trade_id so re-ingesting the same broker feed is
// always safe (spec.md §3 invariant 2).
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a repository over an open ledger.db connection.
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{db: db, log: log.With().Str("repository", "trades").Logger()}
}

func scanTrade(row interface {
	Scan(dest ...any) error
}) (domain.Trade, error) {
	var t domain.Trade
	var executedAt int64
	err := row.Scan(&t.BrokerTradeID, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &t.Commission,
		&t.Currency, &executedAt, &t.RawPayload)
	if err != nil {
		return domain.Trade{}, err
	}
	t.ExecutedAt = time.Unix(executedAt, 0).UTC()
	return t, nil
}

const tradeColumns = `broker_trade_id, symbol, side, quantity, price, commission, currency, executed_at, raw_payload`

// Insert records a trade, ignoring it silently if broker_trade_id was
// already seen. Returns whether a new row was actually inserted.
func (r *TradeRepository) Insert(t domain.Trade) (bool, error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.BrokerTradeID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Commission,
		string(t.Currency), t.ExecutedAt.Unix(), t.RawPayload)
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", t.BrokerTradeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", t.BrokerTradeID, err)
	}
	return n > 0, nil
}

// LastForSymbol returns the most recent trade for a symbol, or
// (zero, sql.ErrNoRows) if the symbol has never traded. Used by the sell
// cooldown check.
func (r *TradeRepository) LastForSymbol(symbol string) (domain.Trade, error) {
	row := r.db.QueryRow(`
		SELECT `+tradeColumns+` FROM trades WHERE symbol = ? ORDER BY executed_at DESC LIMIT 1
	`, symbol)
	t, err := scanTrade(row)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("last trade for %s: %w", symbol, err)
	}
	return t, nil
}

// LastForSymbolSide returns the most recent trade of one side for a symbol.
// Used by the buy/sell cooldown checks, which are side-specific.
func (r *TradeRepository) LastForSymbolSide(symbol string, side domain.TradeSide) (domain.Trade, error) {
	row := r.db.QueryRow(`
		SELECT `+tradeColumns+` FROM trades WHERE symbol = ? AND side = ? ORDER BY executed_at DESC LIMIT 1
	`, symbol, string(side))
	t, err := scanTrade(row)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("last %s trade for %s: %w", side, symbol, err)
	}
	return t, nil
}

// ListBetween returns every trade executed in [from, to), ordered ascending,
// for backtesting and snapshot reconstruction.
func (r *TradeRepository) ListBetween(from, to time.Time) ([]domain.Trade, error) {
	rows, err := r.db.Query(`
		SELECT `+tradeColumns+` FROM trades WHERE executed_at >= ? AND executed_at < ? ORDER BY executed_at ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list trades between %s and %s: %w", from, to, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListForSymbol returns every trade for one symbol, ascending by time.
func (r *TradeRepository) ListForSymbol(symbol string) ([]domain.Trade, error) {
	rows, err := r.db.Query(`SELECT `+tradeColumns+` FROM trades WHERE symbol = ? ORDER BY executed_at ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("list trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Package settings provides the key/value settings store (config.db,
// "settings" table). Every tunable named in spec.md §6 (Configuration) is
// read through this repository so it can be changed at runtime without a
// restart.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Recognized setting keys and their defaults (spec.md §6).
const (
	KeyMinHoldDays                = "min_hold_days"
	KeySellCooldownDays           = "sell_cooldown_days"
	KeyMaxLossThreshold           = "max_loss_threshold"
	KeyMinSellValue               = "min_sell_value"
	KeyMinTradeValue              = "min_trade_value"
	KeyTradeCooloffDays           = "trade_cooloff_days"
	KeyTransactionFeeFixed        = "transaction_fee_fixed"
	KeyTransactionFeePercent      = "transaction_fee_percent"
	KeyMaxPositionPct             = "max_position_pct"
	KeyMinPositionPct             = "min_position_pct"
	KeyTargetCashPct              = "target_cash_pct"
	KeyDiversificationImpactPct   = "diversification_impact_pct"
	KeyMaxDividendReinvestBoost   = "max_dividend_reinvestment_boost"
	KeyRebalanceThreshold         = "rebalance_threshold"
	KeyMLServiceBaseURL           = "ml_service_base_url"
	KeyTradingMode                = "trading_mode"
	KeyTradernetAPIKey            = "tradernet_api_key"
	KeyTradernetAPISecret         = "tradernet_api_secret"
	KeyMaxExchangeRateAgeHours    = "max_exchange_rate_age_hours"
)

const (
	DefaultMinHoldDays              = 90
	DefaultSellCooldownDays         = 180
	DefaultMaxLossThreshold         = -0.20
	DefaultMinSellValueEUR          = 25.0
	DefaultMinTradeValueEUR         = 100.0
	DefaultTradeCooloffDays         = 30
	DefaultTransactionFeeFixed      = 2.0
	DefaultTransactionFeePercent    = 0.2
	DefaultMaxPositionPct           = 20.0
	DefaultMinPositionPct           = 2.0
	DefaultTargetCashPct            = 5.0
	DefaultDiversificationImpactPct = 10.0
	DefaultMaxDividendReinvestBoost = 0.15
	DefaultRebalanceThreshold       = 0.05
	DefaultMLServiceBaseURL         = "http://localhost:8001"
	DefaultTradingMode              = "research"
	DefaultMaxExchangeRateAgeHours  = 48
)

// Repository handles settings database operations against config.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a settings repository over an already-open config.db
// connection.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repository", "settings").Logger()}
}

// Get returns a setting's raw string value, or nil if unset.
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting's raw string value.
func (r *Repository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// GetAll returns every setting as a map, for bulk loading.
func (r *Repository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("failed to scan setting row")
			continue
		}
		result[key] = value
	}
	return result, rows.Err()
}

// GetFloat returns a setting parsed as float64, or defaultValue if unset or
// unparseable (parse failures are logged, not returned as an error, since a
// malformed setting should degrade to the default rather than abort the caller).
func (r *Repository) GetFloat(key string, defaultValue float64) float64 {
	value, err := r.Get(key)
	if err != nil || value == nil {
		return defaultValue
	}
	f, err := strconv.ParseFloat(*value, 64)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Str("value", *value).Msg("failed to parse float setting")
		return defaultValue
	}
	return f
}

// SetFloat upserts a setting as float64.
func (r *Repository) SetFloat(key string, value float64) error {
	return r.Set(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// GetInt returns a setting parsed as int, or defaultValue if unset or unparseable.
func (r *Repository) GetInt(key string, defaultValue int) int {
	return int(r.GetFloat(key, float64(defaultValue)))
}

// SetInt upserts a setting as int.
func (r *Repository) SetInt(key string, value int) error {
	return r.Set(key, strconv.Itoa(value))
}

// GetString returns a setting, or defaultValue if unset.
func (r *Repository) GetString(key, defaultValue string) string {
	value, err := r.Get(key)
	if err != nil || value == nil {
		return defaultValue
	}
	return *value
}

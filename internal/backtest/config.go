// Package backtest implements the Backtester of spec.md §4.10: a day-by-day
// replay of the ACTUAL Planner against a simulated portfolio, never touching
// live state, grounded on original_source/sentinel/backtester.py.
package backtest

import "time"

// RebalanceFrequency gates how often the simulation calls the Planner,
// mirroring backtester.py's RebalanceFrequency class.
type RebalanceFrequency string

const (
	Daily   RebalanceFrequency = "daily"
	Weekly  RebalanceFrequency = "weekly"
	Monthly RebalanceFrequency = "monthly"
)

// UniverseMode selects how the symbol universe for a run is chosen, per
// backtester.py's BacktestConfig.use_existing_universe / pick_random split.
type UniverseMode int

const (
	UniverseExisting UniverseMode = iota
	UniverseRandomSample
	UniverseExplicit
)

// Config is a backtest run's parameters, grounded on backtester.py's
// BacktestConfig dataclass.
type Config struct {
	StartDate          time.Time
	EndDate            time.Time
	InitialCapitalEUR  float64
	MonthlyDepositEUR  float64
	RebalanceFrequency RebalanceFrequency
	UniverseMode       UniverseMode
	RandomCount        int
	Symbols            []string // explicit universe, or a candidate pool for random sampling
	CooloffDays        int
	MinTradeValueEUR   float64
}

// DefaultConfig mirrors BacktestConfig's dataclass field defaults.
func DefaultConfig(start, end time.Time) Config {
	return Config{
		StartDate:          start,
		EndDate:            end,
		InitialCapitalEUR:  10000.0,
		RebalanceFrequency: Weekly,
		UniverseMode:       UniverseExisting,
		RandomCount:        10,
		CooloffDays:        30,
	}
}

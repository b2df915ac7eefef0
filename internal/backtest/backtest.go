package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/allocation"
	"github.com/aristath/sentinel/internal/jobs"
	"github.com/aristath/sentinel/internal/planning"
	"github.com/rs/zerolog"
)

// Backtester runs one simulated replay of the ACTUAL Planner over historical
// data, grounded on backtester.py's Backtester class. The real database is
// never touched: every read goes through PriceSource/FXSource/UniverseProvider,
// and every write lands in an in-memory simulation instance discarded at the
// end of Run (spec.md §4.10, seed scenario S7).
type Backtester struct {
	id          string
	cfg         Config
	universe    UniverseProvider
	prices      PriceSource
	fx          FXSource
	targets     allocation.Targets
	constraints allocation.Constraints
	registry    *jobs.BacktestRegistry
	log         zerolog.Logger
}

// NewBacktester wires a Backtester against its collaborators. id identifies
// this run in the BacktestRegistry for cancellation.
func NewBacktester(id string, cfg Config, universe UniverseProvider, prices PriceSource, fx FXSource, targets allocation.Targets, constraints allocation.Constraints, registry *jobs.BacktestRegistry, log zerolog.Logger) *Backtester {
	return &Backtester{
		id:          id,
		cfg:         cfg,
		universe:    universe,
		prices:      prices,
		fx:          fx,
		targets:     targets,
		constraints: constraints,
		registry:    registry,
		log:         log.With().Str("component", "backtester").Str("backtest_id", id).Logger(),
	}
}

// Run streams Progress updates and, on success, a final Result over the
// returned channel, closing it when done. Mirrors backtester.py's
// Backtester.run async generator's three yield kinds as three Event
// variants (see Event).
func (b *Backtester) Run(ctx context.Context) <-chan Event {
	events := make(chan Event, 8)
	b.registry.Start(b.id)

	go func() {
		defer close(events)
		defer b.registry.Finish(b.id)
		b.run(ctx, events)
	}()

	return events
}

func (b *Backtester) run(ctx context.Context, events chan<- Event) {
	events <- Event{Progress: &Progress{Status: StatusPreparing, Phase: PhasePrepareDB, Message: "Preparing simulation"}}

	events <- Event{Progress: &Progress{Status: StatusDiscovering, Phase: PhaseDiscoverSymbols, Message: "Discovering securities"}}
	catalog, err := discoverUniverse(ctx, b.cfg, b.universe)
	if err != nil {
		events <- Event{Err: fmt.Errorf("discover universe: %w", err)}
		return
	}
	if len(catalog) == 0 {
		events <- Event{Progress: &Progress{Status: StatusError, Phase: PhaseDiscoverSymbols, Message: "No securities found for backtest"}}
		return
	}

	total := len(catalog)
	for i, c := range catalog {
		events <- Event{Progress: &Progress{
			Status: StatusDownloading, Phase: PhaseDownloadPrices,
			Message: "Preparing historical data", CurrentItem: c.Symbol,
			ItemsDone: i, ItemsTotal: total, ProgressPct: float64(i) / float64(total) * 100,
		}}
	}

	sim := newSimulation(catalog, b.prices, b.fx, b.targets, b.cfg.InitialCapitalEUR)
	planner := planning.NewPlanner(sim, nil, b.constraints, b.log)

	totalDeposits := b.cfg.InitialCapitalEUR
	var snapshots []Snapshot
	totalDays := int(b.cfg.EndDate.Sub(b.cfg.StartDate).Hours() / 24)
	daysProcessed := 0
	var lastRebalanceDate time.Time
	var lastMonthDeposited time.Month

	for current := b.cfg.StartDate; !current.After(b.cfg.EndDate); current = current.AddDate(0, 0, 1) {
		if b.registry.Canceled(b.id) {
			sim.setDate(current)
			events <- Event{Progress: &Progress{
				CurrentDate: current, Status: StatusCancelled, Phase: PhaseSimulate,
				Message: "Backtest cancelled", PortfolioValueEUR: sim.portfolioValueEUR(ctx),
			}}
			return
		}

		if current.Weekday() == time.Saturday || current.Weekday() == time.Sunday {
			daysProcessed++
			continue
		}

		sim.setDate(current)

		if b.cfg.MonthlyDepositEUR > 0 && current.Day() == 1 && current.Month() != lastMonthDeposited {
			sim.depositCash(b.cfg.MonthlyDepositEUR)
			totalDeposits += b.cfg.MonthlyDepositEUR
			lastMonthDeposited = current.Month()
		}

		if shouldRebalance(current, lastRebalanceDate, b.cfg.RebalanceFrequency) {
			if err := b.executeRebalance(ctx, planner, sim, current); err != nil {
				events <- Event{Err: fmt.Errorf("execute rebalance on %s: %w", current.Format("2006-01-02"), err)}
				return
			}
			lastRebalanceDate = current
		}

		snap := sim.snapshot(ctx)
		snapshots = append(snapshots, snap)

		if daysProcessed%5 == 0 {
			pct := 0.0
			if totalDays > 0 {
				pct = float64(daysProcessed) / float64(totalDays) * 100
			}
			events <- Event{Progress: &Progress{
				CurrentDate: current, ProgressPct: pct, PortfolioValueEUR: snap.TotalValueEUR,
				Status: StatusRunning, Phase: PhaseSimulate, Message: "Running simulation",
			}}
		}

		daysProcessed++
	}

	result := computeResult(b.cfg, snapshots, sim.trades, totalDeposits, sim.tracking)
	events <- Event{Result: &result}
}

// shouldRebalance gates the rebalance-frequency setting, grounded on
// backtester.py's Backtester._should_rebalance.
func shouldRebalance(current, last time.Time, freq RebalanceFrequency) bool {
	if last.IsZero() {
		return true
	}
	switch freq {
	case Daily:
		return true
	case Monthly:
		return current.Month() != last.Month() || current.Year() != last.Year()
	default: // Weekly
		return current.Weekday() == time.Monday && current.Sub(last).Hours()/24 >= 5
	}
}

// executeRebalance asks the ACTUAL Planner for recommendations as of the
// current simulated date and applies each one that clears the cool-off
// check, grounded on backtester.py's Backtester._execute_rebalance.
func (b *Backtester) executeRebalance(ctx context.Context, planner *planning.Planner, sim *simulation, current time.Time) error {
	asOf := current
	result, err := planner.GetRecommendations(ctx, &asOf, b.cfg.MinTradeValueEUR)
	if err != nil {
		return err
	}

	for _, rec := range result.Recommendations {
		if sim.isInCooloff(rec.Symbol, rec.Action, b.cfg.CooloffDays) {
			continue
		}
		sim.executeTrade(ctx, rec)
	}
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// Handler executes one job's work. ctx carries the active-backtest
// cancellation signal (spec.md §4.8's global handle) via context.
type Handler func(ctx context.Context) error

// MarketStatus reports how many markets the active universe touches are
// currently open, the input to the market-timing gate.
type MarketStatus interface {
	OpenMarketCount(ctx context.Context) (int, error)
}

// ScheduleStore is the subset of store.JobScheduleRepository the runtime
// needs, kept as an interface so tests don't need a live database.
type ScheduleStore interface {
	ListAll() ([]domain.JobSchedule, error)
	MarkSucceeded(jobType string, ranAt time.Time) error
	MarkFailed(jobType string, ranAt time.Time) error
}

// HistoryStore is the subset of store.JobHistoryRepository the runtime
// appends to after every dispatch attempt.
type HistoryStore interface {
	Insert(entry domain.JobHistoryEntry) error
}

// Runtime is the single cooperative dispatch loop of spec.md §4.8: on each
// tick it sweeps every registered schedule, dispatching the ones whose
// expiry and market-timing predicates both hold.
type Runtime struct {
	schedules ScheduleStore
	history   HistoryStore
	market    MarketStatus
	handlers  map[string]Handler
	log       zerolog.Logger
	clock     func() time.Time
}

// NewRuntime wires a Runtime against its store collaborators and the
// registered per-job-type handler map.
func NewRuntime(schedules ScheduleStore, history HistoryStore, market MarketStatus, handlers map[string]Handler, log zerolog.Logger) *Runtime {
	return &Runtime{
		schedules: schedules,
		history:   history,
		market:    market,
		handlers:  handlers,
		log:       log.With().Str("component", "job_runtime").Logger(),
		clock:     time.Now,
	}
}

// Tick sweeps every registered schedule once, dispatching the due ones.
// Parameterized jobs (job_type containing ":param") resolve their handler
// by the portion before the colon, per spec.md §4.8 point 5.
func (rt *Runtime) Tick(ctx context.Context) error {
	schedules, err := rt.schedules.ListAll()
	if err != nil {
		return fmt.Errorf("list job schedules: %w", err)
	}

	openCount := 0
	if rt.market != nil {
		openCount, err = rt.market.OpenMarketCount(ctx)
		if err != nil {
			rt.log.Warn().Err(err).Msg("failed to resolve market status, treating as all-closed")
			openCount = 0
		}
	}

	now := rt.clock()
	for _, schedule := range schedules {
		if !ShouldRun(schedule, openCount, now) {
			continue
		}
		rt.dispatch(ctx, schedule, now)
	}
	return nil
}

func (rt *Runtime) dispatch(ctx context.Context, schedule domain.JobSchedule, dispatchedAt time.Time) {
	handler, ok := rt.handlers[baseJobType(schedule.JobType)]
	if !ok {
		rt.log.Warn().Str("job_type", schedule.JobType).Msg("no handler registered for job type")
		return
	}

	start := time.Now()
	err := handler(ctx)
	duration := time.Since(start)

	status := domain.JobCompleted
	errMsg := ""
	if err != nil {
		status = domain.JobFailed
		errMsg = err.Error()
	}

	entry := domain.JobHistoryEntry{
		JobID:      fmt.Sprintf("%s-%d", schedule.JobType, dispatchedAt.Unix()),
		JobType:    schedule.JobType,
		Status:     status,
		Error:      errMsg,
		DurationMS: duration.Milliseconds(),
		ExecutedAt: dispatchedAt,
		RetryCount: schedule.ConsecutiveFailures,
	}
	if histErr := rt.history.Insert(entry); histErr != nil {
		rt.log.Error().Err(histErr).Str("job_type", schedule.JobType).Msg("failed to write job history")
	}

	if err != nil {
		rt.log.Error().Err(err).Str("job_type", schedule.JobType).Msg("job failed")
		if markErr := rt.schedules.MarkFailed(schedule.JobType, dispatchedAt); markErr != nil {
			rt.log.Error().Err(markErr).Str("job_type", schedule.JobType).Msg("failed to record job failure")
		}
		return
	}

	if markErr := rt.schedules.MarkSucceeded(schedule.JobType, dispatchedAt); markErr != nil {
		rt.log.Error().Err(markErr).Str("job_type", schedule.JobType).Msg("failed to record job success")
	}
}

// baseJobType strips a parameterized job's ":param" suffix to resolve its
// handler, e.g. "price_sync:AAPL" -> "price_sync".
func baseJobType(jobType string) string {
	for i := 0; i < len(jobType); i++ {
		if jobType[i] == ':' {
			return jobType[:i]
		}
	}
	return jobType
}

// Run drives Tick on a fixed cadence until ctx is canceled, the dispatch
// loop's top-level entry point.
func (rt *Runtime) Run(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rt.Tick(ctx); err != nil {
				rt.log.Error().Err(err).Msg("job runtime tick failed")
			}
		}
	}
}

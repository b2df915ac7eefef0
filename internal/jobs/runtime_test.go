package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExpired_NeverRunIsExpired(t *testing.T) {
	job := domain.JobSchedule{JobType: "x", IntervalMinutes: 60}
	assert.True(t, IsExpired(job, false, time.Now()))
}

func TestIsExpired_BackoffUsesExponentialInterval(t *testing.T) {
	now := time.Now()
	job := domain.JobSchedule{
		JobType: "x", IntervalMinutes: 1440, ConsecutiveFailures: 2,
		LastRun: now.Add(-5 * time.Minute), // 2^2 = 4 minutes backoff
	}
	assert.True(t, IsExpired(job, false, now))
}

func TestIsExpired_BackoffCapsAtThreeFailures(t *testing.T) {
	now := time.Now()
	job := domain.JobSchedule{
		JobType: "x", IntervalMinutes: 30, ConsecutiveFailures: 3,
		LastRun: now.Add(-10 * time.Minute), // reverts to normal 30-minute interval
	}
	assert.False(t, IsExpired(job, false, now))
}

func TestIsExpired_MarketOpenIntervalOverridesWhenOpen(t *testing.T) {
	now := time.Now()
	openInterval := 5
	job := domain.JobSchedule{
		JobType: "x", IntervalMinutes: 60, IntervalMarketOpenMinutes: &openInterval,
		LastRun: now.Add(-6 * time.Minute),
	}
	assert.True(t, IsExpired(job, true, now))
	assert.False(t, IsExpired(job, false, now))
}

func TestMarketTimingPasses(t *testing.T) {
	assert.True(t, MarketTimingPasses(domain.MarketTimingAnyTime, 0))
	assert.True(t, MarketTimingPasses(domain.MarketTimingDuringOpen, 1))
	assert.False(t, MarketTimingPasses(domain.MarketTimingDuringOpen, 0))
	assert.True(t, MarketTimingPasses(domain.MarketTimingAllClosed, 0))
	assert.False(t, MarketTimingPasses(domain.MarketTimingAllClosed, 1))
}

type fakeScheduleStore struct {
	schedules []domain.JobSchedule
	succeeded []string
	failed    []string
}

func (f *fakeScheduleStore) ListAll() ([]domain.JobSchedule, error) { return f.schedules, nil }
func (f *fakeScheduleStore) MarkSucceeded(jobType string, ranAt time.Time) error {
	f.succeeded = append(f.succeeded, jobType)
	return nil
}
func (f *fakeScheduleStore) MarkFailed(jobType string, ranAt time.Time) error {
	f.failed = append(f.failed, jobType)
	return nil
}

type fakeHistoryStore struct {
	entries []domain.JobHistoryEntry
}

func (f *fakeHistoryStore) Insert(entry domain.JobHistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeMarketStatus struct{ count int }

func (f fakeMarketStatus) OpenMarketCount(ctx context.Context) (int, error) { return f.count, nil }

func TestRuntime_Tick_DispatchesDueJobAndMarksSucceeded(t *testing.T) {
	schedules := &fakeScheduleStore{schedules: []domain.JobSchedule{
		{JobType: "price_sync", IntervalMinutes: 60},
	}}
	history := &fakeHistoryStore{}
	handlerCalled := false
	handlers := map[string]Handler{
		"price_sync": func(ctx context.Context) error { handlerCalled = true; return nil },
	}

	rt := NewRuntime(schedules, history, fakeMarketStatus{count: 0}, handlers, zerolog.Nop())
	require.NoError(t, rt.Tick(context.Background()))

	assert.True(t, handlerCalled)
	assert.Equal(t, []string{"price_sync"}, schedules.succeeded)
	assert.Len(t, history.entries, 1)
	assert.Equal(t, domain.JobCompleted, history.entries[0].Status)
}

func TestRuntime_Tick_MarksFailedOnHandlerError(t *testing.T) {
	schedules := &fakeScheduleStore{schedules: []domain.JobSchedule{
		{JobType: "scoring", IntervalMinutes: 60},
	}}
	history := &fakeHistoryStore{}
	handlers := map[string]Handler{
		"scoring": func(ctx context.Context) error { return errors.New("boom") },
	}

	rt := NewRuntime(schedules, history, fakeMarketStatus{}, handlers, zerolog.Nop())
	require.NoError(t, rt.Tick(context.Background()))

	assert.Equal(t, []string{"scoring"}, schedules.failed)
	assert.Equal(t, domain.JobFailed, history.entries[0].Status)
	assert.Equal(t, "boom", history.entries[0].Error)
}

func TestRuntime_Tick_SkipsNotDueJob(t *testing.T) {
	schedules := &fakeScheduleStore{schedules: []domain.JobSchedule{
		{JobType: "fx_sync", IntervalMinutes: 60, LastRun: time.Now()},
	}}
	history := &fakeHistoryStore{}
	called := false
	handlers := map[string]Handler{"fx_sync": func(ctx context.Context) error { called = true; return nil }}

	rt := NewRuntime(schedules, history, fakeMarketStatus{}, handlers, zerolog.Nop())
	require.NoError(t, rt.Tick(context.Background()))

	assert.False(t, called)
	assert.Empty(t, history.entries)
}

func TestRuntime_Dispatch_ParameterizedJobResolvesBaseHandler(t *testing.T) {
	schedules := &fakeScheduleStore{schedules: []domain.JobSchedule{
		{JobType: "price_sync:AAPL", IntervalMinutes: 60},
	}}
	history := &fakeHistoryStore{}
	called := false
	handlers := map[string]Handler{"price_sync": func(ctx context.Context) error { called = true; return nil }}

	rt := NewRuntime(schedules, history, fakeMarketStatus{}, handlers, zerolog.Nop())
	require.NoError(t, rt.Tick(context.Background()))

	assert.True(t, called)
}

func TestBacktestRegistry_CancelAndCanceled(t *testing.T) {
	reg := NewBacktestRegistry()
	reg.Start("bt-1")
	assert.False(t, reg.Canceled("bt-1"))

	assert.True(t, reg.Cancel("bt-1"))
	assert.True(t, reg.Canceled("bt-1"))

	assert.False(t, reg.Cancel("bt-2"))

	reg.Finish("bt-1")
	assert.Equal(t, "", reg.Active())
}

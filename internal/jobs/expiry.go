// Package jobs implements the Job Runtime of spec.md §4.8: a single
// cooperative dispatch loop driven by a DB-backed schedule table, gated
// by time, market timing, and failure backoff.
package jobs

import (
	"math"
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

// maxBackoffFailures is the point beyond which backoff reverts to the
// schedule's normal interval, per spec.md §4.8's expiry predicate.
const maxBackoffFailures = 3

// effectiveIntervalMinutes picks the interval a schedule should use right
// now: exponential backoff while 0 < failures < 3, otherwise the
// market-open interval when the market is open and configured, else the
// normal interval.
func effectiveIntervalMinutes(job domain.JobSchedule, marketOpen bool) float64 {
	if job.ConsecutiveFailures > 0 && job.ConsecutiveFailures < maxBackoffFailures {
		return math.Pow(2, float64(job.ConsecutiveFailures))
	}
	if marketOpen && job.IntervalMarketOpenMinutes != nil {
		return float64(*job.IntervalMarketOpenMinutes)
	}
	return float64(job.IntervalMinutes)
}

// IsExpired implements spec.md §4.8's is_expired(job, market_open)
// predicate: never-run jobs are always expired; otherwise expired iff
// now - last_run >= interval (in seconds).
func IsExpired(job domain.JobSchedule, marketOpen bool, now time.Time) bool {
	if job.LastRun.IsZero() {
		return true
	}
	intervalSeconds := effectiveIntervalMinutes(job, marketOpen) * 60
	return now.Sub(job.LastRun).Seconds() >= intervalSeconds
}

// MarketTimingPasses evaluates spec.md §4.8's market-timing gate against
// the count of currently-open markets among those the active universe
// touches.
func MarketTimingPasses(timing domain.MarketTiming, openMarketCount int) bool {
	switch timing {
	case domain.MarketTimingAnyTime, domain.MarketTimingAny:
		return true
	case domain.MarketTimingDuringOpen:
		return openMarketCount >= 1
	case domain.MarketTimingAllClosed:
		return openMarketCount == 0
	default:
		return true
	}
}

// ShouldRun combines the expiry and market-timing predicates, the two
// gates the dispatch loop checks per schedule each tick.
func ShouldRun(job domain.JobSchedule, openMarketCount int, now time.Time) bool {
	marketOpen := openMarketCount > 0
	return IsExpired(job, marketOpen, now) && MarketTimingPasses(job.MarketTiming, openMarketCount)
}

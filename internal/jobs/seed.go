package jobs

import "github.com/aristath/sentinel/internal/domain"

// intPtr is a small helper for the optional IntervalMarketOpenMinutes field.
func intPtr(v int) *int { return &v }

// SeedSchedules is the default schedule set from spec.md §4.8, registered
// once at startup via ScheduleStore-equivalent's Register (which never
// overwrites an existing row, so operator edits survive restarts).
func SeedSchedules() []domain.JobSchedule {
	return []domain.JobSchedule{
		{JobType: "portfolio_sync", IntervalMinutes: 30, MarketTiming: domain.MarketTimingDuringOpen, Category: "sync", Description: "Sync positions and cash balances from the broker."},
		{JobType: "price_sync", IntervalMinutes: 60, IntervalMarketOpenMinutes: intPtr(15), MarketTiming: domain.MarketTimingAnyTime, Category: "sync", Description: "Sync latest OHLCV bars for the active universe."},
		{JobType: "quote_sync", IntervalMinutes: 30, IntervalMarketOpenMinutes: intPtr(5), MarketTiming: domain.MarketTimingDuringOpen, Category: "sync", Description: "Sync live quotes for held positions."},
		{JobType: "metadata_sync", IntervalMinutes: 1440, MarketTiming: domain.MarketTimingAnyTime, Category: "sync", Description: "Sync security metadata (name, currency)."},
		{JobType: "fx_sync", IntervalMinutes: 60, MarketTiming: domain.MarketTimingAnyTime, Category: "sync", Description: "Sync currency exchange rates."},
		{JobType: "trade_sync", IntervalMinutes: 30, MarketTiming: domain.MarketTimingAnyTime, Category: "sync", Description: "Sync executed trades from the broker."},
		{JobType: "cash_flow_sync", IntervalMinutes: 60, MarketTiming: domain.MarketTimingAnyTime, Category: "sync", Description: "Sync deposits, withdrawals, and fees."},
		{JobType: "dividend_sync", IntervalMinutes: 1440, MarketTiming: domain.MarketTimingAnyTime, Category: "sync", Description: "Flag dividend cuts reported in broker corporate actions."},
		{JobType: "scoring", IntervalMinutes: 240, MarketTiming: domain.MarketTimingAnyTime, Category: "analysis", Description: "Recompute sell scores for held positions."},
		{JobType: "market_status_check", IntervalMinutes: 15, MarketTiming: domain.MarketTimingAnyTime, Category: "monitoring", Description: "Refresh open/closed state for tracked markets."},
		{JobType: "trade_execute", IntervalMinutes: 30, MarketTiming: domain.MarketTimingDuringOpen, Category: "execution", Description: "Submit queued trade recommendations to the broker."},
		{JobType: "rebalance_planning_refresh", IntervalMinutes: 60, IntervalMarketOpenMinutes: intPtr(15), MarketTiming: domain.MarketTimingAnyTime, Category: "analysis", Description: "Refresh the cached Planner recommendation list."},
		{JobType: "balance_fix", IntervalMinutes: 15, MarketTiming: domain.MarketTimingAnyTime, Category: "maintenance", Description: "Reconcile stored cash balances against broker-reported balances."},
		{JobType: "aggregate_recompute", IntervalMinutes: 720, MarketTiming: domain.MarketTimingAnyTime, Category: "maintenance", Description: "Recompute portfolio snapshots and aggregates."},
		{JobType: "r2_backup", IntervalMinutes: 1440, MarketTiming: domain.MarketTimingAnyTime, Category: "maintenance", Description: "Upload database backups to R2-compatible storage."},
	}
}

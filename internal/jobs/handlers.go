package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/clients/openfigi"
	"github.com/aristath/sentinel/internal/currency"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/planning"
	"github.com/aristath/sentinel/internal/reliability"
	"github.com/aristath/sentinel/internal/scoring"
	"github.com/aristath/sentinel/internal/settings"
	"github.com/aristath/sentinel/internal/store"
)

// priceHistoryYears bounds how far back price_sync backfills OHLCV bars for
// a symbol it has no history for yet.
const priceHistoryYears = 3

// Handlers wires every Sentinel job type (spec.md §4.8's seeded schedule
// set) against the live broker, store repositories, Planner, and event
// bus. One Handlers instance backs the entire Map() handler registration
// cmd/server passes to NewRuntime.
type Handlers struct {
	brokerAPI    broker.Broker
	securities   *store.SecurityRepository
	positions    *store.PositionRepository
	cashBalances *store.CashBalanceRepository
	cashFlows    *store.CashFlowRepository
	trades       *store.TradeRepository
	priceBars    *store.PriceBarRepository
	fxRates      *store.FXRateRepository
	scores       *store.ScoreRepository
	snapshots    *store.SnapshotRepository
	converter    *currency.Converter
	settings     *settings.Repository
	planner      *planning.Planner
	events       *events.Manager
	r2Backup     *reliability.R2BackupService
	figi         *openfigi.Client
	log          zerolog.Logger
}

// NewHandlers wires a Handlers against every collaborator its 15 job
// methods need.
func NewHandlers(
	brokerAPI broker.Broker,
	securities *store.SecurityRepository,
	positions *store.PositionRepository,
	cashBalances *store.CashBalanceRepository,
	cashFlows *store.CashFlowRepository,
	trades *store.TradeRepository,
	priceBars *store.PriceBarRepository,
	fxRates *store.FXRateRepository,
	scores *store.ScoreRepository,
	snapshots *store.SnapshotRepository,
	converter *currency.Converter,
	settingsRepo *settings.Repository,
	planner *planning.Planner,
	eventManager *events.Manager,
	r2Backup *reliability.R2BackupService,
	figi *openfigi.Client,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		brokerAPI:    brokerAPI,
		securities:   securities,
		positions:    positions,
		cashBalances: cashBalances,
		cashFlows:    cashFlows,
		trades:       trades,
		priceBars:    priceBars,
		fxRates:      fxRates,
		scores:       scores,
		snapshots:    snapshots,
		converter:    converter,
		settings:     settingsRepo,
		planner:      planner,
		events:       eventManager,
		r2Backup:     r2Backup,
		figi:         figi,
		log:          log.With().Str("component", "job_handlers").Logger(),
	}
}

// Map returns the jobType -> Handler registration SeedSchedules' 15 entries
// resolve against at dispatch time.
func (h *Handlers) Map() map[string]Handler {
	return map[string]Handler{
		"portfolio_sync":             h.portfolioSync,
		"price_sync":                 h.priceSync,
		"quote_sync":                 h.quoteSync,
		"metadata_sync":              h.metadataSync,
		"fx_sync":                    h.fxSync,
		"trade_sync":                 h.tradeSync,
		"cash_flow_sync":             h.cashFlowSync,
		"dividend_sync":              h.dividendSync,
		"scoring":                    h.scoringJob,
		"market_status_check":        h.marketStatusCheck,
		"trade_execute":              h.tradeExecute,
		"rebalance_planning_refresh": h.rebalancePlanningRefresh,
		"balance_fix":                h.balanceFix,
		"aggregate_recompute":        h.aggregateRecompute,
		"r2_backup":                  h.r2BackupJob,
	}
}

// portfolioSync pulls the broker's current positions and cash balances and
// upserts them into portfolio.db, the source of truth CurrentState reads
// from between syncs.
func (h *Handlers) portfolioSync(ctx context.Context) error {
	p, err := h.brokerAPI.GetPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("get broker portfolio: %w", err)
	}

	for _, pos := range p.Positions {
		if err := h.positions.Upsert(domain.Position{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			AverageCost:  pos.AvgCost,
			CurrentPrice: pos.CurrentPrice,
			Currency:     domain.Currency(pos.Currency),
		}); err != nil {
			h.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("failed to upsert position")
		}
	}
	for ccy, amount := range p.Cash {
		if err := h.cashBalances.Set(domain.Currency(ccy), amount); err != nil {
			h.log.Error().Err(err).Str("currency", ccy).Msg("failed to set cash balance")
		}
	}

	h.events.Emit(events.PortfolioChanged, "jobs.portfolio_sync", map[string]interface{}{"positions": len(p.Positions)})
	return nil
}

// priceSync backfills each active security's OHLCV history in history.db,
// one broker call covering every symbol the way
// broker.GetHistoricalPricesBulk batches it.
func (h *Handlers) priceSync(ctx context.Context) error {
	securities, err := h.securities.ListActive()
	if err != nil {
		return fmt.Errorf("list active securities: %w", err)
	}
	symbols := make([]string, len(securities))
	for i, s := range securities {
		symbols[i] = s.Symbol
	}

	bulk, err := h.brokerAPI.GetHistoricalPricesBulk(ctx, symbols, priceHistoryYears)
	if err != nil {
		return fmt.Errorf("get historical prices: %w", err)
	}

	for symbol, bars := range bulk {
		for _, bar := range bars {
			date, err := time.Parse("2006-01-02", bar.Date)
			if err != nil {
				continue
			}
			if err := h.priceBars.Upsert(domain.PriceBar{
				Symbol: symbol,
				Date:   date,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: bar.Volume,
			}); err != nil {
				h.log.Error().Err(err).Str("symbol", symbol).Str("date", bar.Date).Msg("failed to upsert price bar")
			}
		}
		h.events.Emit(events.PriceUpdated, "jobs.price_sync", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	}
	return nil
}

// quoteSync refreshes held positions' live price from the broker's quote
// feed, the fast between-bar-close signal trade_execute and the Planner's
// live recommendations depend on.
func (h *Handlers) quoteSync(ctx context.Context) error {
	positions, err := h.positions.ListActive()
	if err != nil {
		return fmt.Errorf("list active positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}

	quotes, err := h.brokerAPI.GetQuotes(ctx, symbols)
	if err != nil {
		return fmt.Errorf("get quotes: %w", err)
	}

	for symbol, q := range quotes {
		if q.Price <= 0 {
			continue
		}
		if err := h.positions.UpdatePrice(symbol, q.Price); err != nil {
			h.log.Error().Err(err).Str("symbol", symbol).Msg("failed to update live price")
		}
	}
	return nil
}

// metadataSync refreshes each active security's broker-reported name,
// currency, and tradeability flags, the low-frequency housekeeping pass
// spec.md §4.8 schedules once a day.
func (h *Handlers) metadataSync(ctx context.Context) error {
	available, err := h.brokerAPI.GetAvailableSecurities(ctx)
	if err != nil {
		return fmt.Errorf("list broker available securities: %w", err)
	}
	byCurrency := make(map[string]string, len(available))
	for _, a := range available {
		byCurrency[a.Symbol] = a.Currency
	}

	securities, err := h.securities.ListActive()
	if err != nil {
		return fmt.Errorf("list active securities: %w", err)
	}
	for _, sec := range securities {
		if ccy, ok := byCurrency[sec.Symbol]; ok && ccy != "" {
			sec.Currency = domain.Currency(ccy)
		}
		if h.figi != nil && sec.Name == "" {
			if result, err := h.figi.LookupByTicker(sec.Symbol, ""); err != nil {
				h.log.Debug().Err(err).Str("symbol", sec.Symbol).Msg("openfigi ticker lookup failed")
			} else if result != nil && result.Name != "" {
				sec.Name = result.Name
			}
		}
		if err := h.securities.Upsert(sec); err != nil {
			h.log.Error().Err(err).Str("symbol", sec.Symbol).Msg("failed to upsert security metadata")
		}
	}
	return nil
}

// fxSync refreshes the cached rate-to-EUR for every currency this universe
// trades in, keeping the Currency Converter's DB-cache fallback tier warm
// even when nothing calls Rate directly for a while.
func (h *Handlers) fxSync(ctx context.Context) error {
	for _, ccy := range []domain.Currency{domain.USD, domain.GBP, domain.HKD} {
		rate := h.converter.Rate(ctx, ccy)
		h.log.Debug().Str("currency", string(ccy)).Float64("rate_to_eur", rate).Msg("fx rate refreshed")
	}
	return nil
}

// tradeSync pulls executed trades from the broker's trade-history feed and
// inserts any this repository hasn't recorded yet, keyed by broker trade
// ID for dedup.
func (h *Handlers) tradeSync(ctx context.Context) error {
	end := time.Now()
	start := end.AddDate(0, 0, -7)
	rows, err := h.brokerAPI.GetTradesHistory(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("get broker trades history: %w", err)
	}

	inserted := 0
	for _, row := range rows {
		side := domain.Buy
		if row.Side == 2 {
			side = domain.Sell
		}
		executedAt, err := time.Parse(time.RFC3339, row.ExecutedAt)
		if err != nil {
			continue
		}
		isNew, err := h.trades.Insert(domain.Trade{
			BrokerTradeID: row.BrokerTradeID,
			Symbol:        row.Symbol,
			Side:          side,
			Quantity:      row.Quantity,
			Price:         row.Price,
			Commission:    row.Commission,
			Currency:      domain.Currency(row.Currency),
			ExecutedAt:    executedAt,
		})
		if err != nil {
			h.log.Error().Err(err).Str("broker_trade_id", row.BrokerTradeID).Msg("failed to insert trade")
			continue
		}
		if isNew {
			inserted++
			h.events.EmitTyped(events.TradeExecuted, "jobs.trade_sync", &events.TradeExecutedData{
				Symbol: row.Symbol, Side: string(side), Quantity: row.Quantity, Price: row.Price,
			})
		}
	}
	h.log.Info().Int("inserted", inserted).Msg("trade sync complete")
	return nil
}

// cashFlowSync pulls deposits/withdrawals/fees/tax/block movements from
// the broker's cash-flow feed, deduping on the broker's content hash.
func (h *Handlers) cashFlowSync(ctx context.Context) error {
	end := time.Now()
	start := end.AddDate(0, 0, -30)
	rows, err := h.brokerAPI.GetCashFlows(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("get broker cash flows: %w", err)
	}

	inserted := 0
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			continue
		}
		isNew, err := h.cashFlows.Insert(domain.CashFlow{
			ContentHash: row.ContentHash,
			Date:        date,
			Type:        domain.CashFlowType(row.Type),
			Amount:      row.Amount,
			Currency:    domain.Currency(row.Currency),
			Comment:     row.Comment,
		})
		if err != nil {
			h.log.Error().Err(err).Str("content_hash", row.ContentHash).Msg("failed to insert cash flow")
			continue
		}
		if isNew {
			inserted++
			if domain.CashFlowType(row.Type) == domain.CashFlowDeposit {
				h.events.Emit(events.DepositProcessed, "jobs.cash_flow_sync", map[string]interface{}{"amount": row.Amount, "currency": row.Currency})
			}
		}
	}
	h.log.Info().Int("inserted", inserted).Msg("cash flow sync complete")
	return nil
}

// dividendSync pulls corporate actions and flags a security's
// LastDividendCut when the broker reports a dividend
// change below -20%. The flag is only stored on the security; the scoring
// package does not read it.
func (h *Handlers) dividendSync(ctx context.Context) error {
	end := time.Now()
	start := end.AddDate(0, -3, 0)
	actions, err := h.brokerAPI.GetCorporateActions(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("get corporate actions: %w", err)
	}

	for _, action := range actions {
		if action.Type != "dividend" {
			continue
		}
		if action.Value >= -0.20 {
			continue
		}
		sec, err := h.securities.Get(action.Symbol)
		if err != nil {
			continue
		}
		if sec.LastDividendCut {
			continue
		}
		sec.LastDividendCut = true
		if err := h.securities.Upsert(sec); err != nil {
			h.log.Error().Err(err).Str("symbol", action.Symbol).Msg("failed to flag dividend cut")
			continue
		}
		h.events.Emit(events.DividendDetected, "jobs.dividend_sync", map[string]interface{}{"symbol": action.Symbol, "change": action.Value})
	}
	return nil
}

// scoringJob recomputes the Sell Scorer's result for every held position,
// persisting the score so Targets/RebalanceData can read it without
// recomputing it inline on every Planner call.
func (h *Handlers) scoringJob(ctx context.Context) error {
	positions, err := h.positions.ListActive()
	if err != nil {
		return fmt.Errorf("list active positions: %w", err)
	}

	settingsVal := scoring.Settings{
		MinHoldDays:      h.settings.GetInt(settings.KeyMinHoldDays, 30),
		SellCooldownDays: h.settings.GetInt(settings.KeySellCooldownDays, 14),
		MaxLossThreshold: h.settings.GetFloat(settings.KeyMaxLossThreshold, -0.30),
		MinSellValueEUR:  h.settings.GetFloat(settings.KeyMinSellValue, 50),
	}

	totalValueEUR := 0.0
	positionValuesEUR := make(map[string]float64, len(positions))
	for _, pos := range positions {
		valueEUR := h.converter.ToEUR(ctx, pos.Quantity*pos.CurrentPrice, pos.Currency)
		positionValuesEUR[pos.Symbol] = valueEUR
		totalValueEUR += valueEUR
	}

	for _, pos := range positions {
		sec, err := h.securities.Get(pos.Symbol)
		if err != nil {
			continue
		}

		bars, err := h.priceBars.ListRange(pos.Symbol, time.Now().AddDate(-1, 0, 0), time.Now())
		closes := make([]float64, 0, len(bars))
		for _, b := range bars {
			closes = append(closes, b.Close)
		}

		result := scoring.Score(
			scoring.Position{
				Symbol:        pos.Symbol,
				Quantity:      pos.Quantity,
				AverageCost:   pos.AverageCost,
				CurrentPrice:  pos.CurrentPrice,
				ValueEUR:      positionValuesEUR[pos.Symbol],
				MinLot:        sec.MinLot,
				AllowSell:     sec.AllowSell,
				FirstBoughtAt: pos.FirstBoughtAt,
				LastSoldAt:    pos.LastSoldAt,
			},
			totalValueEUR,
			scoring.ComputeTechnicalIndicators(closes),
			scoring.ComputeDrawdownAnalytics(closes),
			settingsVal,
			time.Now(),
		)

		if err := h.scores.Insert(domain.Score{
			Symbol:       pos.Symbol,
			Value:        result.TotalScore,
			CalculatedAt: time.Now(),
		}); err != nil {
			h.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("failed to insert score")
			continue
		}
		h.events.Emit(events.ScoreUpdated, "jobs.scoring", map[string]interface{}{"symbol": pos.Symbol, "score": result.TotalScore})
	}
	return nil
}

// marketStatusCheck is a no-op dispatch target: the live market-open/closed
// state is already maintained continuously by
// tradernet.MarketStatusWebSocket, which the Job Runtime's ShouldRun gate
// reads through the MarketStatus interface. The schedule row exists so an
// operator sees "last checked" in the job history even though nothing is
// fetched synchronously here.
func (h *Handlers) marketStatusCheck(ctx context.Context) error {
	return nil
}

// tradeExecute submits the Planner's current top recommendation to the
// broker, one trade per tick to keep the live-money surface small and
// auditable (spec.md §4.8 point 6: execution is throttled, not batched).
func (h *Handlers) tradeExecute(ctx context.Context) error {
	if h.settings.GetString(settings.KeyTradingMode, "paper") != "live" {
		return nil
	}

	minTradeValueEUR := h.settings.GetFloat(settings.KeyMinTradeValue, 50)
	result, err := h.planner.GetRecommendations(ctx, nil, minTradeValueEUR)
	if err != nil {
		return fmt.Errorf("get recommendations: %w", err)
	}
	if len(result.Recommendations) == 0 {
		return nil
	}

	rec := result.Recommendations[0]
	var orderErr error
	var order broker.OrderResult
	if rec.Action == domain.Buy {
		order, orderErr = h.brokerAPI.Buy(ctx, rec.Symbol, rec.Quantity, 0)
	} else {
		order, orderErr = h.brokerAPI.Sell(ctx, rec.Symbol, rec.Quantity, 0)
	}
	if orderErr != nil {
		return fmt.Errorf("place %s order for %s: %w", rec.Action, rec.Symbol, orderErr)
	}

	h.events.EmitTyped(events.TradeExecuted, "jobs.trade_execute", &events.TradeExecutedData{
		Symbol: rec.Symbol, Side: string(rec.Action), Quantity: rec.Quantity, Price: rec.Price,
	})
	h.log.Info().Str("order_id", order.OrderID).Str("symbol", rec.Symbol).Str("action", string(rec.Action)).Msg("trade executed")
	return nil
}

// rebalancePlanningRefresh calls the Planner on this schedule's cadence and
// emits RecommendationsReady so any open SSE stream updates. The call goes
// through the Planner's 5-minute cache, so a still-live entry is returned
// as is rather than recomputed.
func (h *Handlers) rebalancePlanningRefresh(ctx context.Context) error {
	minTradeValueEUR := h.settings.GetFloat(settings.KeyMinTradeValue, 50)
	result, err := h.planner.GetRecommendations(ctx, nil, minTradeValueEUR)
	if err != nil {
		return fmt.Errorf("get recommendations: %w", err)
	}
	h.events.Emit(events.RecommendationsReady, "jobs.rebalance_planning_refresh", map[string]interface{}{"count": len(result.Recommendations)})
	return nil
}

// balanceFix reconciles each currency's stored cash balance against the
// broker's live-reported balance, correcting drift that can accumulate
// from partial cash-flow sync failures.
func (h *Handlers) balanceFix(ctx context.Context) error {
	p, err := h.brokerAPI.GetPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("get broker portfolio: %w", err)
	}

	stored, err := h.cashBalances.GetAll()
	if err != nil {
		return fmt.Errorf("load stored cash balances: %w", err)
	}

	fixed := 0
	for ccy, brokerAmount := range p.Cash {
		currency := domain.Currency(ccy)
		if storedAmount, ok := stored[currency]; !ok || storedAmount != brokerAmount {
			if err := h.cashBalances.Set(currency, brokerAmount); err != nil {
				h.log.Error().Err(err).Str("currency", ccy).Msg("failed to fix cash balance")
				continue
			}
			fixed++
		}
	}
	if fixed > 0 {
		h.events.Emit(events.CashUpdated, "jobs.balance_fix", map[string]interface{}{"currencies_fixed": fixed})
	}
	return nil
}

// aggregateRecompute rebuilds today's portfolio snapshot from live store
// state, the daily aggregate the performance/history views read from
// instead of recomputing valuations on every request.
func (h *Handlers) aggregateRecompute(ctx context.Context) error {
	positions, err := h.positions.ListActive()
	if err != nil {
		return fmt.Errorf("list active positions: %w", err)
	}
	cashBalancesMap, err := h.cashBalances.GetAll()
	if err != nil {
		return fmt.Errorf("load cash balances: %w", err)
	}

	var cashEUR float64
	for ccy, amount := range cashBalancesMap {
		cashEUR += h.converter.ToEUR(ctx, amount, ccy)
	}

	positionsBySymbol := make(map[string]domain.SnapshotPosition, len(positions))
	for _, pos := range positions {
		valueEUR := h.converter.ToEUR(ctx, pos.Quantity*pos.CurrentPrice, pos.Currency)
		positionsBySymbol[pos.Symbol] = domain.SnapshotPosition{Quantity: pos.Quantity, ValueEUR: valueEUR}
	}

	snapshot := domain.PortfolioSnapshot{
		Date:      todayUTC(),
		CashEUR:   cashEUR,
		Positions: positionsBySymbol,
	}
	if err := h.snapshots.Upsert(snapshot); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	h.events.Emit(events.StateChanged, "jobs.aggregate_recompute", nil)
	return nil
}

func todayUTC() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// r2BackupJob uploads a fresh archive of all six store databases to R2 and
// rotates old backups, spec.md's nightly offsite-durability requirement.
func (h *Handlers) r2BackupJob(ctx context.Context) error {
	if h.r2Backup == nil {
		return nil
	}
	if err := h.r2Backup.CreateAndUploadBackup(ctx); err != nil {
		return fmt.Errorf("create and upload backup: %w", err)
	}
	retentionDays := h.settings.GetInt("r2_backup_retention_days", 30)
	if err := h.r2Backup.RotateOldBackups(ctx, retentionDays); err != nil {
		h.log.Warn().Err(err).Msg("failed to rotate old R2 backups")
	}
	return nil
}

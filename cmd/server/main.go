// Package main is the entry point for the Sentinel portfolio-automation
// service: it wires the six store databases, the Tradernet broker adapter,
// the Currency Converter, the Planner, the Job Runtime, and the HTTP
// server, then blocks until SIGINT/SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/allocation"
	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/backtestdata"
	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/clients/exchangerate"
	"github.com/aristath/sentinel/internal/clients/openfigi"
	"github.com/aristath/sentinel/internal/clients/tradernet"
	"github.com/aristath/sentinel/internal/clientdata"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/currency"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/jobs"
	"github.com/aristath/sentinel/internal/livedata"
	"github.com/aristath/sentinel/internal/planning"
	"github.com/aristath/sentinel/internal/reliability"
	"github.com/aristath/sentinel/internal/server"
	"github.com/aristath/sentinel/internal/settings"
	"github.com/aristath/sentinel/internal/snapshot"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Str("data_dir", cfg.DataDir).Msg("starting sentinel")

	// Any staged restore must be applied before a single database handle is
	// opened (internal/reliability.RestoreService's two-phase design).
	r2Client, err := newR2ClientOrNil(cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("R2 client not configured, backups and restores are disabled")
	}
	restoreSvc := reliability.NewRestoreService(r2Client, cfg.DataDir, log)
	if pending, err := restoreSvc.CheckPendingRestore(); err != nil {
		log.Error().Err(err).Msg("failed to check for pending restore")
	} else if pending {
		log.Warn().Msg("pending restore detected, executing staged restore")
		if err := restoreSvc.ExecuteStagedRestore(); err != nil {
			log.Fatal().Err(err).Msg("failed to execute staged restore")
		}
		log.Info().Msg("restore completed, proceeding with normal startup")
	}

	databases, err := openDatabases(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open databases")
	}
	defer closeDatabases(databases, log)

	clientDataDB, err := database.New(database.Config{
		Path:    fmt.Sprintf("%s/client_data.db", cfg.DataDir),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open client data cache database")
	}
	defer clientDataDB.Close()
	clientDataRepo := clientdata.NewRepository(clientDataDB.Conn())

	repos := wireRepositories(databases, log)

	settingsRepo := settings.NewRepository(databases["config"].Conn(), log)
	if cfg.TradernetAPIKey != "" {
		_ = settingsRepo.Set(settings.KeyTradernetAPIKey, cfg.TradernetAPIKey)
	}
	if cfg.TradernetAPISecret != "" {
		_ = settingsRepo.Set(settings.KeyTradernetAPISecret, cfg.TradernetAPISecret)
	}
	_ = settingsRepo.Set(settings.KeyTradingMode, cfg.TradingMode)

	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	rateClient := exchangerate.NewClient(clientDataRepo, log)
	converter := currency.NewConverter(exchangerate.NewRateSource(rateClient), nil, nil, repos.fxRates, log)
	figiClient := openfigi.NewClient("", clientDataRepo, log)

	brokerAPI := tradernet.NewAdapter(cfg.TradernetAPIKey, cfg.TradernetAPISecret, log)
	var marketWS *tradernet.MarketStatusWebSocket
	if cfg.TradernetAPIKey != "" && cfg.TradernetAPISecret != "" {
		marketWS = tradernet.NewMarketStatusWebSocket("wss://wss.tradernet.com", cfg.TradernetAPIKey, eventBus, log)
		if err := marketWS.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start market status websocket")
		}
	} else {
		log.Warn().Msg("tradernet credentials not configured, broker calls will fail until configured via settings")
	}

	dataSource := livedata.NewSource(repos.securities, repos.scores, repos.allocTargets, repos.positions, repos.cashBalances, repos.priceBars, repos.trades, settingsRepo, converter, log)
	constraints := loadConstraints(settingsRepo)
	planner := planning.NewPlanner(dataSource, repos.recommendationCache, constraints, log)

	var r2BackupSvc *reliability.R2BackupService
	if r2Client != nil {
		backupSvc := reliability.NewBackupService(databases, log)
		r2BackupSvc = reliability.NewR2BackupService(r2Client, backupSvc, cfg.DataDir, log)
	}

	handlers := jobs.NewHandlers(
		brokerAPI, repos.securities, repos.positions, repos.cashBalances, repos.cashFlows,
		repos.trades, repos.priceBars, repos.fxRates, repos.scores, repos.snapshots,
		converter, settingsRepo, planner, eventManager, r2BackupSvc, figiClient, log,
	)

	var marketStatus jobs.MarketStatus
	if marketWS != nil {
		marketStatus = marketWS
	} else {
		marketStatus = noMarketStatus{}
	}
	runtime := jobs.NewRuntime(repos.schedules, repos.jobHistory, marketStatus, handlers.Map(), log)
	for _, schedule := range jobs.SeedSchedules() {
		if err := repos.schedules.Register(schedule); err != nil {
			log.Error().Err(err).Str("job_type", schedule.JobType).Msg("failed to register seed schedule")
		}
	}

	if err := backfillSnapshotHistory(repos, converter, log); err != nil {
		log.Error().Err(err).Msg("snapshot history backfill failed")
	}

	// robfig/cron/v3 drives the R2 backup's calendar cadence (SPEC_FULL §11):
	// this nightly 02:00 run calls the backup service directly and is not
	// gated by the Job Runtime's job_schedules.
	cronScheduler := cron.New()
	if r2BackupSvc != nil {
		if _, err := cronScheduler.AddFunc("0 2 * * *", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if err := r2BackupSvc.CreateAndUploadBackup(ctx); err != nil {
				log.Error().Err(err).Msg("nightly R2 backup failed")
			}
		}); err != nil {
			log.Error().Err(err).Msg("failed to register nightly R2 backup cron job")
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runtime.Run(ctx, 1*time.Minute)

	srv := server.New(server.Config{
		Log:          log,
		Cfg:          cfg,
		Broker:       brokerAPI,
		Categories:   repos.allocTargets,
		Cache:        repos.recommendationCache,
		Settings:     settingsRepo,
		EventBus:     eventBus,
		EventManager: eventManager,
		DataDir:      cfg.DataDir,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		BacktestFactory: func(ctx context.Context, req server.BacktestRequest) (*backtest.Backtester, error) {
			backtestCfg, err := server.ParseBacktestConfig(req)
			if err != nil {
				return nil, err
			}
			universe := backtestdata.NewUniverse(repos.securities, repos.scores, backtestdata.NewPriceBars(repos.priceBars, log), brokerAPI, log)
			prices := backtestdata.NewPriceBars(repos.priceBars, log)
			fx := backtestdata.NewFXRates(repos.fxRates, log)
			targets, err := dataSource.Targets(ctx)
			if err != nil {
				return nil, fmt.Errorf("load allocation targets: %w", err)
			}
			registry := jobs.NewBacktestRegistry()
			return backtest.NewBacktester(uuid.NewString(), backtestCfg, universe, prices, fx, targets, constraints, registry, log), nil
		},
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	if marketWS != nil {
		if err := marketWS.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping market status websocket")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}

// noMarketStatus is the jobs.MarketStatus fallback when no broker
// credentials are configured: every MarketTimingDuringOpen schedule simply
// never fires, the same fail-closed default as the teacher's original
// credential-absent startup path.
type noMarketStatus struct{}

func (noMarketStatus) OpenMarketCount(ctx context.Context) (int, error) { return 0, nil }

// openDatabases opens and migrates the store's six SQLite databases
// (SPEC_FULL §13), keyed by name for internal/reliability.BackupService.
func openDatabases(dataDir string) (map[string]*database.DB, error) {
	profiles := map[string]database.DatabaseProfile{
		"universe":  database.ProfileStandard,
		"config":    database.ProfileStandard,
		"ledger":    database.ProfileLedger,
		"portfolio": database.ProfileStandard,
		"history":   database.ProfileStandard,
		"cache":     database.ProfileCache,
	}

	databases := make(map[string]*database.DB, len(profiles))
	for name, profile := range profiles {
		db, err := database.New(database.Config{
			Path:    fmt.Sprintf("%s/%s.db", dataDir, name),
			Profile: profile,
			Name:    name,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", name, err)
		}
		if err := db.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate %s database: %w", name, err)
		}
		databases[name] = db
	}
	return databases, nil
}

func closeDatabases(databases map[string]*database.DB, log zerolog.Logger) {
	for name, db := range databases {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Str("database", name).Msg("failed to close database")
		}
	}
}

// repositories bundles every store repository the wiring needs, grouping
// them so the constructors above stay readable.
type repositories struct {
	securities          *store.SecurityRepository
	allocTargets        *store.AllocationTargetRepository
	positions           *store.PositionRepository
	cashBalances        *store.CashBalanceRepository
	cashFlows           *store.CashFlowRepository
	trades              *store.TradeRepository
	priceBars           *store.PriceBarRepository
	fxRates             *store.FXRateRepository
	scores              *store.ScoreRepository
	snapshots           *store.SnapshotRepository
	schedules           *store.JobScheduleRepository
	jobHistory          *store.JobHistoryRepository
	recommendationCache *store.RecommendationCacheRepository
}

func wireRepositories(databases map[string]*database.DB, log zerolog.Logger) repositories {
	return repositories{
		securities:          store.NewSecurityRepository(databases["universe"].Conn(), log),
		allocTargets:        store.NewAllocationTargetRepository(databases["config"].Conn(), log),
		positions:           store.NewPositionRepository(databases["portfolio"].Conn(), log),
		cashBalances:        store.NewCashBalanceRepository(databases["ledger"].Conn(), log),
		cashFlows:           store.NewCashFlowRepository(databases["ledger"].Conn(), log),
		trades:              store.NewTradeRepository(databases["ledger"].Conn(), log),
		priceBars:           store.NewPriceBarRepository(databases["history"].Conn(), log),
		fxRates:             store.NewFXRateRepository(databases["history"].Conn(), log),
		scores:              store.NewScoreRepository(databases["portfolio"].Conn(), log),
		snapshots:           store.NewSnapshotRepository(databases["portfolio"].Conn(), log),
		schedules:           store.NewJobScheduleRepository(databases["cache"].Conn(), log),
		jobHistory:          store.NewJobHistoryRepository(databases["cache"].Conn(), log),
		recommendationCache: store.NewRecommendationCacheRepository(databases["cache"].Conn(), log),
	}
}

// loadConstraints reads the Allocation Calculator's constraint settings,
// falling back to spec.md §4.4's defaults for anything unset.
func loadConstraints(settingsRepo *settings.Repository) allocation.Constraints {
	return allocation.Constraints{
		MaxPositionPct:           settingsRepo.GetFloat(settings.KeyMaxPositionPct, 0.20),
		MinPositionPct:           settingsRepo.GetFloat(settings.KeyMinPositionPct, 0.02),
		CashTargetPct:            settingsRepo.GetFloat(settings.KeyTargetCashPct, 0.05),
		DiversificationImpact:    settingsRepo.GetFloat(settings.KeyDiversificationImpactPct, 0.10),
		MaxDividendReinvestBoost: settingsRepo.GetFloat(settings.KeyMaxDividendReinvestBoost, 0.15),
	}
}

// backfillSnapshotHistory rebuilds the daily portfolio snapshot series from
// the immutable trade and cash-flow ledgers (spec.md §4.9's Snapshot
// Service) the first time the server starts against a snapshot table that
// has no rows yet - a fresh install, or one recovering from an R2 restore
// of an older ledger. Once history exists, aggregate_recompute (internal/
// jobs/handlers.go) keeps today's snapshot current on every tick, so this
// only ever needs to run once per install.
func backfillSnapshotHistory(repos repositories, converter *currency.Converter, log zerolog.Logger) error {
	if _, err := repos.snapshots.Latest(); err == nil {
		return nil
	}

	ctx := context.Background()
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	rawTrades, err := repos.trades.ListBetween(epoch, now)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	if len(rawTrades) == 0 {
		return nil
	}

	trades := make([]snapshot.Trade, 0, len(rawTrades))
	for _, t := range rawTrades {
		trades = append(trades, snapshot.Trade{
			Symbol:     t.Symbol,
			Side:       t.Side,
			Quantity:   t.Quantity,
			Price:      t.Price,
			Commission: t.Commission,
			Currency:   t.Currency,
			ExecutedAt: t.ExecutedAt,
		})
	}

	cashFlows, err := repos.cashFlows.ListBetween(epoch, now)
	if err != nil {
		return fmt.Errorf("list cash flows: %w", err)
	}

	rateLookup := func(ccy domain.Currency, onOrBefore time.Time) float64 {
		rate, err := converter.RateForDate(ctx, ccy, onOrBefore)
		if err != nil {
			return 1
		}
		return rate
	}
	priceLookup := func(symbol string, onOrBefore time.Time) (float64, time.Time, bool) {
		bar, err := repos.priceBars.LatestBefore(symbol, onOrBefore)
		if err != nil {
			return 0, time.Time{}, false
		}
		return bar.Close, bar.Date, true
	}

	reconstructor := snapshot.NewReconstructor(trades, rateLookup)

	earliest := trades[0].ExecutedAt // ListBetween orders ascending by executed_at
	firstDay := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	cashFlowIdx := 0
	var cashEUR float64
	days := 0
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		for cashFlowIdx < len(cashFlows) && !cashFlows[cashFlowIdx].Date.After(day) {
			cf := cashFlows[cashFlowIdx]
			cashEUR += converter.ToEUR(ctx, cf.Amount, cf.Currency)
			cashFlowIdx++
		}

		result := reconstructor.Reconstruct(day, priceLookup)
		if err := repos.snapshots.Upsert(result.ToPortfolioSnapshot(cashEUR)); err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", day.Format("2006-01-02"), err)
		}
		days++
	}

	log.Info().Int("days", days).Msg("backfilled snapshot history from trade ledger")
	return nil
}

// newR2ClientOrNil builds an R2 client when R2 credentials are configured,
// or returns (nil, nil) so backups/restores no-op cleanly in environments
// that don't have offsite storage configured (e.g. local development).
func newR2ClientOrNil(cfg *config.Config, log zerolog.Logger) (*reliability.R2Client, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		return nil, nil
	}
	return reliability.NewR2Client(cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2BucketName, log)
}

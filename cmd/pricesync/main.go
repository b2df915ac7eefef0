// Command pricesync is a one-off historical-price backfill: pass --symbol to
// refresh a single security, or omit it to walk every active security in
// universe.db, pausing --delay between broker calls (spec.md §6). It shares
// the server's databases and broker client rather than going through the
// running job runtime, for operators who need a price refreshed out of band.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aristath/sentinel/internal/clients/tradernet"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/settings"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/pkg/logger"
)

const priceHistoryYears = 3

func main() {
	symbol := flag.String("symbol", "", "sync a single symbol instead of every active security")
	delay := flag.Duration("delay", 10*time.Second, "pause between broker calls when syncing all active securities")
	dataDir := flag.String("data-dir", "", "data directory override (defaults to SENTINEL_DATA_DIR or ./data)")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	cfg, err := config.Load(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	universeDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/universe.db",
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open universe database")
	}
	defer universeDB.Close()
	if err := universeDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate universe database")
	}

	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history database")
	}
	defer historyDB.Close()
	if err := historyDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate history database")
	}

	configDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/config.db",
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open config database")
	}
	defer configDB.Close()
	if err := configDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate config database")
	}

	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to load settings overrides")
	}

	securities := store.NewSecurityRepository(universeDB.Conn(), log)
	priceBars := store.NewPriceBarRepository(historyDB.Conn(), log)
	brokerAPI := tradernet.NewAdapter(cfg.TradernetAPIKey, cfg.TradernetAPISecret, log)

	ctx := context.Background()

	var symbols []string
	if *symbol != "" {
		symbols = []string{*symbol}
	} else {
		active, err := securities.ListActive()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to list active securities")
		}
		for _, s := range active {
			symbols = append(symbols, s.Symbol)
		}
	}

	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols to sync")
		return
	}

	for i, sym := range symbols {
		if i > 0 && *symbol == "" {
			time.Sleep(*delay)
		}

		bulk, err := brokerAPI.GetHistoricalPricesBulk(ctx, []string{sym}, priceHistoryYears)
		if err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("failed to fetch historical prices")
			continue
		}

		bars := bulk[sym]
		stored := 0
		for _, bar := range bars {
			date, err := time.Parse("2006-01-02", bar.Date)
			if err != nil {
				log.Warn().Err(err).Str("symbol", sym).Str("date", bar.Date).Msg("skipping bar with unparseable date")
				continue
			}
			if err := priceBars.Upsert(domain.PriceBar{
				Symbol: sym,
				Date:   date,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: bar.Volume,
			}); err != nil {
				log.Error().Err(err).Str("symbol", sym).Str("date", bar.Date).Msg("failed to upsert price bar")
				continue
			}
			stored++
		}
		log.Info().Str("symbol", sym).Int("bars", stored).Msg("price sync complete")
	}
}

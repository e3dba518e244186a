package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickbar/internal/archive"
	"tickbar/internal/config"
	"tickbar/internal/engine"
	"tickbar/internal/quote"
	"tickbar/internal/remote"
	"tickbar/internal/session"
	"tickbar/internal/tickstore"
	"tickbar/internal/util"
)

func main() {
	cfgPath := "config/tickbar.yaml"
	if p := os.Getenv("TICKBAR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	sched, err := session.New(cfg.Session.Timezone, cfg.Session.Windows)
	if err != nil {
		log.Fatalf("failed to build trading schedule: %v", err)
	}

	ticks, err := tickstore.Open(cfg.Storage.SQLitePath, sched.Location())
	if err != nil {
		log.Fatalf("failed to open tick store: %v", err)
	}
	defer ticks.Close()

	ctx := context.Background()

	// Bound local staging by age; derived bars are unaffected.
	cutoff := time.Now().AddDate(0, 0, -cfg.Storage.RetentionDays)
	if pruned, err := ticks.PruneBefore(ctx, cutoff); err != nil {
		logger.Warn("tick prune failed", "error", err)
	} else if pruned > 0 {
		logger.Info("pruned stale ticks", "rows", pruned, "cutoff", cutoff)
	}

	src := buildSource(cfg)

	connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
	writer, err := remote.Connect(connectCtx, cfg.PostgresDSN(), cfg.Instrument.Code)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to remote database: %v", err)
	}
	defer writer.Close()

	var mirror *archive.Store
	if cfg.Storage.ArchiveDir != "" {
		mirror = archive.NewStore(cfg.Storage.ArchiveDir, cfg.Instrument.Code)
	}

	eng := engine.New(engine.Params{
		Logger:            logger,
		Source:            src,
		Ticks:             ticks,
		Writer:            writer,
		Archive:           mirror,
		Schedule:          sched,
		Periods:           cfg.Aggregator.Periods,
		FetchInterval:     cfg.FetchInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		RecentDays:        cfg.Aggregator.RecentDays,
	})

	logger.Info("reconciling remote bars", "instrument", cfg.Instrument.Code)
	if err := eng.Reconcile(ctx); err != nil {
		log.Fatalf("startup reconciliation failed: %v", err)
	}

	if err := eng.Start(); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())

	eng.Stop()
}

// buildSource selects the quote source adapter named by the configuration.
// The provider name is validated at startup.
func buildSource(cfg *config.Config) quote.Source {
	bounds := quote.Bounds{Min: cfg.Instrument.PriceMin, Max: cfg.Instrument.PriceMax}

	if cfg.Quote.Provider == "alpaca" {
		a := cfg.Quote.Alpaca
		return quote.NewAlpacaSource(a.APIKey, a.APISecret, a.DataURL, a.Symbol, bounds)
	}
	return quote.NewHTTPSource(cfg.Quote.URL, cfg.Quote.Delimiter, cfg.QuoteTimeout(), bounds, cfg.Quote.RateLimitPerMin)
}

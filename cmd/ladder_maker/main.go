package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ladder_maker/internal/alert"
	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	"ladder_maker/internal/gateway"
	"ladder_maker/internal/orchestrator"
	"ladder_maker/internal/pricefeed"
	"ladder_maker/internal/reconcile"
	"ladder_maker/internal/report"
	"ladder_maker/internal/submit"
	"ladder_maker/pkg/concurrency"
	"ladder_maker/pkg/logging"
	"ladder_maker/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single reconciliation cycle and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ladder_maker version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store := config.NewFileStore(*configPath, cfg)

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobalLogger(logger)

	logger.Info("Starting ladder_maker",
		"version", version,
		"configurations", len(cfg.Schedule),
		"cron", cfg.Timing.CycleCron,
	)

	tel, err := telemetry.Setup(cfg.App.Name)
	if err != nil {
		logger.Warn("Failed to initialize telemetry", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown error", "error", err)
			}
		}()
	}

	if cfg.Telemetry.EnableMetrics {
		go serveMetrics(cfg.Telemetry.MetricsPort, logger)
	}

	ledger := gateway.NewClient(cfg.Ledger, logger)
	signer := gateway.NewRemoteSigner(cfg.Signer, logger)

	var prices core.PriceSource = ledger
	var feed *pricefeed.Feed
	if cfg.PriceFeed.Enabled {
		feed = pricefeed.NewFeed(cfg.PriceFeed, ledger, logger)
		for _, entry := range cfg.Schedule {
			feed.Subscribe(entry.Pair.ToPair())
		}
		feed.Start()
		defer feed.Stop()
		prices = feed
	}

	alerter := alert.NewManager(logger)
	if token := cfg.Alerts.TelegramBotToken.Reveal(); token != "" && cfg.Alerts.TelegramChatID != "" {
		alerter.AddChannel(alert.NewTelegramChannel(token, cfg.Alerts.TelegramChatID))
	}
	if webhook := cfg.Alerts.SlackWebhookURL.Reveal(); webhook != "" {
		alerter.AddChannel(alert.NewSlackChannel(webhook))
	}

	reports, err := report.NewStore(cfg.Report)
	if err != nil {
		logger.Fatal("Failed to open report store", "error", err)
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "CyclePool",
		MaxWorkers:  cfg.Concurrency.CyclePoolSize,
		MaxCapacity: cfg.Concurrency.CyclePoolBuffer,
	}, logger)
	defer pool.Stop()

	batcher := submit.NewBatchBuilder(ledger, signer,
		time.Duration(cfg.Timing.TxValidityWindow)*time.Second, logger)

	orch := orchestrator.New(ledger, prices, store, alerter, batcher, pool,
		time.Duration(cfg.Timing.ConfigTimeout)*time.Second, logger)

	sched, err := orchestrator.NewScheduler(cfg.Timing.CycleCron, orch, reports, logger)
	if err != nil {
		logger.Fatal("Invalid cycle cron expression", "cron", cfg.Timing.CycleCron, "error", err)
	}

	if *once {
		report := sched.RunOnce(context.Background())
		if failures := report.Failures(); len(failures) > 0 {
			os.Exit(1)
		}
		return
	}

	sched.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("Received shutdown signal, gracefully shutting down...")

	sched.Stop()

	if cfg.System.CancelOnExit {
		grace := time.Duration(cfg.Timing.ShutdownGrace) * time.Second
		if grace == 0 {
			grace = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		flattenAll(ctx, store, ledger, batcher, logger)
	}

	logger.Info("ladder_maker stopped")
}

// flattenAll cancels every managed offer on the way out. Best effort: a
// failure here is logged, not retried, because the process is exiting.
func flattenAll(ctx context.Context, store config.Store, ledger core.LedgerGateway, batcher *submit.BatchBuilder, logger core.ILogger) {
	accounts := submit.NewAccountRegistry()
	for _, entry := range store.Schedule() {
		pair := entry.Pair.ToPair()
		offers, err := ledger.GetOffers(ctx, entry.Account)
		if err != nil {
			logger.Error("Exit flatten: failed to load offers", "account", entry.Account, "error", err)
			continue
		}
		plan := reconcile.CancelAllPlan(offers, pair)
		if plan.IsEmpty() {
			continue
		}

		release := accounts.Acquire(entry.Account)
		account, err := ledger.GetAccount(ctx, entry.Account)
		if err != nil {
			release()
			logger.Error("Exit flatten: failed to load account", "account", entry.Account, "error", err)
			continue
		}
		unit := batcher.Build(account, []core.ReconciliationPlan{plan})
		if _, err := batcher.Submit(ctx, unit); err != nil {
			logger.Error("Exit flatten: submission failed", "account", entry.Account, "error", err)
		} else {
			logger.Info("Exit flatten: cancelled offers", "account", entry.Account, "pair", pair.String(), "count", len(unit.Operations))
		}
		release()
	}
}

func serveMetrics(port int, logger core.ILogger) {
	if port == 0 {
		port = 9090
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server error", "error", err)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Jenajyo/ibkr-trader/config"
	"github.com/Jenajyo/ibkr-trader/internal/adapters/ibkr"
	"github.com/Jenajyo/ibkr-trader/internal/adapters/notify"
	"github.com/Jenajyo/ibkr-trader/internal/adapters/storage"
	"github.com/Jenajyo/ibkr-trader/internal/adapters/yahoo"
	"github.com/Jenajyo/ibkr-trader/internal/application/dispatch"
	"github.com/Jenajyo/ibkr-trader/internal/application/pricing"
	"github.com/Jenajyo/ibkr-trader/internal/application/reconcile"
	"github.com/Jenajyo/ibkr-trader/internal/application/trader"
	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	modeFlag := flag.String("mode", "", "trading mode: live|paper (overrides config)")
	cancelAll := flag.Bool("cancel-all", false, "cancel every open order and exit")
	runReconcile := flag.Bool("reconcile", false, "reconcile tables against holdings instead of dispatching")
	report := flag.Bool("report", false, "print tables, positions and trade log, then exit")
	trailHoldings := flag.String("trail-holdings", "", "attach a trailing stop to holdings: 'long' | 'short' | comma-separated tickers")
	trailPct := flag.Float64("trail", 0, "trail percent for -trail-holdings (default from config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *modeFlag != "" {
		cfg.Trading.Mode = *modeFlag
	}
	setupLogger(cfg.Log)

	mode, err := cfg.Mode()
	if err != nil {
		slog.Error("invalid trading mode", "err", err)
		os.Exit(1)
	}
	slog.Info("ibkr-trader starting",
		"config", *configPath,
		"mode", mode,
		"gateway", cfg.Gateway.BaseURL,
		"storage", cfg.StorageDSN(),
	)

	store, err := storage.NewStore(cfg.StorageDSN())
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.StorageDSN())
		os.Exit(1)
	}
	defer store.Close()

	gateway := ibkr.New(ibkr.Config{
		BaseURL:            cfg.Gateway.BaseURL,
		AccountID:          cfg.Gateway.AccountID,
		AckTimeout:         cfg.AckTimeout(),
		PollInterval:       cfg.PollInterval(),
		InsecureSkipVerify: cfg.Gateway.InsecureSkipVerify,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := gateway.Connect(ctx); err != nil {
		slog.Error("gateway connection failed", "err", err)
		os.Exit(1)
	}
	// Logout must run even when ctx was cancelled by a signal.
	defer func() {
		if err := gateway.Close(context.Background()); err != nil {
			slog.Warn("gateway close failed", "err", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr)
	}

	resolver := pricing.NewResolver(gateway, yahoo.NewClient(""))
	dispatcher := dispatch.New(gateway, resolver, store, cfg.Trading.LimitOffset)
	reconciler := reconcile.New(gateway, resolver, store, mode, cfg.Tables.Buy, cfg.Tables.Sell, cfg.Trading.ReconcileTrailPct)
	t := trader.New(gateway, store, resolver, dispatcher, reconciler)

	switch {
	case *report:
		console := notify.NewConsole(gateway, store, store)
		err = console.Report(ctx, 20)
	case *cancelAll:
		err = t.CancelAllOpenOrders(ctx)
	case *runReconcile:
		err = t.Reconcile(ctx)
	case *trailHoldings != "":
		side, tickers := parseTrailTarget(*trailHoldings)
		pct := *trailPct
		if pct <= 0 {
			pct = cfg.Trading.DefaultTrailPercent
		}
		err = t.ApplyTrailToHoldings(ctx, pct, side, tickers)
	default:
		err = t.Run(ctx)
	}

	if err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("ibkr-trader finished cleanly")
}

// parseTrailTarget maps the -trail-holdings value to a protect side and an
// optional explicit ticker list. A ticker list defaults to protecting longs.
func parseTrailTarget(raw string) (domain.Side, []string) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long":
		return domain.SideBuy, nil
	case "short":
		return domain.SideSell, nil
	}

	var tickers []string
	for _, tk := range strings.Split(raw, ",") {
		if tk = strings.TrimSpace(tk); tk != "" {
			tickers = append(tickers, strings.ToUpper(tk))
		}
	}
	return domain.SideBuy, tickers
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint stopped", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Package main is the entry point for the Hunter trade-surveillance engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polyinsider/hunter/internal/alert"
	"github.com/polyinsider/hunter/internal/bot"
	"github.com/polyinsider/hunter/internal/config"
	"github.com/polyinsider/hunter/internal/detector"
	"github.com/polyinsider/hunter/internal/ingest"
	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/polymarket"
	"github.com/polyinsider/hunter/internal/registry"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/polyinsider/hunter/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// botPollTimeout is the long-poll window for getUpdates.
	botPollTimeout = 30 * time.Second
	// sessionTTL bounds how long an abandoned onboarding wizard is kept.
	sessionTTL = 15 * time.Minute
	// cleanupInterval is how often stale market activity is pruned.
	cleanupInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFile, !cfg.EnableTUI)
	slog.SetDefault(logger)

	slog.Info("hunter starting", "version", "1.0.0")
	slog.Info("config_loaded",
		"feed_url", cfg.FeedWSURL,
		"clob_url", cfg.CLOBURL,
		"data_api_url", cfg.DataAPIURL,
		"telegram_token", cfg.MaskedTelegramToken(),
		"database_url", cfg.MaskedDatabaseURL(),
		"liquidity_zero_disables", cfg.LiquidityZeroDisables,
		"queue_size", cfg.QueueSize,
		"worker_count", cfg.WorkerCount,
		"eval_concurrency", cfg.EvalConcurrency,
		"max_outstanding_calls", cfg.MaxOutstandingCalls,
		"enable_bot", cfg.EnableBot,
		"enable_tui", cfg.EnableTUI,
		"prometheus_port", cfg.PrometheusPort,
	)

	if err := run(cfg); err != nil {
		slog.Error("engine_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown_complete")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tracker := metrics.NewMetricsTracker(promReg)

	var metricsServer *http.Server
	if cfg.PrometheusPort > 0 {
		metricsServer = startMetricsServer(cfg.PrometheusPort, promReg, tracker)
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tracker.Cleanup()
			}
		}
	}()

	// Subscriber registry
	subscribers, closeRegistry, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	// Telegram. Alert sends are bounded by SendTimeout; the command bot
	// long-polls and needs a client that outlives the poll window.
	alertAPI, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint,
		&http.Client{Timeout: cfg.SendTimeout})
	if err != nil {
		return fmt.Errorf("telegram client: %w", err)
	}
	slog.Info("telegram_connected", "bot", alertAPI.Self.UserName)

	// Pipeline
	pm := polymarket.NewClient(cfg.CLOBURL, cfg.DataAPIURL,
		polymarket.WithHTTPClient(&http.Client{Timeout: max(cfg.LiquidityTimeout, cfg.HistoryTimeout)}),
		polymarket.WithRateLimit(cfg.PolymarketRPS, int(cfg.PolymarketRPS)))

	dispatcher := alert.NewDispatcher(
		alert.NewTelegram(alertAPI, cfg.TelegramRPS),
		subscribers,
		tracker,
		cfg.SendTimeout,
		cfg.RegistryTimeout,
	)

	evaluator := detector.NewEvaluator(
		detector.NewLiquidityOracle(pm, cfg.LiquidityTimeout),
		subscribers,
		detector.NewHistoryGate(pm, cfg.HistoryTimeout),
		dispatcher,
		tracker,
		detector.EvaluatorConfig{
			Concurrency:           cfg.EvalConcurrency,
			MaxOutstanding:        cfg.MaxOutstandingCalls,
			RegistryTimeout:       cfg.RegistryTimeout,
			ZeroLiquidityDisables: cfg.LiquidityZeroDisables,
		},
	)

	tradeChan := make(chan store.TradeEvent, cfg.QueueSize)
	tracker.SetChannelBuffer(0, cfg.QueueSize)

	workers := startWorkers(ctx, cfg.WorkerCount, tradeChan, evaluator, tracker)

	listener := ingest.NewListener(cfg.FeedWSURL, cfg.PingInterval, tradeChan, tracker)
	listener.Start(ctx)

	if cfg.EnableBot {
		if err := startBot(ctx, cfg, subscribers); err != nil {
			slog.Warn("bot_start_failed", "error", err)
		}
	}

	slog.Info("engine_started",
		"status", "listening for trades",
		"workers", cfg.WorkerCount,
		"tui_enabled", cfg.EnableTUI,
	)

	waitForShutdown(ctx, cfg, tracker, sigChan)

	// Graceful shutdown: stop intake, then let workers drain the queue.
	cancel()
	slog.Info("shutting_down", "status", "stopping listener")
	listener.Stop()
	close(tradeChan)

	if waitTimeout(workers, cfg.ShutdownTimeout) {
		slog.Info("workers_drained")
	} else {
		slog.Warn("shutdown_timeout", "pending_trades", len(tradeChan))
	}

	if metricsServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics_server_shutdown_failed", "error", err)
		}
	}
	return nil
}

// waitForShutdown blocks until a signal arrives or the TUI exits.
func waitForShutdown(ctx context.Context, cfg *config.Config, tracker *metrics.MetricsTracker, sigChan <-chan os.Signal) {
	if !cfg.EnableTUI {
		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
		case <-ctx.Done():
		}
		return
	}

	slog.Info("starting_tui")
	app := ui.NewApp(tracker, cfg.UIRefreshRate)
	go func() {
		if err := app.Run(); err != nil {
			slog.Error("tui_error", "error", err)
			app.Stop()
		}
	}()

	select {
	case sig := <-sigChan:
		slog.Info("shutdown_signal_received", "signal", sig.String())
		app.Stop()
	case <-app.Done():
		slog.Info("tui_closed")
	case <-ctx.Done():
		app.Stop()
	}
}

// openRegistry connects to Postgres when DATABASE_URL is set and falls
// back to an in-memory registry otherwise.
func openRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("registry_in_memory", "reason", "DATABASE_URL not set, subscribers are not persisted")
		return registry.NewMemory(cfg.LiquidityZeroDisables), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := registry.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: %w", err)
	}
	slog.Info("registry_connected", "table", registry.Table)
	return registry.NewPostgres(pool, cfg.LiquidityZeroDisables), pool.Close, nil
}

func startBot(ctx context.Context, cfg *config.Config, subscribers registry.Registry) error {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint,
		&http.Client{Timeout: botPollTimeout + 10*time.Second})
	if err != nil {
		return fmt.Errorf("telegram client: %w", err)
	}

	b := bot.New(api, subscribers, bot.NewSessions(sessionTTL), cfg.RegistryTimeout)
	if err := b.RegisterCommands(); err != nil {
		slog.Warn("bot_commands_not_registered", "error", err)
	}
	go b.Run(ctx, api)
	return nil
}

func startMetricsServer(port int, gatherer prometheus.Gatherer, tracker *metrics.MetricsTracker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := tracker.Snapshot()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if snap.WebSocketStatus != ingest.StatusConnected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "feed=%s queue=%d/%d\n", snap.WebSocketStatus, snap.ChannelBufferUsed, snap.ChannelBufferCap)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", "error", err)
		}
	}()
	return srv
}

// startWorkers launches n workers on tradeChan. They run on a context
// detached from ctx so queued and in-flight evaluations finish after
// shutdown begins; they exit once tradeChan is closed and drained.
func startWorkers(ctx context.Context, n int, tradeChan <-chan store.TradeEvent,
	evaluator *detector.Evaluator, tracker *metrics.MetricsTracker) *sync.WaitGroup {

	workCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(workCtx, id, tradeChan, evaluator, tracker)
		}(i)
	}
	return &wg
}

// worker evaluates trades until the queue is closed and drained.
func worker(ctx context.Context, id int, tradeChan <-chan store.TradeEvent,
	evaluator *detector.Evaluator, tracker *metrics.MetricsTracker) {

	slog.Debug("worker_started", "id", id)
	defer slog.Debug("worker_stopped", "id", id)

	for trade := range tradeChan {
		tracker.RecordTrade(trade)
		tracker.SetChannelBuffer(len(tradeChan), cap(tradeChan))
		evaluator.Evaluate(ctx, trade)
	}
}

// waitTimeout waits for wg and reports whether it finished within d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
// Output goes to stdout when console is set and to a rotating file when
// file is non-empty.
func setupLogger(levelStr, file string, console bool) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	var writers []io.Writer
	if console {
		writers = append(writers, os.Stdout)
	}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	return slog.New(slog.NewTextHandler(out, opts))
}

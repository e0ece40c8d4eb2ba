package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alquilercito/aggregator"
	"alquilercito/api"
	"alquilercito/config"
	"alquilercito/feeds"
	"alquilercito/httputil"
	"alquilercito/logging"
	"alquilercito/normalize"
	"alquilercito/parser"
	"alquilercito/scheduler"
	"alquilercito/storage"
)

var (
	fetchNow = flag.Bool("fetch", false, "Fetch every feed once, print a summary and exit")
	showRuns = flag.Bool("runs", false, "Print recent refresh runs and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, logger, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logger = logging.New(os.Stdout, cfg.LogLevel)
		slog.SetDefault(logger)
		logger.Warn("could not set up file logging", "path", cfg.LogFile, "error", err)
	} else {
		defer logFile.Close()
	}

	logger.Info("starting alquilercito", "feeds", len(cfg.FeedDefs), "backend", cfg.Feeds.Backend)
	for _, def := range cfg.FeedDefs {
		logger.Info("feed configured", "source", def.Source, "filename", def.Filename)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newFeedStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up feed store", "error", err)
		os.Exit(1)
	}

	// Refresh journal (optional)
	var journal *storage.SQLiteStore
	if cfg.DBPath != "" {
		journal, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open SQLite", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		logger.Info("refresh journal enabled", "path", cfg.DBPath)
	}

	p := &parser.Parser{
		Formatter: normalize.NewFormatterFor(cfg.PriceLocale),
		Now:       clockIn(cfg.Location),
	}
	feedList, err := feeds.FromDefs(cfg.FeedDefs, store, p, logger)
	if err != nil {
		logger.Error("invalid feed configuration", "error", err)
		os.Exit(1)
	}
	fetchers := make([]aggregator.Fetcher, len(feedList))
	for i, f := range feedList {
		fetchers[i] = f
	}

	cutoff := aggregator.Cutoff{Hour: cfg.Refresh.Hour, Minute: cfg.Refresh.Minute}
	aggOpts := aggregator.Options{
		Cutoff:   cutoff,
		Location: cfg.Location,
		Logger:   logger,
	}
	var runStore api.RunStore
	if journal != nil {
		aggOpts.Recorder = journal
		runStore = journal
	}
	agg := aggregator.New(fetchers, aggOpts)

	// Handle one-shot commands
	if *showRuns {
		if journal == nil {
			log.Fatalf("DB_PATH is empty; no refresh journal to read")
		}
		runs, err := journal.RecentRuns(ctx, 20)
		if err != nil {
			log.Fatalf("Failed to read runs: %v", err)
		}
		renderRuns(os.Stdout, runs)
		return
	}
	if *fetchNow {
		snap := agg.Snapshot(ctx, true)
		renderSnapshot(os.Stdout, snap)
		return
	}

	// Daemon mode
	sched := scheduler.New(agg, scheduler.Options{
		Cutoff:      cutoff,
		Location:    cfg.Location,
		WarmOnStart: cfg.Refresh.WarmOnStart,
		Logger:      logger,
	})
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(agg, runStore, api.Options{
		AdminSecret:      cfg.Server.AdminSecret,
		CORSOrigins:      cfg.Server.CORSOrigins,
		RefreshPerMinute: cfg.Server.RefreshPerMinute,
		Logger:           logger,
	})
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			cancel()
		}
	}()
	logger.Info("daemon running", "port", cfg.Server.Port, "next_refresh", sched.Next())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	cancel()
	sched.Stop()
	logger.Info("goodbye")
}

func newFeedStore(ctx context.Context, cfg *config.Config) (feeds.Store, error) {
	switch cfg.Feeds.Backend {
	case config.BackendS3:
		return storage.NewS3FeedStore(ctx, cfg.S3)
	default:
		clients := httputil.NewClients()
		return feeds.NewGitHubStore(clients.Feeds), nil
	}
}

// clockIn reports the current time in loc, so relative publish dates resolve
// in the same zone as the refresh cutoff.
func clockIn(loc *time.Location) func() time.Time {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}

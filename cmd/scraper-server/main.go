package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/razoraze123/dolibar/internal/api"
	"github.com/razoraze123/dolibar/internal/browser"
	"github.com/razoraze123/dolibar/internal/config"
	"github.com/razoraze123/dolibar/internal/database"
	"github.com/razoraze123/dolibar/internal/events"
	"github.com/razoraze123/dolibar/internal/jobs"
	"github.com/razoraze123/dolibar/internal/profiles"
	"github.com/razoraze123/dolibar/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence and eventing are optional: the scraper stays useful as a
	// standalone API without postgres or redis behind it.
	var db *database.DB
	if os.Getenv("DB_HOST") != "" {
		db, err = database.New(ctx, database.Config{DSN: cfg.Database.DSN()})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	var publisher *events.Publisher
	if cfg.Redis.Addr != "" {
		redisClient, err := events.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		publisher = events.NewPublisher(redisClient, cfg.Redis.Stream)
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	profilePath := os.Getenv("PROFILES_PATH")
	if profilePath == "" {
		profilePath = "profiles.json"
	}
	store, err := profiles.NewStore(profilePath)
	if err != nil {
		logger.Error("failed to load site profiles", "error", err)
		os.Exit(1)
	}

	var productStore service.ProductStore
	var jobStore jobs.Store
	var productReader api.ProductReader
	if db != nil {
		productStore = db
		jobStore = db
		productReader = db
	}

	svc := service.New(b, cfg, store, productStore, registry)
	manager := jobs.NewManager(jobs.Config{
		ConcurrentPages: cfg.Scraper.ConcurrentPages,
		RateLimitMin:    cfg.Scraper.RateLimitMin,
		RateLimitMax:    cfg.Scraper.RateLimitMax,
		MaxRetries:      cfg.Scraper.MaxRetries,
	}, svc, jobStore, publisher)

	handlers := api.NewHandlers(manager, store, productReader)
	router := api.NewRouter(handlers, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

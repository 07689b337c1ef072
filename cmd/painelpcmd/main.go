package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"painel-pcm-backend/config"
	"painel-pcm-backend/internal/api"
	"painel-pcm-backend/internal/clock"
	"painel-pcm-backend/internal/db"
	"painel-pcm-backend/internal/kpi"
	"painel-pcm-backend/internal/model"
	"painel-pcm-backend/internal/notification"
	"painel-pcm-backend/internal/observability"
	"painel-pcm-backend/internal/report"
	"painel-pcm-backend/internal/source"
	"painel-pcm-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "painel-pcm ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Source.URL == "" {
		logger.Fatalf("source.url (or PAINEL_API_URL) must be configured")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	src := source.NewService(source.NewHTTPFetcher(cfg.Source), cfg.Source.Interval, clock.Real{})

	// Serve the last persisted snapshot until the first fetch completes.
	if snap, err := appStore.LatestSnapshot(ctx); err != nil {
		logger.Printf("could not restore last snapshot: %v", err)
	} else if snap != nil {
		src.Seed(*snap)
		logger.Printf("restored snapshot %s with %d activities", snap.ID, len(snap.Records))
	}

	src.OnSnapshot(func(_, next model.Snapshot, changed []string) {
		if err := appStore.SaveSnapshot(ctx, next, changed); err != nil {
			logger.Printf("failed to persist snapshot %s: %v", next.ID, err)
		}
	})

	src.OnSnapshot(func(_, next model.Snapshot, _ []string) {
		now := time.Now()
		for _, agg := range []kpi.Aggregator{kpi.Weighted{Ignored: cfg.KPI.IgnoredActivityTypes}, kpi.Minutes{}} {
			observability.RecordAdherence(string(agg.Name()), agg.Aggregate(next.Records, now).Adherence)
		}
	})

	if webpushOptions != nil {
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		src.OnSnapshot(func(_, next model.Snapshot, changed []string) {
			for _, job := range notification.JobsFor(next.Records, changed) {
				workerPool.Dispatch(job)
			}
		})
	}

	if cfg.Source.Enabled {
		go src.Run(ctx)
	} else {
		logger.Println("source polling is disabled; serving the persisted snapshot only")
	}

	reports := report.NewScheduler(cfg.Report, cfg.KPI.IgnoredActivityTypes, src, cfg.Source.Location())
	reports.Start(ctx)

	// Initialize router
	router := api.NewRouter(api.NewHandler(src, appStore, cfg, webpushOptions, clock.Real{}))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

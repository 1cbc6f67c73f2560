package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
	"github.com/tradeshelf/backend/internal/infrastructure/cache"
	"github.com/tradeshelf/backend/internal/infrastructure/config"
	"github.com/tradeshelf/backend/internal/infrastructure/logger"
	"github.com/tradeshelf/backend/internal/infrastructure/persistence"
	"github.com/tradeshelf/backend/internal/infrastructure/scheduler"
	"github.com/tradeshelf/backend/internal/infrastructure/sources"
	"github.com/tradeshelf/backend/internal/infrastructure/storage"
	"github.com/tradeshelf/backend/internal/interfaces/http/handler"
	"github.com/tradeshelf/backend/internal/interfaces/http/middleware"
	"github.com/tradeshelf/backend/internal/interfaces/http/router"
)

const (
	maxRequestBodyBytes = 1 << 20 // the sync API only takes tiny JSON bodies
	shutdownTimeout     = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Connect to the database
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Persistence layer
	upsertEngine := persistence.NewUpsertEngine(db.DB, log,
		persistence.WithBatchSize(cfg.Sync.BatchSize),
		persistence.WithMaxRetries(cfg.Sync.MaxRetries),
	)
	checkpoints := persistence.NewCheckpointRepository(db.DB)
	queue := persistence.NewQueueRepository(db.DB, log)
	metadata := persistence.NewAppMetadataRepository(db.DB, log)

	// Upstream clients
	hub, err := sources.NewHubClient(&sources.HubConfig{
		BaseURL:        cfg.Sources.HubBaseURL,
		TimeoutSeconds: cfg.Sources.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create hub client", zap.Error(err))
	}
	store, err := sources.NewStoreClient(&sources.StoreConfig{
		APIKey:         cfg.Sources.StoreAPIKey,
		WebAPIBaseURL:  cfg.Sources.WebAPIBaseURL,
		StoreBaseURL:   cfg.Sources.StoreBaseURL,
		TimeoutSeconds: cfg.Sources.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create store client", zap.Error(err))
	}
	deals, err := sources.NewDealsClient(&sources.DealsConfig{
		APIKey:         cfg.Sources.DealsAPIKey,
		BaseURL:        cfg.Sources.DealsBaseURL,
		TimeoutSeconds: cfg.Sources.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create deals client", zap.Error(err))
	}
	cards, err := sources.NewCardsClient(&sources.CardsConfig{
		BaseURL:        cfg.Sources.CardsBaseURL,
		TimeoutSeconds: cfg.Sources.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create cards client", zap.Error(err))
	}
	tracker, err := sources.NewTrackerClient(&sources.TrackerConfig{
		BaseURL:        cfg.Sources.TrackerBaseURL,
		TimeoutSeconds: cfg.Sources.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create tracker client", zap.Error(err))
	}
	barter, err := sources.NewBarterClient(&sources.BarterConfig{
		BaseURL:        cfg.Sources.BarterBaseURL,
		TimeoutSeconds: cfg.Sources.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create barter client", zap.Error(err))
	}

	// Category and tag translation tables. Fresh tables come from the
	// storefront; the bundled snapshot covers startup without network.
	categories, tags := loadTranslations(store, log)

	// Processors
	names := syncapp.NewNamesProcessor(hub, upsertEngine, log)
	types := syncapp.NewTypesProcessor(hub, upsertEngine, log)
	storeList := syncapp.NewStoreListProcessor(store, upsertEngine, log)
	productInfo := syncapp.NewProductInfoProcessor(hub, upsertEngine, categories, tags, log)
	changes := syncapp.NewChangesProcessor(hub, productInfo, log)
	cardSets := syncapp.NewCardsProcessor(cards, upsertEngine, log)
	removals := syncapp.NewRemovalsProcessor(tracker, upsertEngine, log)
	plusOne := syncapp.NewPlusOneProcessor(barter, upsertEngine, log)
	bundles := syncapp.NewBundlesProcessor(deals, upsertEngine, log)
	prices := syncapp.NewPricesProcessor(deals, upsertEngine, log)
	storeDetails := syncapp.NewStoreDetailsProcessor(store, upsertEngine, cfg.Sync.StorefrontURL, log)
	reviews := syncapp.NewReviewsProcessor(store, upsertEngine, log)
	dealsDetails := syncapp.NewDealsDetailsProcessor(deals, upsertEngine, log)

	// Snapshot export is optional; without a bucket the sweep simply
	// skips the publish stage.
	var exporter *syncapp.SnapshotExporter
	if cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3SnapshotStorage(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to create snapshot storage", zap.Error(err))
		}
		exporter = syncapp.NewSnapshotExporter(metadata, s3, cfg.Sync.SnapshotMaxAge, log)
	} else {
		log.Warn("Snapshot export disabled: no storage bucket configured")
	}

	orchestrator := syncapp.NewOrchestrator(syncapp.OrchestratorConfig{
		Checkpoints: checkpoints,
		Queue:       queue,
		SweepSources: []syncapp.DeltaSource{
			{Processor: names},
			{Processor: types},
			{Processor: storeList, Discovery: true},
			{Processor: changes},
			{Processor: cardSets},
			{Processor: removals},
			{Processor: plusOne},
			{Processor: bundles},
			{Processor: prices},
		},
		Refreshers:     []syncapp.PullProcessor{productInfo, storeDetails, reviews, dealsDetails},
		Exporter:       exporter,
		Logger:         log,
		RefreshDefault: cfg.Sync.RefreshDefault,
		RefreshMax:     cfg.Sync.RefreshMax,
	})

	// Run reports go to Redis so status survives restarts; fall back to
	// process memory when Redis is unreachable.
	var reports cache.ReportCache
	redisReports, err := cache.NewRedisReportCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, run reports held in memory", zap.Error(err))
		reports = cache.NewInMemoryReportCache()
	} else {
		reports = redisReports
		defer func() {
			if err := redisReports.Close(); err != nil {
				log.Error("Failed to close report cache", zap.Error(err))
			}
		}()
	}

	// Background trigger. Manual runs through the API share its
	// single-flight guard even when the periodic loops are disabled.
	trigger := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
		SweepInterval:   cfg.Scheduler.SweepInterval,
		RefreshInterval: cfg.Scheduler.RefreshInterval,
		RefreshCount:    cfg.Sync.RefreshDefault,
	}, orchestrator, reports, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
		log.Info("Sync trigger started",
			zap.Duration("sweep_interval", cfg.Scheduler.SweepInterval),
			zap.Duration("refresh_interval", cfg.Scheduler.RefreshInterval),
		)
	} else {
		log.Info("Scheduler disabled, runs happen on demand only")
	}

	// HTTP layer
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(maxRequestBodyBytes))

	systemHandler := handler.NewSystemHandler(db)
	syncHandler := handler.NewSyncHandler(trigger, reports, log)

	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(systemHandler)
	r.Register(syncHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if cfg.Scheduler.Enabled {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop sync trigger", zap.Error(err))
		}
	}
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}

// loadTranslations fetches the category and tag id-to-name tables from
// the storefront, falling back to the bundled snapshot when the fetch
// fails. A missing table only costs label resolution, so nothing here
// is fatal.
func loadTranslations(store *sources.StoreClient, log *zap.Logger) (map[int64]string, map[int64]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	categories, err := store.StoreCategories(ctx)
	if err != nil {
		log.Warn("Falling back to bundled category table", zap.Error(err))
		if categories, err = sources.CachedCategories(); err != nil {
			log.Error("Bundled category table unreadable", zap.Error(err))
			categories = map[int64]string{}
		}
	}

	tags, err := store.StoreTags(ctx)
	if err != nil {
		log.Warn("Falling back to bundled tag table", zap.Error(err))
		if tags, err = sources.CachedTags(); err != nil {
			log.Error("Bundled tag table unreadable", zap.Error(err))
			tags = map[int64]string{}
		}
	}

	return categories, tags
}

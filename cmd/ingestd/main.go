package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Dadudekc/DreamVault/internal/adapter/chromedp_driver"
	"github.com/Dadudekc/DreamVault/internal/adapter/localfs"
	"github.com/Dadudekc/DreamVault/internal/adapter/postgres"
	redis_adapter "github.com/Dadudekc/DreamVault/internal/adapter/redis"
	"github.com/Dadudekc/DreamVault/internal/adapter/sqlite"
	"github.com/Dadudekc/DreamVault/internal/delivery/http/handler"
	"github.com/Dadudekc/DreamVault/internal/delivery/http/router"
	"github.com/Dadudekc/DreamVault/internal/delivery/http/ws"
	"github.com/Dadudekc/DreamVault/internal/locator"
	"github.com/Dadudekc/DreamVault/internal/pipeline"
	"github.com/Dadudekc/DreamVault/internal/ratelimit"
	"github.com/Dadudekc/DreamVault/internal/repository"
	"github.com/Dadudekc/DreamVault/internal/usecase"
	"github.com/Dadudekc/DreamVault/pkg/config"
	"github.com/Dadudekc/DreamVault/pkg/logger"
	"github.com/Dadudekc/DreamVault/pkg/metrics"
)

func main() {
	// --- Configuration ---
	if err := godotenv.Load(); err == nil {
		slog.Info(".env loaded")
	}
	cfg := config.Load()

	// --- Logger ---
	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger.Init(os.Stdout, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	// --- Metrics ---
	metrics.Init()
	slog.Info("Metrics initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Job store ---
	var jobRepo repository.JobRepository
	switch cfg.QueueBackend {
	case "postgres":
		dbpool, err := pgxpool.New(ctx, cfg.PostgresDSN())
		if err != nil {
			slog.Error("Unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()

		pgRepo := postgres.NewJobRepo(dbpool)
		if err := pgRepo.Migrate(ctx); err != nil {
			slog.Error("Job table migration failed", "error", err)
			os.Exit(1)
		}
		jobRepo = pgRepo
		slog.Info("PostgreSQL job store ready")
	default:
		sqliteRepo, err := sqlite.NewJobRepo(cfg.SQLiteQueuePath)
		if err != nil {
			slog.Error("Unable to open queue database", "path", cfg.SQLiteQueuePath, "error", err)
			os.Exit(1)
		}
		defer sqliteRepo.Close()
		jobRepo = sqliteRepo
		slog.Info("SQLite job store ready", "path", cfg.SQLiteQueuePath)
	}

	// --- Selector cache ---
	var cacheRepo repository.SelectorCacheRepository
	if cfg.CacheBackend == "redis" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		cacheRepo = redis_adapter.NewSelectorCacheRepo(rdb)
		slog.Info("Redis selector cache ready")
	} else {
		sqliteCache, err := sqlite.NewCacheRepo(cfg.SQLiteCachePath)
		if err != nil {
			slog.Error("Unable to open selector cache", "path", cfg.SQLiteCachePath, "error", err)
			os.Exit(1)
		}
		defer sqliteCache.Close()
		cacheRepo = sqliteCache
	}

	// --- Transforms ---
	indexRepo, err := sqlite.NewIndexRepo(cfg.SQLiteIndexPath)
	if err != nil {
		slog.Error("Unable to open index database", "path", cfg.SQLiteIndexPath, "error", err)
		os.Exit(1)
	}
	defer indexRepo.Close()

	embeddingRepo, err := localfs.NewEmbeddingRepo(cfg.EmbeddingsDir)
	if err != nil {
		slog.Error("Unable to create embeddings directory", "dir", cfg.EmbeddingsDir, "error", err)
		os.Exit(1)
	}

	// --- Rate limiter ---
	quotas, err := config.LoadQuotas(cfg.QuotaFile)
	if err != nil {
		slog.Error("Unable to load quota table", "path", cfg.QuotaFile, "error", err)
		os.Exit(1)
	}
	limiter := ratelimit.New(ratelimit.Config{
		GlobalRequestsPerMinute:   cfg.GlobalRequestsPerMinute,
		GlobalBurst:               cfg.GlobalBurst,
		ResourceRequestsPerMinute: cfg.ResourceRequestsPerMinute,
		ResourceBurst:             cfg.ResourceBurst,
		Models:                    modelQuotas(quotas),
	})

	// --- Use cases ---
	loc := locator.New(cacheRepo, locator.Config{})
	discoverer := usecase.NewDiscoverUseCase(loc, jobRepo, 0)
	queueManager := usecase.NewQueueManager(jobRepo, embeddingRepo, indexRepo, limiter, cfg.ResourceKey, cfg.ModelKey)

	deps := &pipelineDeps{
		jobRepo:  jobRepo,
		embedder: embeddingRepo,
		indexer:  indexRepo,
		limiter:  limiter,
		discover: discoverer,
		manager:  queueManager,
		ingestCfg: usecase.IngestConfig{
			ResourceKey: cfg.ResourceKey,
			ModelKey:    cfg.ModelKey,
			BaseURL:     cfg.BaseURL,
		},
	}

	// --- Workers ---
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runWorkers(ctx, cfg, deps)
	}()

	// --- HTTP server ---
	apiHandler := handler.NewHandler(queueManager)
	statsFeed := ws.NewStatsFeed(queueManager, 0)
	httpRouter := router.New(apiHandler, statsFeed)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	wg.Wait()
	slog.Info("Shutdown complete")
}

// pipelineDeps bundles the long-lived collaborators a worker session
// needs; the browser-bound ingestor is rebuilt per session.
type pipelineDeps struct {
	jobRepo   repository.JobRepository
	embedder  repository.Embedder
	indexer   repository.Indexer
	limiter   *ratelimit.RateLimiter
	discover  usecase.Discoverer
	manager   usecase.QueueManager
	ingestCfg usecase.IngestConfig
}

// runWorkers alternates discovery passes and batch ingestion until the
// context ends, rebuilding the browser session whenever it dies.
func runWorkers(ctx context.Context, cfg *config.Config, deps *pipelineDeps) {
	for ctx.Err() == nil {
		driver, err := chromedp_driver.NewDriver(cfg.Headless, cfg.PageLoadTimeout)
		if err != nil {
			slog.Error("Unable to start browser session", "error", err)
			if !sleepCtx(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if _, err := deps.discover.DiscoverAndEnqueue(ctx, driver); err != nil &&
			!errors.Is(err, repository.ErrDriverGone) {
			slog.Error("Discovery pass failed", "error", err)
		}

		ingestor := usecase.NewIngestUseCase(
			deps.jobRepo, driver, pipeline.NewRedactor(), pipeline.NewSummarizer(),
			deps.embedder, deps.indexer, deps.limiter, deps.ingestCfg,
		)
		result, err := ingestor.RunBatch(ctx, cfg.BatchMaxJobs)
		if err != nil && !errors.Is(err, repository.ErrDriverGone) && !errors.Is(err, context.Canceled) {
			slog.Error("Batch run failed", "run_id", result.RunID, "error", err)
		}
		driver.Close()

		if errors.Is(err, repository.ErrDriverGone) {
			slog.Warn("Browser session died, rebuilding", "run_id", result.RunID)
			continue
		}

		if _, err := deps.manager.Cleanup(ctx, cfg.CleanupDays); err != nil && ctx.Err() == nil {
			slog.Error("Cleanup pass failed", "error", err)
		}
		if !sleepCtx(ctx, cfg.DiscoverInterval) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// modelQuotas converts the TOML quota table into limiter config.
func modelQuotas(table *config.QuotaTable) map[string]ratelimit.ModelQuota {
	models := make(map[string]ratelimit.ModelQuota, len(table.Models))
	for name, entry := range table.Models {
		models[name] = ratelimit.ModelQuota{
			Requests:     entry.Requests,
			Window:       time.Duration(entry.Window),
			Burst:        entry.Burst,
			AliasOf:      entry.AliasOf,
			AutoThrottle: entry.AutoThrottle,
		}
	}
	return models
}

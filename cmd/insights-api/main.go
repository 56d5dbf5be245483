package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradebook-insights/api/swagger"
	"github.com/noah-isme/gradebook-insights/internal/analytics"
	"github.com/noah-isme/gradebook-insights/internal/handler"
	internalmiddleware "github.com/noah-isme/gradebook-insights/internal/middleware"
	"github.com/noah-isme/gradebook-insights/internal/models"
	"github.com/noah-isme/gradebook-insights/internal/repository"
	"github.com/noah-isme/gradebook-insights/internal/service"
	"github.com/noah-isme/gradebook-insights/pkg/cache"
	"github.com/noah-isme/gradebook-insights/pkg/config"
	"github.com/noah-isme/gradebook-insights/pkg/database"
	"github.com/noah-isme/gradebook-insights/pkg/jobs"
	"github.com/noah-isme/gradebook-insights/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradebook-insights/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradebook-insights/pkg/middleware/requestid"
	"github.com/noah-isme/gradebook-insights/pkg/storage"
)

// @title Gradebook Insights API
// @version 1.0.0
// @description Gradebook analytics: early intervention, chapter difficulty, assessment quality, learning progression and performance patterns
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

type app struct {
	router *gin.Engine
	queue  *jobs.Queue
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logr.Debug("schema ensured", zap.Strings("files", applied))

	// Redis is optional: without it every lookup is a cache miss.
	var rdb *redis.Client
	if cfg.Insights.CacheEnabled {
		rdb, err = cache.NewRedis(ctx, cfg.Redis, 3*time.Second)
		if err != nil {
			logr.Warn("redis unavailable, insights cache disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	a, err := build(ctx, cfg, logr, db, rdb)
	if err != nil {
		return err
	}
	if a.queue != nil {
		defer a.queue.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func build(ctx context.Context, cfg *config.Config, logr *zap.Logger, db *sqlx.DB, rdb *redis.Client) (*app, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	engine := analytics.New(
		analytics.FileThresholds{Path: cfg.Insights.ThresholdsFile},
		analytics.WithParallel(cfg.Insights.Parallel),
		analytics.WithObserver(metrics),
		analytics.WithLogger(logr.Named("analytics")),
	)
	// A bad thresholds file is reported now but retried on every request.
	if err := engine.Initialize(); err != nil {
		logr.Error("insights engine not initialized", zap.Error(err))
	}

	cacheRepo := repository.NewCacheRepository(rdb, "gradebook:", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Insights.CacheTTL, logr, cfg.Insights.CacheEnabled && rdb != nil)

	snapshotRepo := repository.NewSnapshotRepository(db)
	insightsCfg := service.InsightsServiceConfig{
		CacheTTL:        cfg.Insights.CacheTTL,
		SnapshotTTL:     cfg.Insights.SnapshotTTL,
		CleanupInterval: cfg.Insights.CleanupInterval,
		MaxUploadBytes:  cfg.Insights.MaxUploadBytes,
	}
	var insightsSvc *service.InsightsService
	if cfg.Insights.SnapshotsOn {
		insightsSvc = service.NewInsightsService(engine, snapshotRepo, cacheSvc, metrics, validate, logr, insightsCfg)
	} else {
		insightsSvc = service.NewInsightsService(engine, nil, cacheSvc, metrics, validate, logr, insightsCfg)
	}
	insightsSvc.StartCleanup(ctx)

	tokens := service.NewTokenService(validate, service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	exportHandler := handler.NewExportHandler(nil)
	var queue *jobs.Queue
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("export storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exporter := service.NewExportService(snapshotRepo, files, signer, service.DefaultRenderers(), service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)

		exportRepo := repository.NewExportRepository(db)
		worker := service.NewExportWorker(exportRepo, exporter, metrics, logr)
		queue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			OnExhaust:  worker.Exhausted,
			Logger:     logr,
		})
		queue.Start(ctx)

		exportSvc := service.NewExportJobService(exportRepo, snapshotRepo, queue, exporter, validate, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		if n := exportSvc.RecoverPendingJobs(ctx); n > 0 {
			logr.Info("re-queued pending export jobs", zap.Int("count", n))
		}
		exportSvc.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(exportSvc)
	}

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, metrics, tokens,
		handler.NewInsightsHandler(insightsSvc, cfg.Insights.MaxUploadBytes),
		exportHandler,
		handler.NewMetricsHandler(metrics, checks),
	)
	return &app{router: router, queue: queue}, nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens internalmiddleware.TokenValidator, insights *handler.InsightsHandler, exports *handler.ExportHandler, system *handler.MetricsHandler) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", system.Health)
	r.GET("/ready", system.Ready)
	r.GET("/metrics", system.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	// Signed links are the credential for downloads.
	api.GET("/export/:token", exports.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokens))
	secured.Use(internalmiddleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	{
		secured.POST("/insights", insights.Compute)
		secured.POST("/insights/import", insights.Import)
		secured.GET("/insights/courses/:courseId/latest", insights.Latest)
		secured.GET("/insights/courses/:courseId/snapshots", insights.ListSnapshots)
		secured.GET("/insights/snapshots/:id", insights.Snapshot)

		secured.POST("/exports", exports.Create)
		secured.GET("/exports/:id", exports.Status)
	}

	admin := api.Group("")
	admin.Use(internalmiddleware.JWT(tokens))
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
	admin.GET("/insights/system", system.System)

	return r
}

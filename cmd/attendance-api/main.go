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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-attendance-api/api/swagger"
	"github.com/noah-isme/sma-attendance-api/internal/handler"
	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	"github.com/noah-isme/sma-attendance-api/pkg/cache"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/database"
	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
	"github.com/noah-isme/sma-attendance-api/pkg/llm"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-attendance-api/pkg/storage"
)

// @title SMA Attendance API
// @version 1.0.0
// @description School attendance recording, reporting and threshold alerts
// @BasePath /api/v1
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	if err := metrics.RegisterDB(db.DB, cfg.Database.Driver); err != nil {
		logr.Warn("database metrics unavailable", zap.Error(err))
	}
	validate := validation.New()

	students := repository.NewStudentRepository(db)
	classes := repository.NewClassRepository(db)
	daysOff := repository.NewDayOffRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	thresholds := repository.NewThresholdRepository(db)
	exportJobs := repository.NewExportJobRepository(db)

	cacheRepo, closeCache := reportCache(ctx, cfg, logr)
	defer closeCache()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	reportSvc := service.NewReportService(attendance, students, classes, daysOff, cacheSvc, metrics, validate,
		service.ReportConfig{CacheTTL: cfg.Cache.TTL, MaxLimit: cfg.Reports.MaxPageSize}, logr)
	studentSvc := service.NewStudentService(students, reportSvc, validate, logr)
	classSvc := service.NewClassService(classes, students, reportSvc, validate, logr)
	dayOffSvc := service.NewDayOffService(daysOff, reportSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendance, students, daysOff, reportSvc, metrics, validate, logr)
	thresholdSvc := service.NewThresholdService(thresholds, validate, logr)
	alertSvc := service.NewAlertService(attendance, students, classes, thresholdSvc, metrics,
		service.AlertConfig{WindowDays: cfg.Alerts.WindowDays, WarningBuffer: cfg.Alerts.WarningBuffer}, logr)
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.Auth.Secret, Expiration: cfg.Auth.Expiration}, logr)

	var completer llm.Completer
	if cfg.LLM.QueryEnabled() {
		completer = llm.NewAnthropicClient(llm.Options{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
			Logger:  logr,
		})
	} else {
		logr.Warn("LLM_API_KEY not set, natural-language queries disabled")
	}
	querySvc := service.NewQueryService(completer, reportSvc, validate, logr)

	var exportSvc *service.ExportJobService
	if cfg.Exports.Enabled {
		exportSvc, err = startExports(ctx, cfg, logr, exportJobs, reportSvc, validate)
		if err != nil {
			return err
		}
	}

	h := handler.Handlers{
		Students:   handler.NewStudentHandler(studentSvc),
		Classes:    handler.NewClassHandler(classSvc),
		DaysOff:    handler.NewDayOffHandler(dayOffSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Alerts:     handler.NewAlertHandler(alertSvc),
		Thresholds: handler.NewThresholdHandler(thresholdSvc),
		Query:      handler.NewQueryHandler(querySvc),
		Metrics:    handler.NewMetricsHandler(metrics, db),
	}
	// a typed nil would defeat the handler's disabled check
	if exportSvc != nil {
		h.Reports = handler.NewReportHandler(reportSvc, exportSvc)
	} else {
		h.Reports = handler.NewReportHandler(reportSvc, nil)
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:   cfg.APIPrefix,
		AuthEnabled: cfg.Auth.Enabled,
		Tokens:      authSvc,
		Swagger:     cfg.Env != config.EnvProduction,
	}, h,
		gin.Recovery(),
		reqidmiddleware.Middleware(),
		logger.GinMiddleware(logr),
		corsmiddleware.New(cfg.CORS.AllowedOrigins),
		middleware.Metrics(metrics),
		middleware.WithResponseMeta(),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "auth", cfg.Auth.Enabled, "cache", cfg.Cache.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return server.Shutdown(shutdownCtx)
}

// reportCache selects the configured cache backend. A failed Redis connection falls back to memory.
func reportCache(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func()) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		logr.Info("report cache disabled")
		return nil, noop
	case config.CacheBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err == nil {
			return repository.NewCacheRepository(client, "attendance:", logr), func() { _ = client.Close() }
		}
		logr.Warn("redis unavailable, using in-memory report cache", zap.Error(err))
	}
	return repository.NewMemoryCacheRepository(cfg.Cache.Size, cfg.Cache.TTL), noop
}

// startExports wires file storage, the worker queue and the cleanup loop. The queue stops with ctx.
func startExports(ctx context.Context, cfg *config.Config, logr *zap.Logger, jobsRepo *repository.ExportJobRepository, reports *service.ReportService, validate *validation.Validator) (*service.ExportJobService, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(reports, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	worker := service.NewExportWorker(jobsRepo, exporter, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue[service.ExportTask]("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.OnFailure(worker.Fail)
	queue.Start(ctx)
	go func() {
		<-ctx.Done()
		queue.Stop()
	}()

	svc := service.NewExportJobService(jobsRepo, queue, exporter, validate, service.ExportJobConfig{
		Enabled:         true,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr)
	if n := svc.RecoverPendingJobs(ctx); n > 0 {
		logr.Info("re-queued pending exports", zap.Int("count", n))
	}
	svc.StartCleanup(ctx)
	return svc, nil
}

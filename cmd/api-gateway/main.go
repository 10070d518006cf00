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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-routine-api/api/swagger"
	"github.com/noah-isme/campus-routine-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/repository"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	"github.com/noah-isme/campus-routine-api/internal/service"
	"github.com/noah-isme/campus-routine-api/pkg/cache"
	"github.com/noah-isme/campus-routine-api/pkg/config"
	"github.com/noah-isme/campus-routine-api/pkg/database"
	"github.com/noah-isme/campus-routine-api/pkg/events"
	"github.com/noah-isme/campus-routine-api/pkg/export"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
	"github.com/noah-isme/campus-routine-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-routine-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-routine-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-routine-api/pkg/storage"
)

// @title Campus Routine API
// @version 1.0.0
// @description Class routine generation, repair and export
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

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	departments, err := routine.ParseDepartments(cfg.Generator.Departments)
	if err != nil {
		return fmt.Errorf("parse departments: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"postgres": db}

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, routine cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close() //nolint:errcheck
		redisRepo := repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.RoutineTTL, logr, cacheRepo != nil)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(events.Config{
			URL:           cfg.Events.NATSURL,
			Name:          cfg.Events.ClientName,
			SubjectPrefix: cfg.Events.SubjectPrefix,
		}, logr)
		if err != nil {
			logr.Warn("nats unavailable, routine events disabled", zap.Error(err))
		} else {
			publisher = natsPublisher
		}
	}
	defer publisher.Close() //nolint:errcheck

	routineSvc := service.NewRoutineGeneratorService(
		repository.NewRoutineRepository(db),
		repository.NewCatalogRepository(db),
		repository.NewConstraintRepository(db),
		db,
		cacheSvc,
		metrics,
		publisher,
		validator.New(),
		logr,
		service.RoutineGeneratorConfig{
			ProposalTTL: cfg.Generator.ProposalTTL,
			Seed:        cfg.Generator.Seed,
			Departments: departments,
			RoutineTTL:  cfg.Cache.RoutineTTL,
			JobTTL:      cfg.Cache.JobTTL,
		},
	)

	batchQueue := jobs.NewQueue("routine-batch", routineSvc.HandleBatchJob, jobs.QueueConfig{
		Workers:     cfg.Generator.BatchWorkers,
		MaxRetries:  cfg.Generator.BatchRetries,
		JobTimeout:  cfg.Generator.BatchTimeout,
		Logger:      logr,
		OnExhausted: routineSvc.MarkBatchExhausted,
	})
	batchQueue.Start(ctx)
	defer batchQueue.Stop()
	routineSvc.SetDispatcher(batchQueue)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		return err
	}
	exportSvc := service.NewRoutineExportService(
		routineSvc,
		exportStore,
		storage.NewSignedURLSigner(cfg.Export.SigningSecret, cfg.Export.LinkTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Export.LinkTTL},
		logr,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)
	go cleanupExports(ctx, exportSvc, logr)

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	routineHandler := handler.NewRoutineHandler(routineSvc, exportSvc, logr)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/exports/:token", routineHandler.Download)

	routines := api.Group("/routines")
	routines.GET("", routineHandler.List)
	routines.GET("/:id", routineHandler.Get)
	routines.GET("/:id/conflicts", routineHandler.Conflicts)
	routines.GET("/:id/export", routineHandler.Export)
	routines.GET("/batch/jobs/:id", routineHandler.BatchStatus)

	writes := routines.Group("",
		internalmiddleware.JWT(tokens),
		internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
	)
	audits := repository.NewAuditRepository(db)
	audited := func(action string) gin.HandlerFunc {
		return internalmiddleware.Audit(audits, logr, action, models.AuditResourceRoutine)
	}
	writes.DELETE("/:id", audited(models.AuditActionRoutineDelete), routineHandler.Delete)
	if cfg.Generator.Enabled {
		writes.POST("/generate", audited(models.AuditActionRoutineGenerate), routineHandler.Generate)
		writes.POST("/save", audited(models.AuditActionRoutineSave), routineHandler.Save)
		writes.POST("/batch", audited(models.AuditActionRoutineBatch), routineHandler.GenerateBatch)
		writes.POST("/batch/jobs", audited(models.AuditActionRoutineBatch), routineHandler.EnqueueBatch)
		writes.POST("/refactor", audited(models.AuditActionRoutineRefactor), routineHandler.Refactor)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cleanupExports(ctx context.Context, svc *service.RoutineExportService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Cleanup(); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}

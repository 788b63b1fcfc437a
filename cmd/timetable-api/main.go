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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly class timetable generation with school-wide conflict detection
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	calendar, err := config.LoadCalendar(cfg.Scheduler.CalendarFile)
	if err != nil {
		logr.Fatal("failed to load calendar", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
		logr.Info("schema migrated")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, conflict cache disabled", zap.Error(err))
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectDirectory := repository.NewSubjectDirectoryRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)
	runRepo := repository.NewTimetableRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.ConflictCacheTTL, logr, redisClient != nil)
	conflictSvc := service.NewConflictService(slotRepo, teacherRepo, cacheSvc, metricsSvc, cfg.Scheduler.ConflictCacheTTL, logr)
	timetableSvc := service.NewTimetableService(
		classRepo,
		subjectDirectory,
		slotRepo,
		runRepo,
		conflictSvc,
		db,
		calendar,
		metricsSvc,
		validate,
		logr,
		service.TimetableConfig{
			ProposalTTL:        cfg.Scheduler.ProposalTTL,
			Strategy:           cfg.Scheduler.Strategy,
			BatchConcurrency:   cfg.Scheduler.BatchConcurrency,
			DefaultWeight:      cfg.Scheduler.DefaultWeight,
			SeedBusyFromSchool: cfg.Scheduler.SeedBusyFromSchool,
		},
	)
	exportSvc := service.NewExportService(classRepo, slotRepo, calendar, logr, nil, nil)

	batchQueue := jobs.NewQueue("timetable-batch", timetableSvc.HandleBatchJob, jobs.QueueConfig{
		Workers:    cfg.Scheduler.JobWorkers,
		MaxRetries: cfg.Scheduler.JobRetries,
		RetryDelay: 2 * time.Second,
		OnFinish:   timetableSvc.ObserveBatchJob,
		Logger:     logr,
	})
	batchQueue.Start(ctx)
	defer batchQueue.Stop()
	timetableSvc.UseQueue(batchQueue)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	timetableHandler := handler.NewTimetableHandler(timetableSvc, conflictSvc, exportSvc)
	api := r.Group(cfg.APIPrefix)
	{
		timetables := api.Group("/timetables")
		timetables.GET("/grid", timetableHandler.Grid)
		timetables.POST("/generate", timetableHandler.Generate)
		timetables.POST("/save", timetableHandler.Save)
		timetables.POST("/batch", timetableHandler.GenerateBatch)
		timetables.POST("/batch/jobs", timetableHandler.EnqueueBatch)
		timetables.GET("/batch/jobs/:id", timetableHandler.BatchStatus)
		timetables.GET("/conflicts", timetableHandler.Conflicts)

		classes := api.Group("/classes/:id/timetable")
		classes.GET("", timetableHandler.ClassTimetable)
		classes.PATCH("/slots", timetableHandler.EditSlot)
		classes.GET("/runs", timetableHandler.ClassRuns)
		classes.GET("/export", timetableHandler.Export)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "strategy", cfg.Scheduler.Strategy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

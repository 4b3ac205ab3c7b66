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

	_ "github.com/noah-isme/sce-api/api/swagger"
	"github.com/noah-isme/sce-api/internal/handler"
	"github.com/noah-isme/sce-api/internal/middleware"
	"github.com/noah-isme/sce-api/internal/repository"
	"github.com/noah-isme/sce-api/internal/service"
	"github.com/noah-isme/sce-api/pkg/cache"
	"github.com/noah-isme/sce-api/pkg/config"
	"github.com/noah-isme/sce-api/pkg/database"
	"github.com/noah-isme/sce-api/pkg/jobs"
	"github.com/noah-isme/sce-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sce-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sce-api/pkg/middleware/requestid"
	"github.com/noah-isme/sce-api/pkg/storage"
)

// @title SCE API
// @version 1.0.0
// @description Student, course and enrollment administration service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, cfg.Numbers, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, cfg.Numbers, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, cacheRepo, cfg.Cache, validate, logr).
		WithMetrics(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(enrollmentRepo, studentRepo, courseRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc = service.NewReportService(reportRepo, queue, exportSvc, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		}, logr)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.POST("", studentHandler.Create)
	students.GET("/roll/:rollNo", studentHandler.GetByRollNo)
	students.GET("/:id", studentHandler.Get)
	students.PUT("/:id", studentHandler.Update)
	students.DELETE("/:id", studentHandler.Delete)

	courses := protected.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.POST("", courseHandler.Create)
	courses.GET("/no/:courseNo", courseHandler.GetByCourseNo)
	courses.GET("/:id", courseHandler.Get)
	courses.PUT("/:id", courseHandler.Update)
	courses.DELETE("/:id", courseHandler.Delete)

	enrollments := protected.Group("/enrollments")
	enrollments.GET("", enrollmentHandler.List)
	enrollments.GET("/detail", enrollmentHandler.Get)
	enrollments.POST("", enrollmentHandler.Enroll)
	enrollments.DELETE("/unenroll", enrollmentHandler.Unenroll)
	enrollments.PUT("/update", enrollmentHandler.Update)
	enrollments.POST("/attendance", enrollmentHandler.MarkAttendance)
	enrollments.GET("/attendance", enrollmentHandler.GetAttendance)
	enrollments.GET("/gpa/:studentRollNo", enrollmentHandler.GetGPA)
	enrollments.PUT("/grade", enrollmentHandler.UpdateGrade)
	enrollments.GET("/students/:courseNo", enrollmentHandler.StudentsByCourse)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc, metricsSvc)
		reports := protected.Group("/reports")
		reports.POST("", reportHandler.Create)
		reports.GET("/:id", reportHandler.Status)
		// Downloads carry their own signed token, no bearer required.
		api.GET("/reports/download/:token", reportHandler.Download)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

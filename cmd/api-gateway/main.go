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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/unireg-api/api/swagger"
	"github.com/noah-isme/unireg-api/internal/handler"
	internalmiddleware "github.com/noah-isme/unireg-api/internal/middleware"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	"github.com/noah-isme/unireg-api/internal/service"
	"github.com/noah-isme/unireg-api/migrations"
	"github.com/noah-isme/unireg-api/pkg/cache"
	"github.com/noah-isme/unireg-api/pkg/config"
	"github.com/noah-isme/unireg-api/pkg/database"
	"github.com/noah-isme/unireg-api/pkg/jobs"
	"github.com/noah-isme/unireg-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/unireg-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/unireg-api/pkg/middleware/requestid"
)

// @title UniReg API
// @version 1.0.0
// @description Course registration workflow: eligibility, advisor approvals, grades and transcripts.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := migrations.NewMigrator(db, logr).Up(context.Background()); err != nil {
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, academic record cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.GPACache.TTL, logr, cfg.GPACache.Enabled)
	}

	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	policySvc := service.NewPolicyService(settingRepo, userRepo, logr, defaultPolicy(cfg.Registration))

	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	notifyQueue := jobs.NewQueue("notifications", notificationSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.Retries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
	})
	notificationSvc.UseQueue(notifyQueue)

	registrationSvc := service.NewRegistrationService(registrationRepo, policySvc, userRepo, validate, logr,
		service.WithRegistrationNotifier(notificationSvc),
		service.WithRegistrationMetrics(metricsSvc),
	)
	recordSvc := service.NewAcademicRecordService(enrollmentRepo, userRepo, cacheSvc, cfg.GPACache.TTL, logr)
	gradingSvc := service.NewGradingService(enrollmentRepo, recordSvc, userRepo, metricsSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	notifyQueue.Start(context.Background())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:          authSvc,
		audit:         userRepo,
		logger:        logr,
		registration:  handler.NewRegistrationHandler(registrationSvc),
		courses:       handler.NewCourseHandler(courseSvc),
		records:       handler.NewAcademicRecordHandler(recordSvc, gradingSvc),
		settings:      handler.NewSettingsHandler(policySvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	notifyQueue.Stop()
	logr.Info("server stopped")
}

func defaultPolicy(cfg config.RegistrationConfig) models.RegistrationPolicy {
	return models.RegistrationPolicy{
		RegistrationOpen:   cfg.RegistrationOpen,
		MaxCredits:         cfg.MaxCredits,
		MinCredits:         cfg.MinCredits,
		CurrentSemester:    cfg.CurrentSemester,
		CurrentYear:        cfg.CurrentYear,
		EnforceCreditLimit: cfg.EnforceCreditLimit,
	}
}

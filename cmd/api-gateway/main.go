package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/class-record-api/api/swagger"
	"github.com/noah-isme/class-record-api/internal/handler"
	internalmiddleware "github.com/noah-isme/class-record-api/internal/middleware"
	"github.com/noah-isme/class-record-api/internal/repository"
	"github.com/noah-isme/class-record-api/internal/service"
	"github.com/noah-isme/class-record-api/pkg/cache"
	"github.com/noah-isme/class-record-api/pkg/config"
	"github.com/noah-isme/class-record-api/pkg/database"
	"github.com/noah-isme/class-record-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/class-record-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/class-record-api/pkg/middleware/requestid"
)

// @title Class Record API
// @version 1.0.0
// @description Grades, grading configs and session attendance for class schedules
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

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"postgres": db}

	var cacheRepo service.CacheRepository
	if cfg.GradeCache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, grade cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
			checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.GradeCache.TTL, logr, cfg.GradeCache.Enabled && cacheRepo != nil)

	validate := validator.New()

	scheduleRepo := repository.NewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradingConfigRepo := repository.NewGradingConfigRepository(db)
	gradeItemRepo := repository.NewGradeItemRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cancellationRepo := repository.NewSessionCancellationRepository(db)

	gradingConfigSvc := service.NewGradingConfigService(gradingConfigRepo, cacheSvc, metrics, validate, logr)
	gradeSvc := service.NewGradeService(scheduleRepo, enrollmentRepo, gradeItemRepo, attendanceRepo, gradingConfigSvc, cacheSvc, metrics, validate, logr)
	maxScoreSvc := service.NewMaxScoreService(scheduleRepo, gradeItemRepo, gradingConfigSvc, cacheSvc, metrics, validate, logr)
	sessionSvc := service.NewSessionService(scheduleRepo, enrollmentRepo, attendanceRepo, cancellationRepo, cfg.Attendance.Weeks, metrics, validate, logr)
	overrideSvc := service.NewOverrideService(scheduleRepo, enrollmentRepo, attendanceRepo, cacheSvc, cfg.Attendance.Weeks, cfg.Attendance.FanoutWorkers, metrics, validate, logr)
	verifier := service.NewTokenVerifier(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience})

	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		GradingConfigs: handler.NewGradingConfigHandler(gradingConfigSvc),
		Grades:         handler.NewGradeHandler(gradeSvc, maxScoreSvc),
		Attendance:     handler.NewAttendanceHandler(sessionSvc, overrideSvc),
	}, internalmiddleware.JWT(verifier))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

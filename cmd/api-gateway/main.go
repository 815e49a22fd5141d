package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/course-cms-api/api/swagger"
	"github.com/noah-isme/course-cms-api/internal/handler"
	"github.com/noah-isme/course-cms-api/internal/middleware"
	"github.com/noah-isme/course-cms-api/internal/repository"
	"github.com/noah-isme/course-cms-api/internal/service"
	"github.com/noah-isme/course-cms-api/pkg/cache"
	"github.com/noah-isme/course-cms-api/pkg/config"
	"github.com/noah-isme/course-cms-api/pkg/database"
	"github.com/noah-isme/course-cms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-cms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-cms-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-cms-api/pkg/storage"
)

// @title Course CMS API
// @version 1.0.0
// @description Back office for course enrollment, groups and payment schedules
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.CapacityTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	callRepo := repository.NewCallRepository(db)
	studentCallRepo := repository.NewStudentCallRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupStudentRepo := repository.NewGroupStudentRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "course-cms-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, lecturerRepo, validate, logr)
	lecturerSvc := service.NewLecturerService(lecturerRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	callSvc := service.NewCallService(callRepo, courseRepo, studentCallRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(studentCallRepo, callRepo, studentRepo, cacheSvc, cfg.Cache.CapacityTTL, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, courseRepo, validate, logr)
	groupStudentSvc := service.NewGroupStudentService(groupStudentRepo, groupRepo, studentRepo, validate, logr)
	materialSvc := service.NewMaterialService(materialRepo, groupRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, userRepo, studentRepo, cacheSvc, cfg.Cache.StatisticsTTL, validate, logr)

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(paymentRepo, studentCallRepo, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
	}, validate, logr)

	auditRecorder := middleware.NewAuditRecorder(userRepo, cfg.Audit, logr)
	if cfg.Audit.Enabled {
		auditRecorder.Start(context.Background())
		defer auditRecorder.Stop()
	} else {
		auditRecorder = nil
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		User:         handler.NewUserHandler(userSvc),
		Course:       handler.NewCourseHandler(courseSvc),
		Lecturer:     handler.NewLecturerHandler(lecturerSvc, groupSvc),
		Student:      handler.NewStudentHandler(studentSvc, enrollmentSvc, groupSvc),
		Call:         handler.NewCallHandler(callSvc),
		Enrollment:   handler.NewEnrollmentHandler(enrollmentSvc),
		Group:        handler.NewGroupHandler(groupSvc),
		GroupStudent: handler.NewGroupStudentHandler(groupStudentSvc),
		Material:     handler.NewMaterialHandler(materialSvc),
		Payment:      handler.NewPaymentHandler(paymentSvc),
		Export:       handler.NewExportHandler(exportSvc),
		Metrics:      metricsHandler,
	}, authSvc, auditRecorder)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

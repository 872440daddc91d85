package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uec-api/api/swagger"
	"github.com/noah-isme/uec-api/internal/handler"
	"github.com/noah-isme/uec-api/internal/middleware"
	"github.com/noah-isme/uec-api/internal/models"
	"github.com/noah-isme/uec-api/internal/repository"
	"github.com/noah-isme/uec-api/internal/service"
	"github.com/noah-isme/uec-api/pkg/cache"
	"github.com/noah-isme/uec-api/pkg/config"
	"github.com/noah-isme/uec-api/pkg/database"
	"github.com/noah-isme/uec-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uec-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uec-api/pkg/middleware/requestid"
)

// @title UEC API
// @version 1.0.0
// @description University extracurricular activities API
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Catalog.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	}

	semesterRepo := repository.NewSemesterRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	semesterSvc := service.NewSemesterService(semesterRepo, nil, logr)
	categorySvc := service.NewCategoryService(categoryRepo, cacheSvc, nil, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, activityRepo, nil, logr)
	activitySvc := service.NewActivityService(activityRepo, categoryRepo, cacheSvc, nil, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, semesterRepo, activityRepo, teacherRepo, cacheSvc, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, scheduleRepo, semesterRepo, ratingRepo, cacheSvc, metricsSvc, logr)
	ratingSvc := service.NewRatingService(ratingRepo, enrollmentRepo, semesterRepo, nil, logr)
	exportSvc := service.NewExportService(enrollmentRepo, scheduleRepo, ratingRepo, userRepo, cfg.Exports.Enabled, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	semesterHandler := handler.NewSemesterHandler(semesterSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, exportSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	ratingHandler := handler.NewRatingHandler(ratingSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/semesters", semesterHandler.List)
	authed.GET("/semesters/current", semesterHandler.Current)
	authed.GET("/semesters/:id", semesterHandler.Get)

	authed.GET("/categories", categoryHandler.List)
	authed.GET("/categories/:id", categoryHandler.Get)

	authed.GET("/teachers", teacherHandler.List)
	authed.GET("/teachers/:id", teacherHandler.Get)

	authed.GET("/activities", activityHandler.List)
	authed.GET("/activities/:id", activityHandler.Get)
	authed.GET("/activities/:id/teachers", teacherHandler.Eligible)

	authed.GET("/schedules", scheduleHandler.Browse)
	authed.GET("/schedules/available", scheduleHandler.Available)
	authed.GET("/schedules/:id", scheduleHandler.Get)

	student := authed.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))

	student.POST("/enrollments", enrollmentHandler.Enroll)
	student.GET("/enrollments/history", enrollmentHandler.History)
	student.DELETE("/enrollments/:id", enrollmentHandler.Unenroll)
	student.GET("/ratings/ratable", ratingHandler.Ratable)
	student.POST("/ratings", ratingHandler.Submit)
	student.GET("/ratings", ratingHandler.ByStudent)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))

	admin.POST("/semesters", semesterHandler.Create)
	admin.PUT("/semesters/:id", semesterHandler.Update)
	admin.PUT("/semesters/:id/current", semesterHandler.SetCurrent)
	admin.PATCH("/semesters/:id/flags", semesterHandler.SetFlags)

	admin.POST("/categories", categoryHandler.Create)
	admin.PUT("/categories/:id", categoryHandler.Update)
	admin.DELETE("/categories/:id", categoryHandler.Delete)

	admin.POST("/teachers", teacherHandler.Create)
	admin.PUT("/teachers/:id", teacherHandler.Update)
	admin.DELETE("/teachers/:id", teacherHandler.Deactivate)

	admin.POST("/activities", activityHandler.Create)
	admin.PUT("/activities/:id", activityHandler.Update)
	admin.DELETE("/activities/:id", activityHandler.Delete)

	admin.POST("/schedules", scheduleHandler.Create)
	admin.PUT("/schedules/:id", scheduleHandler.Update)
	admin.DELETE("/schedules/:id", scheduleHandler.Delete)
	admin.GET("/schedules/:id/roster", scheduleHandler.ExportRoster)

	admin.GET("/enrollments", enrollmentHandler.List)
	admin.PATCH("/enrollments/:id/attendance", enrollmentHandler.SetAttendance)
	admin.PATCH("/enrollments/:id/complete", enrollmentHandler.SetCompleted)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

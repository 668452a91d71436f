package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/akademos/academy-api/api/swagger"
	"github.com/akademos/academy-api/internal/handler"
	"github.com/akademos/academy-api/internal/middleware"
	"github.com/akademos/academy-api/internal/models"
	"github.com/akademos/academy-api/internal/repository"
	"github.com/akademos/academy-api/internal/service"
	"github.com/akademos/academy-api/pkg/cache"
	"github.com/akademos/academy-api/pkg/config"
	"github.com/akademos/academy-api/pkg/database"
	"github.com/akademos/academy-api/pkg/logger"
	corsmiddleware "github.com/akademos/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/akademos/academy-api/pkg/middleware/requestid"
)

// @title Academy API
// @version 1.0.0
// @description Academic administration backend: subjects, course groups, scheduling and enrollments
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API stays up without Redis; detail reads just skip the cache.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	groupRepo := repository.NewCourseGroupRepository(db)
	sessionRepo := repository.NewGroupSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	requestRepo := repository.NewGroupRequestRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	studentService := service.NewStudentService(studentRepo, validate, logr)
	teacherService := service.NewTeacherService(teacherRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, groupRepo, validate, logr)
	scheduleService := service.NewScheduleService(sessionRepo, groupRepo, cacheRepo, validate, logr)
	groupService := service.NewCourseGroupService(
		groupRepo,
		subjectRepo,
		teacherRepo,
		enrollmentRepo,
		sessionRepo,
		cacheRepo,
		userRepo,
		validate,
		logr,
		cfg.Groups.DefaultMaxCapacity,
		cfg.Groups.DetailCacheTTL,
	)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, studentRepo, groupRepo, subjectRepo, cacheRepo, userRepo, validate, logr)
	requestService := service.NewGroupRequestService(requestRepo, groupRepo, studentRepo, subjectRepo, userRepo, validate, logr)
	exportService := service.NewExportService(enrollmentRepo, groupRepo, logr)
	metricsService := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	teacherHandler := handler.NewTeacherHandler(teacherService)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	groupHandler := handler.NewCourseGroupHandler(groupService)
	sessionHandler := handler.NewSessionHandler(scheduleService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	requestHandler := handler.NewGroupRequestHandler(requestService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authed := middleware.JWT(authService)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authed, authHandler.Logout)
		auth.POST("/change-password", authed, authHandler.ChangePassword)
		auth.GET("/me", authed, authHandler.Me)
	}

	students := api.Group("/students", authed)
	{
		students.GET("", staff, studentHandler.List)
		students.GET("/:id", staff, studentHandler.Get)
		students.POST("", adminOnly, studentHandler.Create)
		students.PUT("/:id", adminOnly, studentHandler.Update)
		students.DELETE("/:id", adminOnly, studentHandler.Delete)
	}

	teachers := api.Group("/teachers", authed)
	{
		teachers.GET("", staff, teacherHandler.List)
		teachers.GET("/:id", staff, teacherHandler.Get)
		teachers.POST("", adminOnly, teacherHandler.Create)
		teachers.PUT("/:id", adminOnly, teacherHandler.Update)
		teachers.DELETE("/:id", adminOnly, teacherHandler.Deactivate)
	}

	subjects := api.Group("/subjects", authed)
	{
		subjects.GET("", anyRole, subjectHandler.List)
		subjects.GET("/:id", anyRole, subjectHandler.Get)
		subjects.POST("", adminOnly, subjectHandler.Create)
		subjects.PUT("/:id", adminOnly, subjectHandler.Update)
		subjects.DELETE("/:id", adminOnly, subjectHandler.Delete)
	}

	groups := api.Group("/groups", authed)
	{
		groups.GET("", anyRole, groupHandler.List)
		groups.GET("/:id", anyRole, groupHandler.Get)
		groups.GET("/:id/sessions", anyRole, sessionHandler.ListByGroup)
		groups.POST("", adminOnly, groupHandler.Create)
		groups.PUT("/:id", adminOnly, groupHandler.Update)
		groups.PATCH("/:id/status", adminOnly, groupHandler.ChangeStatus)
		groups.POST("/:id/teacher", adminOnly, groupHandler.AssignTeacher)
		groups.PUT("/:id/teacher", adminOnly, groupHandler.ReassignTeacher)
		groups.DELETE("/:id", adminOnly, groupHandler.Delete)

		if cfg.Exports.Enabled {
			groups.GET("/:id/roster/export", staff, middleware.Audit(userRepo, "EXPORT", "course_group"), exportHandler.GroupRoster)
		}
	}

	sessions := api.Group("/sessions", authed)
	{
		sessions.GET("", anyRole, sessionHandler.List)
		sessions.POST("", adminOnly, sessionHandler.Create)
		sessions.PUT("/:id", adminOnly, sessionHandler.Update)
		sessions.DELETE("/:id", adminOnly, sessionHandler.Delete)
	}

	enrollments := api.Group("/enrollments", authed)
	{
		enrollments.GET("", anyRole, enrollmentHandler.List)
		enrollments.GET("/:id", anyRole, enrollmentHandler.Get)
		enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Enroll)
		enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Cancel)
		enrollments.PATCH("/:id/payment", adminOnly, enrollmentHandler.UpdatePaymentStatus)
	}

	if cfg.GroupRequests.Enabled {
		requests := api.Group("/group-requests", authed)
		{
			requests.GET("", anyRole, requestHandler.List)
			requests.POST("", middleware.RequireRoles(models.RoleStudent), requestHandler.Create)
			requests.POST("/:id/resolve", adminOnly, requestHandler.Resolve)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/handler"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/middleware"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/cache"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/database"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/logger"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/mailer"
	corsmiddleware "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/middleware/requestid"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/storage"

	"go.uber.org/zap"
)

// @title CDC Centre Administration API
// @version 1.0.0
// @description Training centre management: departments, courses, batches, attendance, lab, projects
// @BasePath /api
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var dashCache *cache.Cache
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
	} else {
		dashCache = cache.NewCache(redisClient)
		defer redisClient.Close() //nolint:errcheck
	}

	var mail mailer.Mailer = mailer.NopMailer{}
	if cfg.Mail.SendgridAPIKey != "" {
		mail = mailer.NewSendgrid(cfg.Mail)
	} else {
		logr.Warn("no sendgrid api key configured, notification email disabled")
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to prepare uploads directory", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	pcRepo := repository.NewPCRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, departmentRepo, validate, logr)
	batchSvc := service.NewBatchService(batchRepo, courseRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, batchRepo, courseRepo, attendanceRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, batchRepo, validate, logr)
	labSvc := service.NewLabService(pcRepo, bookingRepo, studentRepo, validate, logr)
	projectSvc := service.NewProjectService(projectRepo, submissionRepo, analyticsRepo, batchRepo, studentRepo, attendanceRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, mail, validate, logr)
	dashboardSvc := service.NewDashboardService(userRepo, studentRepo, batchRepo, courseRepo, departmentRepo, pcRepo, bookingRepo, attendanceRepo, dashCache, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(studentRepo, batchRepo, attendanceRepo, projectRepo, submissionRepo, logr)
	uploadSvc := service.NewUploadService(submissionRepo, uploads, cfg.Uploads.MaxFileSizeBytes, logr)

	metricsSvc := service.NewMetricsService()
	attendanceSvc.SetMetrics(metricsSvc)
	notificationSvc.SetMetrics(metricsSvc)
	labSvc.SetMetrics(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Departments:   handler.NewDepartmentHandler(departmentSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Batches:       handler.NewBatchHandler(batchSvc, studentSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		Lab:           handler.NewLabHandler(labSvc),
		Projects:      handler.NewProjectHandler(projectSvc, uploadSvc, exportSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc, db),
	}
	handler.Register(r, cfg.APIPrefix, handlers, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

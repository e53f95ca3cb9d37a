package main

import (
	"context"
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

	_ "github.com/letrus-care/letrus-api/api/swagger"
	"github.com/letrus-care/letrus-api/internal/handler"
	"github.com/letrus-care/letrus-api/internal/middleware"
	"github.com/letrus-care/letrus-api/internal/models"
	"github.com/letrus-care/letrus-api/internal/repository"
	"github.com/letrus-care/letrus-api/internal/service"
	"github.com/letrus-care/letrus-api/pkg/cache"
	"github.com/letrus-care/letrus-api/pkg/config"
	"github.com/letrus-care/letrus-api/pkg/database"
	"github.com/letrus-care/letrus-api/pkg/export"
	"github.com/letrus-care/letrus-api/pkg/jobs"
	"github.com/letrus-care/letrus-api/pkg/logger"
	corsmiddleware "github.com/letrus-care/letrus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/letrus-care/letrus-api/pkg/middleware/requestid"
	"github.com/letrus-care/letrus-api/pkg/storage"
)

// @title Letrus Care API
// @version 1.0.0
// @description Enrollment and tuition payment backend for educational centres
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheEnabled = false
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	schoolYearRepo := repository.NewSchoolYearRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	planRepo := repository.NewFinancialPlanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	var cacheSvc *service.CacheService
	if cacheEnabled {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	// Receipt pipeline.
	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Fatal("failed to init receipt storage", zap.Error(err))
	}
	receiptSigner := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
	receiptSvc := service.NewReceiptService(
		receiptRepo,
		paymentRepo,
		schoolYearRepo,
		export.NewReceiptRenderer(),
		receiptStore,
		receiptSigner,
		metricsSvc,
		jobs.QueueConfig{
			Workers:    cfg.Receipts.WorkerConcurrency,
			MaxRetries: cfg.Receipts.WorkerRetries,
			Logger:     logr,
		},
		logr,
		cfg.Receipts.Enabled,
	)

	// Domain services.
	planSvc := service.NewFinancialPlanService(planRepo, enrollmentRepo, cfg.Billing.DefaultDueDay, cfg.Billing.OverdueGraceDays, logr)
	billingSvc := service.NewBillingService(enrollmentRepo, planRepo, paymentRepo, userRepo, receiptSvc, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, schoolYearRepo, planSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(enrollmentRepo, planRepo, paymentRepo, cacheSvc, metricsSvc, cfg.Dashboard.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, courseRepo, validate, logr)
	schoolYearSvc := service.NewSchoolYearService(schoolYearRepo, validate, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	classHandler := handler.NewClassHandler(classSvc)
	schoolYearHandler := handler.NewSchoolYearHandler(schoolYearSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, billingSvc)
	planHandler := handler.NewFinancialPlanHandler(planSvc)
	paymentHandler := handler.NewPaymentHandler(billingSvc, paymentRepo, metricsSvc)
	receiptHandler := handler.NewReceiptHandler(receiptSvc, receiptStore)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
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

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
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
	// The signed token is the credential here, so no JWT group.
	api.GET("/receipts/fetch", receiptHandler.Fetch)

	protected := api.Group("", middleware.JWT(authSvc))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		protected.GET("/students", studentHandler.List)
		protected.POST("/students", studentHandler.Create)
		protected.GET("/students/:id", studentHandler.Get)
		protected.PUT("/students/:id", studentHandler.Update)

		protected.GET("/courses", courseHandler.List)
		protected.POST("/courses", courseHandler.Create)
		protected.GET("/courses/:id", courseHandler.Get)
		protected.PUT("/courses/:id", courseHandler.Update)
		protected.GET("/courses/:id/grades", courseHandler.ListGrades)
		protected.POST("/courses/:id/grades", courseHandler.CreateGrade)

		protected.GET("/classes", classHandler.List)
		protected.POST("/classes", classHandler.Create)
		protected.GET("/classes/:id", classHandler.Get)

		protected.GET("/school-years", schoolYearHandler.List)
		protected.GET("/school-years/current", schoolYearHandler.Current)
		protected.GET("/center", schoolYearHandler.Center)

		protected.GET("/enrollments", enrollmentHandler.List)
		protected.POST("/enrollments", enrollmentHandler.Create)
		protected.GET("/enrollments/:id", enrollmentHandler.Get)
		protected.GET("/enrollments/:id/financial-plan", planHandler.ListByEnrollment)

		protected.GET("/payments", paymentHandler.List)
		protected.GET("/payments/due", paymentHandler.ComputeDue)
		protected.GET("/payments/export", paymentHandler.Export)
		protected.POST("/payments", paymentHandler.Create)
		protected.GET("/payments/:id", paymentHandler.Get)
		protected.GET("/payments/:id/receipt", receiptHandler.Status)
		protected.POST("/payments/:id/receipt/download", receiptHandler.Download)

		protected.GET("/financial-plans", planHandler.List)

		if cfg.Dashboard.Enabled {
			protected.GET("/dashboard/summary", dashboardHandler.Summary)
			protected.GET("/dashboard/system", dashboardHandler.SystemMetrics)
		}
	}

	admin := protected.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleManager))
	{
		admin.POST("/school-years", schoolYearHandler.Create)
		admin.DELETE("/enrollments/:id", enrollmentHandler.Cancel)
		admin.POST("/enrollments/:id/financial-plan/generate", enrollmentHandler.RegeneratePlan)
		admin.POST("/enrollments/reconcile", enrollmentHandler.Reconcile)
		admin.POST("/financial-plans/overdue-sweep", planHandler.MarkOverdue)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	receiptSvc.Start(ctx)
	defer receiptSvc.Stop()

	go runSweeps(ctx, cfg, planSvc, billingSvc, receiptSvc, logr)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

// runSweeps drives the periodic maintenance loops: marking plan entries
// overdue, completing pending enrollments that already hold a payment, and
// pruning rendered receipts past their retention window.
func runSweeps(ctx context.Context, cfg *config.Config, plans *service.FinancialPlanService, billing *service.BillingService, receipts *service.ReceiptService, logr *zap.Logger) {
	sweep := time.NewTicker(cfg.Billing.SweepInterval)
	cleanup := time.NewTicker(cfg.Receipts.CleanupInterval)
	defer sweep.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if updated, err := plans.MarkOverdueSweep(ctx); err != nil {
				logr.Error("overdue sweep failed", zap.Error(err))
			} else if updated > 0 {
				logr.Info("overdue sweep finished", zap.Int("updated", updated))
			}
			if completed, err := billing.ReconcileOutstanding(ctx, ""); err != nil {
				logr.Error("enrollment reconciliation failed", zap.Error(err))
			} else if completed > 0 {
				logr.Info("enrollment reconciliation finished", zap.Int("completed", completed))
			}
		case <-cleanup.C:
			if _, err := receipts.Cleanup(cfg.Receipts.Retention); err != nil {
				logr.Error("receipt cleanup failed", zap.Error(err))
			}
		}
	}
}

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
	"go.uber.org/zap"

	_ "github.com/noah-isme/laptop-lending-api/api/swagger"
	"github.com/noah-isme/laptop-lending-api/internal/handler"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
	"github.com/noah-isme/laptop-lending-api/internal/service"
	"github.com/noah-isme/laptop-lending-api/pkg/cache"
	"github.com/noah-isme/laptop-lending-api/pkg/config"
	"github.com/noah-isme/laptop-lending-api/pkg/database"
	"github.com/noah-isme/laptop-lending-api/pkg/export"
	"github.com/noah-isme/laptop-lending-api/pkg/jobs"
	"github.com/noah-isme/laptop-lending-api/pkg/logger"
	"github.com/noah-isme/laptop-lending-api/pkg/tracing"
)

// @title Laptop Lending API
// @version 1.0.0
// @description Laptop inventory, reservations, assignments and improvement advice for a helpdesk.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	} else {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled && cacheRepo != nil)

	laptopRepo := repository.NewLaptopRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	adviceRepo := repository.NewAdviceRepository(db)
	userRepo := repository.NewUserRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Counts: dashboardRepo,
		Cache:  cacheSvc,
		Logger: logr,
		Config: service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	wsOpts := []service.WorkspaceOption{
		service.WithWorkspaceQueue(jobs.QueueConfig{
			Workers:    cfg.Realtime.RefreshWorkers,
			MaxRetries: cfg.Realtime.RefreshRetries,
			RetryDelay: time.Second,
			Logger:     logr,
		}),
		service.WithWorkspaceMetrics(metrics),
		service.WithWorkspaceCache(dashboardSvc),
	}
	var listener *repository.ChangeListener
	if cfg.Realtime.Enabled {
		listener = repository.NewChangeListener(database.DSN(cfg.Database), repository.ChangeListenerConfig{
			Channel:      cfg.Realtime.Channel,
			MinReconnect: cfg.Realtime.MinReconnect,
			MaxReconnect: cfg.Realtime.MaxReconnect,
		}, logr)
		wsOpts = append(wsOpts, service.WithWorkspaceFeed(listener))
	}
	workspace := service.NewWorkspace(laptopRepo, reservationRepo, adviceRepo, logr, wsOpts...)

	validate := validator.New()
	engine := service.NewStatusEngine(laptopRepo, reservationRepo, logr,
		service.WithStatusEngineLocation(cfg.StatusEngine.Location),
		service.WithStatusEngineMetrics(metrics),
		service.WithStatusEngineRefresher(workspace),
	)
	laptopSvc := service.NewLaptopService(laptopRepo, validate, logr, service.WithLaptopWorkspace(workspace))
	reservationSvc := service.NewReservationService(reservationRepo, validate, logr,
		service.WithReservationLocation(cfg.StatusEngine.Location),
		service.WithReservationWorkspace(workspace),
	)
	assignmentSvc := service.NewAssignmentService(reservationRepo, laptopRepo, engine, logr, service.WithAssignmentRefresher(workspace))
	adviceSvc := service.NewAdviceService(adviceRepo, validate, logr, service.WithAdviceWorkspace(workspace))
	exportSvc := service.NewExportService(laptopSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	if err := workspace.Start(ctx); err != nil {
		logr.Warn("workspace initial load failed, collections load on first read", zap.Error(err))
	}
	defer workspace.Stop()

	if listener != nil {
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("change listener stopped", zap.Error(err))
			}
		}()
	}

	scheduler := service.NewStatusScheduler(engine, cfg.StatusEngine.Interval, logr)
	if cfg.StatusEngine.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	router := newRouter(routerDeps{
		cfg:                cfg,
		logger:             logr,
		metrics:            metrics,
		auth:               authSvc,
		authHandler:        handler.NewAuthHandler(authSvc),
		laptopHandler:      handler.NewLaptopHandler(laptopSvc, exportSvc, engine),
		reservationHandler: handler.NewReservationHandler(reservationSvc, assignmentSvc),
		adviceHandler:      handler.NewAdviceHandler(adviceSvc),
		dashboardHandler:   handler.NewDashboardHandler(dashboardSvc),
		eventsHandler:      handler.NewEventsHandler(workspace, metrics),
		metricsHandler:     handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Closing the observers ends open event streams so Shutdown can drain them.
	srv.RegisterOnShutdown(workspace.Stop)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("shutdown complete")
	return nil
}

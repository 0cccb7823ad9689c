package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/handler"
	"github.com/noah-isme/laptop-lending-api/internal/middleware"
	"github.com/noah-isme/laptop-lending-api/internal/service"
	"github.com/noah-isme/laptop-lending-api/pkg/config"
	"github.com/noah-isme/laptop-lending-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/laptop-lending-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/laptop-lending-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService
	auth    *service.AuthService

	authHandler        *handler.AuthHandler
	laptopHandler      *handler.LaptopHandler
	reservationHandler *handler.ReservationHandler
	adviceHandler      *handler.AdviceHandler
	dashboardHandler   *handler.DashboardHandler
	eventsHandler      *handler.EventsHandler
	metricsHandler     *handler.MetricsHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.metricsHandler.Health)
	r.GET("/ready", d.metricsHandler.Ready)
	r.GET("/metrics", d.metricsHandler.Prometheus)

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/sign-up", d.authHandler.SignUp)
	auth.POST("/sign-in", d.authHandler.SignIn)
	auth.GET("/me", middleware.JWT(d.auth), d.authHandler.Me)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	laptops := secured.Group("/laptops")
	laptops.GET("", d.laptopHandler.List)
	laptops.POST("", d.laptopHandler.Create)
	laptops.GET("/export", d.laptopHandler.Export)
	laptops.GET("/problems/open", d.laptopHandler.OpenProblems)
	laptops.POST("/status/recompute", d.laptopHandler.Recompute)
	laptops.GET("/:id", d.laptopHandler.Get)
	laptops.PUT("/:id", d.laptopHandler.Update)
	laptops.DELETE("/:id", d.laptopHandler.Delete)
	laptops.PUT("/:id/status", d.laptopHandler.SetStatus)
	laptops.POST("/:id/remarks", d.laptopHandler.AddRemark)
	laptops.POST("/:id/problems", d.laptopHandler.ReportProblem)
	laptops.POST("/:id/problems/:problemId/resolve", d.laptopHandler.ResolveProblem)

	reservations := secured.Group("/reservations")
	reservations.GET("", d.reservationHandler.List)
	reservations.POST("", d.reservationHandler.Create)
	reservations.GET("/:id", d.reservationHandler.Get)
	reservations.POST("/:id/approve", d.reservationHandler.Approve)
	reservations.POST("/:id/reject", d.reservationHandler.Reject)
	reservations.PUT("/:id/description", d.reservationHandler.UpdateDescription)
	reservations.POST("/:id/laptops/:laptopId", d.reservationHandler.Assign)
	reservations.DELETE("/:id/laptops/:laptopId", d.reservationHandler.Unassign)
	secured.GET("/assignments", d.reservationHandler.Assignments)

	advice := secured.Group("/advice")
	advice.GET("", d.adviceHandler.List)
	advice.POST("", d.adviceHandler.Create)
	advice.GET("/options", d.adviceHandler.Options)
	advice.GET("/:id", d.adviceHandler.Get)
	advice.POST("/:id/approve", d.adviceHandler.Approve)
	advice.POST("/:id/reject", d.adviceHandler.Reject)

	if d.cfg.Dashboard.Enabled && d.dashboardHandler != nil {
		secured.GET("/dashboard", d.dashboardHandler.Summary)
	}
	secured.GET("/events", d.eventsHandler.Stream)

	return r
}

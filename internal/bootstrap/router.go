package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/case-routing-api/internal/handler"
	"github.com/noah-isme/case-routing-api/internal/middleware"
	"github.com/noah-isme/case-routing-api/pkg/config"
	"github.com/noah-isme/case-routing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/case-routing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/case-routing-api/pkg/middleware/requestid"
)

// NewRouter registers the operational and API routes.
func NewRouter(c *Container) *gin.Engine {
	cfg := c.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	var ready func(ctx context.Context) error
	if c.DB != nil {
		ready = c.DB.PingContext
	}
	ops := handler.NewMetricsHandler(c.Metrics, ready)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routing := handler.NewCaseRoutingHandler(c.Workflow)
	sla := handler.NewSLAHandler(c.SLA)
	calendar := handler.NewCalendarHandler(c.Calendar, cfg.SLA.Location)

	api := r.Group(cfg.APIPrefix)
	api.POST("/cases/:id/submit", routing.Submit)
	api.GET("/cases/:id/routing", routing.GetRouting)
	api.POST("/cases/:id/routing", routing.RunRouting)
	api.PUT("/cases/:id/status", routing.ChangeStatus)
	api.PUT("/cases/:id/queues/done", routing.MarkDone)
	api.POST("/sla/run", sla.Run)
	api.GET("/calendar/working-days/:date", calendar.WorkingDay)
	api.GET("/calendar/holidays", calendar.Holidays)
	api.POST("/calendar/holidays/refresh", calendar.Refresh)

	return r
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/zone-density/internal/config"
	"github.com/jengzang/zone-density/internal/handler"
	"github.com/jengzang/zone-density/internal/metrics"
	"github.com/jengzang/zone-density/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health *handler.HealthHandler
	Runs   *handler.RunHandler
}

// SetupRouter wires middleware and routes
func SetupRouter(cfg *config.Config, h Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(metrics.Middleware())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateWindow))
	{
		runs := api.Group("/runs")
		{
			runs.GET("", h.Runs.ListRuns)
			runs.GET("/:id", h.Runs.GetRun)
			runs.GET("/:id/counts", h.Runs.GetCounts)
			runs.GET("/:id/geojson", h.Runs.GetGeoJSON)
			runs.GET("/:id/histogram", h.Runs.GetHistogram)

			write := runs.Group("")
			if cfg.Auth.JWTSecret != "" {
				write.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
			}
			write.POST("", h.Runs.CreateRun)
			write.DELETE("/:id", h.Runs.CancelRun)
		}
	}

	return r
}

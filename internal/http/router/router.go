// Package router assembles the gin engine with middleware and module routes.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/httpkit"
	"leadpilot_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// HealthChecker reports readiness of a dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// New builds the HTTP router and registers every module's routes.
func New(cfg *config.Config, log *logger.Logger, health HealthChecker, modules ...apphttp.Module) *gin.Engine {
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(cfg))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(50), 100, log)
	engine.Use(limiter.RateLimit())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		if health != nil {
			if err := health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	public := engine.Group("/api/v1")
	api := engine.Group("/api/v1")
	api.Use(httpkit.AuthRequired(cfg))

	ctx := apphttp.RouterContext{Engine: engine, Public: public, API: api}
	for _, module := range modules {
		module.RegisterRoutes(ctx)
		log.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: cfg.CORSAllowCreds,
		MaxAge:           12 * time.Hour,
	}

	if cfg.CORSAllowAll {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}

	return cors.New(corsCfg)
}

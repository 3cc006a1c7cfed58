package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/wave-alert-api/internal/handler"
	"github.com/noah-isme/wave-alert-api/internal/middleware"
	"github.com/noah-isme/wave-alert-api/pkg/config"
	"github.com/noah-isme/wave-alert-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/wave-alert-api/pkg/middleware/requestid"
)

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(middleware.Metrics(a.Metrics, "/metrics", "/health", "/ready"))

	system := handler.NewSystemHandler(a.Metrics, map[string]handler.ReadinessCheck{
		"database": a.Ping,
		"cache":    a.Cache.Ping,
	})
	r.GET("/health", system.Health)
	r.GET("/ready", system.Ready)
	r.GET("/metrics", system.Prometheus)

	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	triggers := handler.NewTriggerHandler(a.Reminders, a.Digests, a.Sync)
	changes := handler.NewChangeHandler(a.Changes)

	api := r.Group(a.Config.APIPrefix)
	api.Use(middleware.TriggerAuth(a.Config.Trigger.Secret), middleware.WithResponseMeta())
	{
		api.POST("/triggers/reminders", triggers.Reminders)
		api.POST("/triggers/digests/:type", triggers.Digest)
		api.POST("/triggers/refresh", triggers.Refresh)
		api.GET("/changes", changes.List)
	}

	return r
}

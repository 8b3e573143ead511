package http

import (
	"github.com/devicewatch/devicewatch/internal/alerts"
	"github.com/devicewatch/devicewatch/internal/api/http/handler"
	"github.com/devicewatch/devicewatch/internal/api/http/middleware"
	"github.com/devicewatch/devicewatch/internal/auth"
	"github.com/devicewatch/devicewatch/internal/cache"
	"github.com/devicewatch/devicewatch/internal/heartbeats"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/devicewatch/devicewatch/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Pool        *pgxpool.Pool
	Store       *store.Store
	Cache       *cache.HeartbeatCache
	Auth        *auth.Service
	JWTConfig   auth.Config
	Heartbeats  *heartbeats.Service
	AlertEngine *alerts.Engine
	AlertStats  *alerts.StatsService
	Registry    *ws.Registry
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.Prometheus())

	healthHandler := handler.NewHealthHandler(srvs.Pool, srvs.Cache)
	engine.GET("/health", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsHandler := handler.NewWSHandler(srvs.Registry, srvs.JWTConfig)
	engine.GET("/ws", wsHandler.Connect)

	authHandler := handler.NewAuthHandler(srvs.Auth)
	api := engine.Group("/api/v1")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWTAuth(srvs.JWTConfig))

	protected.GET("/auth/me", authHandler.Me)
	protected.GET("/ws/stats", wsHandler.Stats)

	devicesHandler := handler.NewDevicesHandler(srvs.Store, srvs.Cache)
	protected.POST("/devices", devicesHandler.Create)
	protected.GET("/devices", devicesHandler.List)
	protected.GET("/devices/:id", devicesHandler.Get)
	protected.PUT("/devices/:id", devicesHandler.Update)
	protected.DELETE("/devices/:id", devicesHandler.Delete)
	protected.POST("/devices/bulk-delete", devicesHandler.BulkDelete)

	heartbeatsHandler := handler.NewHeartbeatsHandler(srvs.Heartbeats, srvs.Store)
	protected.POST("/heartbeats", heartbeatsHandler.Create)
	protected.GET("/devices/:id/heartbeats", heartbeatsHandler.History)
	protected.GET("/devices/:id/heartbeats/latest", heartbeatsHandler.Latest)
	protected.GET("/devices/:id/health-score", heartbeatsHandler.HealthScore)

	alertsHandler := handler.NewAlertsHandler(srvs.Store, srvs.AlertEngine, srvs.AlertStats)
	protected.POST("/alerts", alertsHandler.Create)
	protected.GET("/alerts", alertsHandler.List)
	protected.GET("/alerts/statistics", alertsHandler.Statistics)
	protected.GET("/alerts/:id", alertsHandler.Get)
	protected.PUT("/alerts/:id", alertsHandler.Update)
	protected.DELETE("/alerts/:id", alertsHandler.Delete)
	protected.POST("/alerts/:id/toggle", alertsHandler.Toggle)
	protected.POST("/alerts/:id/reset", alertsHandler.ResetTrigger)
	protected.GET("/devices/:id/alerts/summary", alertsHandler.DeviceSummary)
}

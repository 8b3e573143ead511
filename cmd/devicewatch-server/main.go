package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devicewatch/devicewatch/internal/alerts"
	internalhttp "github.com/devicewatch/devicewatch/internal/api/http"
	"github.com/devicewatch/devicewatch/internal/auth"
	"github.com/devicewatch/devicewatch/internal/cache"
	"github.com/devicewatch/devicewatch/internal/db"
	"github.com/devicewatch/devicewatch/internal/health"
	"github.com/devicewatch/devicewatch/internal/heartbeats"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/devicewatch/devicewatch/internal/ws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("DeviceWatch Server", "version", AppVersion)

	ctx := context.Background()

	if err := db.RunMigrations(config.Database.Url, config.Database.Schema); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.InitDB(ctx, config.Database.Url, config.Database.Schema)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dataStore := store.New(pool)

	var heartbeatCache *cache.HeartbeatCache
	if config.Redis.Addr != "" {
		heartbeatCache, err = cache.NewHeartbeatCache(ctx, config.Redis.Addr, config.Redis.Password,
			config.Redis.DB, time.Duration(config.Redis.TTLSeconds)*time.Second)
		if err != nil {
			slog.Warn("Redis unavailable, running without heartbeat cache", "error", err)
			heartbeatCache = nil
		} else {
			defer heartbeatCache.Close()
		}
	}

	jwtConfig := auth.Config{
		Secret:          config.JWT.Secret,
		AccessTokenTTL:  time.Duration(config.JWT.AccessTokenTTLMinutes) * time.Minute,
		RefreshTokenTTL: time.Duration(config.JWT.RefreshTokenTTLDays) * 24 * time.Hour,
	}

	registry := ws.NewRegistry()
	engine := alerts.NewEngine(dataStore, ws.NewNotifier(registry))

	weights := health.NewWeights(
		config.Health.CPUWeight, config.Health.RAMWeight, config.Health.TemperatureWeight,
		config.Health.DiskWeight, config.Health.ConnectivityWeight)

	services := &internalhttp.Services{
		Pool:        pool,
		Store:       dataStore,
		Cache:       heartbeatCache,
		Auth:        auth.NewService(dataStore, jwtConfig),
		JWTConfig:   jwtConfig,
		Heartbeats:  heartbeats.NewService(dataStore, heartbeatCache, engine, registry, weights),
		AlertEngine: engine,
		AlertStats:  alerts.NewStatsService(dataStore),
		Registry:    registry,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gin.Recovery())
	internalhttp.SetupRoute(router, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	registry.BroadcastAll(ws.SystemStatusEvent("shutting_down"))
	slog.Info("Shutdown complete")
}

package handler

import (
	"net/http"

	"github.com/devicewatch/devicewatch/internal/cache"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthHandler struct {
	pool  *pgxpool.Pool
	cache *cache.HeartbeatCache
}

func NewHealthHandler(pool *pgxpool.Pool, c *cache.HeartbeatCache) *HealthHandler {
	return &HealthHandler{pool: pool, cache: c}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := http.StatusOK
	resp := gin.H{"status": "ok", "database": "ok", "cache": "ok"}

	if err := h.pool.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
		resp["database"] = "unreachable"
	}
	if h.cache == nil {
		resp["cache"] = "disabled"
	} else if err := h.cache.Ping(c.Request.Context()); err != nil {
		resp["cache"] = "unreachable"
	}

	c.JSON(status, resp)
}

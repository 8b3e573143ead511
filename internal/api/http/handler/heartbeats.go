package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/devicewatch/devicewatch/internal/health"
	"github.com/devicewatch/devicewatch/internal/heartbeats"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
	defaultHistoryLimit = 500
	maxHistoryLimit     = 5000
)

type HeartbeatsHandler struct {
	service *heartbeats.Service
	store   *store.Store
}

func NewHeartbeatsHandler(service *heartbeats.Service, s *store.Store) *HeartbeatsHandler {
	return &HeartbeatsHandler{service: service, store: s}
}

func (h *HeartbeatsHandler) Create(c *gin.Context) {
	var req dto.CreateHeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hb, err := h.service.Ingest(c.Request.Context(), c.GetString("user_id"), heartbeats.Telemetry{
		DeviceID:      req.DeviceID,
		CPUUsage:      *req.CPUUsage,
		RAMUsage:      *req.RAMUsage,
		Temperature:   *req.Temperature,
		FreeDiskSpace: *req.FreeDiskSpace,
		DNSLatency:    *req.DNSLatency,
		Connectivity:  *req.Connectivity,
		BootTimestamp: req.BootTimestamp,
	})
	if err != nil {
		if errors.Is(err, heartbeats.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to ingest heartbeat", "device_id", req.DeviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save heartbeat"})
		return
	}

	c.JSON(http.StatusCreated, dto.NewHeartbeatResponse(hb))
}

func (h *HeartbeatsHandler) History(c *gin.Context) {
	deviceID := c.Param("id")
	if !h.ownsDevice(c, deviceID) {
		return
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", strconv.Itoa(defaultHistoryHours)))
	if hours < 1 || hours > maxHistoryHours {
		hours = defaultHistoryHours
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	list, err := h.store.ListHeartbeats(c.Request.Context(), deviceID, time.Duration(hours)*time.Hour, limit)
	if err != nil {
		slog.Error("Failed to list heartbeats", "device_id", deviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := dto.ListHeartbeatsResponse{
		Heartbeats: make([]dto.HeartbeatResponse, len(list)),
		Count:      len(list),
	}
	for i, hb := range list {
		resp.Heartbeats[i] = dto.NewHeartbeatResponse(hb)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HeartbeatsHandler) Latest(c *gin.Context) {
	deviceID := c.Param("id")

	hb, err := h.service.Latest(c.Request.Context(), deviceID, c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, heartbeats.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no heartbeats recorded"})
			return
		}
		slog.Error("Failed to load latest heartbeat", "device_id", deviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.NewHeartbeatResponse(hb))
}

func (h *HeartbeatsHandler) HealthScore(c *gin.Context) {
	deviceID := c.Param("id")
	if !h.ownsDevice(c, deviceID) {
		return
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", strconv.Itoa(defaultHistoryHours)))
	if hours < 1 || hours > maxHistoryHours {
		hours = defaultHistoryHours
	}

	stats, err := h.store.HeartbeatHealthStats(c.Request.Context(), deviceID, time.Duration(hours)*time.Hour)
	if err != nil {
		slog.Error("Failed to aggregate health scores", "device_id", deviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := "unknown"
	if stats.Current != nil {
		status = health.StatusFor(*stats.Current)
	}

	c.JSON(http.StatusOK, dto.HealthScoreResponse{
		DeviceID:    deviceID,
		Current:     stats.Current,
		Average:     stats.Average,
		Min:         stats.Min,
		Max:         stats.Max,
		Status:      status,
		SampleCount: stats.Count,
		WindowHours: hours,
	})
}

// ownsDevice enforces ownership before heartbeat reads. Writes the error
// response itself and reports whether the handler may continue.
func (h *HeartbeatsHandler) ownsDevice(c *gin.Context, deviceID string) bool {
	_, err := h.store.GetDeviceForUser(c.Request.Context(), deviceID, c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return false
		}
		slog.Error("Failed to load device", "device_id", deviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return false
	}
	return true
}

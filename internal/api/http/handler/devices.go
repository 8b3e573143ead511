package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/devicewatch/devicewatch/internal/cache"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type DevicesHandler struct {
	store *store.Store
	cache *cache.HeartbeatCache
}

func NewDevicesHandler(s *store.Store, c *cache.HeartbeatCache) *DevicesHandler {
	return &DevicesHandler{store: s, cache: c}
}

func (h *DevicesHandler) Create(c *gin.Context) {
	var req dto.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.store.CreateDevice(c.Request.Context(), store.Device{
		Name:         req.Name,
		Location:     req.Location,
		SerialNumber: req.SerialNumber,
		Description:  req.Description,
		UserID:       c.GetString("user_id"),
	})
	if err != nil {
		if errors.Is(err, store.ErrSerialExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "serial number already registered"})
			return
		}
		slog.Error("Failed to create device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create device"})
		return
	}

	c.JSON(http.StatusCreated, dto.NewDeviceResponse(device, time.Now().UTC()))
}

func (h *DevicesHandler) Get(c *gin.Context) {
	device, err := h.store.GetDeviceForUser(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to load device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.NewDeviceResponse(device, time.Now().UTC()))
}

func (h *DevicesHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	search := c.Query("search")

	devices, total, err := h.store.ListDevicesForUser(c.Request.Context(),
		c.GetString("user_id"), search, pageSize, (page-1)*pageSize)
	if err != nil {
		slog.Error("Failed to list devices", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now().UTC()
	resp := dto.ListDevicesResponse{
		Devices:  make([]dto.DeviceResponse, len(devices)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i, d := range devices {
		resp.Devices[i] = dto.NewDeviceResponse(d, now)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DevicesHandler) Update(c *gin.Context) {
	var req dto.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.store.UpdateDevice(c.Request.Context(), store.Device{
		ID:          c.Param("id"),
		Name:        req.Name,
		Location:    req.Location,
		Description: req.Description,
		UserID:      c.GetString("user_id"),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to update device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.NewDeviceResponse(device, time.Now().UTC()))
}

func (h *DevicesHandler) Delete(c *gin.Context) {
	deviceID := c.Param("id")
	err := h.store.DeleteDevice(c.Request.Context(), deviceID, c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to delete device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.cache.Invalidate(c.Request.Context(), deviceID); err != nil {
		slog.Warn("Failed to invalidate heartbeat cache", "device_id", deviceID, "error", err)
	}

	c.Status(http.StatusNoContent)
}

func (h *DevicesHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := h.store.BulkDeleteDevices(c.Request.Context(), req.DeviceIDs, c.GetString("user_id"))
	if err != nil {
		slog.Error("Failed to bulk delete devices", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.cache.Invalidate(c.Request.Context(), req.DeviceIDs...); err != nil {
		slog.Warn("Failed to invalidate heartbeat cache", "error", err)
	}

	c.JSON(http.StatusOK, dto.BulkDeleteDevicesResponse{Deleted: deleted})
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/devicewatch/devicewatch/internal/alerts"
	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/gin-gonic/gin"
)

type AlertsHandler struct {
	store  *store.Store
	engine *alerts.Engine
	stats  *alerts.StatsService
}

func NewAlertsHandler(s *store.Store, engine *alerts.Engine, stats *alerts.StatsService) *AlertsHandler {
	return &AlertsHandler{store: s, engine: engine, stats: stats}
}

func (h *AlertsHandler) Create(c *gin.Context) {
	var req dto.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	alert := alerts.Alert{
		Name:            req.Name,
		Description:     req.Description,
		DeviceID:        req.DeviceID,
		Conditions:      dto.ToConditions(req.Conditions),
		DurationMinutes: req.DurationMinutes,
		IsActive:        isActive,
	}
	if err := alert.ValidateDefinition(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Ownership check before the insert, the alerts table has no user column.
	if _, err := h.store.GetDeviceForUser(c.Request.Context(), req.DeviceID, c.GetString("user_id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to load device", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	created, err := h.store.CreateAlert(c.Request.Context(), alert)
	if err != nil {
		slog.Error("Failed to create alert", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, dto.NewAlertResponse(created, time.Now().UTC()))
}

func (h *AlertsHandler) Get(c *gin.Context) {
	alert, err := h.store.GetAlertForUser(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		h.alertError(c, err, "load")
		return
	}
	c.JSON(http.StatusOK, dto.NewAlertResponse(alert, time.Now().UTC()))
}

func (h *AlertsHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)

	var isActive *bool
	switch c.Query("is_active") {
	case "true":
		v := true
		isActive = &v
	case "false":
		v := false
		isActive = &v
	}

	list, total, err := h.store.ListAlertsForUser(c.Request.Context(),
		c.GetString("user_id"), c.Query("device_id"), isActive, pageSize, (page-1)*pageSize)
	if err != nil {
		if errors.Is(err, alerts.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to list alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now().UTC()
	resp := dto.ListAlertsResponse{
		Alerts:   make([]dto.AlertResponse, len(list)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i, a := range list {
		resp.Alerts[i] = dto.NewAlertResponse(a, now)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AlertsHandler) Update(c *gin.Context) {
	var req dto.UpdateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert := alerts.Alert{
		ID:              c.Param("id"),
		Name:            req.Name,
		Description:     req.Description,
		Conditions:      dto.ToConditions(req.Conditions),
		DurationMinutes: req.DurationMinutes,
		IsActive:        *req.IsActive,
	}
	if err := alert.ValidateDefinition(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateAlert(c.Request.Context(), alert, c.GetString("user_id"))
	if err != nil {
		h.alertError(c, err, "update")
		return
	}
	c.JSON(http.StatusOK, dto.NewAlertResponse(updated, time.Now().UTC()))
}

func (h *AlertsHandler) Delete(c *gin.Context) {
	err := h.store.DeleteAlert(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		h.alertError(c, err, "delete")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AlertsHandler) Toggle(c *gin.Context) {
	toggled, err := h.store.ToggleAlert(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		h.alertError(c, err, "toggle")
		return
	}
	c.JSON(http.StatusOK, dto.NewAlertResponse(toggled, time.Now().UTC()))
}

// ResetTrigger clears an alert's debounce window so it may fire again
// immediately.
func (h *AlertsHandler) ResetTrigger(c *gin.Context) {
	alert, err := h.store.GetAlertForUser(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		h.alertError(c, err, "load")
		return
	}

	if err := h.engine.ResetTrigger(c.Request.Context(), &alert); err != nil {
		slog.Error("Failed to reset alert trigger", "alert_id", alert.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, dto.NewAlertResponse(alert, time.Now().UTC()))
}

func (h *AlertsHandler) Statistics(c *gin.Context) {
	stats, err := h.stats.Statistics(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		slog.Error("Failed to compute alert statistics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AlertsHandler) DeviceSummary(c *gin.Context) {
	summary, err := h.stats.ForDevice(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, alerts.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		slog.Error("Failed to compute device alert summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AlertsHandler) alertError(c *gin.Context, err error, action string) {
	if errors.Is(err, alerts.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	slog.Error("Alert operation failed", "action", action, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

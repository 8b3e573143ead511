package dto

import (
	"time"

	"github.com/devicewatch/devicewatch/internal/alerts"
)

type AlertConditionPayload struct {
	Metric   string  `json:"metric" binding:"required"`
	Operator string  `json:"operator" binding:"required"`
	Value    float64 `json:"value"`
}

type CreateAlertRequest struct {
	Name            string                  `json:"name" binding:"required,min=1,max=255"`
	Description     string                  `json:"description" binding:"max=1000"`
	DeviceID        string                  `json:"device_id" binding:"required,uuid"`
	Conditions      []AlertConditionPayload `json:"conditions" binding:"required,min=1,max=5,dive"`
	DurationMinutes int                     `json:"duration_minutes" binding:"required,min=1,max=1440"`
	IsActive        *bool                   `json:"is_active"`
}

type UpdateAlertRequest struct {
	Name            string                  `json:"name" binding:"required,min=1,max=255"`
	Description     string                  `json:"description" binding:"max=1000"`
	Conditions      []AlertConditionPayload `json:"conditions" binding:"required,min=1,max=5,dive"`
	DurationMinutes int                     `json:"duration_minutes" binding:"required,min=1,max=1440"`
	IsActive        *bool                   `json:"is_active" binding:"required"`
}

type AlertResponse struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description"`
	DeviceID          string                  `json:"device_id"`
	Conditions        []AlertConditionPayload `json:"conditions"`
	ConditionsSummary string                  `json:"conditions_summary"`
	DurationMinutes   int                     `json:"duration_minutes"`
	IsActive          bool                    `json:"is_active"`
	IsTriggered       bool                    `json:"is_triggered"`
	LastTriggered     string                  `json:"last_triggered,omitempty"`
	TriggerCount      int                     `json:"trigger_count"`
	CreatedAt         string                  `json:"created_at"`
	UpdatedAt         string                  `json:"updated_at"`
}

type ListAlertsResponse struct {
	Alerts   []AlertResponse `json:"alerts"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (p AlertConditionPayload) ToCondition() alerts.Condition {
	return alerts.Condition{
		Metric:   alerts.Metric(p.Metric),
		Operator: alerts.Operator(p.Operator),
		Value:    p.Value,
	}
}

func ToConditions(payloads []AlertConditionPayload) []alerts.Condition {
	conditions := make([]alerts.Condition, len(payloads))
	for i, p := range payloads {
		conditions[i] = p.ToCondition()
	}
	return conditions
}

func NewAlertResponse(a alerts.Alert, now time.Time) AlertResponse {
	conditions := make([]AlertConditionPayload, len(a.Conditions))
	for i, c := range a.Conditions {
		conditions[i] = AlertConditionPayload{
			Metric:   string(c.Metric),
			Operator: string(c.Operator),
			Value:    c.Value,
		}
	}

	resp := AlertResponse{
		ID:                a.ID,
		Name:              a.Name,
		Description:       a.Description,
		DeviceID:          a.DeviceID,
		Conditions:        conditions,
		ConditionsSummary: a.ConditionsSummary(),
		DurationMinutes:   a.DurationMinutes,
		IsActive:          a.IsActive,
		IsTriggered:       a.IsTriggered(now),
		TriggerCount:      a.TriggerCount,
		CreatedAt:         a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.LastTriggered != nil {
		resp.LastTriggered = a.LastTriggered.UTC().Format(time.RFC3339)
	}
	return resp
}

package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertLifecycle(t *testing.T, router *gin.Engine) {
	tokens := registerAndLogin(t, router, "alerts@example.com")
	device := createDevice(t, router, tokens.AccessToken, "alert-device")

	createAlert := func(t *testing.T, name string, conditions []dto.AlertConditionPayload) dto.AlertResponse {
		t.Helper()
		body := dto.CreateAlertRequest{
			Name:            name,
			DeviceID:        device.ID,
			Conditions:      conditions,
			DurationMinutes: 5,
		}
		rr := doJSONWithAuth(router, "POST", "/api/v1/alerts", body, tokens.AccessToken)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var alert dto.AlertResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &alert))
		return alert
	}

	t.Run("create", func(t *testing.T) {
		alert := createAlert(t, "high cpu", []dto.AlertConditionPayload{
			{Metric: "cpu_usage", Operator: ">", Value: 90},
		})
		assert.True(t, alert.IsActive)
		assert.False(t, alert.IsTriggered)
		assert.Equal(t, 0, alert.TriggerCount)
		assert.Equal(t, "cpu_usage > 90", alert.ConditionsSummary)
	})

	t.Run("invalid condition rejected", func(t *testing.T) {
		body := dto.CreateAlertRequest{
			Name:            "bad",
			DeviceID:        device.ID,
			Conditions:      []dto.AlertConditionPayload{{Metric: "bogus_metric", Operator: ">", Value: 1}},
			DurationMinutes: 5,
		}
		rr := doJSONWithAuth(router, "POST", "/api/v1/alerts", body, tokens.AccessToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("trigger with debounce", func(t *testing.T) {
		alert := createAlert(t, "overheating", []dto.AlertConditionPayload{
			{Metric: "temperature", Operator: ">=", Value: 80},
		})

		// Breaching heartbeat trips the rule once.
		postHeartbeat(t, router, tokens.AccessToken, device.ID, 20, 20, 95, 80, 10, true)
		postHeartbeat(t, router, tokens.AccessToken, device.ID, 20, 20, 96, 80, 10, true)

		rr := doJSONWithAuth(router, "GET", "/api/v1/alerts/"+alert.ID, nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var got dto.AlertResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 1, got.TriggerCount)
		assert.True(t, got.IsTriggered)
		assert.NotEmpty(t, got.LastTriggered)

		// Reset clears the window, the next breach fires again.
		rr = doJSONWithAuth(router, "POST", "/api/v1/alerts/"+alert.ID+"/reset", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		postHeartbeat(t, router, tokens.AccessToken, device.ID, 20, 20, 97, 80, 10, true)

		rr = doJSONWithAuth(router, "GET", "/api/v1/alerts/"+alert.ID, nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 2, got.TriggerCount)
	})

	t.Run("inactive alert never fires", func(t *testing.T) {
		alert := createAlert(t, "disabled", []dto.AlertConditionPayload{
			{Metric: "ram_usage", Operator: ">", Value: 1},
		})

		rr := doJSONWithAuth(router, "POST", "/api/v1/alerts/"+alert.ID+"/toggle", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		postHeartbeat(t, router, tokens.AccessToken, device.ID, 20, 99, 30, 80, 10, true)

		rr = doJSONWithAuth(router, "GET", "/api/v1/alerts/"+alert.ID, nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var got dto.AlertResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.False(t, got.IsActive)
		assert.Equal(t, 0, got.TriggerCount)
	})

	t.Run("update and list filters", func(t *testing.T) {
		alert := createAlert(t, "to-update", []dto.AlertConditionPayload{
			{Metric: "dns_latency", Operator: ">", Value: 500},
		})

		active := false
		body := dto.UpdateAlertRequest{
			Name:            "updated-name",
			Conditions:      []dto.AlertConditionPayload{{Metric: "dns_latency", Operator: ">", Value: 900}},
			DurationMinutes: 10,
			IsActive:        &active,
		}
		rr := doJSONWithAuth(router, "PUT", "/api/v1/alerts/"+alert.ID, body, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var updated dto.AlertResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		assert.Equal(t, "updated-name", updated.Name)
		assert.False(t, updated.IsActive)

		rr = doJSONWithAuth(router, "GET", "/api/v1/alerts?device_id="+device.ID+"&is_active=false", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var list dto.ListAlertsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		for _, a := range list.Alerts {
			assert.False(t, a.IsActive)
		}
	})

	t.Run("statistics", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/v1/alerts/statistics", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var stats struct {
			TotalAlerts         int            `json:"total_alerts"`
			TriggeredAlerts     int            `json:"triggered_alerts"`
			AlertsByDevice      map[string]int `json:"alerts_by_device"`
			MostTriggeredAlerts []struct {
				Name         string `json:"name"`
				TriggerCount int    `json:"trigger_count"`
			} `json:"most_triggered_alerts"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
		assert.GreaterOrEqual(t, stats.TotalAlerts, 4)
		assert.GreaterOrEqual(t, stats.TriggeredAlerts, 1)
		assert.NotEmpty(t, stats.AlertsByDevice)
		require.NotEmpty(t, stats.MostTriggeredAlerts)
		assert.Equal(t, "overheating", stats.MostTriggeredAlerts[0].Name)
	})

	t.Run("device summary", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID+"/alerts/summary", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var summary struct {
			DeviceID    string `json:"device_id"`
			TotalAlerts int    `json:"total_alerts"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
		assert.Equal(t, device.ID, summary.DeviceID)
		assert.GreaterOrEqual(t, summary.TotalAlerts, 4)
	})

	t.Run("delete", func(t *testing.T) {
		alert := createAlert(t, "delete-me", []dto.AlertConditionPayload{
			{Metric: "connectivity", Operator: "==", Value: 0},
		})

		rr := doJSONWithAuth(router, "DELETE", "/api/v1/alerts/"+alert.ID, nil, tokens.AccessToken)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = doJSONWithAuth(router, "GET", "/api/v1/alerts/"+alert.ID, nil, tokens.AccessToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

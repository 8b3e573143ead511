package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postHeartbeat(t *testing.T, router *gin.Engine, token, deviceID string, cpu, ram, temp, disk, latency float64, connected bool) dto.HeartbeatResponse {
	t.Helper()

	body := dto.CreateHeartbeatRequest{
		DeviceID:      deviceID,
		CPUUsage:      &cpu,
		RAMUsage:      &ram,
		Temperature:   &temp,
		FreeDiskSpace: &disk,
		DNSLatency:    &latency,
		Connectivity:  &connected,
		BootTimestamp: time.Now().Add(-time.Hour).UTC(),
	}
	rr := doJSONWithAuth(router, "POST", "/api/v1/heartbeats", body, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var hb dto.HeartbeatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hb))
	return hb
}

func TestHeartbeatFlow(t *testing.T, router *gin.Engine) {
	tokens := registerAndLogin(t, router, "heartbeats@example.com")
	device := createDevice(t, router, tokens.AccessToken, "hb-device")

	t.Run("ingest computes score", func(t *testing.T) {
		hb := postHeartbeat(t, router, tokens.AccessToken, device.ID, 10, 20, 30, 80, 15, true)
		assert.Equal(t, 100.0, hb.HealthScore)
		assert.Equal(t, "healthy", hb.HealthStatus)
	})

	t.Run("ingest marks device online", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID, nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var d dto.DeviceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
		assert.True(t, d.IsOnline)
		assert.NotEmpty(t, d.LastSeen)
	})

	t.Run("unknown device rejected", func(t *testing.T) {
		cpu, connected := 10.0, true
		body := dto.CreateHeartbeatRequest{
			DeviceID:      "6b1e4c9e-0000-0000-0000-000000000000",
			CPUUsage:      &cpu,
			RAMUsage:      &cpu,
			Temperature:   &cpu,
			FreeDiskSpace: &cpu,
			DNSLatency:    &cpu,
			Connectivity:  &connected,
			BootTimestamp: time.Now().UTC(),
		}
		rr := doJSONWithAuth(router, "POST", "/api/v1/heartbeats", body, tokens.AccessToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("out of range metrics rejected", func(t *testing.T) {
		cpu, bad, connected := 10.0, 150.0, true
		body := dto.CreateHeartbeatRequest{
			DeviceID:      device.ID,
			CPUUsage:      &bad,
			RAMUsage:      &cpu,
			Temperature:   &cpu,
			FreeDiskSpace: &cpu,
			DNSLatency:    &cpu,
			Connectivity:  &connected,
			BootTimestamp: time.Now().UTC(),
		}
		rr := doJSONWithAuth(router, "POST", "/api/v1/heartbeats", body, tokens.AccessToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("latest and history", func(t *testing.T) {
		postHeartbeat(t, router, tokens.AccessToken, device.ID, 95, 90, 75, 5, 800, false)

		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID+"/heartbeats/latest", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var latest dto.HeartbeatResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
		assert.Equal(t, 95.0, latest.CPUUsage)
		assert.False(t, latest.Connectivity)

		rr = doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID+"/heartbeats?hours=1", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var history dto.ListHeartbeatsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
		assert.GreaterOrEqual(t, history.Count, 2)
		// Newest first.
		assert.Equal(t, latest.ID, history.Heartbeats[0].ID)
	})

	t.Run("health score aggregate", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID+"/health-score", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var stats dto.HealthScoreResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
		require.NotNil(t, stats.Current)
		require.NotNil(t, stats.Average)
		require.NotNil(t, stats.Min)
		require.NotNil(t, stats.Max)
		assert.GreaterOrEqual(t, stats.SampleCount, 2)
		assert.LessOrEqual(t, *stats.Min, *stats.Max)
	})

	t.Run("foreign device hidden", func(t *testing.T) {
		otherTokens := registerAndLogin(t, router, "heartbeats-other@example.com")

		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID+"/heartbeats/latest", nil, otherTokens.AccessToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

package tests

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type     string          `json:"type"`
	DeviceID string          `json:"device_id"`
	Data     json.RawMessage `json:"data"`
}

func TestWebsocketUpdates(t *testing.T, router *gin.Engine) {
	tokens := registerAndLogin(t, router, "websocket@example.com")
	device := createDevice(t, router, tokens.AccessToken, "ws-device")

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http://", "ws://", 1) +
		"/ws?token=" + tokens.AccessToken + "&device_id=" + device.ID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	t.Run("rejects bad token", func(t *testing.T) {
		badURL := strings.Replace(server.URL, "http://", "ws://", 1) + "/ws?token=bogus"
		_, resp, err := websocket.DefaultDialer.Dial(badURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("ping pong", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping", "timestamp": "t0"}))

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var pong map[string]string
		require.NoError(t, conn.ReadJSON(&pong))
		assert.Equal(t, "pong", pong["type"])
		assert.Equal(t, "t0", pong["timestamp"])
	})

	t.Run("device update fan-out", func(t *testing.T) {
		postHeartbeat(t, router, tokens.AccessToken, device.ID, 42, 20, 30, 80, 10, true)

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var event wsEvent
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, "device_update", event.Type)
		assert.Equal(t, device.ID, event.DeviceID)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(event.Data, &payload))
		assert.Equal(t, 42.0, payload["cpu_usage"])
	})

	t.Run("alert notification to user", func(t *testing.T) {
		body := map[string]any{
			"name":      "ws cpu alert",
			"device_id": device.ID,
			"conditions": []map[string]any{
				{"metric": "cpu_usage", "operator": ">", "value": 90},
			},
			"duration_minutes": 5,
		}
		rr := doJSONWithAuth(router, "POST", "/api/v1/alerts", body, tokens.AccessToken)
		require.Equal(t, 201, rr.Code, rr.Body.String())

		postHeartbeat(t, router, tokens.AccessToken, device.ID, 99, 20, 30, 80, 10, true)

		// The breach produces a device_update followed by an alert_triggered.
		sawAlert := false
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for i := 0; i < 3 && !sawAlert; i++ {
			var event wsEvent
			require.NoError(t, conn.ReadJSON(&event))
			if event.Type == "alert_triggered" {
				sawAlert = true

				var payload map[string]any
				require.NoError(t, json.Unmarshal(event.Data, &payload))
				assert.Equal(t, "ws cpu alert", payload["name"])
				assert.Equal(t, device.ID, payload["device_id"])
			}
		}
		assert.True(t, sawAlert, "expected an alert_triggered event")
	})
}

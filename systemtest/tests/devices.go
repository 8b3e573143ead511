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

func TestDeviceCRUD(t *testing.T, router *gin.Engine) {
	tokens := registerAndLogin(t, router, "devices@example.com")
	otherTokens := registerAndLogin(t, router, "devices-other@example.com")

	t.Run("create and get", func(t *testing.T) {
		device := createDevice(t, router, tokens.AccessToken, "rack-01")
		assert.Equal(t, "rack-01", device.Name)
		assert.False(t, device.IsOnline)

		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID, nil, tokens.AccessToken)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("duplicate serial number", func(t *testing.T) {
		body := dto.CreateDeviceRequest{Name: "dup", Location: "lab", SerialNumber: "SN-rack-01"}
		rr := doJSONWithAuth(router, "POST", "/api/v1/devices", body, tokens.AccessToken)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("ownership isolation", func(t *testing.T) {
		device := createDevice(t, router, tokens.AccessToken, "rack-02")

		rr := doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID, nil, otherTokens.AccessToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("list and search", func(t *testing.T) {
		createDevice(t, router, tokens.AccessToken, "edge-gateway")

		rr := doJSONWithAuth(router, "GET", "/api/v1/devices?search=edge", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.ListDevicesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, int64(1), resp.Total)
		assert.Equal(t, "edge-gateway", resp.Devices[0].Name)
	})

	t.Run("update", func(t *testing.T) {
		device := createDevice(t, router, tokens.AccessToken, "rename-me")

		body := dto.UpdateDeviceRequest{Name: "renamed", Location: "dc-2", Description: "moved"}
		rr := doJSONWithAuth(router, "PUT", "/api/v1/devices/"+device.ID, body, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var updated dto.DeviceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		assert.Equal(t, "renamed", updated.Name)
		assert.Equal(t, "dc-2", updated.Location)
		assert.Equal(t, "moved", updated.Description)
	})

	t.Run("delete", func(t *testing.T) {
		device := createDevice(t, router, tokens.AccessToken, "delete-me")

		rr := doJSONWithAuth(router, "DELETE", "/api/v1/devices/"+device.ID, nil, tokens.AccessToken)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = doJSONWithAuth(router, "GET", "/api/v1/devices/"+device.ID, nil, tokens.AccessToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bulk delete skips foreign devices", func(t *testing.T) {
		mine := createDevice(t, router, tokens.AccessToken, "bulk-mine")
		theirs := createDevice(t, router, otherTokens.AccessToken, "bulk-theirs")

		body := dto.BulkDeleteDevicesRequest{DeviceIDs: []string{mine.ID, theirs.ID}}
		rr := doJSONWithAuth(router, "POST", "/api/v1/devices/bulk-delete", body, tokens.AccessToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.BulkDeleteDevicesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Deleted)

		rr = doJSONWithAuth(router, "GET", "/api/v1/devices/"+theirs.ID, nil, otherTokens.AccessToken)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unauthorized without token", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/v1/devices", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

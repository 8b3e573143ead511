package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFlow(t *testing.T, router *gin.Engine) {
	t.Run("register", func(t *testing.T) {
		body := dto.RegisterRequest{Email: "first@example.com", FullName: "First User", Password: "password123"}
		rr := doJSON(router, "POST", "/api/v1/auth/register", body)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.UserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "first@example.com", resp.Email)
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := dto.RegisterRequest{Email: "dup@example.com", FullName: "Dup", Password: "password123"}
		rr := doJSON(router, "POST", "/api/v1/auth/register", body)
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = doJSON(router, "POST", "/api/v1/auth/register", body)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("password too short", func(t *testing.T) {
		body := dto.RegisterRequest{Email: "shortpw@example.com", FullName: "Short", Password: "short"}
		rr := doJSON(router, "POST", "/api/v1/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login and me", func(t *testing.T) {
		tokens := registerAndLogin(t, router, "login@example.com")

		rr := doJSONWithAuth(router, "GET", "/api/v1/auth/me", nil, tokens.AccessToken)
		assert.Equal(t, http.StatusOK, rr.Code)

		var me dto.UserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
		assert.Equal(t, "login@example.com", me.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		registerAndLogin(t, router, "wrongpw@example.com")

		body := dto.LoginRequest{Email: "wrongpw@example.com", Password: "not-the-password"}
		rr := doJSON(router, "POST", "/api/v1/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("refresh", func(t *testing.T) {
		tokens := registerAndLogin(t, router, "refresh@example.com")

		rr := doJSON(router, "POST", "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tokens.RefreshToken})
		assert.Equal(t, http.StatusOK, rr.Code)

		var refreshed dto.TokenResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &refreshed))
		assert.NotEmpty(t, refreshed.AccessToken)

		rr = doJSON(router, "POST", "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tokens.AccessToken})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("me without token", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/v1/auth/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

// registerAndLogin provisions a fresh account and returns its tokens.
func registerAndLogin(t *testing.T, router *gin.Engine, email string) dto.TokenResponse {
	t.Helper()

	reg := dto.RegisterRequest{Email: email, FullName: "Test User", Password: "password123"}
	rr := doJSON(router, "POST", "/api/v1/auth/register", reg)
	require.Contains(t, []int{http.StatusCreated, http.StatusConflict}, rr.Code)

	rr = doJSON(router, "POST", "/api/v1/auth/login", dto.LoginRequest{Email: email, Password: "password123"})
	require.Equal(t, http.StatusOK, rr.Code)

	var tokens dto.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokens))
	return tokens
}

func createDevice(t *testing.T, router *gin.Engine, token, name string) dto.DeviceResponse {
	t.Helper()

	body := dto.CreateDeviceRequest{
		Name:         name,
		Location:     "lab",
		SerialNumber: fmt.Sprintf("SN-%s", name),
	}
	rr := doJSONWithAuth(router, "POST", "/api/v1/devices", body, token)
	require.Equal(t, http.StatusCreated, rr.Code)

	var device dto.DeviceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &device))
	return device
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONWithAuth(router, method, path, body, "")
}

func doJSONWithAuth(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devicewatch/devicewatch/internal/api/http/dto"
	"github.com/devicewatch/devicewatch/internal/api/http/middleware"
	"github.com/devicewatch/devicewatch/internal/auth"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/devicewatch/devicewatch/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[string]store.User
	nextID  string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]store.User),
		byID:    make(map[string]store.User),
		nextID:  "user-1",
	}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, fullName, hashedPassword string) (store.User, error) {
	if _, ok := f.byEmail[email]; ok {
		return store.User{}, store.ErrEmailExists
	}
	u := store.User{
		ID:             f.nextID,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	f.byEmail[email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func testJWTConfig() auth.Config {
	return auth.Config{
		Secret:          "handler-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func setupAuthRouter(fs *fakeUserStore) *gin.Engine {
	service := auth.NewService(fs, testJWTConfig())
	h := NewAuthHandler(service)

	r := gin.New()
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)
	r.POST("/api/v1/auth/refresh", h.Refresh)
	r.GET("/api/v1/auth/me", middleware.JWTAuth(testJWTConfig()), h.Me)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	r := setupAuthRouter(newFakeUserStore())

	w := postJSON(r, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "ops@example.com",
		FullName: "Ops Team",
		Password: "supersecret",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ops@example.com", resp.Email)
	assert.Equal(t, "Ops Team", resp.FullName)
	assert.NotEmpty(t, resp.ID)
	assert.True(t, resp.IsActive)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	r := setupAuthRouter(fs)

	req := dto.RegisterRequest{Email: "ops@example.com", FullName: "Ops", Password: "supersecret"}
	assert.Equal(t, http.StatusCreated, postJSON(r, "/api/v1/auth/register", req).Code)
	assert.Equal(t, http.StatusConflict, postJSON(r, "/api/v1/auth/register", req).Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	r := setupAuthRouter(newFakeUserStore())

	w := postJSON(r, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "ops@example.com",
		FullName: "Ops",
		Password: "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginAndMe(t *testing.T) {
	fs := newFakeUserStore()
	hash, err := users.HashPassword("supersecret")
	require.NoError(t, err)
	_, err = fs.CreateUser(context.Background(), "ops@example.com", "Ops", hash)
	require.NoError(t, err)

	r := setupAuthRouter(fs)

	w := postJSON(r, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ops@example.com",
		Password: "supersecret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var tokens dto.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	assert.Equal(t, "bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	req, _ := http.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var me dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "ops@example.com", me.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	fs := newFakeUserStore()
	hash, err := users.HashPassword("supersecret")
	require.NoError(t, err)
	_, err = fs.CreateUser(context.Background(), "ops@example.com", "Ops", hash)
	require.NoError(t, err)

	r := setupAuthRouter(fs)

	w := postJSON(r, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ops@example.com",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	r := setupAuthRouter(newFakeUserStore())

	w := postJSON(r, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "nobody@example.com",
		Password: "supersecret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh(t *testing.T) {
	fs := newFakeUserStore()
	hash, err := users.HashPassword("supersecret")
	require.NoError(t, err)
	_, err = fs.CreateUser(context.Background(), "ops@example.com", "Ops", hash)
	require.NoError(t, err)

	r := setupAuthRouter(fs)

	w := postJSON(r, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ops@example.com",
		Password: "supersecret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var tokens dto.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))

	w = postJSON(r, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)

	// An access token is not accepted in place of a refresh token.
	w = postJSON(r, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: tokens.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeWithoutToken(t *testing.T) {
	r := setupAuthRouter(newFakeUserStore())

	req, _ := http.NewRequest("GET", "/api/v1/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

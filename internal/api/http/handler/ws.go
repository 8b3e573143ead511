package handler

import (
	"log/slog"
	"net/http"

	"github.com/devicewatch/devicewatch/internal/auth"
	"github.com/devicewatch/devicewatch/internal/metrics"
	"github.com/devicewatch/devicewatch/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	registry  *ws.Registry
	jwtConfig auth.Config
	upgrader  websocket.Upgrader
}

func NewWSHandler(registry *ws.Registry, jwtConfig auth.Config) *WSHandler {
	return &WSHandler{
		registry:  registry,
		jwtConfig: jwtConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers enforce same-origin policy before the upgrade, and the
			// token check below gates unauthenticated peers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Connect upgrades the request and serves the subscription until the peer
// disconnects. Browser websocket clients cannot set headers, so the access
// token arrives as a query parameter.
func (h *WSHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	claims, err := auth.ValidateToken(h.jwtConfig, token, auth.TokenTypeAccess)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	deviceID := c.Query("device_id")
	slog.Info("WebSocket connected", "user_id", claims.UserID, "device_id", deviceID)

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()

	ws.Serve(h.registry, sock, deviceID, claims.UserID)
}

func (h *WSHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.ConnStats())
}

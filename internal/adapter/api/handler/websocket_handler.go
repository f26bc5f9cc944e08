package handler

import (
	"net/http"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/middleware"
	ws "devmarket/internal/infrastructure/websocket"
	"devmarket/pkg/errors"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	authMiddleware *middleware.AuthMiddleware
	authorizer     ws.RoomAuthorizer
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict to the frontend origin in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, authMiddleware *middleware.AuthMiddleware, authorizer ws.RoomAuthorizer) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		authMiddleware: authMiddleware,
		authorizer:     authorizer,
	}
}

// HandleWebSocket upgrades the connection into a realtime session. Browsers
// cannot set headers on WebSocket handshakes, so the token rides the query
// string.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication token required", nil)
	}

	userID, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		SessionID: uuid.New().String(),
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	h.wsManager.Register(client)

	go client.ReadPump(h.wsManager, h.authorizer)
	go client.WritePump()

	return nil
}

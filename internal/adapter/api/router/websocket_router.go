package router

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up the realtime endpoint. Authentication happens
// inside the handler (token query param) rather than via middleware.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}

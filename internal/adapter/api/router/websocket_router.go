package router

import (
	"github.com/labstack/echo/v4"

	"talentline/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up the realtime endpoint. Auth happens inside
// the handler (token query parameter) since browsers cannot set headers on
// WebSocket upgrades.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}

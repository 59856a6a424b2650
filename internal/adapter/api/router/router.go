package router

import (
	"github.com/labstack/echo/v4"

	"talentline/internal/adapter/api/handler"
	"talentline/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	chatHandler *handler.ChatHandler,
	actorHandler *handler.ActorHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
) {
	SetupHealthRouter(e, healthHandler)
	SetupActorRouter(e, actorHandler, authMiddleware)
	SetupChatRouter(e, chatHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}

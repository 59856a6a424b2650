package router

import (
	"github.com/labstack/echo/v4"

	"talentline/internal/adapter/api/handler"
	"talentline/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all conversation routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	group.POST("", chatHandler.StartConversation) // POST /v1/conversations - find or create
	group.GET("", chatHandler.GetConversations)   // GET /v1/conversations - list, newest activity first
	group.PUT("/:id/read", chatHandler.MarkRead)  // PUT /v1/conversations/:id/read

	group.POST("/:id/messages", chatHandler.SendMessage) // POST /v1/conversations/:id/messages
	group.GET("/:id/messages", chatHandler.GetMessages)  // GET /v1/conversations/:id/messages
}

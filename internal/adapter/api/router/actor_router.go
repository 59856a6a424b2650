package router

import (
	"github.com/labstack/echo/v4"

	"talentline/internal/adapter/api/handler"
	"talentline/internal/adapter/api/middleware"
)

func SetupActorRouter(e *echo.Echo, actorHandler *handler.ActorHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/actors")
	group.Use(authMiddleware.Authenticate)

	group.PUT("/me", actorHandler.UpsertMe)
	group.GET("/:id", actorHandler.GetActor)
}

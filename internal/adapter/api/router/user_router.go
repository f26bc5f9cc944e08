package router

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/handler"
	"devmarket/internal/adapter/api/middleware"
)

// SetupUserRouter sets up profile routes
func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	userGroup := e.Group("/v1/users")
	userGroup.Use(authMiddleware.Authenticate)

	userGroup.GET("/me", userHandler.GetMe)
	userGroup.PUT("/me", userHandler.UpdateProfile)
	userGroup.GET("/:id", userHandler.GetUser)
}

package router

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/handler"
	"devmarket/internal/adapter/api/middleware"
)

// SetupRoomRouter sets up room and deal lifecycle routes
func SetupRoomRouter(e *echo.Echo, roomHandler *handler.RoomHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	roomGroup := e.Group("/v1/rooms")
	roomGroup.Use(authMiddleware.Authenticate)

	roomGroup.POST("", roomHandler.OpenRoom)
	roomGroup.GET("", roomHandler.ListRooms)
	roomGroup.GET("/:id", roomHandler.GetRoom)

	roomGroup.POST("/:id/messages", roomHandler.PostMessage)
	roomGroup.GET("/:id/messages", roomHandler.ListMessages)

	roomGroup.POST("/:id/request-admin", roomHandler.RequestAdmin)
	roomGroup.POST("/:id/reopen", roomHandler.ReopenRoom)

	// Deal handshake
	roomGroup.POST("/:id/mark-done", roomHandler.MarkDealDone)
	roomGroup.POST("/:id/confirm", roomHandler.ConfirmDeal)

	// Mediation requires the admin capability
	adminGroup := e.Group("/v1/admin/rooms")
	adminGroup.Use(authMiddleware.Authenticate)
	adminGroup.Use(adminMiddleware.AdminOnly)

	adminGroup.GET("/requested", roomHandler.ListAdminRequestedRooms)
	adminGroup.POST("/:id/join", roomHandler.JoinAsAdmin)
	adminGroup.POST("/:id/close", roomHandler.CloseRoom)
}

package router

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/handler"
	"devmarket/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
	userHandler *handler.UserHandler,
	productHandler *handler.ProductHandler,
	roomHandler *handler.RoomHandler,
	saleHandler *handler.SaleHandler,
	wsHandler *handler.WebSocketHandler,
) {
	SetupUserRouter(e, userHandler, authMiddleware)
	SetupProductRouter(e, productHandler, authMiddleware)
	SetupRoomRouter(e, roomHandler, authMiddleware, adminMiddleware)
	SetupSaleRouter(e, saleHandler, authMiddleware, adminMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}

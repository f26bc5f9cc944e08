package router

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/handler"
	"devmarket/internal/adapter/api/middleware"
)

// SetupSaleRouter sets up sale record routes
func SetupSaleRouter(e *echo.Echo, saleHandler *handler.SaleHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	saleGroup := e.Group("/v1/sales")
	saleGroup.Use(authMiddleware.Authenticate)

	saleGroup.GET("", saleHandler.ListMySales)
	saleGroup.GET("/:id", saleHandler.GetSale)

	adminGroup := e.Group("/v1/admin/sales")
	adminGroup.Use(authMiddleware.Authenticate)
	adminGroup.Use(adminMiddleware.AdminOnly)

	adminGroup.GET("", saleHandler.ListAllSales)
}

package router

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/adapter/api/handler"
	"devmarket/internal/adapter/api/middleware"
)

// SetupProductRouter sets up product listing routes
func SetupProductRouter(e *echo.Echo, productHandler *handler.ProductHandler, authMiddleware *middleware.AuthMiddleware) {
	productGroup := e.Group("/v1/products")
	productGroup.Use(authMiddleware.Authenticate)

	productGroup.POST("", productHandler.CreateProduct)
	productGroup.GET("", productHandler.ListProducts)
	productGroup.GET("/mine", productHandler.ListMyProducts)
	productGroup.GET("/:id", productHandler.GetProduct)
	productGroup.PUT("/:id", productHandler.UpdateProduct)
}

package handler

import (
	"github.com/labstack/echo/v4"

	"devmarket/internal/usecase"
	"devmarket/pkg/response"
	"devmarket/pkg/utils"
)

type SaleHandler struct {
	saleUseCase *usecase.SaleUseCase
}

func NewSaleHandler(saleUseCase *usecase.SaleUseCase) *SaleHandler {
	return &SaleHandler{
		saleUseCase: saleUseCase,
	}
}

// ListMySales returns the sales the caller bought or sold in
func (h *SaleHandler) ListMySales(c echo.Context) error {
	userID := c.Get("uid").(string)
	limit, offset := utils.ListParams(c, 20)

	sales, total, err := h.saleUseCase.ListUserSales(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, sales, total, limit, offset)
}

// GetSale returns one sale, visible to its participants
func (h *SaleHandler) GetSale(c echo.Context) error {
	userID := c.Get("uid").(string)

	sale, err := h.saleUseCase.GetSale(c.Request().Context(), userID, c.Param("id"), false)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, sale)
}

// ListAllSales returns every recorded sale, for admin review
func (h *SaleHandler) ListAllSales(c echo.Context) error {
	limit, offset := utils.ListParams(c, 20)

	sales, total, err := h.saleUseCase.ListSales(c.Request().Context(), limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, sales, total, limit, offset)
}

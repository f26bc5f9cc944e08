package usecase

import (
	"context"
	"time"

	"devmarket/internal/domain/entity"
	"devmarket/internal/domain/repository"
	"devmarket/pkg/errors"
	"devmarket/pkg/logger"
)

// SaleUseCase records and serves completed sales. It implements SaleRecorder
// for the room core.
type SaleUseCase struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
}

func NewSaleUseCase(saleRepo repository.SaleRepository, productRepo repository.ProductRepository) *SaleUseCase {
	return &SaleUseCase{
		saleRepo:    saleRepo,
		productRepo: productRepo,
	}
}

// RecordCompletedSale persists the sale for a confirmed deal and bumps the
// product's sold counter. The counter is advisory display data; a failure to
// bump it does not fail the sale.
func (uc *SaleUseCase) RecordCompletedSale(ctx context.Context, sale *entity.Sale) error {
	if existing, err := uc.saleRepo.GetByRoomID(ctx, sale.RoomID); err == nil && existing != nil {
		logger.Warn("RecordCompletedSale: sale already recorded for room %s", sale.RoomID)
		*sale = *existing
		return nil
	}

	sale.CreatedAt = time.Now()
	if err := uc.saleRepo.Create(ctx, sale); err != nil {
		return errors.Internal("Failed to record sale", err)
	}

	if product, err := uc.productRepo.GetByID(ctx, sale.ProductID); err == nil {
		product.SoldCount++
		if err := uc.productRepo.Update(ctx, product); err != nil {
			logger.Warn("RecordCompletedSale: failed to bump sold count for product %s: %v", sale.ProductID, err)
		}
	}

	return nil
}

// GetSale returns a sale visible to its buyer, seller or an admin.
func (uc *SaleUseCase) GetSale(ctx context.Context, userID, saleID string, isAdmin bool) (*entity.Sale, error) {
	sale, err := uc.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && userID != sale.BuyerID && userID != sale.SellerID {
		return nil, errors.Forbidden("Only the buyer, seller or an admin may view this sale", nil)
	}
	return sale, nil
}

// ListUserSales returns the sales the user participated in.
func (uc *SaleUseCase) ListUserSales(ctx context.Context, userID string, limit, offset int) ([]*entity.Sale, int64, error) {
	return uc.saleRepo.ListByUserID(ctx, userID, limit, offset)
}

// ListSales returns all sales, for admin review.
func (uc *SaleUseCase) ListSales(ctx context.Context, limit, offset int) ([]*entity.Sale, int64, error) {
	return uc.saleRepo.List(ctx, limit, offset)
}

package repository

import (
	"context"

	"devmarket/internal/domain/entity"
)

type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	GetByRoomID(ctx context.Context, roomID string) (*entity.Sale, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Sale, int64, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Sale, int64, error)
}

package repository

import (
	"context"

	"devmarket/internal/domain/entity"
)

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	GetByProductAndBuyer(ctx context.Context, productID, buyerID string) (*entity.Room, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Room, int64, error)
	ListAdminRequested(ctx context.Context, limit, offset int) ([]*entity.Room, int64, error)
	Update(ctx context.Context, room *entity.Room) error

	// Message log methods. AppendMessage stores the message and the updated
	// room record together so the sequence counter and the log never diverge.
	AppendMessage(ctx context.Context, room *entity.Room, message *entity.Message) error
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, int64, error)
}

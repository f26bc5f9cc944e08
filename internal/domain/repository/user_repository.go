package repository

import (
	"context"

	"devmarket/internal/domain/entity"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	ListAdmins(ctx context.Context) ([]*entity.User, error)
}

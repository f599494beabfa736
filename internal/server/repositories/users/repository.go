package users

import (
	"context"

	"contactbook/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateRefreshToken(ctx context.Context, userID int64, token string) error
	ConfirmEmail(ctx context.Context, email string) error
	UpdateAvatar(ctx context.Context, userID int64, url string) (*models.User, error)
}

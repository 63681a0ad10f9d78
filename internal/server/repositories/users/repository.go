package users

import (
	"context"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

// Repository persists users. Lookups only ever see users that are not
// soft-deleted.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateAccount(ctx context.Context, id int64, name, email string) error
	SoftDelete(ctx context.Context, id int64) error
}

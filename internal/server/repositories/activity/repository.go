package activity

import (
	"context"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

// Repository appends and lists activity rows. Rows are never updated or
// deleted.
type Repository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.ActivityEntry, error)
	ListForCluster(ctx context.Context, clusterID int64) ([]models.ActivityLog, error)
}

package clusters

import (
	"context"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, name string) (*models.Cluster, error)
	GetByID(ctx context.Context, id int64) (*models.Cluster, error)
	// GetForUser returns the user's primary cluster: the one behind their
	// lowest member id.
	GetForUser(ctx context.Context, userID int64) (*models.Cluster, error)
}

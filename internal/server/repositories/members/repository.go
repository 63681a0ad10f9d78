package members

import (
	"context"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, member *models.ClusterMember) (*models.ClusterMember, error)
	ListByCluster(ctx context.Context, clusterID int64) ([]models.MemberWithUser, error)
	// ExistsByEmail reports whether a non-deleted user with email is a
	// member of clusterID.
	ExistsByEmail(ctx context.Context, clusterID int64, email string) (bool, error)
	// DeleteInCluster removes member memberID only if it belongs to
	// clusterID and returns the number of rows removed.
	DeleteInCluster(ctx context.Context, memberID, clusterID int64) (int64, error)
	DeleteUserFromCluster(ctx context.Context, userID, clusterID int64) error
}

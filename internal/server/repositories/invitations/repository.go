package invitations

import (
	"context"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

type Repository interface {
	// Create inserts a pending invitation. A second pending invitation for
	// the same (cluster, email) yields common.ErrorAlreadyExists.
	Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)
	FindPending(ctx context.Context, id int64, email string) (*models.Invitation, error)
	HasPending(ctx context.Context, clusterID int64, email string) (bool, error)
	// Accept flips a pending invitation to accepted. It fails with
	// common.ErrorNotFound if the invitation is not pending anymore.
	Accept(ctx context.Context, id int64) error
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/dbx"
	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/server/actions"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/repomanager"
)

// MembershipService invites people into the caller's cluster and removes
// members from it.
type MembershipService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewMembershipService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *MembershipService {
	return &MembershipService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "membership"),
	}
}

// InviteMember records a pending invitation. The returned Ok carries the
// invitation so its id can be handed out as ?inviteId=.
func (s *MembershipService) InviteMember(ctx context.Context, in *actions.InviteMember, user *models.User) (actions.Result, error) {
	email := common.NormalizeEmail(in.Email)

	var created *models.Invitation
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(tx), user.ID)
		if err != nil {
			return err
		}
		if clusterID == 0 {
			return reject(msgNoCluster)
		}

		isMember, err := s.repomanager.Members(tx).ExistsByEmail(ctx, clusterID, email)
		if err != nil {
			return fmt.Errorf("error checking membership: %w", err)
		}
		if isMember {
			return reject(msgAlreadyMember)
		}

		invRepo := s.repomanager.Invitations(tx)
		pending, err := invRepo.HasPending(ctx, clusterID, email)
		if err != nil {
			return fmt.Errorf("error checking invitations: %w", err)
		}
		if pending {
			return reject(msgAlreadyInvited)
		}

		created, err = invRepo.Create(ctx, &models.Invitation{
			ClusterID: clusterID,
			Email:     email,
			Role:      in.Role,
			InvitedBy: user.ID,
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return reject(msgAlreadyInvited)
			}
			return fmt.Errorf("error creating invitation: %w", err)
		}

		return logActivity(ctx, s.repomanager.Activity(tx), clusterID, user.ID, models.ActivityInviteClusterMember)
	})
	if err != nil {
		return outcome(nil, err)
	}

	s.logger.Info(ctx, "invitation created", "invitation_id", created.ID, "cluster_id", created.ClusterID)
	return actions.Ok{Message: msgInvitationSent, Invitation: created}, nil
}

// RemoveMember deletes the member only when it belongs to the caller's
// cluster. The removal is logged even if nothing matched.
func (s *MembershipService) RemoveMember(ctx context.Context, in *actions.RemoveMember, user *models.User) (actions.Result, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(tx), user.ID)
		if err != nil {
			return err
		}
		if clusterID == 0 {
			return reject(msgNoCluster)
		}

		n, err := s.repomanager.Members(tx).DeleteInCluster(ctx, in.MemberID, clusterID)
		if err != nil {
			return fmt.Errorf("error removing member: %w", err)
		}
		if n == 0 {
			s.logger.Warn(ctx, "member not in cluster", "member_id", in.MemberID, "cluster_id", clusterID)
		}

		return logActivity(ctx, s.repomanager.Activity(tx), clusterID, user.ID, models.ActivityRemoveClusterMember)
	})
	return outcome(actions.Ok{Message: msgMemberRemoved}, err)
}

// Package services contains server-side business logic: account and
// membership mutations, the read queries behind the session middleware
// and dashboard, and activity exports to object storage.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/netx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/actions"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/activity"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/clusters"
)

const dashboardPath = "/dashboard"

// user-facing messages
const (
	msgInvalidCredentials   = "Invalid email or password. Please try again."
	msgCreateUserFailed     = "Failed to create user. Please try again."
	msgInvalidInvitation    = "Invalid or expired invitation."
	msgWrongCurrentPassword = "Current password is incorrect."
	msgSamePassword         = "New password must be different from the current password."
	msgPasswordUpdated      = "Password updated successfully."
	msgAccountUpdated       = "Account updated successfully."
	msgEmailInUse           = "Email is already in use."
	msgDeleteWrongPassword  = "Incorrect password. Account deletion failed."
	msgNoCluster            = "User is not part of a cluster"
	msgAlreadyMember        = "User is already a member of this cluster"
	msgAlreadyInvited       = "An invitation has already been sent to this email"
	msgInvitationSent       = "Invitation sent successfully"
	msgMemberRemoved        = "Cluster member removed successfully"
)

// SessionIssuer signs new sessions; *auth.Codec implements it.
type SessionIssuer interface {
	Issue(ctx context.Context, userID int64) (*auth.Issued, error)
}

// rejected carries a user-facing failure out of a transaction so the
// transaction is rolled back.
type rejected struct {
	actions.Err
}

func (r rejected) Error() string { return r.Message }

func reject(msg string) error {
	return rejected{actions.Err{Message: msg}}
}

// outcome maps a transaction error to the action result.
func outcome(ok actions.Result, err error) (actions.Result, error) {
	var r rejected
	if errors.As(err, &r) {
		return r.Err, nil
	}
	if err != nil {
		return nil, err
	}
	return ok, nil
}

// primaryClusterID returns the id of the user's cluster, or 0 if the user
// has none.
func primaryClusterID(ctx context.Context, repo clusters.Repository, userID int64) (int64, error) {
	c, err := repo.GetForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("error resolving cluster: %w", err)
	}
	return c.ID, nil
}

// logActivity appends an activity row. Without a cluster there is
// nothing to attach it to and the call is a no-op.
func logActivity(ctx context.Context, repo activity.Repository, clusterID, userID int64, action models.ActivityType) error {
	if clusterID == 0 {
		return nil
	}
	entry := &models.ActivityLog{
		ClusterID: clusterID,
		UserID:    userID,
		Action:    action,
		IPAddress: netx.ClientIPFrom(ctx),
	}
	if err := repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("error logging %s: %w", action, err)
	}
	return nil
}

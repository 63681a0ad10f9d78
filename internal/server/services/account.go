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
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/config"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/repomanager"
	"golang.org/x/sync/errgroup"
)

// AccountService handles sign-in, sign-up, sign-out and the changes a
// user makes to their own account.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    SessionIssuer
	signInPath  string
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, sessions SessionIssuer, cfg *config.Config, logger logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		sessions:    sessions,
		signInPath:  cfg.SignInPath,
		logger:      logger.With("module", "account"),
	}
}

// SignIn checks the credentials and starts a session. Unknown e-mail and
// wrong password produce the same message.
func (s *AccountService) SignIn(ctx context.Context, in *actions.SignIn) (actions.Result, error) {
	email := common.NormalizeEmail(in.Email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return actions.Err{Message: msgInvalidCredentials}, nil
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !auth.ComparePasswords(in.Password, user.PasswordHash) {
		return actions.Err{Message: msgInvalidCredentials}, nil
	}

	clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(s.db), user.ID)
	if err != nil {
		return nil, err
	}

	var issued *auth.Issued
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issued, err = s.sessions.Issue(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		return logActivity(gctx, s.repomanager.Activity(s.db), clusterID, user.ID, models.ActivitySignIn)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user signed in", "user_id", user.ID)
	return actions.Ok{Session: issued, Redirect: dashboardPath}, nil
}

// SignUp creates the user and either accepts the invitation named by
// in.InviteID or creates a fresh cluster owned by the new user. All of it
// happens in one transaction: a bad invitation leaves nothing behind.
func (s *AccountService) SignUp(ctx context.Context, in *actions.SignUp) (actions.Result, error) {
	email := common.NormalizeEmail(in.Email)

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repomanager.Users(tx)
		activityRepo := s.repomanager.Activity(tx)

		if _, err := usersRepo.GetByEmail(ctx, email); err == nil {
			return reject(msgCreateUserFailed)
		} else if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching user: %w", err)
		}

		user, err := usersRepo.Create(ctx, &models.User{Email: email, PasswordHash: hash, Role: models.RoleOwner})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return reject(msgCreateUserFailed)
			}
			return fmt.Errorf("error creating user: %w", err)
		}

		var clusterID int64
		var role string

		if in.HasInvite() {
			invRepo := s.repomanager.Invitations(tx)
			inv, err := invRepo.FindPending(ctx, in.InviteID, email)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return reject(msgInvalidInvitation)
				}
				return fmt.Errorf("error searching invitation: %w", err)
			}
			if err := invRepo.Accept(ctx, inv.ID); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return reject(msgInvalidInvitation)
				}
				return fmt.Errorf("error accepting invitation: %w", err)
			}
			clusterID, role = inv.ClusterID, inv.Role
			if err := logActivity(ctx, activityRepo, clusterID, user.ID, models.ActivityAcceptInvitation); err != nil {
				return err
			}
		} else {
			cluster, err := s.repomanager.Clusters(tx).Create(ctx, fmt.Sprintf("%s's Cluster", email))
			if err != nil {
				return fmt.Errorf("error creating cluster: %w", err)
			}
			clusterID, role = cluster.ID, models.RoleOwner
			if err := logActivity(ctx, activityRepo, clusterID, user.ID, models.ActivityCreateCluster); err != nil {
				return err
			}
		}

		member := &models.ClusterMember{UserID: user.ID, ClusterID: clusterID, Role: role}
		if _, err := s.repomanager.Members(tx).Create(ctx, member); err != nil {
			return fmt.Errorf("error creating member: %w", err)
		}
		if err := logActivity(ctx, activityRepo, clusterID, user.ID, models.ActivitySignUp); err != nil {
			return err
		}

		created = user
		return nil
	})
	if err != nil {
		return outcome(nil, err)
	}

	issued, err := s.sessions.Issue(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user signed up", "user_id", created.ID, "invited", in.HasInvite())
	return actions.Ok{Session: issued, Redirect: dashboardPath}, nil
}

// SignOut logs the event for a signed-in user and ends the session. It
// also clears the cookie when nobody is signed in.
func (s *AccountService) SignOut(ctx context.Context, user *models.User) (actions.Result, error) {
	ok := actions.Ok{EndSession: true, Redirect: s.signInPath}
	if user == nil {
		return ok, nil
	}

	clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(s.db), user.ID)
	if err != nil {
		return nil, err
	}
	if err := logActivity(ctx, s.repomanager.Activity(s.db), clusterID, user.ID, models.ActivitySignOut); err != nil {
		return nil, err
	}
	return ok, nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, in *actions.UpdatePassword, user *models.User) (actions.Result, error) {
	if !auth.ComparePasswords(in.CurrentPassword, user.PasswordHash) {
		return actions.Err{Message: msgWrongCurrentPassword}, nil
	}
	if in.CurrentPassword == in.NewPassword {
		return actions.Err{Message: msgSamePassword}, nil
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(tx), user.ID)
		if err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		return logActivity(ctx, s.repomanager.Activity(tx), clusterID, user.ID, models.ActivityUpdatePassword)
	})
	return outcome(actions.Ok{Message: msgPasswordUpdated}, err)
}

func (s *AccountService) UpdateAccount(ctx context.Context, in *actions.UpdateAccount, user *models.User) (actions.Result, error) {
	email := common.NormalizeEmail(in.Email)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(tx), user.ID)
		if err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).UpdateAccount(ctx, user.ID, in.Name, email); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return reject(msgEmailInUse)
			}
			return fmt.Errorf("error updating account: %w", err)
		}
		return logActivity(ctx, s.repomanager.Activity(tx), clusterID, user.ID, models.ActivityUpdateAccount)
	})
	return outcome(actions.Ok{Message: msgAccountUpdated}, err)
}

// DeleteAccount soft-deletes the user, drops their membership in the
// current cluster and ends the session. The cluster itself stays.
func (s *AccountService) DeleteAccount(ctx context.Context, in *actions.DeleteAccount, user *models.User) (actions.Result, error) {
	if !auth.ComparePasswords(in.Password, user.PasswordHash) {
		return actions.Err{Message: msgDeleteWrongPassword}, nil
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clusterID, err := primaryClusterID(ctx, s.repomanager.Clusters(tx), user.ID)
		if err != nil {
			return err
		}
		if err := logActivity(ctx, s.repomanager.Activity(tx), clusterID, user.ID, models.ActivityDeleteAccount); err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).SoftDelete(ctx, user.ID); err != nil {
			return fmt.Errorf("error deleting user: %w", err)
		}
		if clusterID != 0 {
			if err := s.repomanager.Members(tx).DeleteUserFromCluster(ctx, user.ID, clusterID); err != nil {
				return fmt.Errorf("error removing membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return outcome(nil, err)
	}

	s.logger.Info(ctx, "account deleted", "user_id", user.ID)
	return actions.Ok{EndSession: true, Redirect: s.signInPath}, nil
}

package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/dbx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	query :=
		`INSERT INTO invitations (cluster_id, email, role, invited_by, status)
		 VALUES ($1, $2, $3, $4, 'pending')
		 RETURNING id, invited_at, status`

	err := r.db.QueryRowContext(ctx, query,
		inv.ClusterID, inv.Email, inv.Role, inv.InvitedBy).Scan(&inv.ID, &inv.InvitedAt, &inv.Status)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return inv, nil
}

func (r *PostgresRepository) FindPending(ctx context.Context, id int64, email string) (*models.Invitation, error) {
	query :=
		`SELECT id, cluster_id, email, role, invited_by, invited_at, status
		 FROM invitations
		 WHERE id = $1 AND email = $2 AND status = 'pending'`

	inv := &models.Invitation{}
	err := r.db.QueryRowContext(ctx, query, id, email).Scan(&inv.ID, &inv.ClusterID, &inv.Email,
		&inv.Role, &inv.InvitedBy, &inv.InvitedAt, &inv.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return inv, nil
}

func (r *PostgresRepository) HasPending(ctx context.Context, clusterID int64, email string) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM invitations
		     WHERE cluster_id = $1 AND email = $2 AND status = 'pending'
		 )`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, clusterID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Accept(ctx context.Context, id int64) error {
	query :=
		`UPDATE invitations SET status = 'accepted'
		 WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

package members

import (
	"context"
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

func (r *PostgresRepository) Create(ctx context.Context, member *models.ClusterMember) (*models.ClusterMember, error) {
	query :=
		`INSERT INTO cluster_members (user_id, cluster_id, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, joined_at`

	err := r.db.QueryRowContext(ctx, query,
		member.UserID, member.ClusterID, member.Role).Scan(&member.ID, &member.JoinedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return member, nil
}

func (r *PostgresRepository) ListByCluster(ctx context.Context, clusterID int64) ([]models.MemberWithUser, error) {
	query :=
		`SELECT m.id, m.user_id, m.cluster_id, m.role, m.joined_at, u.id, COALESCE(u.name, ''), u.email
		 FROM cluster_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.cluster_id = $1
		 ORDER BY m.id`

	rows, err := r.db.QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.MemberWithUser
	for rows.Next() {
		var m models.MemberWithUser
		if err := rows.Scan(&m.ID, &m.UserID, &m.ClusterID, &m.Role, &m.JoinedAt,
			&m.User.ID, &m.User.Name, &m.User.Email); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, clusterID int64, email string) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM cluster_members m
		     JOIN users u ON u.id = m.user_id
		     WHERE m.cluster_id = $1 AND u.email = $2 AND u.deleted_at IS NULL
		 )`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, clusterID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) DeleteInCluster(ctx context.Context, memberID, clusterID int64) (int64, error) {
	query :=
		`DELETE FROM cluster_members
		 WHERE id = $1 AND cluster_id = $2`

	res, err := r.db.ExecContext(ctx, query, memberID, clusterID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteUserFromCluster(ctx context.Context, userID, clusterID int64) error {
	query :=
		`DELETE FROM cluster_members
		 WHERE user_id = $1 AND cluster_id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, clusterID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

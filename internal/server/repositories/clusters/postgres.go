package clusters

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

func (r *PostgresRepository) Create(ctx context.Context, name string) (*models.Cluster, error) {
	query :=
		`INSERT INTO clusters (name)
		 VALUES ($1)
		 RETURNING id, name, created_at, updated_at`

	return scanCluster(r.db.QueryRowContext(ctx, query, name))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Cluster, error) {
	query :=
		`SELECT id, name, created_at, updated_at FROM clusters
		 WHERE id = $1`

	return scanCluster(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUser(ctx context.Context, userID int64) (*models.Cluster, error) {
	query :=
		`SELECT c.id, c.name, c.created_at, c.updated_at
		 FROM cluster_members m
		 JOIN clusters c ON c.id = m.cluster_id
		 WHERE m.user_id = $1
		 ORDER BY m.id
		 LIMIT 1`

	return scanCluster(r.db.QueryRowContext(ctx, query, userID))
}

func scanCluster(row *sql.Row) (*models.Cluster, error) {
	c := &models.Cluster{}
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetOrCreate(ctx context.Context, key, candidate string) (string, error) {
	query :=
		`INSERT INTO secrets (key, value)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, key, candidate); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	return r.Get(ctx, key)
}

func (r *PostgresRepository) Get(ctx context.Context, key string) (string, error) {
	query :=
		`SELECT value FROM secrets
		 WHERE key = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

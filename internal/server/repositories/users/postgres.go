package users

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

const selectUser = `SELECT id, COALESCE(name, ''), email, password_hash, role, created_at, updated_at, deleted_at
		 FROM users`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var deletedAt sql.NullTime

	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&user.CreatedAt, &user.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}
	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (name, email, password_hash, role)
		 VALUES (NULLIF($1, ''), $2, $3, $4)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Role).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := selectUser + `
		 WHERE id = $1 AND deleted_at IS NULL`

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := selectUser + `
		 WHERE email = $1 AND deleted_at IS NULL`

	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, query, id, passwordHash)
}

// UpdateAccount sets name and email. An email owned by another user
// yields common.ErrorAlreadyExists.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, id int64, name, email string) error {
	query :=
		`UPDATE users SET name = NULLIF($2, ''), email = $3, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, query, id, name, email)
}

// SoftDelete marks the user deleted and rewrites the email to
// "<email>-<id>-deleted" so the address can be registered again.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id int64) error {
	query :=
		`UPDATE users SET deleted_at = now(), updated_at = now(), email = CONCAT(email, '-', id, '-deleted')
		 WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
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

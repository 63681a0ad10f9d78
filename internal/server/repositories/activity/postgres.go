package activity

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/dbx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	query :=
		`INSERT INTO activity_logs (cluster_id, user_id, action, ip_address)
		 VALUES ($1, $2, $3, NULLIF($4, ''))
		 RETURNING id, timestamp`

	err := r.db.QueryRowContext(ctx, query,
		entry.ClusterID, entry.UserID, string(entry.Action), entry.IPAddress).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListForUser returns the newest limit rows written by userID, each with
// the user's display name.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.ActivityEntry, error) {
	query :=
		`SELECT a.id, a.action, a.timestamp, COALESCE(a.ip_address, ''), COALESCE(u.name, '')
		 FROM activity_logs a
		 LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.user_id = $1
		 ORDER BY a.timestamp DESC, a.id DESC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.ActivityEntry, 0, limit)
	for rows.Next() {
		var e models.ActivityEntry
		var action string
		if err := rows.Scan(&e.ID, &action, &e.Timestamp, &e.IPAddress, &e.UserName); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Action = models.ActivityType(action)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListForCluster(ctx context.Context, clusterID int64) ([]models.ActivityLog, error) {
	query :=
		`SELECT id, cluster_id, COALESCE(user_id, 0), action, timestamp, COALESCE(ip_address, '')
		 FROM activity_logs
		 WHERE cluster_id = $1
		 ORDER BY timestamp, id`

	rows, err := r.db.QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.ActivityLog
	for rows.Next() {
		var l models.ActivityLog
		var action string
		if err := rows.Scan(&l.ID, &l.ClusterID, &l.UserID, &action, &l.Timestamp, &l.IPAddress); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		l.Action = models.ActivityType(action)
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

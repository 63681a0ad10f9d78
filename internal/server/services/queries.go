package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/repomanager"
)

// Queries serves the read side: the lookups behind the session
// middleware and the dashboard's user, cluster and activity views.
type Queries struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewQueries(db *sql.DB, m repomanager.RepositoryManager) *Queries {
	return &Queries{db: db, repomanager: m}
}

func (q *Queries) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return q.repomanager.Users(q.db).GetByID(ctx, id)
}

// ClusterForUser returns the user's primary cluster with its members, or
// common.ErrorNotFound.
func (q *Queries) ClusterForUser(ctx context.Context, userID int64) (*models.ClusterWithMembers, error) {
	cluster, err := q.repomanager.Clusters(q.db).GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	members, err := q.repomanager.Members(q.db).ListByCluster(ctx, cluster.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}

	return &models.ClusterWithMembers{Cluster: *cluster, Members: members}, nil
}

// ActivityForUser returns the user's most recent activity, newest first.
func (q *Queries) ActivityForUser(ctx context.Context, userID int64) ([]models.ActivityEntry, error) {
	entries, err := q.repomanager.Activity(q.db).ListForUser(ctx, userID, common.ActivityFeedLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	return entries, nil
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/clusterdeck/internal/dbx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/activity"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/clusters"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/members"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an
// open transaction, so services can compose several of them in one tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Clusters(db dbx.DBTX) clusters.Repository
	Members(db dbx.DBTX) members.Repository
	Invitations(db dbx.DBTX) invitations.Repository
	Activity(db dbx.DBTX) activity.Repository
	Secrets(db dbx.DBTX) secrets.Repository
}

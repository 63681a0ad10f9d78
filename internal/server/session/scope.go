// Package session resolves the signed session cookie into a user (and
// optionally the user's cluster) and guards handlers that need them.
package session

import (
	"context"

	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

// Scope is the request-scoped identity resolved by the middleware.
type Scope struct {
	User    *models.User
	Cluster *models.ClusterWithMembers

	resolved bool
}

type ctxKey struct{}

func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the Scope attached to ctx, or nil.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(ctxKey{}).(*Scope)
	return s
}

// UserFrom returns the resolved user, or nil when there is none.
func UserFrom(ctx context.Context) *models.User {
	if s := FromContext(ctx); s != nil {
		return s.User
	}
	return nil
}

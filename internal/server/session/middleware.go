package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
)

type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Payload, error)
}

// Directory looks up the identities a session refers to.
type Directory interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	ClusterForUser(ctx context.Context, userID int64) (*models.ClusterWithMembers, error)
}

type Manager struct {
	verifier   Verifier
	dir        Directory
	logger     logging.Logger
	signInPath string
	cookie     CookieOptions
	now        func() time.Time
}

func NewManager(verifier Verifier, dir Directory, logger logging.Logger, signInPath string, cookie CookieOptions) *Manager {
	return &Manager{
		verifier:   verifier,
		dir:        dir,
		logger:     logger.With("module", "session"),
		signInPath: signInPath,
		cookie:     cookie,
		now:        time.Now,
	}
}

// CurrentUser returns the user behind the session cookie, or nil when the
// cookie is missing, malformed, badly signed, expired, or points at a
// deleted or unknown user. Lookup failures are logged, never returned.
func (m *Manager) CurrentUser(r *http.Request) *models.User {
	if s := FromContext(r.Context()); s != nil && s.resolved {
		return s.User
	}
	return m.resolveUser(r)
}

func (m *Manager) resolveUser(r *http.Request) *models.User {
	ctx := r.Context()

	c, err := r.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	payload, err := m.verifier.Verify(ctx, c.Value)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidToken) {
			m.logger.Error(ctx, "session verification failed", "error", err)
		}
		return nil
	}

	if payload.Expired(m.now()) {
		return nil
	}

	user, err := m.dir.UserByID(ctx, payload.User.ID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			m.logger.Error(ctx, "session user lookup failed", "user_id", payload.User.ID, "error", err)
		}
		return nil
	}
	if user.DeletedAt != nil {
		return nil
	}
	return user
}

// Resolve attaches a Scope with the current user (possibly nil) to every
// request so later lookups don't verify the cookie again.
func (m *Manager) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := &Scope{User: m.CurrentUser(r), resolved: true}
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), s)))
	})
}

// RequireUser redirects anonymous requests to the sign-in page.
func (m *Manager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.CurrentUser(r)
		if user == nil {
			http.Redirect(w, r, m.signInPath, http.StatusSeeOther)
			return
		}

		s := FromContext(r.Context())
		if s == nil {
			s = &Scope{}
			r = r.WithContext(WithScope(r.Context(), s))
		}
		s.User, s.resolved = user, true

		next.ServeHTTP(w, r)
	})
}

// RequireCluster is RequireUser plus the user's primary cluster with its
// members. A signed-in user without a cluster is a broken invariant, so
// it panics with common.ErrClusterNotFound; the router's recoverer turns
// that into a 500.
func (m *Manager) RequireCluster(next http.Handler) http.Handler {
	return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s := FromContext(ctx)

		cluster, err := m.dir.ClusterForUser(ctx, s.User.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				m.logger.Error(ctx, "user has no cluster", "user_id", s.User.ID)
				panic(common.ErrClusterNotFound)
			}
			m.logger.Error(ctx, "cluster lookup failed", "user_id", s.User.ID, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		s.Cluster = cluster
		next.ServeHTTP(w, r)
	}))
}

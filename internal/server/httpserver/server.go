// Package httpserver exposes the dashboard back end over HTTP: form
// actions, read endpoints, the metadata proxy and the event relay.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/netx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/actions"
	"github.com/dmitrijs2005/clusterdeck/internal/server/httpx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/services"
	"github.com/dmitrijs2005/clusterdeck/internal/server/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

type Accounts interface {
	SignIn(ctx context.Context, in *actions.SignIn) (actions.Result, error)
	SignUp(ctx context.Context, in *actions.SignUp) (actions.Result, error)
	SignOut(ctx context.Context, user *models.User) (actions.Result, error)
	UpdatePassword(ctx context.Context, in *actions.UpdatePassword, user *models.User) (actions.Result, error)
	UpdateAccount(ctx context.Context, in *actions.UpdateAccount, user *models.User) (actions.Result, error)
	DeleteAccount(ctx context.Context, in *actions.DeleteAccount, user *models.User) (actions.Result, error)
}

type Members interface {
	InviteMember(ctx context.Context, in *actions.InviteMember, user *models.User) (actions.Result, error)
	RemoveMember(ctx context.Context, in *actions.RemoveMember, user *models.User) (actions.Result, error)
}

type ActivityFeed interface {
	ActivityForUser(ctx context.Context, userID int64) ([]models.ActivityEntry, error)
}

type Exporter interface {
	Export(ctx context.Context, clusterID int64) (*services.Export, error)
}

// Metadata mounts the proxy routes under /api.
type Metadata interface {
	Routes(r chi.Router)
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Sessions *session.Manager
	Accounts Accounts
	Members  Members
	Activity ActivityFeed
	Exporter Exporter
	Metadata Metadata
	Relay    http.Handler
}

type Server struct {
	address string
	origins []string
	deps    Deps
	logger  logging.Logger
}

func New(address string, origins []string, deps Deps, logger logging.Logger) *Server {
	return &Server{
		address: address,
		origins: origins,
		deps:    deps,
		logger:  logger.With("module", "http_server"),
	}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(netx.Middleware)
	r.Use(httpx.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.cors())
	r.Use(s.deps.Sessions.Resolve)

	sessions := s.deps.Sessions

	r.With(sessions.RequireUser).Get("/dashboard", s.dashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Post("/sign-in", s.action(actions.Validated(s.deps.Accounts.SignIn)))
		r.Post("/sign-up", s.action(actions.Validated(s.deps.Accounts.SignUp)))
		r.Post("/sign-out", s.signOut)

		r.Post("/account", s.action(actions.ValidatedWithUser(s.deps.Accounts.UpdateAccount)))
		r.Post("/account/password", s.action(actions.ValidatedWithUser(s.deps.Accounts.UpdatePassword)))
		r.Post("/account/delete", s.action(actions.ValidatedWithUser(s.deps.Accounts.DeleteAccount)))

		r.Post("/members/invite", s.action(actions.ValidatedWithUser(s.deps.Members.InviteMember)))
		r.Post("/members/remove", s.action(actions.ValidatedWithUser(s.deps.Members.RemoveMember)))

		r.Get("/user", s.currentUser)
		r.Get("/activity", s.activity)
		r.With(sessions.RequireCluster).Get("/cluster", s.cluster)
		r.With(sessions.RequireCluster).Post("/activity/export", s.export)

		if s.deps.Relay != nil {
			r.Get("/ws/{topic}/socket", s.deps.Relay.ServeHTTP)
		}
		if s.deps.Metadata != nil {
			s.deps.Metadata.Routes(r)
		}
	})

	return r
}

func (s *Server) cors() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "Cache-Control"},
		MaxAge:         300,
	}
	for _, o := range s.origins {
		if o == "*" {
			return cors.Handler(opts)
		}
	}
	opts.AllowCredentials = true
	return cors.Handler(opts)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

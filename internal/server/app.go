// Package server wires the clusterdeck back end together: database and
// migrations, the session signing secret, services, and the HTTP server.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/config"
	"github.com/dmitrijs2005/clusterdeck/internal/server/httpserver"
	"github.com/dmitrijs2005/clusterdeck/internal/server/relay"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/clusterdeck/internal/server/services"
	"github.com/dmitrijs2005/clusterdeck/internal/server/session"
	"github.com/dmitrijs2005/clusterdeck/internal/server/tmdb"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	secrets     *auth.SecretProvider
	http        *httpserver.Server
}

// OpenDB opens the Postgres pool through the pgx stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	db, err := OpenDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	secrets := auth.NewSecretProvider(m.Secrets(db))
	codec := auth.NewCodec(secrets, c.SessionTTL)

	queries := services.NewQueries(db, m)
	sessions := session.NewManager(codec, queries, logger, c.SignInPath, session.CookieOptions{
		Secure: c.CookieSecure,
		Domain: c.CookieDomain,
	})

	metadata := tmdb.NewHandler(tmdb.NewClient(c.TMDBBaseURL, c.TMDBToken, nil), c.TMDBLanguage, logger)

	srv := httpserver.New(c.HTTPAddr, c.AllowedOrigins, httpserver.Deps{
		Sessions: sessions,
		Accounts: services.NewAccountService(db, m, codec, c, logger),
		Members:  services.NewMembershipService(db, m, logger),
		Activity: queries,
		Exporter: services.NewActivityExporter(db, m, c),
		Metadata: metadata,
		Relay:    relay.New(c.BackendURL, c.APIKey, c.AllowedOrigins, c.RelayMaxMessageBytes, logger),
	}, logger)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: m,
		secrets:     secrets,
		http:        srv,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// prepare brings the schema up to date and makes sure the session
// signing secret exists before any request is served.
func (app *App) prepare(ctx context.Context) error {
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if err := app.secrets.Provision(ctx); err != nil {
		return fmt.Errorf("secret provisioning failed: %w", err)
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Run prepares the database and serves HTTP until ctx is cancelled or a
// termination signal arrives. A server that fails to listen or serve makes
// Run return that error.

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.prepare(ctx); err != nil {
		return err
	}

	var (
		wg      sync.WaitGroup
		httpErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		httpErr = app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
	return httpErr
}

// Package admin implements the operator commands of cmd/admin: schema
// migrations, provisioning of the session signing secret and creating
// users from the terminal.
package admin

import (
	"bufio"
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/server"
	"github.com/dmitrijs2005/clusterdeck/internal/server/actions"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/config"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/clusterdeck/internal/server/services"
)

const usage = `Usage: admin <command> [flags]

Commands:
  migrate            apply pending database migrations
  provision-secret   create the session signing secret if it is missing
  create-user        sign up a user interactively
  help               show this message`

var ErrUnknownCommand = errors.New("unknown command")

type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
}

type Provisioner interface {
	Provision(ctx context.Context) error
}

type SignUpper interface {
	SignUp(ctx context.Context, in *actions.SignUp) (actions.Result, error)
}

type App struct {
	db       *sql.DB
	migrator Migrator
	secrets  Provisioner
	accounts SignUpper
	reader   *bufio.Reader
	out      io.Writer
	logger   logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, c.LogLevel, "text")

	db, err := server.OpenDB(c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	m := repomanager.NewPostgresRepositoryManager()
	secrets := auth.NewSecretProvider(m.Secrets(db))
	codec := auth.NewCodec(secrets, c.SessionTTL)

	return &App{
		db:       db,
		migrator: m,
		secrets:  secrets,
		accounts: services.NewAccountService(db, m, codec, c, logger),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		logger:   logger.With("module", "admin"),
	}, nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run executes one command.
func (a *App) Run(ctx context.Context, command string) error {
	switch command {
	case "migrate":
		return a.migrate(ctx)
	case "provision-secret":
		return a.provisionSecret(ctx)
	case "create-user":
		return a.createUser(ctx)
	case "", "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func (a *App) migrate(ctx context.Context) error {
	if err := a.migrator.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	a.logger.Info(ctx, "migrations applied")
	fmt.Fprintln(a.out, "Migrations applied.")
	return nil
}

func (a *App) provisionSecret(ctx context.Context) error {
	if err := a.secrets.Provision(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session secret is provisioned.")
	return nil
}

// createUser runs the regular sign-up action, so the user gets a fresh
// cluster exactly as if they had signed up in the browser.
func (a *App) createUser(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter user e-mail", a.out)
	if err != nil {
		return err
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(password, confirm) != 1 {
		fmt.Fprintln(a.out, "Passwords don't match")
		return nil
	}

	form := url.Values{"email": {email}, "password": {string(password)}}
	res, err := actions.Validated(a.accounts.SignUp)(ctx, form)
	if err != nil {
		return err
	}

	switch v := res.(type) {
	case actions.Err:
		fmt.Fprintln(a.out, v.Message)
	case actions.Ok:
		a.logger.Info(ctx, "user created", "email", email)
		fmt.Fprintln(a.out, "Success!")
	}
	return nil
}

// Package server wires configuration, storage, services and the HTTP API
// together and runs them until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/dbx"
	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/dmitrijs2005/bookkeeper/internal/server/auth"
	"github.com/dmitrijs2005/bookkeeper/internal/server/config"
	"github.com/dmitrijs2005/bookkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/bookkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookkeeper/internal/server/services"
)

// Deps are the store and services shared by the server and the admin tool.
type Deps struct {
	DB     *sql.DB
	Repos  repomanager.RepositoryManager
	Issuer *auth.Issuer
	Users  *services.UserService
	Books  *services.BookService
}

// NewDeps opens the configured database and builds the services on top of
// it. Migrations are not applied.
func NewDeps(ctx context.Context, c *config.Config, logger logging.Logger) (*Deps, error) {
	rm, err := repomanager.New(c.DBDriver)
	if err != nil {
		return nil, err
	}

	db, err := dbx.Open(ctx, c.DBDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	issuer := auth.NewIssuer(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	hasher := auth.NewHasher(c.BcryptCost)

	return &Deps{
		DB:     db,
		Repos:  rm,
		Issuer: issuer,
		Users:  services.NewUserService(db, rm, issuer, hasher, logger),
		Books:  services.NewBookService(db, rm, logger),
	}, nil
}

// Close releases the database handle.
func (d *Deps) Close() error {
	return d.DB.Close()
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	deps    *Deps
	handler http.Handler
}

// NewApp opens storage, applies migrations and builds the HTTP handler.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	deps, err := NewDeps(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	if err := deps.Repos.RunMigrations(ctx, deps.DB); err != nil {
		_ = deps.Close()
		return nil, err
	}

	var metrics *httpapi.Metrics
	if c.MetricsEnabled {
		metrics = httpapi.NewMetrics()
	}

	cookies := httpapi.CookieConfig{Secure: c.CookieSecure, MaxAge: c.RefreshTokenValidityDuration}
	handler := httpapi.NewRouter(httpapi.RouterParams{
		Logger:         logger,
		Users:          httpapi.NewUsersHandler(deps.Users, cookies, metrics, logger),
		Books:          httpapi.NewBooksHandler(deps.Books),
		Verifier:       deps.Issuer,
		Metrics:        metrics,
		RequestTimeout: c.RequestTimeout,
		Production:     c.IsProduction(),
		Ping:           deps.DB.PingContext,
	})

	return &App{config: c, logger: logger, deps: deps, handler: handler}, nil
}

// Handler returns the root HTTP handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := httpapi.NewServer(app.config.HTTPAddr, app.handler, app.logger, app.config.ShutdownTimeout)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return err
	}
	return nil
}

// runJanitor prunes expired sessions every SessionPruneInterval until ctx is
// done. A zero interval disables it.
func (app *App) runJanitor(ctx context.Context) {
	interval := app.config.SessionPruneInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.pruneSessions(ctx)
		}
	}
}

func (app *App) pruneSessions(ctx context.Context) {
	if _, err := app.deps.Users.PruneExpiredSessions(ctx, time.Now()); err != nil {
		app.logger.Warn(ctx, "session prune failed", "err", err)
	}
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.AppEnv, "driver", app.config.DBDriver)

	app.initSignalHandler(ctx, cancelFunc)

	var (
		wg     sync.WaitGroup
		srvErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		srvErr = app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.runJanitor(ctx)
	}()

	wg.Wait()

	if err := app.deps.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "err", err)
	}
	app.logger.Info(ctx, "App stopped")
	return srvErr
}

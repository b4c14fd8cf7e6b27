// Package app wires the datastore, lock service, metrics and HTTP server
// together for the command line entry points.
package app

import (
	"context"

	"github.com/tphakala/quotedesk/internal/api"
	"github.com/tphakala/quotedesk/internal/api/auth"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/datastore"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
	"github.com/tphakala/quotedesk/internal/observability"
	"github.com/tphakala/quotedesk/internal/observability/metrics"
)

// GetLogger returns the app package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App holds the long-lived components shared by all commands.
type App struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Users    *datastore.UserRepository
	Entities *datastore.EntityRepository
	Locks    *lock.Service
	Metrics  *observability.Metrics // nil when metrics are disabled
}

// Open connects to the configured database, migrates the schema and builds
// the lock service.
func Open(ctx context.Context, settings *conf.Settings) (*App, error) {
	store, err := datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	a := &App{Settings: settings, Store: store}
	if err := a.init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if err := a.Store.Migrate(ctx); err != nil {
		return err
	}

	db := a.Store.Gorm()
	a.Users = datastore.NewUserRepository(db)
	a.Entities = datastore.NewEntityRepository(db)

	var recorder lock.Recorder
	if a.Settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return errors.New(err).Component("app").Category(errors.CategorySystem).Build()
		}
		a.Metrics = m
		recorder = m.Locks

		if sqlDB, err := db.DB(); err == nil {
			// Missing pool stats are not fatal
			_ = m.RegisterDBStats(sqlDB, "quotedesk")
		}
	}

	lockStore, err := datastore.NewLockStore(db, lock.DefaultUserDirectory)
	if err != nil {
		return err
	}

	a.Locks, err = lock.NewService(lockStore, lock.DefaultResources(),
		lock.WithLogger(logger.Global().Module("locks")),
		lock.WithRecorder(recorder))
	return err
}

// NewServer builds the HTTP server over the app components.
func (a *App) NewServer() (*api.Server, error) {
	var recorder metrics.HTTPRecorder = metrics.NoopHTTPRecorder{}
	if a.Metrics != nil {
		recorder = a.Metrics.HTTP
	}

	authService, err := auth.NewService(a.Users, &a.Settings.Security,
		auth.WithRecorder(recorder),
		auth.WithSecureCookies(a.Settings.Security.SecureCookies),
		auth.WithLogoutHook(a.releaseLocksOnLogout))
	if err != nil {
		return nil, err
	}

	opts := []api.ServerOption{api.WithDataStore(a.Store)}
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	return api.New(a.Settings, a.Locks, a.Entities, authService, opts...)
}

// NewSweeper returns the lock expiry sweeper, or nil when locks never expire.
func (a *App) NewSweeper() (*lock.Sweeper, error) {
	if a.Settings.Locks.Expiry <= 0 {
		return nil, nil
	}
	return lock.NewSweeper(a.Locks, a.Settings.Locks.Expiry, a.Settings.Locks.SweepInterval)
}

// Close closes the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// releaseLocksOnLogout frees every lock the user still holds when their
// session ends.
func (a *App) releaseLocksOnLogout(ctx context.Context, user lock.User) error {
	_, err := a.Locks.ReleaseAllForUser(ctx, user)
	return err
}

// interfaces.go: database handle and lifecycle shared by all repositories
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/logger"
)

// Interface abstracts the database backend.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Gorm() *gorm.DB
}

// DataStore holds the GORM handle shared by the backend implementations.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New returns the backend selected by settings.Database.Type.
func New(settings *conf.Settings) (Interface, error) {
	switch settings.Database.Type {
	case conf.DatabaseSQLite:
		return &SQLiteStore{Settings: settings}, nil
	case conf.DatabaseMySQL:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, validationError("unsupported database type", "database.type", settings.Database.Type)
	}
}

// Gorm returns the underlying GORM handle.
func (ds *DataStore) Gorm() *gorm.DB {
	return ds.DB
}

// Ping verifies the database connection is alive.
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return dbError(ErrNotInitialized, "ping", "")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping", "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", "")
	}
	return nil
}

// Migrate creates or updates the schema of all entities.
func (ds *DataStore) Migrate(ctx context.Context) error {
	if ds.DB == nil {
		return dbError(ErrNotInitialized, "migrate", "")
	}
	start := time.Now()
	if err := ds.DB.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		return dbError(err, "auto_migrate", "high")
	}
	getLogger().Info("schema migrated", logger.Duration("elapsed", time.Since(start)))
	return nil
}

// Close releases the database connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return dbError(ErrNotInitialized, "close", "")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// gormConfig returns the GORM configuration shared by all backends.
func gormConfig(settings *conf.Settings) *gorm.Config {
	return &gorm.Config{
		Logger:  logger.NewGormLoggerAdapter(getLogger(), settings.Database.SlowQueryThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/logger"
)

// sqliteParams enables WAL and waits on the write lock instead of failing,
// since concurrent guarded writes contend for it.
const sqliteParams = "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Database.SQLite.Path == "" {
		return validationError("sqlite path must not be empty", "database.sqlite.path", "")
	}
	return nil
}

// Open opens the SQLite database file, creating its directory when needed.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Database.SQLite.Path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return dbError(err, "create_sqlite_dir", "high", "path", dir)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path+sqliteParams), gormConfig(store.Settings))
	if err != nil {
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open_sqlite", "critical", "path", path)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return dbError(err, "open_sqlite", "critical")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	getLogger().Info("opened SQLite database", logger.String("path", path))
	return nil
}

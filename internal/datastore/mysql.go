package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	if settings.Database.MySQL.Host == "" || settings.Database.MySQL.Database == "" {
		return validationError("mysql host and database must be set", "database.mysql", settings.Database.MySQL.Host)
	}
	return nil
}

// mysqlDSN builds the connection string. clientFoundRows makes the affected
// row count include matched rows whose values did not change, which the
// guarded lock writes rely on.
func mysqlDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open connects to MySQL.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	cfg := &store.Settings.Database.MySQL
	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), gormConfig(store.Settings))
	if err != nil {
		getLogger().Error("failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.Int("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open_mysql", "critical",
			"host", cfg.Host, "database", cfg.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open_mysql", "critical")
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	store.DB = db
	getLogger().Info("opened MySQL database",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database))
	return nil
}

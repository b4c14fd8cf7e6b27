// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/quotedesk/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("webserver.host", "")
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.bodylimit", "1M")
	v.SetDefault("webserver.allowedorigins", []string{})

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.sqlite.path", "quotedesk.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "quotedesk")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "quotedesk")
	v.SetDefault("database.slowquerythreshold", 200*time.Millisecond)

	// Locks never expire unless explicitly configured
	v.SetDefault("locks.expiry", time.Duration(0))
	v.SetDefault("locks.sweepinterval", time.Minute)
	v.SetDefault("locks.ratelimit.enabled", true)
	v.SetDefault("locks.ratelimit.requestspersecond", 5.0)
	v.SetDefault("locks.ratelimit.burst", 20)

	v.SetDefault("security.sessionsecret", "")
	v.SetDefault("security.sessionname", "quotedesk_session")
	v.SetDefault("security.usercachettl", 5*time.Minute)
	v.SetDefault("security.securecookies", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
}

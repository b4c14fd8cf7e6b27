// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tphakala/quotedesk/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateWebServerSettings(&s.WebServer) },
		func(s *Settings) error { return validateDatabaseSettings(&s.Database) },
		func(s *Settings) error { return validateLockSettings(&s.Locks) },
		func(s *Settings) error { return validateSecuritySettings(&s.Security) },
		func(s *Settings) error { return validateTelemetrySettings(&s.Telemetry) },
		func(s *Settings) error { return validateMetricsSettings(&s.Metrics) },
		func(s *Settings) error { return validateLoggingSettings(&s.Logging) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if settings.Port == "" {
		return errors.New("webserver port is required")
	}
	port, err := strconv.Atoi(settings.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver port must be between 1 and 65535, got %q", settings.Port)
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	var errs []string

	switch settings.Type {
	case DatabaseSQLite:
		if settings.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path must be set")
		}
	case DatabaseMySQL:
		if settings.MySQL.Host == "" {
			errs = append(errs, "database.mysql.host must be set")
		}
		if settings.MySQL.Database == "" {
			errs = append(errs, "database.mysql.database must be set")
		}
		if settings.MySQL.Port < 1 || settings.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.mysql.port must be between 1 and 65535, got %d", settings.MySQL.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, settings.Type))
	}

	if settings.SlowQueryThreshold < 0 {
		errs = append(errs, "database.slowquerythreshold must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("database settings errors: %v", errs)
	}
	return nil
}

func validateLockSettings(settings *LockSettings) error {
	var errs []string

	if settings.Expiry < 0 {
		errs = append(errs, "locks.expiry must not be negative")
	}
	if settings.Expiry > 0 && settings.SweepInterval <= 0 {
		errs = append(errs, "locks.sweepinterval must be positive when locks.expiry is set")
	}
	if settings.RateLimit.Enabled {
		if settings.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, "locks.ratelimit.requestspersecond must be positive")
		}
		if settings.RateLimit.Burst < 1 {
			errs = append(errs, "locks.ratelimit.burst must be at least 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("lock settings errors: %v", errs)
	}
	return nil
}

func validateSecuritySettings(settings *SecuritySettings) error {
	const minSecretLength = 32
	if len(settings.SessionSecret) < minSecretLength {
		return fmt.Errorf("security.sessionsecret must be at least %d characters", minSecretLength)
	}
	if settings.SessionName == "" {
		return errors.New("security.sessionname must be set")
	}
	if settings.UserCacheTTL < 0 {
		return errors.New("security.usercachettl must not be negative")
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return errors.New("telemetry.dsn must be set when telemetry is enabled")
	}
	return nil
}

func validateMetricsSettings(settings *MetricsSettings) error {
	if settings.Enabled && !strings.HasPrefix(settings.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", settings.Path)
	}
	return nil
}

func validateLoggingSettings(settings *logger.LoggingConfig) error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

	check := func(name, level string) error {
		if level != "" && !validLevels[level] {
			return fmt.Errorf("%s has unknown log level %q", name, level)
		}
		return nil
	}

	errs := []error{check("logging.default_level", settings.DefaultLevel)}
	if settings.Console != nil {
		errs = append(errs, check("logging.console.level", settings.Console.Level))
	}
	if settings.FileOutput != nil {
		errs = append(errs, check("logging.file_output.level", settings.FileOutput.Level))
	}
	for module, level := range settings.ModuleLevels {
		errs = append(errs, check("logging.module_levels."+module, level))
	}
	return errors.Join(errs...)
}

// env.go - Environment variable configuration and validation for quotedesk
package conf

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "QUOTEDESK"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the bindings whose values are validated before use.
// All other keys are still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "QUOTEDESK_DEBUG", validateEnvBool},
		{"webserver.port", "QUOTEDESK_WEBSERVER_PORT", validateEnvPort},

		{"database.type", "QUOTEDESK_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "QUOTEDESK_DATABASE_SQLITE_PATH", nil},
		{"database.mysql.host", "QUOTEDESK_DATABASE_MYSQL_HOST", nil},
		{"database.mysql.port", "QUOTEDESK_DATABASE_MYSQL_PORT", validateEnvPort},
		{"database.mysql.password", "QUOTEDESK_DATABASE_MYSQL_PASSWORD", nil},

		{"locks.expiry", "QUOTEDESK_LOCKS_EXPIRY", validateEnvDuration},
		{"locks.sweepinterval", "QUOTEDESK_LOCKS_SWEEPINTERVAL", validateEnvDuration},

		{"security.sessionsecret", "QUOTEDESK_SECURITY_SESSIONSECRET", nil},
		{"telemetry.enabled", "QUOTEDESK_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "QUOTEDESK_TELEMETRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative, got %s", d)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	validTypes := []string{DatabaseSQLite, DatabaseMySQL}
	if !slices.Contains(validTypes, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(validTypes, ", "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}

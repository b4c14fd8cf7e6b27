// config.go: settings struct for quotedesk and the functions that load and save it.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/quotedesk/internal/logger"
)

// Supported database backends
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Host           string   `yaml:"host"`           // listen address, empty for all interfaces
	Port           string   `yaml:"port"`           // listen port
	BodyLimit      string   `yaml:"bodylimit"`      // max request body size, e.g. "1M"
	AllowedOrigins []string `yaml:"allowedorigins"` // CORS origins, empty allows any
}

// SQLiteSettings configures the SQLite backend.
type SQLiteSettings struct {
	Path string `yaml:"path"` // database file path
}

// MySQLSettings configures the MySQL backend.
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatabaseSettings selects and configures the resource store.
type DatabaseSettings struct {
	Type               string         `yaml:"type"` // sqlite or mysql
	SQLite             SQLiteSettings `yaml:"sqlite"`
	MySQL              MySQLSettings  `yaml:"mysql"`
	SlowQueryThreshold time.Duration  `yaml:"slowquerythreshold"` // 0 disables slow query warnings
}

// RateLimitSettings limits lock endpoint requests per acting user.
type RateLimitSettings struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestspersecond"`
	Burst             int     `yaml:"burst"`
}

// LockSettings contains edit lock behavior.
type LockSettings struct {
	Expiry        time.Duration     `yaml:"expiry"`        // locks older than this are released by the sweeper, 0 disables
	SweepInterval time.Duration     `yaml:"sweepinterval"` // how often the sweeper runs when expiry is enabled
	RateLimit     RateLimitSettings `yaml:"ratelimit"`
}

// SecuritySettings configures acting-user resolution.
type SecuritySettings struct {
	SessionSecret string        `yaml:"sessionsecret"` // cookie signing key, generated on first run
	SessionName   string        `yaml:"sessionname"`   // cookie name
	UserCacheTTL  time.Duration `yaml:"usercachettl"`  // how long a verified API token skips bcrypt
	SecureCookies bool          `yaml:"securecookies"` // send session and CSRF cookies over HTTPS only
}

// TelemetrySettings controls error reporting to Sentry.
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Settings contains all configuration options for quotedesk.
type Settings struct {
	Debug     bool                 `yaml:"debug"`
	WebServer WebServerSettings    `yaml:"webserver"`
	Database  DatabaseSettings     `yaml:"database"`
	Locks     LockSettings         `yaml:"locks"`
	Security  SecuritySettings     `yaml:"security"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Metrics   MetricsSettings      `yaml:"metrics"`
	Logging   logger.LoggingConfig `yaml:"logging"`
}

// Address returns the listen address for the web server.
func (w *WebServerSettings) Address() string {
	return w.Host + ":" + w.Port
}

// loadMutex serializes Load, which works on the global viper instance.
var loadMutex sync.Mutex

// Load reads the configuration file and environment variables. An explicit
// configFile bypasses the search paths.
func Load(configFile string) (*Settings, error) {
	loadMutex.Lock()
	defer loadMutex.Unlock()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, err
	}

	settings, err := load(viper.GetViper(), configFile, configPaths)
	if err != nil {
		return nil, err
	}

	return settings, nil
}

// load does the work of Load against a given viper instance.
func load(v *viper.Viper, configFile string, configPaths []string) (*Settings, error) {
	if err := initViper(v, configFile, configPaths); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper sets defaults, environment bindings and reads the configuration file.
func initViper(v *viper.Viper, configFile string, configPaths []string) error {
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
	}

	setDefaultConfig(v)

	// Invalid environment values are reported but do not stop startup
	if err := configureEnvironmentVariables(v); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var configFileNotFoundError viper.ConfigFileNotFoundError
	if errors.As(err, &configFileNotFoundError) && configFile == "" && len(configPaths) > 0 {
		return createDefaultConfig(v, filepath.Join(configPaths[0], "config.yaml"))
	}
	return fmt.Errorf("fatal error reading config file: %w", err)
}

// createDefaultConfig writes the defaults to configPath and reads it back.
func createDefaultConfig(v *viper.Viper, configPath string) error {
	if v.GetString("security.sessionsecret") == "" {
		v.Set("security.sessionsecret", GenerateRandomSecret())
	}

	defaults := &Settings{}
	if err := v.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error building default settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return err
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))

	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// SaveYAMLConfig writes settings to configPath through a temporary file so a
// crash never leaves a truncated config behind. Comments are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file into place: %w", err)
	}

	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// with 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		GetLogger().Error("failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

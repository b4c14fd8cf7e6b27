// Package conf provides configuration management for quotedesk.
package conf

import "github.com/tphakala/quotedesk/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger each time since settings load before the central logger exists.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

// Package observability provides Prometheus metrics for monitoring quotedesk.
// Sentry error telemetry is handled in the errors package.
package observability

import "github.com/tphakala/quotedesk/internal/logger"

// Package-level cached logger instance for efficiency.
// All logging in this package should use this variable.
var log = logger.Global().Module("metrics")

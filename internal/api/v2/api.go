// internal/api/v2/api.go
package api

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/api/auth"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
	"github.com/tphakala/quotedesk/internal/observability/metrics"
)

// GetLogger returns the API package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Pinger checks database connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	Locks    LockService
	Entities EntityStore
	Users    auth.Resolver

	db          Pinger
	authService *auth.Service
	metrics     metrics.HTTPRecorder
	limiter     *userRateLimiter
	log         logger.Logger
	startTime   time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithPinger enables the database check of the health endpoint.
func WithPinger(p Pinger) Option {
	return func(c *Controller) { c.db = p }
}

// WithAuthService registers the session login and logout endpoints.
func WithAuthService(svc *auth.Service) Option {
	return func(c *Controller) { c.authService = svc }
}

// WithMetrics sets the HTTP metrics sink.
func WithMetrics(m metrics.HTTPRecorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger overrides the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates the API controller and registers all routes under /api.
func New(e *echo.Echo, settings *conf.Settings, locks LockService, entities EntityStore,
	users auth.Resolver, opts ...Option) (*Controller, error) {
	if locks == nil || entities == nil || users == nil {
		return nil, errors.Newf("api: lock service, entity store and user resolver are required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Locks:     locks,
		Entities:  entities,
		Users:     users,
		metrics:   metrics.NoopHTTPRecorder{},
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if e.Validator == nil {
		e.Validator = NewValidator()
	}

	if settings != nil && settings.Locks.RateLimit.Enabled {
		c.limiter = newUserRateLimiter(settings.Locks.RateLimit.RequestsPerSecond, settings.Locks.RateLimit.Burst)
	}

	c.Group = e.Group("/api", c.MetricsMiddleware())
	c.initRoutes()

	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	if c.authService != nil {
		c.Group.POST("/auth/session", c.authService.HandleLogin)
		c.Group.DELETE("/auth/session", c.authService.HandleLogout)
	}

	protected := c.Group.Group("", auth.RequireUser(c.Users))

	var lockMiddleware []echo.MiddlewareFunc
	if c.limiter != nil {
		lockMiddleware = append(lockMiddleware, c.RateLimitMiddleware())
	}

	routes := []struct {
		prefix string
		res    lock.Resource
		init   func(g *echo.Group)
	}{
		{"/articles", lock.Articles, c.initArticleRoutes},
		{"/blocks", lock.Blocks, c.initBlockRoutes},
		{"/quote-versions", lock.QuoteVersions, c.initQuoteVersionRoutes},
		{"/sales-opportunities", lock.SalesOpportunities, c.initSalesOpportunityRoutes},
	}
	for _, r := range routes {
		g := protected.Group(r.prefix)
		RegisterLockRoutes(g, r.res, c.Locks, c.Users, lockMiddleware...)
		r.init(g)
	}

	protected.POST("/users/current/unlock-all", c.UnlockAll, lockMiddleware...)
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	if c.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
		defer cancel()

		if err := c.db.Ping(pingCtx); err != nil {
			response["status"] = "degraded"
			response["database_status"] = "disconnected"
			response["database_error"] = err.Error()
			return ctx.JSON(http.StatusServiceUnavailable, response)
		}
		response["database_status"] = "connected"
	}

	return ctx.JSON(http.StatusOK, response)
}

// ErrorResponse is the body of unexpected server errors
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a unique identifier for error tracking using cryptographic randomness
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err with a correlation id and writes an ErrorResponse.
// Server errors do not echo the internal error text to the client.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	return handleError(c.log, ctx, err, message, code)
}

func handleError(log logger.Logger, ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)
	if code >= http.StatusInternalServerError {
		errorResp.Error = http.StatusText(code)
	}

	fields := []logger.Field{
		logger.String("correlation_id", errorResp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}

	log = log.WithContext(ctx.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	return ctx.JSON(code, errorResp)
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.limiter != nil {
		c.limiter.Flush()
	}
	c.log.Debug("API controller shut down")
}

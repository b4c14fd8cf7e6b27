package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"

	"github.com/tphakala/quotedesk/internal/api/auth"
	mw "github.com/tphakala/quotedesk/internal/api/middleware"
	v2 "github.com/tphakala/quotedesk/internal/api/v2"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/datastore"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
	"github.com/tphakala/quotedesk/internal/observability"
)

// Server is the HTTP server of quotedesk.
// It manages the Echo framework instance, middleware, and all HTTP routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	dataStore   datastore.Interface
	locks       *lock.Service
	entities    v2.EntityStore
	authService *auth.Service
	metrics     *observability.Metrics

	// API controller
	apiController *v2.Controller

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDataStore sets the datastore used for health checks.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) { s.dataStore = ds }
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithServerLogger overrides the server logger.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, locks *lock.Service, entities v2.EntityStore,
	authService *auth.Service, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if locks == nil || entities == nil || authService == nil {
		return nil, errors.Newf("server: lock service, entity store and auth service are required").
			Component("server").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		config:      config,
		settings:    settings,
		log:         GetLogger(),
		locks:       locks,
		entities:    entities,
		authService: authService,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	if config.Debug {
		s.echo.Logger.SetLevel(gommonlog.DEBUG)
	} else {
		s.echo.Logger.SetLevel(gommonlog.ERROR)
	}

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("metrics_path", config.MetricsPath),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(mw.NewTraceContext())

	s.echo.Use(mw.NewRequestLoggerWithSkipper(logger.Global().Module("access"), func(c echo.Context) bool {
		return c.Path() == s.config.MetricsPath && s.config.MetricsPath != ""
	}))

	securityConfig := mw.NewSecurityConfig(s.config.AllowedOrigins)
	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
	s.echo.Use(mw.NewCSRF(&mw.CSRFConfig{CookieSecure: s.config.SecureCookies}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	opts := []v2.Option{v2.WithAuthService(s.authService)}
	if s.dataStore != nil {
		opts = append(opts, v2.WithPinger(s.dataStore))
	}
	if s.metrics != nil {
		opts = append(opts, v2.WithMetrics(s.metrics.HTTP))
	}

	apiController, err := v2.New(s.echo, s.settings, s.locks, s.entities, s.authService, opts...)
	if err != nil {
		return err
	}
	s.apiController = apiController

	if s.config.MetricsPath != "" && s.metrics != nil {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	s.log.Debug("routes initialized", logger.Int("routes", len(s.echo.Routes())))
	return nil
}

// healthCheck handles the server liveness endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Address()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("starting HTTP server", logger.String("address", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component("server").
				Category(errors.CategoryNetwork).
				Context("address", addr).
				Build()
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutdown signal received, initiating graceful shutdown")
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return errors.New(err).Component("server").Category(errors.CategorySystem).Build()
	}

	s.log.Info("server shutdown complete")
	return nil
}

// APIController returns the v2 API controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

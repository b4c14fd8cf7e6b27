package serve

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/quotedesk/internal/app"
	"github.com/tphakala/quotedesk/internal/buildinfo"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/logger"
)

const telemetryFlushTimeout = 2 * time.Second

// Command creates the serve command, which runs the HTTP API and, when lock
// expiry is configured, the lock sweeper.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  "Serve the edit-lock and write-path API until SIGINT or SIGTERM is received.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, build)
		},
	}
}

func run(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context) error {
	log := logger.Global().Module("app")
	defer errors.FlushTelemetry(telemetryFlushTimeout)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close database", logger.Error(err))
		}
	}()

	srv, err := a.NewServer()
	if err != nil {
		return err
	}

	sweeper, err := a.NewSweeper()
	if err != nil {
		return err
	}

	log.Info("starting quotedesk",
		logger.String("version", build.GetVersion()),
		logger.String("database", settings.Database.Type),
		logger.Bool("lock_expiry", sweeper != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	return g.Wait()
}

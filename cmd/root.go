package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/quotedesk/cmd/locks"
	"github.com/tphakala/quotedesk/cmd/migrate"
	"github.com/tphakala/quotedesk/cmd/serve"
	"github.com/tphakala/quotedesk/cmd/users"
	"github.com/tphakala/quotedesk/cmd/version"
	"github.com/tphakala/quotedesk/internal/buildinfo"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "quotedesk",
		Short:         "Quotation portal edit-lock service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	versionCmd := version.Command(build)
	subcommands := []*cobra.Command{
		serve.Command(settings, build),
		locks.Command(settings),
		users.Command(settings),
		migrate.Command(settings),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, configFile, build)
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and telemetry
// before any subcommand runs.
func initialize(settings *conf.Settings, configFile string, build *buildinfo.Context) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled {
		if err := errors.InitSentry(settings.Telemetry.DSN, settings.Telemetry.Environment, build.GetVersion()); err != nil {
			// Telemetry is optional; keep running without it
			logger.Global().Module("telemetry").Warn("failed to initialize Sentry", logger.Error(err))
		}
	}

	return nil
}

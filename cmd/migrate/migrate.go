package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/quotedesk/internal/app"
	"github.com/tphakala/quotedesk/internal/conf"
)

// Command creates the migrate command, which brings the schema up to date.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open migrates as part of startup
			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", settings.Database.Type)
			return nil
		},
	}
}

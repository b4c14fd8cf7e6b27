package locks

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/quotedesk/internal/app"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/lock"
)

// Command creates the locks command group for operators.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Inspect and release edit locks",
	}
	cmd.AddCommand(listCommand(settings), releaseCommand(settings), expireCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all held locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			held, err := a.Locks.ListLocks(cmd.Context())
			if err != nil {
				return err
			}
			if len(held) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No locks held")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tHOLDER\tSINCE\tAGE")
			for _, h := range held {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					h.Kind, h.State.ID, holder(&h.State),
					h.State.Blocked.Format(time.RFC3339),
					time.Since(*h.State.Blocked).Truncate(time.Second))
			}
			return w.Flush()
		},
	}
}

// holder renders the lock holder as "Name (id)" or the bare id.
func holder(s *lock.State) string {
	id := *s.BlockedBy
	if s.BlockedByName != nil && *s.BlockedByName != "" {
		return fmt.Sprintf("%s (%s)", *s.BlockedByName, id)
	}
	return id
}

func releaseCommand(settings *conf.Settings) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release every lock held by a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			result, err := a.Locks.ReleaseAllForUser(cmd.Context(), lock.User{ID: userID})
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d locks across %d resource types\n",
				result.Released, result.Operations)
			return err
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "ID of the user whose locks are released")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func expireCommand(settings *conf.Settings) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Release locks older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			released, err := a.Locks.ExpireBefore(cmd.Context(), time.Now().Add(-olderThan))
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d locks older than %s\n", released, olderThan)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Release locks acquired before this age, e.g. 8h")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}

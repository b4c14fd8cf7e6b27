package users

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/quotedesk/internal/api/auth"
	"github.com/tphakala/quotedesk/internal/app"
	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/datastore/entities"
)

// Command creates the users command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users and their API tokens",
	}
	cmd.AddCommand(addCommand(settings), listCommand(settings), tokenCommand(settings))
	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user and print their API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			user := &entities.User{Name: name, Email: email}
			if err := a.Users.Create(cmd.Context(), user); err != nil {
				return err
			}

			token, hash, err := auth.GenerateToken(user.ID)
			if err != nil {
				return err
			}
			if err := a.Users.SetTokenHash(cmd.Context(), user.ID, hash); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created user %s (%s)\n", user.Name, user.ID)
			fmt.Fprintf(out, "API token (shown once): %s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name shown to other editors")
	cmd.Flags().StringVar(&email, "email", "", "Unique email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			list, err := a.Users.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tTOKEN")
			for i := range list {
				u := &list[i]
				hasToken := "no"
				if u.APITokenHash != "" {
					hasToken = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, hasToken)
			}
			return w.Flush()
		},
	}
}

func tokenCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Rotate a user's API token",
		Long:  "Generate a new API token for the user. The previous token stops working immediately.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			user, err := a.Users.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			token, hash, err := auth.GenerateToken(user.ID)
			if err != nil {
				return err
			}
			if err := a.Users.SetTokenHash(cmd.Context(), user.ID, hash); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "API token for %s (shown once): %s\n", user.Name, token)
			return nil
		},
	}
}

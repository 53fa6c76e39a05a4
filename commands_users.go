package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewUsersCommand groups the admin account commands.
func NewUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin only)",
	}
	cmd.AddCommand(newUsersListCommand(a), newUsersDeleteCommand(a))
	return cmd
}

func newUsersListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loginAdmin(cmd); err != nil {
				return err
			}
			users, err := a.mgr.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, u.Role)
			}
			return w.Flush()
		},
	}
}

func newUsersDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an account with no open loans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			me, err := a.loginAdmin(cmd)
			if err != nil {
				return err
			}
			if err := a.mgr.DeleteUser(cmd.Context(), targetID, me.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", targetID)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/spf13/cobra"
)

// tokenCmd mints a bearer token signed with API_SECRET for local testing.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for local testing",
		Args:  cobra.NoArgs,
		// no database needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			userId, _ := cmd.Flags().GetInt("user")
			role, _ := cmd.Flags().GetString("role")
			token, err := utils.JwtGenerate(userId, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int("user", 1, "user id")
	cmd.Flags().String("role", "planner", "role claim")
	return cmd
}

package main

import (
	"fmt"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := models.MigrateTable(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			if config.JobsTopicConfigured() {
				topic, err := config.EnsureJobsTopic(cmd.Context())
				if err != nil {
					return fmt.Errorf("jobs topic: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "jobs topic ready: "+topic.ID())
			}
			return nil
		},
	}
}

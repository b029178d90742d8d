package main

import (
	"fmt"

	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/spf13/cobra"
)

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Generate year, quarter and month periods for a company",
		Args:  cobra.NoArgs,
		RunE:  runCalendar,
	}
	cmd.Flags().String("tenant", "", "company id")
	cmd.Flags().Int("year", 0, "first year to generate")
	cmd.Flags().Int("years", 1, "number of consecutive years")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func runCalendar(cmd *cobra.Command, _ []string) error {
	tenantId, _ := cmd.Flags().GetString("tenant")
	year, _ := cmd.Flags().GetInt("year")
	years, _ := cmd.Flags().GetInt("years")

	ctx := utils.SetTenantIdInContext(cmd.Context(), tenantId)
	if _, err := models.GetActiveCompany(ctx, tenantId); err != nil {
		return fmt.Errorf("company %s: %w", tenantId, err)
	}
	for y := year; y < year+max(years, 1); y++ {
		created, err := models.GenerateCalendarYear(ctx, tenantId, y)
		if err != nil {
			return fmt.Errorf("year %d: %w", y, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d: %d periods created\n", y, len(created))
	}
	return nil
}

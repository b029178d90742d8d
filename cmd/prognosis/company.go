package main

import (
	"fmt"

	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/spf13/cobra"
)

func companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies (tenants)",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a company and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			currency, _ := cmd.Flags().GetString("currency")
			company, err := models.CreateCompany(cmd.Context(), &models.NewCompany{Name: name, CurrencyDefault: currency})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), company.ID)
			return nil
		},
	}
	create.Flags().String("name", "", "company name")
	create.Flags().String("currency", "", "default ISO currency code")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			companies, err := models.ListCompanies(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range companies {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tactive=%t\n", c.ID, c.Name, c.Active())
			}
			return nil
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

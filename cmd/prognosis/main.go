// prognosis is the ops CLI: migrations, calendar generation, local file imports
// and a standalone job worker.
//
// Usage (from backend directory):
//
//	DB_DRIVER=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/prognosis migrate
//	go run ./cmd/prognosis calendar --tenant <company id> --year 2025 --years 2
//	go run ./cmd/prognosis import --tenant <company id> --scenario 3 plan.xlsx facts.csv
//	go run ./cmd/prognosis worker --concurrency 8
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prognosis",
		Short:         "Operations for the prognosis planning backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return connect(cmd.Context())
		},
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(companyCmd())
	root.AddCommand(calendarCmd())
	root.AddCommand(importCmd())
	root.AddCommand(workerCmd())
	root.AddCommand(tokenCmd())
	return root
}

// connect opens the database and redis once; a database set up by the caller is kept.
func connect(ctx context.Context) error {
	if config.GetDB() == nil {
		config.ConnectDatabaseWithRetry()
	}
	if config.GetDB() == nil {
		return fmt.Errorf("database not initialized; set DB_* env vars")
	}
	if config.GetRedisDB() == nil {
		config.ConnectRedisWithRetry(ctx)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

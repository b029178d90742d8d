package main

import (
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the polling job worker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := config.GetLogger()
			processor := workflow.NewJobProcessor(logger)
			if cmd.Flags().Changed("concurrency") {
				processor.Concurrency, _ = cmd.Flags().GetInt("concurrency")
			}
			if cmd.Flags().Changed("interval") {
				processor.Interval, _ = cmd.Flags().GetDuration("interval")
			}
			once, _ := cmd.Flags().GetBool("once")

			fields := logrus.Fields{
				"field":       "worker",
				"worker_id":   processor.WorkerID,
				"concurrency": processor.Concurrency,
				"interval":    processor.Interval.String(),
			}
			if once {
				n := processor.ProcessOnce(cmd.Context())
				logger.WithFields(fields).WithField("jobs", n).Info("worker pass finished")
				return nil
			}
			logger.WithFields(fields).Info("worker started")
			processor.Run(cmd.Context())
			logger.WithFields(fields).Info("worker stopped")
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 4, "jobs run in parallel (default WORKER_CONCURRENCY)")
	cmd.Flags().Duration("interval", 2*time.Second, "poll interval (default WORKER_POLL_SECONDS)")
	cmd.Flags().Bool("once", false, "run a single pass and exit")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/mmdatafocus/prognosis_backend/workflow"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const importPollInterval = 200 * time.Millisecond

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import CSV or Excel files into a scenario and wait for the result",
		Long: `Import financial facts from local CSV or Excel files.

Each file goes through the same pipeline as an HTTP upload: it is stored,
a task is created and processed, and row errors are printed at the end.

Examples:
  prognosis import --tenant 6f1c... --scenario 3 facts_2025.csv
  prognosis import --tenant 6f1c... --scenario 4 budget/*.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
	cmd.Flags().String("tenant", "", "company id")
	cmd.Flags().Int("scenario", 0, "target scenario id")
	cmd.Flags().Bool("quiet", false, "do not draw a progress bar")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err != nil {
				return nil, fmt.Errorf("no file matches %s", pattern)
			}
			matches = []string{pattern}
		}
		files = append(files, matches...)
	}
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	tenantId, _ := cmd.Flags().GetString("tenant")
	scenarioId, _ := cmd.Flags().GetInt("scenario")
	quiet, _ := cmd.Flags().GetBool("quiet")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	ctx := utils.SetTenantIdInContext(cmd.Context(), tenantId)
	if _, err := models.GetActiveCompany(ctx, tenantId); err != nil {
		return fmt.Errorf("company %s: %w", tenantId, err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range files {
		task, err := importFile(ctx, tenantId, scenarioId, path, out, quiet)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "%s: %s, %d/%d rows imported\n", filepath.Base(path), task.Status, task.RowsSuccess, task.RowsTotal)
		for _, line := range task.Errors() {
			fmt.Fprintln(out, "  "+line)
		}
		if task.Status != models.ImportStatusCompleted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files had errors", failed, len(files))
	}
	return nil
}

func importFile(ctx context.Context, tenantId string, scenarioId int, path string, out io.Writer, quiet bool) (*models.ImportTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	task, err := workflow.SubmitImport(ctx, tenantId, workflow.ImportUpload{
		ScenarioId: scenarioId,
		FileName:   filepath.Base(path),
		Size:       info.Size(),
		Body:       f,
	})
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- workflow.ProcessImportTask(ctx, tenantId, task.ID)
	}()

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(out),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(filepath.Base(path)),
			progressbar.OptionClearOnFinish(),
		)
	}
	ticker := time.NewTicker(importPollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return nil, err
			}
			return models.GetImportTask(ctx, tenantId, task.ID)
		case <-ticker.C:
			if bar == nil {
				continue
			}
			current, err := models.GetImportTask(ctx, tenantId, task.ID)
			if err != nil {
				continue
			}
			if current.RowsTotal > 0 && bar.GetMax() != current.RowsTotal {
				bar.ChangeMax(current.RowsTotal)
			}
			_ = bar.Set(current.RowsProcessed)
		}
	}
}

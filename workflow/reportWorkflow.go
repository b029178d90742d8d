package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/models/reports"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrEmptyReport            = errors.New("report has no data for the selected filters")
	ErrReportGenerationFailed = errors.New("report generation failed")
)

// RequestReport admits a generation request and publishes its job.
// An identical request still pending or generating returns models.ErrReportInProgress.
func RequestReport(ctx context.Context, tenantId string, input *models.NewGeneratedReport) (*models.GeneratedReport, error) {
	release, err := utils.TenantLock(ctx, tenantId, "report_request", "ReportWorkflow", "RequestReport")
	if err != nil {
		if errors.Is(err, utils.ErrorLockNotObtained) {
			return nil, models.ErrReportInProgress
		}
		return nil, err
	}
	defer release()

	report, err := models.CreateGeneratedReport(ctx, tenantId, input)
	if err != nil {
		return nil, err
	}
	publishJob(ctx, config.JobKindReport, tenantId, report.ID)
	return report, nil
}

// GenerateReport claims the report and runs it. Reports that are missing or not
// pending are left alone.
func GenerateReport(ctx context.Context, tenantId string, id int) error {
	report, err := models.ClaimGeneratedReport(ctx, tenantId, id)
	if err != nil || report == nil {
		return err
	}
	return RunReport(ctx, report)
}

// RunReport renders and stores a claimed report. On any failure the report is
// marked failed with a retry scheduled and ErrReportGenerationFailed wraps the cause.
func RunReport(ctx context.Context, report *models.GeneratedReport) error {
	ctx, span := tracer.Start(ctx, "workflow.RunReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", report.TenantId),
		attribute.Int("report_id", report.ID),
		attribute.Int("attempt", report.Attempts+1),
	)
	logger := config.GetLogger().WithFields(logrus.Fields{
		"module":    "ReportWorkflow",
		"tenant_id": report.TenantId,
		"report_id": report.ID,
	})

	fileKey, err := renderReport(ctx, report, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		if markErr := models.MarkReportFailed(ctx, report, err, time.Now()); markErr != nil {
			config.LogError(config.GetLogger(), "ReportWorkflow", "RunReport", "MarkReportFailed", report.ID, markErr)
		}
		logger.WithError(err).WithField("attempts", report.Attempts).Warn("report generation failed")
		return fmt.Errorf("%w: %w", ErrReportGenerationFailed, err)
	}
	if err := models.MarkReportReady(ctx, report, fileKey); err != nil {
		return err
	}
	logger.WithField("file_key", fileKey).Info("report ready")
	return nil
}

func reportFileKey(now time.Time, code string, ext string) string {
	now = now.UTC()
	return fmt.Sprintf("reports/%s/%s_%s.%s", now.Format("2006/01/02"), code, now.Format("20060102_150405"), ext)
}

func renderReport(ctx context.Context, report *models.GeneratedReport, now time.Time) (string, error) {
	template, err := models.GetReportTemplate(ctx, report.TenantId, report.TemplateId)
	if err != nil {
		return "", fmt.Errorf("report template %d: %w", report.TemplateId, err)
	}
	rows, err := reports.GetFinancialReportData(ctx, report.TenantId, reports.ReportQuery{
		ReportType:        template.ReportType,
		ScenarioId:        report.ScenarioId,
		StartPeriodId:     report.StartPeriodId,
		EndPeriodId:       report.EndPeriodId,
		IncludeDimensions: template.Config.IncludeDimensions,
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrEmptyReport
	}

	var (
		data []byte
		ext  string
	)
	if template.ReportType.IsSpreadsheet() {
		data, err = reports.RenderExcel(rows, template.Name)
		ext = "xlsx"
	} else {
		data, err = reports.RenderPDF(rows, report.Name)
		ext = "pdf"
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", ext, err)
	}

	store, err := utils.NewFileStore(ctx)
	if err != nil {
		return "", err
	}
	defer closeStore(store)

	key := reportFileKey(now, template.Code, ext)
	if err := store.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return key, nil
}

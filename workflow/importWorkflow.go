package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultImportMaxUploadMB   = 50
	defaultImportMaxErrorLines = 200
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file extension, expected csv, xls or xlsx")
	ErrFileTooLarge        = errors.New("file exceeds the upload size limit")
)

func ImportMaxUploadBytes() int64 {
	return int64(envInt("IMPORT_MAX_UPLOAD_MB", defaultImportMaxUploadMB)) << 20
}

func ImportMaxErrorLines() int {
	return envInt("IMPORT_MAX_ERROR_LINES", defaultImportMaxErrorLines)
}

// ImportFileTypeOf maps the upload's extension to the loader used for it.
func ImportFileTypeOf(fileName string) (models.ImportFileType, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return models.ImportFileTypeCSV, nil
	case ".xls", ".xlsx":
		return models.ImportFileTypeExcel, nil
	default:
		return "", fmt.Errorf("%w: %w", models.ErrValidation, ErrUnsupportedFileType)
	}
}

type ImportUpload struct {
	ScenarioId int
	FileName   string
	Size       int64
	Body       io.Reader
}

func importFileKey(now time.Time, fileName string) string {
	name := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == ':' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("imports/%s/%s_%s", now.UTC().Format("2006/01/02"), uuid.NewString()[:8], name)
}

// SubmitImport validates and stores an uploaded file, creates a pending task and
// publishes its job. Processing happens asynchronously.
func SubmitImport(ctx context.Context, tenantId string, upload ImportUpload) (*models.ImportTask, error) {
	logger := config.GetLogger()

	fileType, err := ImportFileTypeOf(upload.FileName)
	if err != nil {
		return nil, err
	}
	limit := ImportMaxUploadBytes()
	if upload.Size > limit {
		return nil, fmt.Errorf("%w: %w (%d MB)", models.ErrValidation, ErrFileTooLarge, limit>>20)
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %w (%d MB)", models.ErrValidation, ErrFileTooLarge, limit>>20)
	}

	store, err := utils.NewFileStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore(store)

	key := importFileKey(time.Now(), upload.FileName)
	if err := store.Save(ctx, key, bytes.NewReader(data)); err != nil {
		config.LogError(logger, "ImportWorkflow", "SubmitImport", "Save upload", key, err)
		return nil, err
	}

	task, err := models.CreateImportTask(ctx, tenantId, &models.NewImportTask{
		ScenarioId: upload.ScenarioId,
		FileKey:    key,
		FileName:   utils.TruncateString(upload.FileName, 255),
		FileType:   fileType,
	})
	if err != nil {
		_ = store.Delete(ctx, key)
		return nil, err
	}

	publishJob(ctx, config.JobKindImport, tenantId, task.ID)
	return task, nil
}

// ProcessImportTask claims the task and runs it. A task that is missing or no
// longer pending is left alone.
func ProcessImportTask(ctx context.Context, tenantId string, id int) error {
	release, err := utils.TenantLock(ctx, tenantId, fmt.Sprintf("import_task:%d", id), "ImportWorkflow", "ProcessImportTask")
	if err != nil {
		if errors.Is(err, utils.ErrorLockNotObtained) {
			return nil
		}
		return err
	}
	defer release()

	task, err := models.ClaimImportTask(ctx, tenantId, id)
	if err != nil || task == nil {
		return err
	}
	return RunImportTask(ctx, task)
}

// RunImportTask processes an already claimed task. Row errors are recorded on the
// task; only failures to persist task state are returned.
func RunImportTask(ctx context.Context, task *models.ImportTask) error {
	ctx, span := tracer.Start(ctx, "workflow.RunImportTask")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", task.TenantId),
		attribute.Int("task_id", task.ID),
		attribute.String("file_type", string(task.FileType)),
	)

	logger := config.GetLogger().WithFields(logrus.Fields{
		"module":    "ImportWorkflow",
		"tenant_id": task.TenantId,
		"task_id":   task.ID,
	})

	table, err := openImportTable(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		logger.WithError(err).Warn("import file could not be loaded")
		return models.FailImportTask(ctx, task, err)
	}
	columns, err := config.GetImportColumns()
	if err != nil {
		return models.FailImportTask(ctx, task, err)
	}

	if err := models.SetImportRowsTotal(ctx, task, len(table.Rows)); err != nil {
		return abortImportTask(ctx, task, err)
	}

	run := newImportRun(ctx, task, table, columns)
	var rowErrors []string
	for _, row := range table.Rows {
		if err := run.importRow(ctx, row); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: %s", row.Line, err.Error()))
			task.RowsFailed++
		} else {
			task.RowsSuccess++
		}
		task.RowsProcessed++
		if err := models.RecordImportProgress(ctx, task); err != nil {
			config.LogError(config.GetLogger(), "ImportWorkflow", "RunImportTask", "RecordImportProgress", task.ID, err)
			return abortImportTask(ctx, task, err)
		}
	}

	span.SetAttributes(
		attribute.Int("rows_success", task.RowsSuccess),
		attribute.Int("rows_failed", task.RowsFailed),
	)
	if err := models.FinishImportTask(ctx, task, rowErrors, ImportMaxErrorLines()); err != nil {
		return abortImportTask(ctx, task, err)
	}
	logger.WithFields(logrus.Fields{
		"status":       task.Status,
		"rows_total":   task.RowsTotal,
		"rows_success": task.RowsSuccess,
		"rows_failed":  task.RowsFailed,
	}).Info("import finished")
	return nil
}

// abortImportTask fails the task so it does not stay processing, then returns cause.
func abortImportTask(ctx context.Context, task *models.ImportTask, cause error) error {
	if err := models.FailImportTask(ctx, task, cause); err != nil {
		config.LogError(config.GetLogger(), "ImportWorkflow", "abortImportTask", "FailImportTask", task.ID, err)
	}
	return cause
}

func openImportTable(ctx context.Context, task *models.ImportTask) (*Table, error) {
	store, err := utils.NewFileStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore(store)

	body, err := store.Open(ctx, task.FileKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return LoadTable(body, task.FileType)
}

type importLayout struct {
	article    int
	period     int
	amount     int
	costCenter int
	department int
	project    int
	account    int
	comment    int

	articleLabel string
	periodLabel  string
	amountLabel  string
}

// columnLabel is the header as written in the file, or the first configured label
// when the column is absent.
func columnLabel(table *Table, index int, labels []string) string {
	if index >= 0 {
		return table.Header[index]
	}
	return labels[0]
}

func newImportLayout(table *Table, columns config.ImportColumns) importLayout {
	layout := importLayout{
		article:    table.ColumnIndex(columns.Article),
		period:     table.ColumnIndex(columns.Period),
		amount:     table.ColumnIndex(columns.Amount),
		costCenter: table.ColumnIndex(columns.CostCenter),
		department: table.ColumnIndex(columns.Department),
		project:    table.ColumnIndex(columns.Project),
		account:    table.ColumnIndex(columns.Account),
		comment:    table.ColumnIndex(columns.Comment),
	}
	layout.articleLabel = columnLabel(table, layout.article, columns.Article)
	layout.periodLabel = columnLabel(table, layout.period, columns.Period)
	layout.amountLabel = columnLabel(table, layout.amount, columns.Amount)
	return layout
}

type importRun struct {
	task    *models.ImportTask
	layout  importLayout
	loaders *dimensionLoaders
	periods map[string]int
}

func newImportRun(ctx context.Context, task *models.ImportTask, table *Table, columns config.ImportColumns) *importRun {
	run := &importRun{
		task:    task,
		layout:  newImportLayout(table, columns),
		loaders: newDimensionLoaders(task.TenantId),
		periods: map[string]int{},
	}
	prime(ctx, run.loaders.Articles, table, run.layout.article)
	prime(ctx, run.loaders.CostCenters, table, run.layout.costCenter)
	prime(ctx, run.loaders.Departments, table, run.layout.department)
	prime(ctx, run.loaders.Projects, table, run.layout.project)
	prime(ctx, run.loaders.Accounts, table, run.layout.account)
	return run
}

func requiredCell(row TableRow, index int, label string) (string, error) {
	value := row.Cell(index)
	if value == "" {
		return "", fmt.Errorf("column %q is required", label)
	}
	return value, nil
}

func (r *importRun) importRow(ctx context.Context, row TableRow) error {
	articleCode, err := requiredCell(row, r.layout.article, r.layout.articleLabel)
	if err != nil {
		return err
	}
	periodToken, err := requiredCell(row, r.layout.period, r.layout.periodLabel)
	if err != nil {
		return err
	}
	amountToken, err := requiredCell(row, r.layout.amount, r.layout.amountLabel)
	if err != nil {
		return err
	}
	amount, err := utils.ParseAmount(amountToken)
	if err != nil {
		return err
	}

	articleId, err := r.loaders.Articles.Load(ctx, articleCode)()
	if err != nil {
		return err
	}
	periodId, err := r.period(ctx, periodToken)
	if err != nil {
		return err
	}

	input := models.NewFinancialLine{
		ScenarioId: r.task.ScenarioId,
		PeriodId:   periodId,
		ArticleId:  articleId,
		Amount:     amount,
		Comment:    row.Cell(r.layout.comment),
		Source:     models.FinancialLineSourceImport,
	}
	if input.CostCenterId, err = lookupOptional(ctx, r.loaders.CostCenters, row.Cell(r.layout.costCenter)); err != nil {
		return err
	}
	if input.DepartmentId, err = lookupOptional(ctx, r.loaders.Departments, row.Cell(r.layout.department)); err != nil {
		return err
	}
	if input.ProjectId, err = lookupOptional(ctx, r.loaders.Projects, row.Cell(r.layout.project)); err != nil {
		return err
	}
	if input.AccountId, err = lookupOptional(ctx, r.loaders.Accounts, row.Cell(r.layout.account)); err != nil {
		return err
	}

	_, err = models.UpsertFinancialLine(ctx, r.task.TenantId, &input)
	return err
}

func (r *importRun) period(ctx context.Context, token string) (int, error) {
	if id, ok := r.periods[token]; ok {
		return id, nil
	}
	year, month, err := ParsePeriodToken(token)
	if err != nil {
		return 0, err
	}
	var quarter *int
	if month != nil {
		q := models.QuarterOfMonth(*month)
		quarter = &q
	}
	period, err := models.ResolveOrCreatePeriod(ctx, r.task.TenantId, year, quarter, month)
	if err != nil {
		return 0, err
	}
	r.periods[token] = period.ID
	return period.ID, nil
}

// ParsePeriodToken accepts "YYYY-MM" (month level) or "YYYY" (year level).
func ParsePeriodToken(token string) (int, *int, error) {
	token = strings.TrimSpace(token)
	if len(token) == 7 && token[4] == '-' && isDigits(token[:4]) && isDigits(token[5:]) {
		year, yErr := strconv.Atoi(token[:4])
		month, mErr := strconv.Atoi(token[5:])
		if yErr != nil || mErr != nil {
			return 0, nil, fmt.Errorf("%w: invalid period format %q", models.ErrInvalidPeriod, token)
		}
		if month < 1 || month > 12 {
			return 0, nil, fmt.Errorf("%w: invalid month %d", models.ErrInvalidPeriod, month)
		}
		return year, &month, nil
	}
	if len(token) == 4 && isDigits(token) {
		if year, err := strconv.Atoi(token); err == nil {
			return year, nil, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: invalid period format %q", models.ErrInvalidPeriod, token)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

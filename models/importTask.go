package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImportTask tracks one uploaded file through ingestion.
// Status only moves pending -> processing -> completed | failed.
type ImportTask struct {
	ID            int            `gorm:"primary_key" json:"id"`
	TenantId      string         `gorm:"size:36;not null;index:idx_import_tasks_tenant_status,priority:1" json:"tenant_id"`
	FileKey       string         `gorm:"size:500;not null" json:"file_key"`
	FileName      string         `gorm:"size:255;not null" json:"file_name"`
	FileType      ImportFileType `gorm:"size:10;not null" json:"file_type"`
	ScenarioId    int            `gorm:"not null;index" json:"scenario_id"`
	Status        ImportStatus   `gorm:"size:20;not null;default:pending;index:idx_import_tasks_tenant_status,priority:2" json:"status"`
	RowsTotal     int            `gorm:"not null;default:0" json:"rows_total"`
	RowsProcessed int            `gorm:"not null;default:0" json:"rows_processed"`
	RowsSuccess   int            `gorm:"not null;default:0" json:"rows_success"`
	RowsFailed    int            `gorm:"not null;default:0" json:"rows_failed"`
	ErrorLog      string         `gorm:"type:text" json:"error_log"`
	StartedAt     *time.Time     `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at"`
	CreatedBy     int            `json:"created_by"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t ImportTask) GetTenantId() string { return t.TenantId }

// Errors splits the stored error log into its messages.
func (t *ImportTask) Errors() []string {
	if t.ErrorLog == "" {
		return nil
	}
	return strings.Split(t.ErrorLog, "\n")
}

type NewImportTask struct {
	ScenarioId int            `json:"scenario_id" binding:"required"`
	FileKey    string         `json:"file_key" binding:"required,max=500"`
	FileName   string         `json:"file_name" binding:"required,max=255"`
	FileType   ImportFileType `json:"file_type" binding:"required,oneof=csv excel"`
}

func CreateImportTask(ctx context.Context, tenantId string, input *NewImportTask) (*ImportTask, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	db := dbFor(ctx)
	if err := utils.ValidateResourceId[Scenario](db, tenantId, input.ScenarioId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("%w: scenario %d", ErrCrossTenantReference, input.ScenarioId)
		}
		return nil, err
	}
	task := ImportTask{
		TenantId:   tenantId,
		FileKey:    input.FileKey,
		FileName:   input.FileName,
		FileType:   input.FileType,
		ScenarioId: input.ScenarioId,
		Status:     ImportStatusPending,
		CreatedBy:  utils.UserIdOrZero(ctx),
	}
	if err := db.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func GetImportTask(ctx context.Context, tenantId string, id int) (*ImportTask, error) {
	task, err := utils.FetchModel[ImportTask](dbFor(ctx), tenantId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrImportTaskNotFound, id)
		}
		return nil, err
	}
	return task, nil
}

func markImportProcessing(tx *gorm.DB, task *ImportTask, now time.Time) error {
	err := tx.Model(&ImportTask{}).
		Where("tenant_id = ? AND id = ? AND status = ?", task.TenantId, task.ID, ImportStatusPending).
		Updates(map[string]interface{}{"status": ImportStatusProcessing, "started_at": now}).Error
	if err != nil {
		return err
	}
	task.Status = ImportStatusProcessing
	task.StartedAt = &now
	return nil
}

// ClaimImportTask locks the task row and moves it to processing.
// A missing task or one that is no longer pending returns (nil, nil).
func ClaimImportTask(ctx context.Context, tenantId string, id int) (*ImportTask, error) {
	var claimed *ImportTask
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := utils.FetchModelForUpdate[ImportTask](tx, tenantId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil
			}
			return err
		}
		if task.Status != ImportStatusPending {
			return nil
		}
		if err := markImportProcessing(tx, task, time.Now().UTC()); err != nil {
			return err
		}
		claimed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimPendingImportTasks claims up to limit pending tasks of any tenant,
// skipping rows another worker holds.
func ClaimPendingImportTasks(ctx context.Context, limit int) ([]*ImportTask, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	var claimed []*ImportTask
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []*ImportTask
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", ImportStatusPending).
			Order("id ASC").
			Limit(limit).
			Find(&tasks).Error
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, task := range tasks {
			if err := markImportProcessing(tx, task, now); err != nil {
				return err
			}
		}
		claimed = tasks
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func SetImportRowsTotal(ctx context.Context, task *ImportTask, total int) error {
	task.RowsTotal = total
	return dbFor(ctx).Model(&ImportTask{}).
		Where("tenant_id = ? AND id = ?", task.TenantId, task.ID).
		Update("rows_total", total).Error
}

// RecordImportProgress writes the three counters in a single UPDATE so readers
// never observe success+failed > processed.
func RecordImportProgress(ctx context.Context, task *ImportTask) error {
	return dbFor(ctx).Model(&ImportTask{}).
		Where("tenant_id = ? AND id = ?", task.TenantId, task.ID).
		Updates(map[string]interface{}{
			"rows_processed": task.RowsProcessed,
			"rows_success":   task.RowsSuccess,
			"rows_failed":    task.RowsFailed,
		}).Error
}

// FinishImportTask sets completed when there are no row errors, failed otherwise,
// keeping the first maxErrors messages.
func FinishImportTask(ctx context.Context, task *ImportTask, rowErrors []string, maxErrors int) error {
	status := ImportStatusCompleted
	if len(rowErrors) > 0 {
		status = ImportStatusFailed
	}
	if maxErrors > 0 && len(rowErrors) > maxErrors {
		rowErrors = rowErrors[:maxErrors]
	}
	return finishImportTask(ctx, task, status, strings.Join(rowErrors, "\n"))
}

// FailImportTask records a task-level failure such as an unreadable file.
func FailImportTask(ctx context.Context, task *ImportTask, cause error) error {
	return finishImportTask(ctx, task, ImportStatusFailed, "critical error: "+cause.Error())
}

func finishImportTask(ctx context.Context, task *ImportTask, status ImportStatus, errorLog string) error {
	now := time.Now().UTC()
	err := dbFor(ctx).Model(&ImportTask{}).
		Where("tenant_id = ? AND id = ? AND status = ?", task.TenantId, task.ID, ImportStatusProcessing).
		Updates(map[string]interface{}{
			"status":         status,
			"error_log":      errorLog,
			"finished_at":    now,
			"rows_processed": task.RowsProcessed,
			"rows_success":   task.RowsSuccess,
			"rows_failed":    task.RowsFailed,
		}).Error
	if err != nil {
		return err
	}
	task.Status = status
	task.ErrorLog = errorLog
	task.FinishedAt = &now
	return nil
}

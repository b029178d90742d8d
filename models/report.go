package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ReportErrorMessageMax = 500
	ReportRetryBaseDelay  = 60 * time.Second
)

// ReportTemplateConfig is stored as JSON in report_templates.config.
type ReportTemplateConfig struct {
	IncludeDimensions bool `json:"include_dimensions"`
}

func (c ReportTemplateConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *ReportTemplateConfig) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*c = ReportTemplateConfig{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported report config type %T", value)
	}
	if len(data) == 0 {
		*c = ReportTemplateConfig{}
		return nil
	}
	return json.Unmarshal(data, c)
}

type ReportTemplate struct {
	ID          int                  `gorm:"primary_key" json:"id"`
	TenantId    string               `gorm:"size:36;not null;index:idx_report_templates_tenant_code,unique,priority:1" json:"tenant_id"`
	Name        string               `gorm:"size:255;not null" json:"name"`
	Code        string               `gorm:"size:50;not null;index:idx_report_templates_tenant_code,unique,priority:2" json:"code"`
	Description string               `gorm:"type:text" json:"description"`
	ReportType  ReportType           `gorm:"size:20;not null" json:"report_type"`
	Config      ReportTemplateConfig `gorm:"type:text" json:"config"`
	IsPublic    bool                 `gorm:"not null;default:false" json:"is_public"`
	CreatedBy   int                  `json:"created_by"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t ReportTemplate) GetTenantId() string { return t.TenantId }

type NewReportTemplate struct {
	Name        string               `json:"name" binding:"required,max=255"`
	Code        string               `json:"code" binding:"required,max=50"`
	Description string               `json:"description"`
	ReportType  ReportType           `json:"report_type" binding:"required"`
	Config      ReportTemplateConfig `json:"config"`
	IsPublic    bool                 `json:"is_public"`
}

// GeneratedReport is one generation run of a template.
// Status moves pending -> generating -> ready | failed; failed runs may be re-armed to pending.
type GeneratedReport struct {
	ID            int          `gorm:"primary_key" json:"id"`
	TenantId      string       `gorm:"size:36;not null;index:idx_generated_reports_dedupe,priority:1" json:"tenant_id"`
	TemplateId    int          `gorm:"not null;index:idx_generated_reports_dedupe,priority:2" json:"template_id"`
	Name          string       `gorm:"size:255;not null" json:"name"`
	ScenarioId    *int         `json:"scenario_id"`
	StartPeriodId *int         `json:"start_period_id"`
	EndPeriodId   *int         `json:"end_period_id"`
	FileKey       string       `gorm:"size:500" json:"file_key"`
	Status        ReportStatus `gorm:"size:20;not null;default:pending;index:idx_generated_reports_dedupe,priority:3" json:"status"`
	ErrorMessage  string       `gorm:"size:500" json:"error_message"`
	Attempts      int          `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time   `gorm:"index" json:"next_attempt_at"`
	CreatedBy     int          `json:"created_by"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r GeneratedReport) GetTenantId() string { return r.TenantId }

type NewGeneratedReport struct {
	TemplateId    int    `json:"template_id" binding:"required"`
	Name          string `json:"name" binding:"max=255"`
	ScenarioId    *int   `json:"scenario_id"`
	StartPeriodId *int   `json:"start_period_id"`
	EndPeriodId   *int   `json:"end_period_id"`
}

func CreateReportTemplate(ctx context.Context, tenantId string, input *NewReportTemplate) (*ReportTemplate, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.ReportType.IsValid() {
		return nil, fmt.Errorf("%w: invalid report type %q", ErrValidation, input.ReportType)
	}
	template := ReportTemplate{
		TenantId:    tenantId,
		Name:        input.Name,
		Code:        input.Code,
		Description: input.Description,
		ReportType:  input.ReportType,
		Config:      input.Config,
		IsPublic:    input.IsPublic,
		CreatedBy:   utils.UserIdOrZero(ctx),
	}
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkDimensionCode[ReportTemplate](tx, tenantId, input.Code); err != nil {
			return err
		}
		return tx.Create(&template).Error
	})
	if err != nil {
		if IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: report template %q", ErrDuplicateCode, input.Code)
		}
		return nil, err
	}
	return &template, nil
}

func GetReportTemplate(ctx context.Context, tenantId string, id int) (*ReportTemplate, error) {
	return GetResource[ReportTemplate](ctx, tenantId, id)
}

func ListReportTemplates(ctx context.Context, tenantId string) ([]*ReportTemplate, error) {
	return utils.FetchAllModels[ReportTemplate](dbFor(ctx), tenantId, "code")
}

// nullableEq renders "col IS NULL" or "col = ?" so nil ids compare equal.
func nullableEq(q *gorm.DB, column string, id *int) *gorm.DB {
	if id == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *id)
}

// CreateGeneratedReport admits a generation request. An identical request
// (template, scenario, start, end) that is still pending or generating yields
// ErrReportInProgress and no new row.
func CreateGeneratedReport(ctx context.Context, tenantId string, input *NewGeneratedReport) (*GeneratedReport, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	var report GeneratedReport
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		// the template row lock serializes identical requests
		template, err := utils.FetchModelForUpdate[ReportTemplate](tx, tenantId, input.TemplateId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return fmt.Errorf("%w: report template %d", ErrCrossTenantReference, input.TemplateId)
			}
			return err
		}
		if input.ScenarioId != nil {
			if err := utils.ValidateResourceId[Scenario](tx, tenantId, *input.ScenarioId); err != nil {
				return fmt.Errorf("%w: scenario %d", ErrCrossTenantReference, *input.ScenarioId)
			}
		}
		for _, pid := range []*int{input.StartPeriodId, input.EndPeriodId} {
			if pid == nil {
				continue
			}
			if err := utils.ValidateResourceId[Period](tx, tenantId, *pid); err != nil {
				return fmt.Errorf("%w: period %d", ErrCrossTenantReference, *pid)
			}
		}

		q := tx.Model(&GeneratedReport{}).
			Where("tenant_id = ? AND template_id = ? AND status IN ?", tenantId, input.TemplateId,
				[]ReportStatus{ReportStatusPending, ReportStatusGenerating})
		q = nullableEq(q, "scenario_id", input.ScenarioId)
		q = nullableEq(q, "start_period_id", input.StartPeriodId)
		q = nullableEq(q, "end_period_id", input.EndPeriodId)
		var inFlight int64
		if err := q.Count(&inFlight).Error; err != nil {
			return err
		}
		if inFlight > 0 {
			return ErrReportInProgress
		}

		name := input.Name
		if name == "" {
			name = fmt.Sprintf("%s %s", template.Name, time.Now().UTC().Format("2006-01-02 15:04"))
		}
		report = GeneratedReport{
			TenantId:      tenantId,
			TemplateId:    template.ID,
			Name:          name,
			ScenarioId:    input.ScenarioId,
			StartPeriodId: input.StartPeriodId,
			EndPeriodId:   input.EndPeriodId,
			Status:        ReportStatusPending,
			CreatedBy:     utils.UserIdOrZero(ctx),
		}
		return tx.Create(&report).Error
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func GetGeneratedReport(ctx context.Context, tenantId string, id int) (*GeneratedReport, error) {
	report, err := utils.FetchModel[GeneratedReport](dbFor(ctx), tenantId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrReportNotFound, id)
		}
		return nil, err
	}
	return report, nil
}

func markReportGenerating(tx *gorm.DB, report *GeneratedReport) error {
	err := tx.Model(&GeneratedReport{}).
		Where("tenant_id = ? AND id = ? AND status = ?", report.TenantId, report.ID, ReportStatusPending).
		Update("status", ReportStatusGenerating).Error
	if err != nil {
		return err
	}
	report.Status = ReportStatusGenerating
	return nil
}

// ClaimGeneratedReport locks the report and moves it to generating.
// Missing or non-pending reports return (nil, nil).
func ClaimGeneratedReport(ctx context.Context, tenantId string, id int) (*GeneratedReport, error) {
	var claimed *GeneratedReport
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := utils.FetchModelForUpdate[GeneratedReport](tx, tenantId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil
			}
			return err
		}
		if report.Status != ReportStatusPending {
			return nil
		}
		if err := markReportGenerating(tx, report); err != nil {
			return err
		}
		claimed = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func ClaimPendingReports(ctx context.Context, limit int) ([]*GeneratedReport, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	var claimed []*GeneratedReport
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		var reports []*GeneratedReport
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", ReportStatusPending).
			Order("id ASC").
			Limit(limit).
			Find(&reports).Error
		if err != nil {
			return err
		}
		for _, r := range reports {
			if err := markReportGenerating(tx, r); err != nil {
				return err
			}
		}
		claimed = reports
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func MarkReportReady(ctx context.Context, report *GeneratedReport, fileKey string) error {
	err := dbFor(ctx).Model(&GeneratedReport{}).
		Where("tenant_id = ? AND id = ?", report.TenantId, report.ID).
		Updates(map[string]interface{}{
			"status":          ReportStatusReady,
			"file_key":        fileKey,
			"error_message":   "",
			"next_attempt_at": nil,
		}).Error
	if err != nil {
		return err
	}
	report.Status = ReportStatusReady
	report.FileKey = fileKey
	report.ErrorMessage = ""
	report.NextAttemptAt = nil
	return nil
}

// ReportRetryDelay is 60s * 2^(attempts-1).
func ReportRetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		attempts = 16
	}
	return ReportRetryBaseDelay << (attempts - 1)
}

// MarkReportFailed stores the truncated cause, counts the attempt and schedules the next one.
func MarkReportFailed(ctx context.Context, report *GeneratedReport, cause error, now time.Time) error {
	message := utils.TruncateString(cause.Error(), ReportErrorMessageMax)
	attempts := report.Attempts + 1
	next := now.UTC().Add(ReportRetryDelay(attempts))
	err := dbFor(ctx).Model(&GeneratedReport{}).
		Where("tenant_id = ? AND id = ?", report.TenantId, report.ID).
		Updates(map[string]interface{}{
			"status":          ReportStatusFailed,
			"error_message":   message,
			"attempts":        attempts,
			"next_attempt_at": next,
		}).Error
	if err != nil {
		return err
	}
	report.Status = ReportStatusFailed
	report.ErrorMessage = message
	report.Attempts = attempts
	report.NextAttemptAt = &next
	return nil
}

// RearmFailedReports moves failed reports whose backoff elapsed back to pending
// while they have attempts left. Returns the number re-armed.
func RearmFailedReports(ctx context.Context, maxAttempts int, now time.Time) (int64, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	res := dbFor(ctx).Model(&GeneratedReport{}).
		Where("status = ? AND attempts < ? AND next_attempt_at <= ?", ReportStatusFailed, maxAttempts, now.UTC()).
		Update("status", ReportStatusPending)
	return res.RowsAffected, res.Error
}

package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FinancialLine is one fact: an amount for a scenario, period and article,
// optionally tagged with cost center, department, project and account.
//
// DimensionKey encodes all eight key parts with absent optional dimensions as 0,
// so the unique (tenant_id, dimension_key) index treats missing dimensions as
// equal values on every engine.
type FinancialLine struct {
	ID           int                 `gorm:"primary_key" json:"id"`
	TenantId     string              `gorm:"size:36;not null;index:idx_financial_lines_key,unique,priority:1;index:idx_financial_lines_tenant_period,priority:1" json:"tenant_id"`
	ScenarioId   int                 `gorm:"not null;index" json:"scenario_id"`
	PeriodId     int                 `gorm:"not null;index:idx_financial_lines_tenant_period,priority:2" json:"period_id"`
	ArticleId    int                 `gorm:"not null;index" json:"article_id"`
	CostCenterId *int                `gorm:"index" json:"cost_center_id"`
	DepartmentId *int                `gorm:"index" json:"department_id"`
	ProjectId    *int                `gorm:"index" json:"project_id"`
	AccountId    *int                `gorm:"index" json:"account_id"`
	Amount       decimal.Decimal     `gorm:"type:decimal(19,2);not null;default:0" json:"amount"`
	Comment      string              `gorm:"type:text" json:"comment"`
	Source       FinancialLineSource `gorm:"size:50;not null;default:manual" json:"source"`
	DimensionKey string              `gorm:"size:120;not null;index:idx_financial_lines_key,unique,priority:2" json:"-"`
	CreatedBy    int                 `json:"created_by"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFinancialLine struct {
	ScenarioId   int                 `json:"scenario_id" binding:"required"`
	PeriodId     int                 `json:"period_id" binding:"required"`
	ArticleId    int                 `json:"article_id" binding:"required"`
	CostCenterId *int                `json:"cost_center_id"`
	DepartmentId *int                `json:"department_id"`
	ProjectId    *int                `json:"project_id"`
	AccountId    *int                `json:"account_id"`
	Amount       decimal.Decimal     `json:"amount"`
	Comment      string              `json:"comment"`
	Source       FinancialLineSource `json:"source"`
}

type FinancialLineFilter struct {
	ScenarioId *int
	PeriodId   *int
	ArticleId  *int
	Limit      int
	Offset     int
}

func optionalId(id *int) int {
	if id == nil {
		return 0
	}
	return *id
}

func FinancialLineKey(scenarioId, periodId, articleId int, costCenterId, departmentId, projectId, accountId *int) string {
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%d",
		scenarioId, periodId, articleId,
		optionalId(costCenterId), optionalId(departmentId), optionalId(projectId), optionalId(accountId))
}

func (input *NewFinancialLine) key() string {
	return FinancialLineKey(input.ScenarioId, input.PeriodId, input.ArticleId,
		input.CostCenterId, input.DepartmentId, input.ProjectId, input.AccountId)
}

func (input *NewFinancialLine) validate(db *gorm.DB, tenantId string) error {
	if err := requireTenant(tenantId); err != nil {
		return err
	}
	if err := validateInput(input); err != nil {
		return err
	}
	check := func(err error, what string, id int) error {
		if err == nil {
			return nil
		}
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return fmt.Errorf("%w: %s %d", ErrCrossTenantReference, what, id)
		}
		return err
	}
	if err := check(utils.ValidateResourceId[Scenario](db, tenantId, input.ScenarioId), "scenario", input.ScenarioId); err != nil {
		return err
	}
	if err := check(utils.ValidateResourceId[BudgetArticle](db, tenantId, input.ArticleId), "article", input.ArticleId); err != nil {
		return err
	}
	if input.CostCenterId != nil {
		if err := check(utils.ValidateResourceId[CostCenter](db, tenantId, *input.CostCenterId), "cost center", *input.CostCenterId); err != nil {
			return err
		}
	}
	if input.DepartmentId != nil {
		if err := check(utils.ValidateResourceId[Department](db, tenantId, *input.DepartmentId), "department", *input.DepartmentId); err != nil {
			return err
		}
	}
	if input.ProjectId != nil {
		if err := check(utils.ValidateResourceId[Project](db, tenantId, *input.ProjectId), "project", *input.ProjectId); err != nil {
			return err
		}
	}
	if input.AccountId != nil {
		if err := check(utils.ValidateResourceId[Account](db, tenantId, *input.AccountId), "account", *input.AccountId); err != nil {
			return err
		}
	}
	return ensurePeriodWritable(db, tenantId, input.PeriodId)
}

func (input *NewFinancialLine) toLine(ctx context.Context, tenantId string, defaultSource FinancialLineSource) FinancialLine {
	source := input.Source
	if source == "" {
		source = defaultSource
	}
	return FinancialLine{
		TenantId:     tenantId,
		ScenarioId:   input.ScenarioId,
		PeriodId:     input.PeriodId,
		ArticleId:    input.ArticleId,
		CostCenterId: input.CostCenterId,
		DepartmentId: input.DepartmentId,
		ProjectId:    input.ProjectId,
		AccountId:    input.AccountId,
		Amount:       input.Amount.Round(2),
		Comment:      input.Comment,
		Source:       source,
		DimensionKey: input.key(),
		CreatedBy:    utils.UserIdOrZero(ctx),
	}
}

// CreateFinancialLine is the direct write path: an existing line with the same
// dimensions is rejected with ErrDuplicateFinancialLine, never overwritten.
func CreateFinancialLine(ctx context.Context, tenantId string, input *NewFinancialLine) (*FinancialLine, error) {
	var line FinancialLine
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		if err := input.validate(tx, tenantId); err != nil {
			return err
		}
		key := input.key()
		count, err := utils.ResourceCountWhere[FinancialLine](tx, tenantId, "dimension_key = ?", key)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateFinancialLine, key)
		}
		line = input.toLine(ctx, tenantId, FinancialLineSourceManual)
		if err := tx.Create(&line).Error; err != nil {
			if IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateFinancialLine, key)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// UpsertFinancialLine is the ingestion write path: last write wins on amount and source.
func UpsertFinancialLine(ctx context.Context, tenantId string, input *NewFinancialLine) (*FinancialLine, error) {
	db := dbFor(ctx)
	if err := input.validate(db, tenantId); err != nil {
		return nil, err
	}
	line := input.toLine(ctx, tenantId, FinancialLineSourceImport)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "dimension_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "source", "updated_at"}),
	}).Create(&line).Error
	if err != nil {
		return nil, err
	}

	var stored FinancialLine
	if err := db.Where("tenant_id = ? AND dimension_key = ?", tenantId, line.DimensionKey).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

type FinancialLineUpdate struct {
	Amount  *decimal.Decimal `json:"amount"`
	Comment *string          `json:"comment"`
}

func UpdateFinancialLine(ctx context.Context, tenantId string, id int, input *FinancialLineUpdate) (*FinancialLine, error) {
	var line *FinancialLine
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		line, err = utils.FetchModelForUpdate[FinancialLine](tx, tenantId, id)
		if err != nil {
			return err
		}
		if err := ensurePeriodWritable(tx, tenantId, line.PeriodId); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if input.Amount != nil {
			line.Amount = input.Amount.Round(2)
			updates["amount"] = line.Amount
		}
		if input.Comment != nil {
			line.Comment = *input.Comment
			updates["comment"] = line.Comment
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&FinancialLine{}).Where("tenant_id = ? AND id = ?", tenantId, id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func DeleteFinancialLine(ctx context.Context, tenantId string, id int) error {
	return dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := utils.FetchModelForUpdate[FinancialLine](tx, tenantId, id)
		if err != nil {
			return err
		}
		if err := ensurePeriodWritable(tx, tenantId, line.PeriodId); err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", tenantId, id).Delete(&FinancialLine{}).Error
	})
}

func ListFinancialLines(ctx context.Context, tenantId string, filter FinancialLineFilter) ([]*FinancialLine, error) {
	q := dbFor(ctx).Where("tenant_id = ?", tenantId)
	if filter.ScenarioId != nil {
		q = q.Where("scenario_id = ?", *filter.ScenarioId)
	}
	if filter.PeriodId != nil {
		q = q.Where("period_id = ?", *filter.PeriodId)
	}
	if filter.ArticleId != nil {
		q = q.Where("article_id = ?", *filter.ArticleId)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var results []*FinancialLine
	if err := q.Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

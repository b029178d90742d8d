package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
)

// Scenario groups facts into actual / budget / forecast / ... sets.
// Unique per tenant by (name, version).
type Scenario struct {
	ID             int          `gorm:"primary_key" json:"id"`
	TenantId       string       `gorm:"size:36;not null;index:idx_scenarios_name_version,unique,priority:1;index:idx_scenarios_tenant_type" json:"tenant_id"`
	Name           string       `gorm:"size:255;not null;index:idx_scenarios_name_version,unique,priority:2" json:"name"`
	Version        int          `gorm:"not null;default:1;index:idx_scenarios_name_version,unique,priority:3" json:"version"`
	Slug           string       `gorm:"size:255;index" json:"slug"`
	Type           ScenarioType `gorm:"size:20;not null;index:idx_scenarios_tenant_type" json:"type"`
	IsActive       *bool        `gorm:"not null;default:true" json:"is_active"`
	BaseScenarioId *int         `gorm:"index" json:"base_scenario_id"`
	StartPeriodId  *int         `json:"start_period_id"`
	EndPeriodId    *int         `json:"end_period_id"`
	CreatedBy      int          `json:"created_by"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s Scenario) GetTenantId() string { return s.TenantId }

type NewScenario struct {
	Name           string       `json:"name" binding:"required,max=255"`
	Type           ScenarioType `json:"type" binding:"required"`
	Version        int          `json:"version" binding:"omitempty,min=1"`
	BaseScenarioId *int         `json:"base_scenario_id"`
	StartPeriodId  *int         `json:"start_period_id"`
	EndPeriodId    *int         `json:"end_period_id"`
}

func (input *NewScenario) validate(db *gorm.DB, tenantId string) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if !input.Type.IsValid() {
		return fmt.Errorf("%w: invalid scenario type %q", ErrValidation, input.Type)
	}
	if input.BaseScenarioId != nil {
		if err := utils.ValidateResourceId[Scenario](db, tenantId, *input.BaseScenarioId); err != nil {
			return fmt.Errorf("%w: base scenario %d", ErrCrossTenantReference, *input.BaseScenarioId)
		}
	}
	var start, end *Period
	var err error
	if input.StartPeriodId != nil {
		if start, err = utils.FetchModel[Period](db, tenantId, *input.StartPeriodId); err != nil {
			return fmt.Errorf("%w: start period %d", ErrCrossTenantReference, *input.StartPeriodId)
		}
	}
	if input.EndPeriodId != nil {
		if end, err = utils.FetchModel[Period](db, tenantId, *input.EndPeriodId); err != nil {
			return fmt.Errorf("%w: end period %d", ErrCrossTenantReference, *input.EndPeriodId)
		}
	}
	if start != nil && end != nil && start.StartIndex > end.EndIndex {
		return fmt.Errorf("%w: start period %s is after end period %s", ErrValidation, start.PeriodKey, end.PeriodKey)
	}
	return nil
}

func CreateScenario(ctx context.Context, tenantId string, input *NewScenario) (*Scenario, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, err
	}
	var scenario Scenario
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		if err := input.validate(tx, tenantId); err != nil {
			return err
		}
		version := input.Version
		if version == 0 {
			version = 1
		}
		count, err := utils.ResourceCountWhere[Scenario](tx, tenantId, "name = ? AND version = ?", input.Name, version)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: scenario %q v%d", ErrDuplicateCode, input.Name, version)
		}
		slug, err := uniqueSlug[Scenario](tx, tenantId, input.Name, "scenario")
		if err != nil {
			return err
		}
		active := true
		scenario = Scenario{
			TenantId:       tenantId,
			Name:           input.Name,
			Version:        version,
			Slug:           slug,
			Type:           input.Type,
			IsActive:       &active,
			BaseScenarioId: input.BaseScenarioId,
			StartPeriodId:  input.StartPeriodId,
			EndPeriodId:    input.EndPeriodId,
			CreatedBy:      utils.UserIdOrZero(ctx),
		}
		if err := tx.Create(&scenario).Error; err != nil {
			if IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: scenario %q v%d", ErrDuplicateCode, input.Name, version)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &scenario, nil
}

// DeriveScenarioVersion creates the next version of a scenario (same name and
// type, based on it). Used for re-forecasts and adjustments.
func DeriveScenarioVersion(ctx context.Context, tenantId string, baseId int) (*Scenario, error) {
	var derived Scenario
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		base, err := utils.FetchModelForUpdate[Scenario](tx, tenantId, baseId)
		if err != nil {
			return err
		}
		var maxVersion int
		if err := tx.Model(&Scenario{}).
			Where("tenant_id = ? AND name = ?", tenantId, base.Name).
			Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}
		slug, err := uniqueSlug[Scenario](tx, tenantId, base.Name+" v"+strconv.Itoa(maxVersion+1), "scenario")
		if err != nil {
			return err
		}
		active := true
		derived = Scenario{
			TenantId:       tenantId,
			Name:           base.Name,
			Version:        maxVersion + 1,
			Slug:           slug,
			Type:           base.Type,
			IsActive:       &active,
			BaseScenarioId: &base.ID,
			StartPeriodId:  base.StartPeriodId,
			EndPeriodId:    base.EndPeriodId,
			CreatedBy:      utils.UserIdOrZero(ctx),
		}
		return tx.Create(&derived).Error
	})
	if err != nil {
		return nil, err
	}
	return &derived, nil
}

// GetScenario reads through the redis cache (may return ErrorRecordNotFound).
func GetScenario(ctx context.Context, tenantId string, id int) (*Scenario, error) {
	return GetResource[Scenario](ctx, tenantId, id)
}

func GetScenarioBySlug(ctx context.Context, tenantId string, slug string) (*Scenario, error) {
	var result Scenario
	err := dbFor(ctx).Where("tenant_id = ? AND slug = ?", tenantId, slug).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func ListScenarios(ctx context.Context, tenantId string, activeOnly bool) ([]*Scenario, error) {
	var results []*Scenario
	q := dbFor(ctx).Where("tenant_id = ?", tenantId)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveScenario(ctx context.Context, tenantId string, id int, isActive bool) (*Scenario, error) {
	scenario, err := utils.FetchModel[Scenario](dbFor(ctx), tenantId, id)
	if err != nil {
		return nil, err
	}
	if err := dbFor(ctx).Model(&Scenario{}).Where("tenant_id = ? AND id = ?", tenantId, id).Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	scenario.IsActive = &isActive
	if err := RemoveResourceCache[Scenario](ctx, id); err != nil {
		return nil, err
	}
	return scenario, nil
}

package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
)

// Company is the tenant. Every other record carries its ID as tenant_id.
type Company struct {
	ID                   string    `gorm:"primary_key;size:36" json:"id"`
	Name                 string    `gorm:"index;size:255;not null" json:"name"`
	Slug                 string    `gorm:"size:255;uniqueIndex" json:"slug"`
	TaxId                string    `gorm:"size:12" json:"tax_id"`
	CurrencyDefault      string    `gorm:"size:3;not null;default:RUB" json:"currency_default"`
	FiscalYearStartMonth int       `gorm:"not null;default:1" json:"fiscal_year_start_month"`
	IsActive             *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name                 string `json:"name" binding:"required,max=255"`
	TaxId                string `json:"tax_id" binding:"omitempty,min=10,max=12"`
	CurrencyDefault      string `json:"currency_default" binding:"omitempty,len=3"`
	FiscalYearStartMonth int    `json:"fiscal_year_start_month" binding:"omitempty,min=1,max=12"`
}

func (c *Company) Active() bool {
	return c.IsActive == nil || *c.IsActive
}

func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	active := true
	company := Company{
		ID:                   uuid.NewString(),
		Name:                 input.Name,
		TaxId:                input.TaxId,
		CurrencyDefault:      input.CurrencyDefault,
		FiscalYearStartMonth: input.FiscalYearStartMonth,
		IsActive:             &active,
	}
	if company.CurrencyDefault == "" {
		company.CurrencyDefault = "RUB"
	}
	if company.FiscalYearStartMonth == 0 {
		company.FiscalYearStartMonth = 1
	}

	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		base := slugify(input.Name, "company")
		slug := base
		for i := 1; ; i++ {
			var count int64
			if err := tx.Model(&Company{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				break
			}
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		company.Slug = slug
		return tx.Create(&company).Error
	})
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// GetCompanyById reads through the redis cache.
// (may return ErrorRecordNotFound)
func GetCompanyById(ctx context.Context, id string) (*Company, error) {
	if id == "" {
		return nil, utils.ErrorRecordNotFound
	}
	cached, err := utils.RetrieveRedis[Company](ctx, id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	var result Company
	if err := dbFor(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := utils.StoreRedis(ctx, &result, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetActiveCompany is the tenant check every request and job goes through.
func GetActiveCompany(ctx context.Context, id string) (*Company, error) {
	company, err := GetCompanyById(ctx, id)
	if err != nil {
		return nil, err
	}
	if !company.Active() {
		return nil, ErrTenantInactive
	}
	return company, nil
}

func SetCompanyActive(ctx context.Context, id string, active bool) (*Company, error) {
	company, err := GetCompanyById(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := dbFor(ctx).Model(&Company{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	company.IsActive = &active
	if err := utils.RemoveRedisItem[Company](ctx, id); err != nil {
		return nil, err
	}
	return company, nil
}

func ListCompanies(ctx context.Context) ([]*Company, error) {
	var results []*Company
	if err := dbFor(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

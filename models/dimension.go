package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
)

type DimensionKind string

const (
	DimensionAccounts    DimensionKind = "accounts"
	DimensionArticles    DimensionKind = "articles"
	DimensionCostCenters DimensionKind = "cost-centers"
	DimensionDepartments DimensionKind = "departments"
	DimensionProjects    DimensionKind = "projects"
)

func (k DimensionKind) IsValid() bool {
	switch k {
	case DimensionAccounts, DimensionArticles, DimensionCostCenters, DimensionDepartments, DimensionProjects:
		return true
	}
	return false
}

// Account is a chart-of-accounts entry.
type Account struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:36;not null;index:idx_accounts_tenant_code,unique,priority:1" json:"tenant_id"`
	Code      string    `gorm:"size:20;not null;index:idx_accounts_tenant_code,unique,priority:2" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"size:255;index" json:"slug"`
	ParentId  *int      `gorm:"index" json:"parent_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BudgetArticle is a revenue / expense line of the budget; articles form a tree.
type BudgetArticle struct {
	ID          int         `gorm:"primary_key" json:"id"`
	TenantId    string      `gorm:"size:36;not null;index:idx_budget_articles_tenant_code,unique,priority:1;index:idx_budget_articles_tenant_path,unique,priority:1" json:"tenant_id"`
	Code        string      `gorm:"size:50;not null;index:idx_budget_articles_tenant_code,unique,priority:2" json:"code"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	Slug        string      `gorm:"size:255;index" json:"slug"`
	ArticleType ArticleType `gorm:"size:20;not null" json:"article_type"`
	Path        string      `gorm:"size:255;not null;index:idx_budget_articles_tenant_path,unique,priority:2" json:"path"`
	Depth       int         `gorm:"not null" json:"depth"`
	NumChild    int         `gorm:"not null;default:0" json:"numchild"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a BudgetArticle) GetTenantId() string { return a.TenantId }
func (a BudgetArticle) GetId() int          { return a.ID }
func (a BudgetArticle) GetPath() string     { return a.Path }
func (a BudgetArticle) GetDepth() int       { return a.Depth }

func (a *BudgetArticle) setTreePosition(path string, depth int) {
	a.Path = path
	a.Depth = depth
}

type CostCenter struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:36;not null;index:idx_cost_centers_tenant_code,unique,priority:1" json:"tenant_id"`
	Code      string    `gorm:"size:20;not null;index:idx_cost_centers_tenant_code,unique,priority:2" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"size:255;index" json:"slug"`
	ParentId  *int      `gorm:"index" json:"parent_id"`
	ManagerId *int      `json:"manager_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Department struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:36;not null;index:idx_departments_tenant_code,unique,priority:1;index:idx_departments_tenant_path,unique,priority:1" json:"tenant_id"`
	Code      string    `gorm:"size:20;not null;index:idx_departments_tenant_code,unique,priority:2" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"size:255;index" json:"slug"`
	HeadId    *int      `json:"head_id"`
	Path      string    `gorm:"size:255;not null;index:idx_departments_tenant_path,unique,priority:2" json:"path"`
	Depth     int       `gorm:"not null" json:"depth"`
	NumChild  int       `gorm:"not null;default:0" json:"numchild"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d Department) GetTenantId() string { return d.TenantId }
func (d Department) GetId() int          { return d.ID }
func (d Department) GetPath() string     { return d.Path }
func (d Department) GetDepth() int       { return d.Depth }

func (d *Department) setTreePosition(path string, depth int) {
	d.Path = path
	d.Depth = depth
}

type Project struct {
	ID        int        `gorm:"primary_key" json:"id"`
	TenantId  string     `gorm:"size:36;not null;index:idx_projects_tenant_code,unique,priority:1" json:"tenant_id"`
	Code      string     `gorm:"size:20;not null;index:idx_projects_tenant_code,unique,priority:2" json:"code"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Slug      string     `gorm:"size:255;index" json:"slug"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	ManagerId *int       `json:"manager_id"`
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewDimension is the create input shared by every dimension kind.
// Fields that do not apply to a kind are ignored.
type NewDimension struct {
	Code        string      `json:"code" binding:"required,max=50"`
	Name        string      `json:"name" binding:"required,max=255"`
	ParentId    *int        `json:"parent_id"`
	ArticleType ArticleType `json:"article_type"`
	ManagerId   *int        `json:"manager_id"`
	StartDate   *time.Time  `json:"start_date"`
	EndDate     *time.Time  `json:"end_date"`
}

func checkDimensionCode[T any](tx *gorm.DB, tenantId string, code string) error {
	count, err := utils.ResourceCountWhere[T](tx, tenantId, "code = ?", code)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s %q", ErrDuplicateCode, utils.GetTypeName[T](), code)
	}
	return nil
}

func checkDimensionParent[T any](tx *gorm.DB, tenantId string, parentId *int) error {
	if parentId == nil {
		return nil
	}
	if err := utils.ValidateResourceId[T](tx, tenantId, *parentId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return fmt.Errorf("%w: parent %s %d", ErrCrossTenantReference, utils.GetTypeName[T](), *parentId)
		}
		return err
	}
	return nil
}

// createDimension runs the shared checks, then build fills the record inside the transaction.
func createDimension[T any](ctx context.Context, tenantId string, input *NewDimension, build func(tx *gorm.DB, slug string) (*T, error)) (*T, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	var result *T
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkDimensionCode[T](tx, tenantId, input.Code); err != nil {
			return err
		}
		slug, err := uniqueSlug[T](tx, tenantId, input.Name, input.Code)
		if err != nil {
			return err
		}
		result, err = build(tx, slug)
		return err
	})
	if err != nil {
		if IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s %q", ErrDuplicateCode, utils.GetTypeName[T](), input.Code)
		}
		return nil, err
	}
	return result, nil
}

func CreateAccount(ctx context.Context, tenantId string, input *NewDimension) (*Account, error) {
	return createDimension(ctx, tenantId, input, func(tx *gorm.DB, slug string) (*Account, error) {
		if err := checkDimensionParent[Account](tx, tenantId, input.ParentId); err != nil {
			return nil, err
		}
		active := true
		account := Account{TenantId: tenantId, Code: input.Code, Name: input.Name, Slug: slug, ParentId: input.ParentId, IsActive: &active}
		return &account, tx.Create(&account).Error
	})
}

func CreateCostCenter(ctx context.Context, tenantId string, input *NewDimension) (*CostCenter, error) {
	return createDimension(ctx, tenantId, input, func(tx *gorm.DB, slug string) (*CostCenter, error) {
		if err := checkDimensionParent[CostCenter](tx, tenantId, input.ParentId); err != nil {
			return nil, err
		}
		active := true
		cc := CostCenter{TenantId: tenantId, Code: input.Code, Name: input.Name, Slug: slug, ParentId: input.ParentId, ManagerId: input.ManagerId, IsActive: &active}
		return &cc, tx.Create(&cc).Error
	})
}

func CreateProject(ctx context.Context, tenantId string, input *NewDimension) (*Project, error) {
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, fmt.Errorf("%w: project end date is before start date", ErrValidation)
	}
	return createDimension(ctx, tenantId, input, func(tx *gorm.DB, slug string) (*Project, error) {
		active := true
		project := Project{TenantId: tenantId, Code: input.Code, Name: input.Name, Slug: slug,
			StartDate: input.StartDate, EndDate: input.EndDate, ManagerId: input.ManagerId, IsActive: &active}
		return &project, tx.Create(&project).Error
	})
}

// CreateBudgetArticle adds a root (ParentId nil) or the last child of ParentId.
func CreateBudgetArticle(ctx context.Context, tenantId string, input *NewDimension) (*BudgetArticle, error) {
	if input.ArticleType == "" {
		input.ArticleType = ArticleTypeExpense
	}
	if !input.ArticleType.IsValid() {
		return nil, fmt.Errorf("%w: invalid article type %q", ErrValidation, input.ArticleType)
	}
	if input.ParentId == nil {
		release, err := lockTreeTenant(ctx, tenantId, "articles")
		if err != nil {
			return nil, err
		}
		defer release()
	}
	return createDimension(ctx, tenantId, input, func(tx *gorm.DB, slug string) (*BudgetArticle, error) {
		active := true
		article := BudgetArticle{TenantId: tenantId, Code: input.Code, Name: input.Name, Slug: slug,
			ArticleType: input.ArticleType, IsActive: &active}
		if err := insertTreeNode[BudgetArticle](tx, tenantId, input.ParentId, &article); err != nil {
			return nil, err
		}
		return &article, nil
	})
}

func CreateDepartment(ctx context.Context, tenantId string, input *NewDimension) (*Department, error) {
	if input.ParentId == nil {
		release, err := lockTreeTenant(ctx, tenantId, "departments")
		if err != nil {
			return nil, err
		}
		defer release()
	}
	return createDimension(ctx, tenantId, input, func(tx *gorm.DB, slug string) (*Department, error) {
		dept := Department{TenantId: tenantId, Code: input.Code, Name: input.Name, Slug: slug, HeadId: input.ManagerId}
		if err := insertTreeNode[Department](tx, tenantId, input.ParentId, &dept); err != nil {
			return nil, err
		}
		return &dept, nil
	})
}

// CreateDimension dispatches on kind; used by the HTTP layer.
func CreateDimension(ctx context.Context, tenantId string, kind DimensionKind, input *NewDimension) (any, error) {
	switch kind {
	case DimensionAccounts:
		return CreateAccount(ctx, tenantId, input)
	case DimensionArticles:
		return CreateBudgetArticle(ctx, tenantId, input)
	case DimensionCostCenters:
		return CreateCostCenter(ctx, tenantId, input)
	case DimensionDepartments:
		return CreateDepartment(ctx, tenantId, input)
	case DimensionProjects:
		return CreateProject(ctx, tenantId, input)
	default:
		return nil, fmt.Errorf("%w: unknown dimension kind %q", ErrValidation, kind)
	}
}

// ListDimensions returns the rows of kind; trees come in path order, the rest by code.
func ListDimensions(ctx context.Context, tenantId string, kind DimensionKind) (any, error) {
	db := dbFor(ctx)
	switch kind {
	case DimensionAccounts:
		return utils.FetchAllModels[Account](db, tenantId, "code")
	case DimensionArticles:
		return utils.FetchAllModels[BudgetArticle](db, tenantId, "path")
	case DimensionCostCenters:
		return utils.FetchAllModels[CostCenter](db, tenantId, "code")
	case DimensionDepartments:
		return utils.FetchAllModels[Department](db, tenantId, "path")
	case DimensionProjects:
		return utils.FetchAllModels[Project](db, tenantId, "code")
	default:
		return nil, fmt.Errorf("%w: unknown dimension kind %q", ErrValidation, kind)
	}
}

// GetDimensionByCode (may return ErrorRecordNotFound)
func GetDimensionByCode[T any](ctx context.Context, tenantId string, code string) (*T, error) {
	return utils.FetchModelByCode[T](dbFor(ctx), tenantId, code)
}

// GetDimension looks a row of kind up by its code.
func GetDimension(ctx context.Context, tenantId string, kind DimensionKind, code string) (any, error) {
	switch kind {
	case DimensionAccounts:
		return GetDimensionByCode[Account](ctx, tenantId, code)
	case DimensionArticles:
		return GetDimensionByCode[BudgetArticle](ctx, tenantId, code)
	case DimensionCostCenters:
		return GetDimensionByCode[CostCenter](ctx, tenantId, code)
	case DimensionDepartments:
		return GetDimensionByCode[Department](ctx, tenantId, code)
	case DimensionProjects:
		return GetDimensionByCode[Project](ctx, tenantId, code)
	default:
		return nil, fmt.Errorf("%w: unknown dimension kind %q", ErrValidation, kind)
	}
}

// ResolveDimensionCodes maps the given codes to ids; unknown codes are absent from the result.
func ResolveDimensionCodes[T any](ctx context.Context, tenantId string, codes []string) (map[string]int, error) {
	result := make(map[string]int, len(codes))
	codes = utils.UniqueSlice(codes)
	if len(codes) == 0 {
		return result, nil
	}
	var rows []struct {
		ID   int
		Code string
	}
	err := dbFor(ctx).Model(new(T)).
		Select("id, code").
		Where("tenant_id = ? AND code IN ?", tenantId, codes).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.Code] = r.ID
	}
	return result, nil
}

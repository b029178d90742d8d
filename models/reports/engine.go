package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatusNotImplemented = "not_implemented"
	StatusError          = "error"

	// UngroupedLabel is the P&L group of top-level articles.
	UngroupedLabel = "Без группы"
)

// Row is one output line: column name -> value. Amount columns hold decimal.Decimal.
type Row map[string]any

type ReportQuery struct {
	ReportType        models.ReportType `json:"report_type"`
	ScenarioId        *int              `json:"scenario_id"`
	ScenarioSlug      string            `json:"scenario_slug"`
	StartPeriodId     *int              `json:"start_period_id"`
	EndPeriodId       *int              `json:"end_period_id"`
	IncludeDimensions bool              `json:"include_dimensions"`
}

// columnOrder fixes the rendering order of every column the engine emits.
var columnOrder = []string{
	"article_code", "article_name", "article_type", "parent_article", "group",
	"cost_center", "department", "project",
	"total_amount", "plan", "fact", "deviation", "deviation_percent",
	"status", "message",
}

type aggregateRow struct {
	ArticleCode string
	ArticleName string
	ArticleType string
	ArticlePath string
	CostCenter  *string
	Department  *string
	Project     *string
	TotalAmount decimal.Decimal
	PlanAmount  decimal.Decimal
	FactAmount  decimal.Decimal
}

func sentinelRow(status string, message string) []Row {
	return []Row{{"status": status, "message": message}}
}

// GetFinancialReportData aggregates the tenant's financial lines for the report type.
// balance and cashflow yield a single not_implemented row, unknown types a single error row.
func GetFinancialReportData(ctx context.Context, tenantId string, q ReportQuery) ([]Row, error) {
	started := time.Now()
	defer logSlowReport(ctx, "financial_report", started, map[string]any{"report_type": q.ReportType})

	switch q.ReportType {
	case models.ReportTypeBalance:
		return sentinelRow(StatusNotImplemented, "balance report is not implemented"), nil
	case models.ReportTypeCashflow:
		return sentinelRow(StatusNotImplemented, "cashflow report is not implemented"), nil
	case models.ReportTypePnL, models.ReportTypeCustom:
		return aggregate(ctx, tenantId, q, true)
	case models.ReportTypePlanFact:
		return aggregate(ctx, tenantId, q, false)
	default:
		return sentinelRow(StatusError, fmt.Sprintf("report type %q is not supported", q.ReportType)), nil
	}
}

// DeviationPercent is (fact - plan) / |plan| * 100 rounded to 2 places, and 0 when plan is 0.
func DeviationPercent(fact, plan decimal.Decimal) decimal.Decimal {
	if plan.IsZero() {
		return decimal.Zero
	}
	return fact.Sub(plan).Div(plan.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
}

func aggregate(ctx context.Context, tenantId string, q ReportQuery, withArticleMeta bool) ([]Row, error) {
	db := config.GetDB().WithContext(ctx)

	scenarioId, err := resolveScenario(ctx, tenantId, q)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := []interface{}{
		[]string{string(models.ScenarioTypeBudget), string(models.ScenarioTypePlan)},
		string(models.ScenarioTypeActual),
	}
	sb.WriteString(`
SELECT
    a.code AS article_code,
    a.name AS article_name,
    a.article_type AS article_type,
    a.path AS article_path,`)
	if q.IncludeDimensions {
		sb.WriteString(`
    cc.name AS cost_center,
    d.name AS department,
    pj.name AS project,`)
	}
	sb.WriteString(`
    COALESCE(SUM(fl.amount), 0) AS total_amount,
    COALESCE(SUM(CASE WHEN s.type IN ? THEN fl.amount ELSE 0 END), 0) AS plan_amount,
    COALESCE(SUM(CASE WHEN s.type = ? THEN fl.amount ELSE 0 END), 0) AS fact_amount
FROM financial_lines AS fl
JOIN budget_articles AS a ON a.id = fl.article_id
JOIN scenarios AS s ON s.id = fl.scenario_id
JOIN periods AS p ON p.id = fl.period_id`)
	if q.IncludeDimensions {
		sb.WriteString(`
LEFT JOIN cost_centers AS cc ON cc.id = fl.cost_center_id
LEFT JOIN departments AS d ON d.id = fl.department_id
LEFT JOIN projects AS pj ON pj.id = fl.project_id`)
	}
	sb.WriteString(`
WHERE fl.tenant_id = ?`)
	args = append(args, tenantId)

	periodSQL, periodArgs, err := periodFilter(db, tenantId, q.StartPeriodId, q.EndPeriodId)
	if err != nil {
		return nil, err
	}
	sb.WriteString(periodSQL)
	args = append(args, periodArgs...)

	if scenarioId != nil {
		sb.WriteString(`
    AND fl.scenario_id = ?`)
		args = append(args, *scenarioId)
	}

	sb.WriteString(`
GROUP BY a.code, a.name, a.article_type, a.path`)
	if q.IncludeDimensions {
		sb.WriteString(`, cc.name, d.name, pj.name`)
	}
	sb.WriteString(`
ORDER BY a.code ASC`)
	if q.IncludeDimensions {
		sb.WriteString(`, cc.name, d.name, pj.name`)
	}

	var records []aggregateRow
	if err := db.Raw(sb.String(), args...).Scan(&records).Error; err != nil {
		return nil, err
	}

	parents, err := parentArticles(db, tenantId, records)
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0, len(records))
	for _, r := range records {
		// sqlite sums NUMERIC columns as floats
		r.TotalAmount = r.TotalAmount.Round(2)
		r.PlanAmount = r.PlanAmount.Round(2)
		r.FactAmount = r.FactAmount.Round(2)
		deviation := r.FactAmount.Sub(r.PlanAmount)
		row := Row{
			"article_code":      r.ArticleCode,
			"article_name":      r.ArticleName,
			"parent_article":    "",
			"total_amount":      r.TotalAmount,
			"plan":              r.PlanAmount,
			"fact":              r.FactAmount,
			"deviation":         deviation,
			"deviation_percent": DeviationPercent(r.FactAmount, r.PlanAmount),
		}
		parent, hasParent := parents[parentPath(r.ArticlePath)]
		if hasParent {
			row["parent_article"] = parent.Code
		}
		if withArticleMeta {
			row["article_type"] = r.ArticleType
			row["group"] = UngroupedLabel
			if hasParent {
				row["group"] = parent.Name
			}
		}
		if q.IncludeDimensions {
			row["cost_center"] = utils.DereferencePtr(r.CostCenter, "")
			row["department"] = utils.DereferencePtr(r.Department, "")
			row["project"] = utils.DereferencePtr(r.Project, "")
		}
		result = append(result, row)
	}
	return result, nil
}

func resolveScenario(ctx context.Context, tenantId string, q ReportQuery) (*int, error) {
	if q.ScenarioId != nil {
		return q.ScenarioId, nil
	}
	if q.ScenarioSlug == "" {
		return nil, nil
	}
	scenario, err := models.GetScenarioBySlug(ctx, tenantId, q.ScenarioSlug)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", q.ScenarioSlug, err)
	}
	return &scenario.ID, nil
}

// periodFilter: both bounds select periods contained in [start, end]; a single
// bound is an exact period match.
func periodFilter(db *gorm.DB, tenantId string, startId *int, endId *int) (string, []interface{}, error) {
	switch {
	case startId != nil && endId != nil:
		start, err := fetchPeriod(db, tenantId, *startId)
		if err != nil {
			return "", nil, err
		}
		end, err := fetchPeriod(db, tenantId, *endId)
		if err != nil {
			return "", nil, err
		}
		return `
    AND p.start_index >= ? AND p.end_index <= ?`, []interface{}{start.StartIndex, end.EndIndex}, nil
	case startId != nil:
		return `
    AND fl.period_id = ?`, []interface{}{*startId}, nil
	case endId != nil:
		return `
    AND fl.period_id = ?`, []interface{}{*endId}, nil
	default:
		return "", nil, nil
	}
}

func fetchPeriod(db *gorm.DB, tenantId string, id int) (*models.Period, error) {
	period, err := utils.FetchModel[models.Period](db, tenantId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("%w: period %d", models.ErrCrossTenantReference, id)
		}
		return nil, err
	}
	return period, nil
}

func parentPath(path string) string {
	const step = 4
	if len(path) <= step {
		return ""
	}
	return path[:len(path)-step]
}

func parentArticles(db *gorm.DB, tenantId string, records []aggregateRow) (map[string]*models.BudgetArticle, error) {
	paths := make([]string, 0, len(records))
	for _, r := range records {
		if p := parentPath(r.ArticlePath); p != "" {
			paths = append(paths, p)
		}
	}
	result := map[string]*models.BudgetArticle{}
	paths = utils.UniqueSlice(paths)
	if len(paths) == 0 {
		return result, nil
	}
	var parents []*models.BudgetArticle
	if err := db.Where("tenant_id = ? AND path IN ?", tenantId, paths).Find(&parents).Error; err != nil {
		return nil, err
	}
	for _, p := range parents {
		result[p.Path] = p
	}
	return result, nil
}

// ColumnsOf returns the columns present in rows, known columns first in a fixed
// order, unknown ones alphabetically after them.
func ColumnsOf(rows []Row) []string {
	present := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	columns := make([]string, 0, len(present))
	for _, c := range columnOrder {
		if present[c] {
			columns = append(columns, c)
			delete(present, c)
		}
	}
	extra := make([]string, 0, len(present))
	for c := range present {
		extra = append(extra, c)
	}
	sort.Strings(extra)
	return append(columns, extra...)
}

package reports

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type reportFixture struct {
	tenantId string
	actual   *models.Scenario
	budget   *models.Scenario
	jan      *models.Period
}

func setupReportDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports.db")
	conn, err := config.OpenDatabase(config.DriverSQLite, path+"?_foreign_keys=1&_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, models.MigrateTableOn(conn))
	config.UseDatabase(conn, config.DriverSQLite)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
}

func newReportFixture(t *testing.T, name string) reportFixture {
	t.Helper()
	ctx := context.Background()
	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: name})
	require.NoError(t, err)
	actual, err := models.CreateScenario(ctx, company.ID, &models.NewScenario{Name: "Fact", Type: models.ScenarioTypeActual})
	require.NoError(t, err)
	budget, err := models.CreateScenario(ctx, company.ID, &models.NewScenario{Name: "Budget", Type: models.ScenarioTypeBudget})
	require.NoError(t, err)
	jan := month(t, company.ID, 2025, 1)
	return reportFixture{tenantId: company.ID, actual: actual, budget: budget, jan: jan}
}

func month(t *testing.T, tenantId string, year, m int) *models.Period {
	t.Helper()
	q := models.QuarterOfMonth(m)
	p, err := models.ResolveOrCreatePeriod(context.Background(), tenantId, year, &q, &m)
	require.NoError(t, err)
	return p
}

func article(t *testing.T, tenantId, code, name string, parentId *int) *models.BudgetArticle {
	t.Helper()
	a, err := models.CreateBudgetArticle(context.Background(), tenantId, &models.NewDimension{
		Code: code, Name: name, ParentId: parentId, ArticleType: models.ArticleTypeRevenue,
	})
	require.NoError(t, err)
	return a
}

func fact(t *testing.T, tenantId string, input models.NewFinancialLine) {
	t.Helper()
	_, err := models.CreateFinancialLine(context.Background(), tenantId, &input)
	require.NoError(t, err)
}

func dec(t *testing.T, row Row, key string) decimal.Decimal {
	t.Helper()
	v, ok := row[key].(decimal.Decimal)
	require.True(t, ok, "column %s holds %T", key, row[key])
	return v
}

func TestPlanFact_DeviationPercent(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	f := newReportFixture(t, "Plan Fact Co")
	revenue := article(t, f.tenantId, "4000", "Revenue", nil)

	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, Amount: decimal.NewFromInt(1200000)})
	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.budget.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, Amount: decimal.NewFromInt(1000000)})

	rows, err := GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypePlanFact})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "4000", row["article_code"])
	assert.True(t, dec(t, row, "fact").Equal(decimal.NewFromInt(1200000)))
	assert.True(t, dec(t, row, "plan").Equal(decimal.NewFromInt(1000000)))
	assert.True(t, dec(t, row, "deviation").Equal(decimal.NewFromInt(200000)))
	assert.True(t, dec(t, row, "deviation_percent").Equal(decimal.NewFromInt(20)))
	assert.True(t, dec(t, row, "total_amount").Equal(decimal.NewFromInt(2200000)))
	assert.NotContains(t, row, "article_type")
}

func TestPlanFact_ZeroPlanGivesZeroPercent(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	f := newReportFixture(t, "Zero Plan Co")
	revenue := article(t, f.tenantId, "4000", "Revenue", nil)
	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, Amount: decimal.NewFromInt(50000)})

	rows, err := GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypePlanFact})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, dec(t, rows[0], "deviation_percent").IsZero())
	assert.True(t, dec(t, rows[0], "deviation").Equal(decimal.NewFromInt(50000)))
}

func TestPlanFact_CentSumsMatchExactly(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	f := newReportFixture(t, "Cents Co")
	revenue := article(t, f.tenantId, "4000", "Revenue", nil)
	cent := decimal.RequireFromString("0.10")
	for _, p := range []*models.Period{f.jan, month(t, f.tenantId, 2025, 2), month(t, f.tenantId, 2025, 3)} {
		fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: p.ID, ArticleId: revenue.ID, Amount: cent})
	}
	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.budget.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, Amount: decimal.RequireFromString("0.30")})

	rows, err := GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypePlanFact})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.True(t, dec(t, row, "fact").Equal(decimal.RequireFromString("0.3")), dec(t, row, "fact").String())
	assert.True(t, dec(t, row, "plan").Equal(decimal.RequireFromString("0.3")))
	assert.True(t, dec(t, row, "total_amount").Equal(decimal.RequireFromString("0.6")))
	assert.True(t, dec(t, row, "deviation").IsZero(), dec(t, row, "deviation").String())
	assert.True(t, dec(t, row, "deviation_percent").IsZero())
}

func TestDeviationPercent_NegativePlan(t *testing.T) {
	got := DeviationPercent(decimal.NewFromInt(-50), decimal.NewFromInt(-100))
	assert.True(t, got.Equal(decimal.NewFromInt(50)), got.String())
	assert.True(t, DeviationPercent(decimal.NewFromInt(1), decimal.NewFromInt(3)).Equal(decimal.RequireFromString("-66.67")))
}

func TestSentinelRows(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()

	for _, rt := range []models.ReportType{models.ReportTypeBalance, models.ReportTypeCashflow} {
		rows, err := GetFinancialReportData(ctx, "any-tenant", ReportQuery{ReportType: rt})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, StatusNotImplemented, rows[0]["status"])
	}

	rows, err := GetFinancialReportData(ctx, "any-tenant", ReportQuery{ReportType: "forecast_tree"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusError, rows[0]["status"])
	assert.Contains(t, rows[0]["message"], "forecast_tree")
}

func TestPnL_OrderingAndArticleMetadata(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	f := newReportFixture(t, "PnL Co")
	cost := article(t, f.tenantId, "5000", "Cost", nil)
	revenue := article(t, f.tenantId, "4000", "Revenue", nil)
	sales := article(t, f.tenantId, "4100", "Sales", &revenue.ID)

	for _, a := range []*models.BudgetArticle{cost, sales} {
		fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: f.jan.ID, ArticleId: a.ID, Amount: decimal.NewFromInt(10)})
	}

	rows, err := GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypePnL})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "4100", rows[0]["article_code"])
	assert.Equal(t, "4000", rows[0]["parent_article"])
	assert.Equal(t, "Revenue", rows[0]["group"])
	assert.Equal(t, "revenue", rows[0]["article_type"])
	assert.Equal(t, "5000", rows[1]["article_code"])
	assert.Equal(t, "", rows[1]["parent_article"])
	assert.Equal(t, UngroupedLabel, rows[1]["group"])

	custom, err := GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypeCustom})
	require.NoError(t, err)
	assert.Equal(t, len(rows), len(custom))
}

func TestPeriodFilters(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	f := newReportFixture(t, "Range Co")
	revenue := article(t, f.tenantId, "4000", "Revenue", nil)

	mar := month(t, f.tenantId, 2025, 3)
	apr := month(t, f.tenantId, 2025, 4)
	q1 := 1
	quarter, err := models.ResolveOrCreatePeriod(ctx, f.tenantId, 2025, &q1, nil)
	require.NoError(t, err)
	year, err := models.ResolveOrCreatePeriod(ctx, f.tenantId, 2025, nil, nil)
	require.NoError(t, err)

	amounts := map[int]int64{f.jan.ID: 1, mar.ID: 10, apr.ID: 100, quarter.ID: 1000, year.ID: 10000}
	for periodId, amount := range amounts {
		fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: periodId, ArticleId: revenue.ID, Amount: decimal.NewFromInt(amount)})
	}

	total := func(q ReportQuery) int64 {
		q.ReportType = models.ReportTypePlanFact
		rows, err := GetFinancialReportData(ctx, f.tenantId, q)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		return dec(t, rows[0], "total_amount").IntPart()
	}

	assert.EqualValues(t, 11111, total(ReportQuery{}))
	assert.EqualValues(t, 1011, total(ReportQuery{StartPeriodId: &f.jan.ID, EndPeriodId: &mar.ID}), "periods contained in Jan..Mar")
	assert.EqualValues(t, 10, total(ReportQuery{StartPeriodId: &mar.ID}), "single bound is exact")
	assert.EqualValues(t, 100, total(ReportQuery{EndPeriodId: &apr.ID}))
	assert.EqualValues(t, 11111, total(ReportQuery{StartPeriodId: &year.ID, EndPeriodId: &year.ID}))
}

func TestScenarioFilterAndDimensionBreakout(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	f := newReportFixture(t, "Breakout Co")
	revenue := article(t, f.tenantId, "4000", "Revenue", nil)
	north, err := models.CreateCostCenter(ctx, f.tenantId, &models.NewDimension{Code: "N", Name: "North"})
	require.NoError(t, err)
	south, err := models.CreateCostCenter(ctx, f.tenantId, &models.NewDimension{Code: "S", Name: "South"})
	require.NoError(t, err)

	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, CostCenterId: &north.ID, Amount: decimal.NewFromInt(7)})
	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, CostCenterId: &south.ID, Amount: decimal.NewFromInt(3)})
	fact(t, f.tenantId, models.NewFinancialLine{ScenarioId: f.budget.ID, PeriodId: f.jan.ID, ArticleId: revenue.ID, CostCenterId: &south.ID, Amount: decimal.NewFromInt(5)})

	rows, err := GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypePlanFact, IncludeDimensions: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "North", rows[0]["cost_center"])
	assert.Equal(t, "", rows[0]["department"])
	assert.Equal(t, "South", rows[1]["cost_center"])
	assert.True(t, dec(t, rows[1], "plan").Equal(decimal.NewFromInt(5)))

	rows, err = GetFinancialReportData(ctx, f.tenantId, ReportQuery{ReportType: models.ReportTypePlanFact, ScenarioSlug: f.budget.Slug})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, dec(t, rows[0], "fact").IsZero())
	assert.True(t, dec(t, rows[0], "plan").Equal(decimal.NewFromInt(5)))
}

func TestReport_TenantIsolation(t *testing.T) {
	setupReportDB(t)
	ctx := context.Background()
	a := newReportFixture(t, "Iso A")
	b := newReportFixture(t, "Iso B")
	revA := article(t, a.tenantId, "4000", "Revenue", nil)
	fact(t, a.tenantId, models.NewFinancialLine{ScenarioId: a.actual.ID, PeriodId: a.jan.ID, ArticleId: revA.ID, Amount: decimal.NewFromInt(1)})

	rows, err := GetFinancialReportData(ctx, b.tenantId, ReportQuery{ReportType: models.ReportTypePnL})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = GetFinancialReportData(ctx, b.tenantId, ReportQuery{ReportType: models.ReportTypePnL, StartPeriodId: &a.jan.ID, EndPeriodId: &b.jan.ID})
	assert.ErrorIs(t, err, models.ErrCrossTenantReference)
}

func TestColumnsOf(t *testing.T) {
	rows := []Row{
		{"deviation": 1, "article_code": "x", "zeta": 1},
		{"plan": 1, "alpha": 2},
	}
	assert.Equal(t, []string{"article_code", "plan", "deviation", "alpha", "zeta"}, ColumnsOf(rows))
}

func TestRenderExcel_ReadBack(t *testing.T) {
	rows := []Row{
		{"article_code": "4000", "article_name": "Выручка", "fact": decimal.RequireFromString("1200000.50"), "plan": decimal.NewFromInt(1000000)},
	}
	data, err := RenderExcel(rows, "plan/fact: 2025")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "plan fact  2025", sheet)
	got, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"article_code", "article_name", "plan", "fact"}, got[0])
	assert.Equal(t, "Выручка", got[1][1])
	assert.Equal(t, "1000000", got[1][2])
	assert.Equal(t, "1200000.5", got[1][3])
}

func TestRenderPDF(t *testing.T) {
	data, err := RenderPDF(sentinelRow(StatusNotImplemented, "balance report is not implemented"), "Balance")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

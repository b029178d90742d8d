package models

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.db")
	conn, err := config.OpenDatabase(config.DriverSQLite, path+"?_foreign_keys=1&_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, MigrateTableOn(conn))
	config.UseDatabase(conn, config.DriverSQLite)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
}

func newTestTenant(t *testing.T, name string) string {
	t.Helper()
	company, err := CreateCompany(context.Background(), &NewCompany{Name: name})
	require.NoError(t, err)
	return company.ID
}

type factFixture struct {
	tenantId string
	actual   *Scenario
	budget   *Scenario
	period   *Period
	article  *BudgetArticle
}

func newFactFixture(t *testing.T, tenantName string) factFixture {
	t.Helper()
	ctx := context.Background()
	tenantId := newTestTenant(t, tenantName)

	actual, err := CreateScenario(ctx, tenantId, &NewScenario{Name: "Actual 2025", Type: ScenarioTypeActual})
	require.NoError(t, err)
	budget, err := CreateScenario(ctx, tenantId, &NewScenario{Name: "Budget 2025", Type: ScenarioTypeBudget})
	require.NoError(t, err)

	quarter, month := 1, 1
	period, err := ResolveOrCreatePeriod(ctx, tenantId, 2025, &quarter, &month)
	require.NoError(t, err)

	article, err := CreateBudgetArticle(ctx, tenantId, &NewDimension{Code: "REV-01", Name: "Sales", ArticleType: ArticleTypeRevenue})
	require.NoError(t, err)

	return factFixture{tenantId: tenantId, actual: actual, budget: budget, period: period, article: article}
}

func intPtr(v int) *int { return &v }

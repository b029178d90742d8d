package workflow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/stretchr/testify/require"
)

// setupTestEnv opens a sqlite database and a local file store under t.TempDir().
// It returns the store root.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	conn, err := config.OpenDatabase(config.DriverSQLite, filepath.Join(dir, "workflow.db")+"?_foreign_keys=1&_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, models.MigrateTableOn(conn))
	config.UseDatabase(conn, config.DriverSQLite)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	storeDir := filepath.Join(dir, "store")
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("LOCAL_STORAGE_DIR", storeDir)
	t.Setenv("PUBSUB_JOBS_TOPIC", "")
	return storeDir
}

type workflowFixture struct {
	tenantId string
	actual   *models.Scenario
	budget   *models.Scenario
	revenue  *models.BudgetArticle
	north    *models.CostCenter
}

func newWorkflowFixture(t *testing.T, name string) workflowFixture {
	t.Helper()
	ctx := context.Background()
	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: name})
	require.NoError(t, err)
	actual, err := models.CreateScenario(ctx, company.ID, &models.NewScenario{Name: "Actual", Type: models.ScenarioTypeActual})
	require.NoError(t, err)
	budget, err := models.CreateScenario(ctx, company.ID, &models.NewScenario{Name: "Budget", Type: models.ScenarioTypeBudget})
	require.NoError(t, err)
	revenue, err := models.CreateBudgetArticle(ctx, company.ID, &models.NewDimension{Code: "REV-01", Name: "Sales", ArticleType: models.ArticleTypeRevenue})
	require.NoError(t, err)
	north, err := models.CreateCostCenter(ctx, company.ID, &models.NewDimension{Code: "N", Name: "North"})
	require.NoError(t, err)
	return workflowFixture{tenantId: company.ID, actual: actual, budget: budget, revenue: revenue, north: north}
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	conn, err := config.OpenDatabase(config.DriverSQLite, filepath.Join(dir, "cli.db"))
	require.NoError(t, err)
	require.NoError(t, models.MigrateTableOn(conn))
	config.UseDatabase(conn, config.DriverSQLite)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("LOCAL_STORAGE_DIR", filepath.Join(dir, "store"))
	t.Setenv("PUBSUB_JOBS_TOPIC", "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompanyAndCalendarCommands(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "company", "create", "--name", "CLI Co")
	require.NoError(t, err)
	tenantId := strings.TrimSpace(out)
	require.NotEmpty(t, tenantId)

	out, err = execute(t, "calendar", "--tenant", tenantId, "--year", "2025", "--years", "2")
	require.NoError(t, err)
	assert.Equal(t, "2025: 17 periods created\n2026: 17 periods created\n", out)

	out, err = execute(t, "calendar", "--tenant", tenantId, "--year", "2025")
	require.NoError(t, err)
	assert.Equal(t, "2025: 0 periods created\n", out)

	_, err = execute(t, "calendar", "--tenant", "missing", "--year", "2025")
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	out, err = execute(t, "company", "list")
	require.NoError(t, err)
	assert.Contains(t, out, tenantId+"\tCLI Co\tactive=true")
}

func TestImportCommand(t *testing.T) {
	dir := setupCLI(t)
	ctx := context.Background()
	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Import CLI Co"})
	require.NoError(t, err)
	scenario, err := models.CreateScenario(ctx, company.ID, &models.NewScenario{Name: "Fact", Type: models.ScenarioTypeActual})
	require.NoError(t, err)
	_, err = models.CreateBudgetArticle(ctx, company.ID, &models.NewDimension{Code: "REV-01", Name: "Sales"})
	require.NoError(t, err)

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("Article,Period,Amount\nREV-01,2025-01,10\nREV-01,2025-02,20\n"), 0o644))
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Article,Period,Amount\nNOPE,2025-01,10\n"), 0o644))

	scenarioArg := strconv.Itoa(scenario.ID)
	out, err := execute(t, "import", "--quiet", "--tenant", company.ID, "--scenario", scenarioArg, good)
	require.NoError(t, err)
	assert.Contains(t, out, "good.csv: completed, 2/2 rows imported")

	out, err = execute(t, "import", "--quiet", "--tenant", company.ID, "--scenario", scenarioArg, bad)
	assert.EqualError(t, err, "1 of 1 files had errors")
	assert.Contains(t, out, "bad.csv: failed, 0/1 rows imported")
	assert.Contains(t, out, `  row 2: article "NOPE": code not found`)

	_, err = execute(t, "import", "--quiet", "--tenant", company.ID, "--scenario", scenarioArg, filepath.Join(dir, "absent.csv"))
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--user", "7", "--role", "admin")
	require.NoError(t, err)
	claims, err := utils.JwtUser(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, 7, claims.ID)
	assert.Equal(t, "admin", claims.Role)
}

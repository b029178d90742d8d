package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleJob_RejectsMalformedMessages(t *testing.T) {
	setupTestEnv(t)
	ctx := context.Background()

	err := HandleJob(ctx, config.JobMessage{Kind: config.JobKindImport, ReferenceId: 1})
	assert.ErrorIs(t, err, ErrUnknownJobKind)

	err = HandleJob(ctx, config.JobMessage{Kind: "export", TenantId: "t-1", ReferenceId: 1})
	assert.ErrorIs(t, err, ErrUnknownJobKind)
	assert.False(t, ShouldRedeliver(err))
}

func TestShouldRedeliver(t *testing.T) {
	assert.False(t, ShouldRedeliver(nil))
	assert.False(t, ShouldRedeliver(ErrUnknownJobKind))
	assert.False(t, ShouldRedeliver(errors.Join(ErrReportGenerationFailed, ErrEmptyReport)))
	assert.True(t, ShouldRedeliver(errors.New("connection reset")))
	assert.True(t, ShouldRedeliver(ErrIdempotencyInProgress))
}

func TestHandleJobDelivery_RunsOncePerMessage(t *testing.T) {
	setupTestEnv(t)
	f := newWorkflowFixture(t, "Delivery Co")
	ctx := context.Background()

	task := submitCSV(t, f, "push.csv", "Article,Period,Amount\nREV-01,2025-04,15\n")
	msg := config.JobMessage{
		Kind:        config.JobKindImport,
		TenantId:    f.tenantId,
		ReferenceId: task.ID,
		RequestedAt: time.Now().UTC(),
	}
	require.NoError(t, HandleJobDelivery(ctx, "msg-1", msg))
	require.NoError(t, HandleJobDelivery(ctx, "msg-1", msg))

	var keys []models.IdempotencyKey
	require.NoError(t, config.GetDB().Where("tenant_id = ?", f.tenantId).Find(&keys).Error)
	require.Len(t, keys, 1)
	assert.Equal(t, "job:import", keys[0].HandlerName)
	assert.Equal(t, models.IdempotencyStatusSucceeded, keys[0].Status)
	assert.Equal(t, 1, keys[0].Attempts)

	done, err := models.GetImportTask(ctx, f.tenantId, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, done.Status)
	assert.Len(t, linesOf(t, f.tenantId), 1)
}

func TestHandleJobDelivery_RecordsFailure(t *testing.T) {
	setupTestEnv(t)
	f := newWorkflowFixture(t, "Delivery Fail Co")
	ctx := context.Background()
	template := newTemplate(t, f, "PNL", models.ReportTypePnL)
	report, err := RequestReport(ctx, f.tenantId, &models.NewGeneratedReport{TemplateId: template.ID})
	require.NoError(t, err)

	msg := config.JobMessage{Kind: config.JobKindReport, TenantId: f.tenantId, ReferenceId: report.ID}
	err = HandleJobDelivery(ctx, "msg-2", msg)
	assert.ErrorIs(t, err, ErrReportGenerationFailed)

	var key models.IdempotencyKey
	require.NoError(t, config.GetDB().Where("tenant_id = ? AND message_id = ?", f.tenantId, "msg-2").First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusFailed, key.Status)
	assert.Equal(t, 1, key.Attempts)
	require.NotNil(t, key.LastError)
	assert.Contains(t, *key.LastError, ErrEmptyReport.Error())
}

func TestJobProcessor_ProcessOnce(t *testing.T) {
	setupTestEnv(t)
	a := newWorkflowFixture(t, "Worker A")
	b := newWorkflowFixture(t, "Worker B")
	ctx := context.Background()

	taskA := submitCSV(t, a, "a.csv", "Article,Period,Amount\nREV-01,2025-01,1\n")
	taskB := submitCSV(t, b, "b.csv", "Article,Period,Amount\nREV-01,2025-01,2\nREV-01,2025-02,3\n")
	seedFacts(t, a)
	template := newTemplate(t, a, "PF", models.ReportTypePlanFact)
	report, err := RequestReport(ctx, a.tenantId, &models.NewGeneratedReport{TemplateId: template.ID})
	require.NoError(t, err)

	processor := NewJobProcessor(config.GetLogger())
	processor.Concurrency = 1
	assert.Equal(t, 3, processor.ProcessOnce(ctx))
	assert.Equal(t, 0, processor.ProcessOnce(ctx))

	doneA, err := models.GetImportTask(ctx, a.tenantId, taskA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, doneA.Status)
	doneB, err := models.GetImportTask(ctx, b.tenantId, taskB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, doneB.Status)
	assert.Equal(t, 2, doneB.RowsSuccess)

	ready, err := models.GetGeneratedReport(ctx, a.tenantId, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusReady, ready.Status)
	assert.True(t, strings.HasSuffix(ready.FileKey, ".xlsx"))
}

func TestShouldRunJobProcessor(t *testing.T) {
	t.Setenv("WORKER_ENABLED", "")
	assert.True(t, ShouldRunJobProcessor())
	t.Setenv("WORKER_ENABLED", "FALSE")
	assert.False(t, ShouldRunJobProcessor())
}

package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// JobProcessor polls pending import tasks and reports and runs them without Pub/Sub.
// Claims use SKIP LOCKED so several processors can share the tables.
type JobProcessor struct {
	Logger            *logrus.Logger
	WorkerID          string
	BatchSize         int
	Interval          time.Duration
	Concurrency       int
	MaxReportAttempts int
}

func NewJobProcessor(logger *logrus.Logger) *JobProcessor {
	return &JobProcessor{
		Logger:            logger,
		WorkerID:          "worker-" + uuid.NewString()[:8],
		BatchSize:         envInt("WORKER_BATCH_SIZE", 20),
		Interval:          time.Duration(envInt("WORKER_POLL_SECONDS", 2)) * time.Second,
		Concurrency:       envInt("WORKER_CONCURRENCY", 4),
		MaxReportAttempts: envInt("REPORT_MAX_ATTEMPTS", 5),
	}
}

// ShouldRunJobProcessor defaults to true; set WORKER_ENABLED=false on instances
// that only serve HTTP.
func ShouldRunJobProcessor() bool {
	return config.WorkerEnabled()
}

func (p *JobProcessor) Run(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *JobProcessor) logger() *logrus.Entry {
	logger := p.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	return logger.WithFields(logrus.Fields{"field": "JobProcessor", "worker_id": p.WorkerID})
}

// ProcessOnce re-arms due report retries, claims one batch of each job type and
// runs it. Returns the number of jobs run.
func (p *JobProcessor) ProcessOnce(ctx context.Context) int {
	if config.GetDB() == nil {
		return 0
	}
	log := p.logger()

	if n, err := models.RearmFailedReports(ctx, p.MaxReportAttempts, time.Now()); err != nil {
		log.Error("re-arm failed reports: " + err.Error())
	} else if n > 0 {
		log.WithField("count", n).Info("failed reports re-armed for retry")
	}

	tasks, err := models.ClaimPendingImportTasks(ctx, p.BatchSize)
	if err != nil {
		log.Error("claim import tasks: " + err.Error())
	}
	pending, err := models.ClaimPendingReports(ctx, p.BatchSize)
	if err != nil {
		log.Error("claim reports: " + err.Error())
	}

	var g errgroup.Group
	g.SetLimit(max(p.Concurrency, 1))
	for _, task := range tasks {
		g.Go(func() error {
			jobCtx := utils.SetTenantIdInContext(ctx, task.TenantId)
			if err := RunImportTask(jobCtx, task); err != nil {
				log.WithFields(logrus.Fields{"tenant_id": task.TenantId, "task_id": task.ID}).Error("import task: " + err.Error())
			}
			return nil
		})
	}
	for _, report := range pending {
		g.Go(func() error {
			jobCtx := utils.SetTenantIdInContext(ctx, report.TenantId)
			if err := RunReport(jobCtx, report); err != nil {
				log.WithFields(logrus.Fields{"tenant_id": report.TenantId, "report_id": report.ID}).Warn("report: " + err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(tasks) + len(pending)
}

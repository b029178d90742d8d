package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("prognosis/workflow")

var ErrUnknownJobKind = errors.New("unknown job kind")

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func closeStore(store utils.FileStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

// publishJob is best effort: without a topic, or when publishing fails, the
// pending row is picked up by the polling worker.
func publishJob(ctx context.Context, kind string, tenantId string, referenceId int) {
	if !config.JobsTopicConfigured() {
		return
	}
	logger := config.GetLogger()
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msgId, err := config.PublishJob(ctx, config.JobMessage{
		Kind:          kind,
		TenantId:      tenantId,
		ReferenceId:   referenceId,
		RequestedAt:   time.Now().UTC(),
		CorrelationId: correlationId,
	})
	fields := logrus.Fields{
		"field":          "publishJob",
		"kind":           kind,
		"tenant_id":      tenantId,
		"reference_id":   referenceId,
		"correlation_id": correlationId,
	}
	if err != nil {
		logger.WithFields(fields).Warn("job publish failed; leaving it to the polling worker: " + err.Error())
		return
	}
	logger.WithFields(fields).WithField("message_id", msgId).Debug("job published")
}

func validateJob(msg config.JobMessage) error {
	if msg.TenantId == "" || msg.ReferenceId <= 0 {
		return fmt.Errorf("%w: tenant_id and reference_id are required", ErrUnknownJobKind)
	}
	if msg.Kind != config.JobKindImport && msg.Kind != config.JobKindReport {
		return fmt.Errorf("%w %q", ErrUnknownJobKind, msg.Kind)
	}
	return nil
}

// HandleJob runs one job message.
func HandleJob(ctx context.Context, msg config.JobMessage) error {
	if err := validateJob(msg); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "workflow.HandleJob",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.kind", msg.Kind),
			attribute.String("tenant.id", msg.TenantId),
			attribute.Int("job.reference_id", msg.ReferenceId),
		))
	defer span.End()

	ctx = utils.SetTenantIdInContext(ctx, msg.TenantId)
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	switch msg.Kind {
	case config.JobKindImport:
		return ProcessImportTask(ctx, msg.TenantId, msg.ReferenceId)
	case config.JobKindReport:
		return GenerateReport(ctx, msg.TenantId, msg.ReferenceId)
	default:
		return fmt.Errorf("%w %q", ErrUnknownJobKind, msg.Kind)
	}
}

// HandleJobDelivery runs a pushed job at most once per delivery message id.
func HandleJobDelivery(ctx context.Context, messageId string, msg config.JobMessage) error {
	if err := validateJob(msg); err != nil {
		return err
	}
	handler := "job:" + msg.Kind
	db := config.GetDB().WithContext(utils.SetTenantIdInContext(ctx, msg.TenantId))

	d := newDelivery(db, msg.TenantId, handler, messageId)
	skip, err := d.begin()
	if err != nil || skip {
		return err
	}
	if jobErr := HandleJob(ctx, msg); jobErr != nil {
		_ = d.fail(jobErr)
		return jobErr
	}
	return d.succeed()
}

// ShouldRedeliver reports whether a push delivery that failed with err should be retried.
// Malformed jobs are dropped; failed reports already carry their retry schedule.
func ShouldRedeliver(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnknownJobKind) && !errors.Is(err, ErrReportGenerationFailed)
}

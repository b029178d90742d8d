package workflow

import (
	"errors"
	"time"

	"github.com/mmdatafocus/prognosis_backend/models"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// A STARTED delivery older than this is assumed to belong to a crashed handler.
const idempotencyStaleAfter = 5 * time.Minute

// delivery identifies one pushed message for one handler.
type delivery struct {
	db        *gorm.DB
	tenantId  string
	handler   string
	messageId string
}

func newDelivery(db *gorm.DB, tenantId, handler, messageId string) delivery {
	return delivery{db: db, tenantId: tenantId, handler: handler, messageId: messageId}
}

func (d delivery) scope() *gorm.DB {
	return d.db.Model(&models.IdempotencyKey{}).
		Where("tenant_id = ? AND handler_name = ? AND message_id = ?", d.tenantId, d.handler, d.messageId)
}

func (d delivery) setStatus(status models.IdempotencyStatus, lastError *string) error {
	return d.scope().Updates(map[string]interface{}{
		"status":     status,
		"last_error": lastError,
		"attempts":   gorm.Expr("attempts + ?", boolToInt(status == models.IdempotencyStatusStarted)),
	}).Error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// begin records the delivery as STARTED. skip is true when an earlier delivery
// of the same message already succeeded.
func (d delivery) begin() (skip bool, err error) {
	err = d.db.Create(&models.IdempotencyKey{
		TenantId:    d.tenantId,
		HandlerName: d.handler,
		MessageId:   d.messageId,
		Status:      models.IdempotencyStatusStarted,
		Attempts:    1,
	}).Error
	if err == nil {
		return false, nil
	}
	if !models.IsDuplicateKeyError(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := d.scope().First(&existing).Error; err != nil {
		return false, err
	}
	switch {
	case existing.Status == models.IdempotencyStatusSucceeded:
		return true, nil
	case existing.Status == models.IdempotencyStatusStarted && time.Since(existing.UpdatedAt) < idempotencyStaleAfter:
		return false, ErrIdempotencyInProgress
	default:
		return false, d.setStatus(models.IdempotencyStatusStarted, nil)
	}
}

func (d delivery) succeed() error {
	return d.setStatus(models.IdempotencyStatusSucceeded, nil)
}

func (d delivery) fail(cause error) error {
	msg := cause.Error()
	return d.setStatus(models.IdempotencyStatusFailed, &msg)
}

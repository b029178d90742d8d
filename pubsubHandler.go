package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/mmdatafocus/prognosis_backend/workflow"
	"github.com/sirupsen/logrus"
)

// PubSubMessage is the push subscription envelope.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// jobsPubSubHandler runs pushed job messages. 2xx acks the delivery; 500 asks
// Pub/Sub to redeliver.
func jobsPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "jobsPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "jobsPubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		var job config.JobMessage
		if err := json.Unmarshal(msg.Message.Data, &job); err != nil {
			config.LogError(logger, "server.go", "jobsPubSubHandler", "Unmarshal job message", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}

		// Prefer the payload's correlation id; fall back to the Pub/Sub message id.
		correlationID := job.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		job.CorrelationId = correlationID
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)

		fields := logrus.Fields{
			"field":          "jobsPubSubHandler",
			"kind":           job.Kind,
			"tenant_id":      job.TenantId,
			"reference_id":   job.ReferenceId,
			"message_id":     msg.Message.ID,
			"correlation_id": correlationID,
		}
		if err := workflow.HandleJobDelivery(ctx, msg.Message.ID, job); err != nil {
			if workflow.ShouldRedeliver(err) {
				logger.WithFields(fields).Error("job processing failed: " + err.Error())
				c.Status(http.StatusInternalServerError)
				return
			}
			logger.WithFields(fields).Warn("job dropped: " + err.Error())
		}
		c.Status(http.StatusNoContent)
	}
}

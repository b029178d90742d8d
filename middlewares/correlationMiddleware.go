package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/prognosis_backend/utils"
)

const CorrelationHeader = "X-Correlation-ID"

// CorrelationMiddleware keeps the caller's correlation id or assigns one, and
// echoes it on the response. Published jobs carry it forward.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := utils.TruncateString(c.Request.Header.Get(CorrelationHeader), 64)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(CorrelationHeader, id)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Next()
	}
}

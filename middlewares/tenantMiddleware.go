package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/sirupsen/logrus"
)

const TenantParam = "tenantId"

// TenantMiddleware resolves the :tenantId path parameter to an active company
// and scopes the request context to it.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId := c.Param(TenantParam)
		ctx := c.Request.Context()

		company, err := models.GetActiveCompany(ctx, tenantId)
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "company not found"})
			return
		case errors.Is(err, models.ErrTenantInactive):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err != nil:
			config.GetLogger().WithFields(logrus.Fields{
				"field":     "TenantMiddleware",
				"tenant_id": tenantId,
			}).Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Request = c.Request.WithContext(utils.SetTenantIdInContext(ctx, company.ID))
		c.Next()
	}
}

// TenantId is the tenant resolved by TenantMiddleware.
func TenantId(c *gin.Context) string {
	tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
	return tenantId
}

package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/mmdatafocus/prognosis_backend/workflow"
)

var (
	badRequestErrors = []error{
		models.ErrValidation,
		models.ErrInvalidPeriod,
		models.ErrCrossTenantReference,
		workflow.ErrUnsupportedFileType,
		workflow.ErrFileTooLarge,
	}
	notFoundErrors = []error{
		utils.ErrorRecordNotFound,
		models.ErrImportTaskNotFound,
		models.ErrReportNotFound,
	}
	conflictErrors = []error{
		models.ErrReportInProgress,
		models.ErrDuplicateCode,
		models.ErrDuplicateFinancialLine,
		models.ErrPeriodClosed,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError maps domain errors to status codes. Anything unmapped is a 500
// and is logged by customErrorLogger.
func respondError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	case isAny(err, badRequestErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case isAny(err, notFoundErrors):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case isAny(err, conflictErrors):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindJSON answers 400 itself when the body cannot be decoded or fails binding tags.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondError(c, err)
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		}
		return false
	}
	return true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

// optionalIntQuery reads an optional positive integer query parameter.
func optionalIntQuery(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return nil, false
	}
	return &v, true
}

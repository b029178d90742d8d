package main

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/prognosis_backend/middlewares"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/models/reports"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/mmdatafocus/prognosis_backend/workflow"
)

func listReportTemplatesHandler(c *gin.Context) {
	templates, err := models.ListReportTemplates(c.Request.Context(), middlewares.TenantId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func createReportTemplateHandler(c *gin.Context) {
	var input models.NewReportTemplate
	if !bindJSON(c, &input) {
		return
	}
	template, err := models.CreateReportTemplate(c.Request.Context(), middlewares.TenantId(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

// requestReportHandler answers 202 with the pending report, or 409 while an
// identical request is pending or generating.
func requestReportHandler(c *gin.Context) {
	var input models.NewGeneratedReport
	if !bindJSON(c, &input) {
		return
	}
	report, err := workflow.RequestReport(c.Request.Context(), middlewares.TenantId(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, report)
}

func previewReportHandler(c *gin.Context) {
	var q reports.ReportQuery
	if !bindJSON(c, &q) {
		return
	}
	rows, err := reports.PreviewReportData(c.Request.Context(), middlewares.TenantId(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": reports.ColumnsOf(rows), "rows": rows})
}

func getReportHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	report, err := models.GetGeneratedReport(c.Request.Context(), middlewares.TenantId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

var reportContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pdf":  "application/pdf",
}

func downloadReportHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	report, err := models.GetGeneratedReport(ctx, middlewares.TenantId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if report.Status != models.ReportStatusReady {
		c.JSON(http.StatusConflict, gin.H{"error": "report is not ready", "status": report.Status})
		return
	}

	store, err := utils.NewFileStore(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}
	body, err := store.Open(ctx, report.FileKey)
	if err != nil {
		if errors.Is(err, utils.ErrorObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report file not found"})
			return
		}
		respondError(c, err)
		return
	}
	defer body.Close()

	name := path.Base(report.FileKey)
	contentType, ok := reportContentTypes[path.Ext(name)]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

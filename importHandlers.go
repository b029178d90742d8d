package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/prognosis_backend/middlewares"
	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/mmdatafocus/prognosis_backend/workflow"
)

// submitImportHandler takes a multipart upload (file, scenario_id) and answers
// 202 with the pending task.
func submitImportHandler(c *gin.Context) {
	scenarioId, err := strconv.Atoi(c.PostForm("scenario_id"))
	if err != nil || scenarioId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scenario_id is required"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	task, err := workflow.SubmitImport(c.Request.Context(), middlewares.TenantId(c), workflow.ImportUpload{
		ScenarioId: scenarioId,
		FileName:   fh.Filename,
		Size:       fh.Size,
		Body:       file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, task)
}

type importTaskResponse struct {
	*models.ImportTask
	Finished bool     `json:"finished"`
	Errors   []string `json:"errors"`
}

func getImportHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	task, err := models.GetImportTask(c.Request.Context(), middlewares.TenantId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, importTaskResponse{
		ImportTask: task,
		Finished:   task.Status.IsFinal(),
		Errors:     task.Errors(),
	})
}

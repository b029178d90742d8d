package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/prognosis_backend/middlewares"
	"github.com/mmdatafocus/prognosis_backend/models"
)

func listPeriodsHandler(c *gin.Context) {
	year, ok := optionalIntQuery(c, "year")
	if !ok {
		return
	}
	periods, err := models.ListPeriods(c.Request.Context(), middlewares.TenantId(c), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, periods)
}

// generateCalendarHandler answers with the periods this call created; an
// already generated year yields an empty list.
func generateCalendarHandler(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
		return
	}
	created, err := models.GenerateCalendarYear(c.Request.Context(), middlewares.TenantId(c), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func closePeriodHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	period, err := models.ClosePeriod(c.Request.Context(), middlewares.TenantId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func reopenPeriodHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	period, err := models.ReopenPeriod(c.Request.Context(), middlewares.TenantId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func listScenariosHandler(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	scenarios, err := models.ListScenarios(c.Request.Context(), middlewares.TenantId(c), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scenarios)
}

func createScenarioHandler(c *gin.Context) {
	var input models.NewScenario
	if !bindJSON(c, &input) {
		return
	}
	scenario, err := models.CreateScenario(c.Request.Context(), middlewares.TenantId(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scenario)
}

func deriveScenarioHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	scenario, err := models.DeriveScenarioVersion(c.Request.Context(), middlewares.TenantId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scenario)
}

func listDimensionsHandler(c *gin.Context) {
	rows, err := models.ListDimensions(c.Request.Context(), middlewares.TenantId(c), models.DimensionKind(c.Param("kind")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func getDimensionHandler(c *gin.Context) {
	kind := models.DimensionKind(c.Param("kind"))
	if !kind.IsValid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown dimension kind"})
		return
	}
	row, err := models.GetDimension(c.Request.Context(), middlewares.TenantId(c), kind, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func createDimensionHandler(c *gin.Context) {
	kind := models.DimensionKind(c.Param("kind"))
	if !kind.IsValid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown dimension kind"})
		return
	}
	var input models.NewDimension
	if !bindJSON(c, &input) {
		return
	}
	row, err := models.CreateDimension(c.Request.Context(), middlewares.TenantId(c), kind, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func listFinancialLinesHandler(c *gin.Context) {
	var filter models.FinancialLineFilter
	var ok bool
	if filter.ScenarioId, ok = optionalIntQuery(c, "scenario_id"); !ok {
		return
	}
	if filter.PeriodId, ok = optionalIntQuery(c, "period_id"); !ok {
		return
	}
	if filter.ArticleId, ok = optionalIntQuery(c, "article_id"); !ok {
		return
	}
	limit, ok := optionalIntQuery(c, "limit")
	if !ok {
		return
	}
	offset, ok := optionalIntQuery(c, "offset")
	if !ok {
		return
	}
	filter.Limit = min(max(1, derefOr(limit, 100)), 1000)
	filter.Offset = derefOr(offset, 0)

	lines, err := models.ListFinancialLines(c.Request.Context(), middlewares.TenantId(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func derefOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func createFinancialLineHandler(c *gin.Context) {
	var input models.NewFinancialLine
	if !bindJSON(c, &input) {
		return
	}
	line, err := models.CreateFinancialLine(c.Request.Context(), middlewares.TenantId(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func updateFinancialLineHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var input models.FinancialLineUpdate
	if !bindJSON(c, &input) {
		return
	}
	line, err := models.UpdateFinancialLine(c.Request.Context(), middlewares.TenantId(c), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func deleteFinancialLineHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := models.DeleteFinancialLine(c.Request.Context(), middlewares.TenantId(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

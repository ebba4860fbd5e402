package handlers

import (
	"net/http"

	"shoreline/internal/models"

	"github.com/gin-gonic/gin"
)

// GetAnalyticsReport - GET /api/analytics/:report
// Готовый отчёт по месяцам (кешируется)
func (h *Handlers) GetAnalyticsReport(c *gin.Context) {
	raw, err := h.services.Analytics.Report(c.Request.Context(), c.Param("report"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to get analytics")
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// CustomAnalytics - GET /api/analytics?metrics=wasteCollected:sum,...&composition=true
// Произвольная агрегация
func (h *Handlers) CustomAnalytics(c *gin.Context) {
	composition, err := models.ParseFlexibleBool(c.Query("composition"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Analytics.Custom(c.Request.Context(), c.Query("metrics"), composition)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get analytics")
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListAnalyticsReports - GET /api/analytics/reports
func (h *Handlers) ListAnalyticsReports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reports": h.services.Analytics.PresetNames()})
}

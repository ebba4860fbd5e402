package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"shoreline/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateReport - POST /api/reports (multipart/form-data)
// Сообщить о загрязнённом участке
func (h *Handlers) CreateReport(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("latitude")), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude must be a number"})
		return
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("longitude")), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "longitude must be a number"})
		return
	}

	req := models.CreateReportRequest{
		Description: c.PostForm("description"),
		Latitude:    lat,
		Longitude:   lon,
		Severity:    c.PostForm("severity"),
	}

	file, err := c.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	default:
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
			return
		}
		req.Photo = data
		req.PhotoName = file.Filename
		req.PhotoType = file.Header.Get("Content-Type")
		if req.PhotoType == "application/octet-stream" {
			req.PhotoType = ""
		}
	}

	report, err := h.services.Reports.Create(c.Request.Context(), a, &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create report")
		return
	}

	c.JSON(http.StatusCreated, report)
}

// ListReports - GET /api/reports
func (h *Handlers) ListReports(c *gin.Context) {
	reports, err := h.services.Reports.List(c.Request.Context(), c.Query("query"), c.Query("status"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to list reports")
		return
	}

	c.JSON(http.StatusOK, reports)
}

// GetReport - GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.services.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to get report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// UpdateReportStatus - PATCH /api/reports/:id/status
// Изменить статус обращения
func (h *Handlers) UpdateReportStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req models.UpdateReportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.services.Reports.UpdateStatus(c.Request.Context(), a, c.Param("id"), req.Status)
	if err != nil {
		h.handleServiceError(c, err, "Failed to update report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// DeleteReport - DELETE /api/reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.services.Reports.Delete(c.Request.Context(), a, c.Param("id")); err != nil {
		h.handleServiceError(c, err, "Failed to delete report")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Report deleted successfully"})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"shoreline/internal/blobstore"

	"github.com/gin-gonic/gin"
)

// GetBlob - GET /blobs/*path
// Отдать загруженный файл
func (h *Handlers) GetBlob(c *gin.Context) {
	obj, err := h.blobs.Open(c.Request.Context(), strings.TrimPrefix(c.Param("path"), "/"))
	switch {
	case errors.Is(err, blobstore.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, blobstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	case err != nil:
		h.handleServiceError(c, err, "Failed to read file")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

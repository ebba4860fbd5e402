package handlers

import (
	"net/http"
	"strconv"

	"shoreline/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateBus - POST /api/buses
// Создать автобус и сгенерировать схему мест
func (h *Handlers) CreateBus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req models.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus, err := h.services.Buses.Create(c.Request.Context(), a, &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create bus")
		return
	}

	c.JSON(http.StatusCreated, bus)
}

// ListBuses - GET /api/buses
// Получить автобусы события
func (h *Handlers) ListBuses(c *gin.Context) {
	buses, err := h.services.Buses.ListByEvent(c.Request.Context(), c.Query("eventId"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to list buses")
		return
	}

	c.JSON(http.StatusOK, buses)
}

// GetBus - GET /api/buses/:id
func (h *Handlers) GetBus(c *gin.Context) {
	bus, err := h.services.Buses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to get bus")
		return
	}

	c.JSON(http.StatusOK, bus)
}

// UpdateBusLayout - PUT /api/buses/:id/layout
// Перегенерировать схему мест
func (h *Handlers) UpdateBusLayout(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req models.UpdateLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus, err := h.services.Buses.Reconfigure(c.Request.Context(), a, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to update bus layout")
		return
	}

	c.JSON(http.StatusOK, bus)
}

// DeleteBus - DELETE /api/buses/:id
func (h *Handlers) DeleteBus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.services.Buses.Delete(c.Request.Context(), a, c.Param("id")); err != nil {
		h.handleServiceError(c, err, "Failed to delete bus")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Bus deleted successfully"})
}

// BookSeat - POST /api/buses/:id/seats/:number/book
// Забронировать место
func (h *Handlers) BookSeat(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	number, ok := intParam(c, "number")
	if !ok {
		return
	}

	bus, err := h.services.Buses.BookSeat(c.Request.Context(), a, c.Param("id"), number)
	if err != nil {
		h.handleServiceError(c, err, "Failed to book seat")
		return
	}

	c.JSON(http.StatusOK, bus)
}

// ReleaseSeat - DELETE /api/buses/:id/seats/:number/book
// Освободить место
func (h *Handlers) ReleaseSeat(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	number, ok := intParam(c, "number")
	if !ok {
		return
	}

	bus, err := h.services.Buses.ReleaseSeat(c.Request.Context(), a, c.Param("id"), number)
	if err != nil {
		h.handleServiceError(c, err, "Failed to release seat")
		return
	}

	c.JSON(http.StatusOK, bus)
}

// PreviewSeatMap - GET /api/seatmap/preview?rows=&seatsPerRow=
// Предпросмотр схемы мест без сохранения
func (h *Handlers) PreviewSeatMap(c *gin.Context) {
	rows, err := strconv.Atoi(c.Query("rows"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rows must be an integer"})
		return
	}
	perRow, err := strconv.Atoi(c.Query("seatsPerRow"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seatsPerRow must be an integer"})
		return
	}

	preview, err := h.services.Buses.Preview(rows, perRow)
	if err != nil {
		h.handleServiceError(c, err, "Failed to preview seat map")
		return
	}

	c.JSON(http.StatusOK, preview)
}

package handlers

import (
	"net/http"

	"shoreline/internal/analytics"
	"shoreline/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateEvent - POST /api/events
// Создать событие
func (h *Handlers) CreateEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.services.Events.Create(c.Request.Context(), a, &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create event")
		return
	}

	c.JSON(http.StatusCreated, event)
}

// ListEvents - GET /api/events
// Получить список событий
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.services.Events.List(c.Request.Context(), c.Query("query"), c.Query("status"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetEvent - GET /api/events/:id
func (h *Handlers) GetEvent(c *gin.Context) {
	event, err := h.services.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to get event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// UpdateEvent - PUT /api/events/:id
// Обновить событие
func (h *Handlers) UpdateEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.services.Events.Update(c.Request.Context(), a, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to update event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// DeleteEvent - DELETE /api/events/:id
// Удалить событие вместе с автобусами
func (h *Handlers) DeleteEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.services.Events.Delete(c.Request.Context(), a, c.Param("id")); err != nil {
		h.handleServiceError(c, err, "Failed to delete event")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Event deleted successfully"})
}

// RegisterForEvent - POST /api/events/:id/register
// Записаться волонтёром
func (h *Handlers) RegisterForEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	event, err := h.services.Events.Register(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to register for event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// UnregisterFromEvent - DELETE /api/events/:id/register
// Отменить запись
func (h *Handlers) UnregisterFromEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	event, err := h.services.Events.Unregister(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err, "Failed to unregister from event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// CompleteEvent - POST /api/events/:id/complete
// Завершить событие и сохранить итоги
func (h *Handlers) CompleteEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var rec analytics.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.services.Events.Complete(c.Request.Context(), a, c.Param("id"), rec)
	if err != nil {
		h.handleServiceError(c, err, "Failed to complete event")
		return
	}

	c.JSON(http.StatusOK, event)
}

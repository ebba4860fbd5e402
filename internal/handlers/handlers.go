package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"shoreline/internal/auth"
	"shoreline/internal/blobstore"
	"shoreline/internal/config"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/logger"
	"shoreline/internal/middleware"
	"shoreline/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
	blobs    blobstore.Store
}

func NewHandlers(services *service.Services, blobs blobstore.Store) *Handlers {
	return &Handlers{
		services: services,
		blobs:    blobs,
	}
}

// Register mounts every route of the API on r
func (h *Handlers) Register(r gin.IRouter, rl config.RateLimitConfig) {
	limit := middleware.RateLimit(rl)
	authn := middleware.JWTAuth(h.services.Auth)
	organizers := middleware.RequireRole(auth.RoleAdmin, auth.RoleOrganizer)
	admins := middleware.RequireRole(auth.RoleAdmin)

	r.POST("/auth/sign-in", limit, h.SignIn)
	r.GET("/blobs/*path", h.GetBlob)

	// Admin user management
	admin := r.Group("/adminUser", limit, authn, admins)
	{
		admin.POST("/create-user", h.CreateUser)
		admin.PUT("/update-user/:userId", h.UpdateUser)
		admin.DELETE("/delete-user/:userId", h.DeleteUser)
		admin.GET("/getUserLastLoginTime/:uid", h.GetUserLastLoginTime)
	}

	api := r.Group("/api", authn)
	{
		api.GET("/users/me", h.GetCurrentUser)

		events := api.Group("/events")
		{
			events.POST("", organizers, h.CreateEvent)
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
			events.PUT("/:id", organizers, h.UpdateEvent)
			events.DELETE("/:id", organizers, h.DeleteEvent)
			events.POST("/:id/register", h.RegisterForEvent)
			events.DELETE("/:id/register", h.UnregisterFromEvent)
			events.POST("/:id/complete", organizers, h.CompleteEvent)
		}

		buses := api.Group("/buses")
		{
			buses.POST("", organizers, h.CreateBus)
			buses.GET("", h.ListBuses)
			buses.GET("/:id", h.GetBus)
			buses.PUT("/:id/layout", organizers, h.UpdateBusLayout)
			buses.DELETE("/:id", organizers, h.DeleteBus)
			buses.POST("/:id/seats/:number/book", h.BookSeat)
			buses.DELETE("/:id/seats/:number/book", h.ReleaseSeat)
		}
		api.GET("/seatmap/preview", h.PreviewSeatMap)

		reports := api.Group("/reports")
		{
			reports.POST("", h.CreateReport)
			reports.GET("", h.ListReports)
			reports.GET("/:id", h.GetReport)
			reports.PATCH("/:id/status", admins, h.UpdateReportStatus)
			reports.DELETE("/:id", admins, h.DeleteReport)
		}

		analytics := api.Group("/analytics")
		{
			analytics.GET("", h.CustomAnalytics)
			analytics.GET("/reports", h.ListAnalyticsReports)
			analytics.GET("/:report", h.GetAnalyticsReport)
		}
	}
}

// actor returns the authenticated caller or aborts with 401
func actor(c *gin.Context) (service.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return a, ok
}

// intParam reads a positive integer path parameter or answers 400
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

// handleServiceError maps service errors to HTTP responses. Unclassified
// errors are logged and hidden behind msg.
func (h *Handlers) handleServiceError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrRateLimited):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error(msg, "error", err, "path", c.Request.URL.Path)
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

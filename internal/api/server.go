package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shoreline/internal/backend"
	"shoreline/internal/config"
	"shoreline/internal/handlers"
	"shoreline/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router  *gin.Engine
	config  *config.Config
	backend *backend.Backend
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config, b *backend.Backend) *Server {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	router.Use(middleware.Metrics(b.Metrics))
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	server := &Server{
		router:  router,
		config:  cfg,
		backend: b,
	}
	server.setupRoutes()

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.backend.Services, s.backend.Blobs)
	h.Register(s.router, s.config.RateLimit)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.backend.Metrics.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := gin.H{
		"status":  "ok",
		"service": "shoreline-api",
		"storage": s.config.Storage,
	}
	status := http.StatusOK

	if s.backend.DB != nil {
		health := s.backend.DB.HealthCheck(ctx)
		response["database"] = health
		if health.Status != "healthy" {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if s.backend.Search != nil {
		if err := s.backend.Search.HealthCheck(ctx); err != nil {
			response["search"] = err.Error()
		} else {
			response["search"] = "ok"
		}
	}

	c.JSON(status, response)
}

// Run запускает HTTP сервер и останавливает его при отмене ctx
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

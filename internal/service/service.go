package service

import (
	"context"
	"log/slog"

	"shoreline/internal/auth"
	"shoreline/internal/blobstore"
	"shoreline/internal/metrics"
	"shoreline/internal/models"
	"shoreline/internal/repository"
)

// Publisher sends domain events to the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

type EventIndex interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id string) error
	SearchEvents(ctx context.Context, query, status string, size int) ([]models.Event, error)
}

type ReportIndex interface {
	IndexReport(ctx context.Context, report *models.Report) error
	DeleteReport(ctx context.Context, id string) error
	SearchReports(ctx context.Context, query, status string, size int) ([]models.Report, error)
}

// ReportCache holds rendered analytics reports. Writes carry the generation
// read before the records were loaded, so a report computed across an
// Invalidate is never served.
type ReportCache interface {
	Generation(ctx context.Context) (int64, error)
	GetReport(ctx context.Context, name string) ([]byte, error)
	SetReport(ctx context.Context, gen int64, name string, data []byte) error
	Invalidate(ctx context.Context) error
}

// Deps wires the services. Publisher, indexes, cache and metrics are
// optional and may be left nil.
type Deps struct {
	Repos       *repository.Repositories
	Accounts    auth.Provider
	Tokens      *auth.Tokens
	Blobs       blobstore.Store
	Publisher   Publisher
	EventIndex  EventIndex
	ReportIndex ReportIndex
	Cache       ReportCache
	Metrics     *metrics.Metrics
}

type Services struct {
	Auth      *AuthService
	Users     *UserService
	Events    *EventService
	Buses     *BusService
	Reports   *ReportService
	Analytics *AnalyticsService
}

func NewServices(d Deps) *Services {
	analyticsService := NewAnalyticsService(d.Repos.Completions, d.Cache, d.Metrics)
	busService := NewBusService(d.Repos.Buses, d.Repos.Events, d.Publisher, d.Metrics)

	return &Services{
		Auth:      NewAuthService(d.Accounts, d.Tokens, d.Repos.Users),
		Users:     NewUserService(d.Accounts, d.Repos.Users, d.Publisher),
		Events:    NewEventService(d.Repos.Events, d.Repos.Completions, busService, analyticsService, d.EventIndex, d.Publisher),
		Buses:     busService,
		Reports:   NewReportService(d.Repos.Reports, d.Blobs, d.ReportIndex, d.Publisher),
		Analytics: analyticsService,
	}
}

// publish sends a domain event; failures are logged and never fail the
// operation that produced them.
func publish(p Publisher, subject string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(subject, payload); err != nil {
		slog.Error("Failed to publish event", "subject", subject, "error", err)
	}
}

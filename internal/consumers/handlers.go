package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"shoreline/internal/metrics"
	"shoreline/internal/models"
	"shoreline/internal/repository"
	"shoreline/internal/service"

	"github.com/nats-io/stan.go"
)

// CacheInvalidator drops cached analytics
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type Handlers struct {
	events    *repository.EventRepository
	reports   *repository.ReportRepository
	eventIdx  service.EventIndex
	reportIdx service.ReportIndex
	analytics CacheInvalidator
	metrics   *metrics.Metrics
	timeout   time.Duration
}

func NewHandlers(repos *repository.Repositories, eventIdx service.EventIndex, reportIdx service.ReportIndex, analytics CacheInvalidator, m *metrics.Metrics) *Handlers {
	return &Handlers{
		events:    repos.Events,
		reports:   repos.Reports,
		eventIdx:  eventIdx,
		reportIdx: reportIdx,
		analytics: analytics,
		metrics:   m,
		timeout:   20 * time.Second,
	}
}

// handlerFunc processes one message payload. A returned error leaves the
// message unacked for redelivery.
type handlerFunc func(ctx context.Context, data []byte) error

// wrap adapts a handlerFunc to a manual-ack stan handler
func (h *Handlers) wrap(subject string, fn handlerFunc) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		err := fn(ctx, m.Data)
		if h.metrics != nil {
			h.metrics.ConsumedMessages.WithLabelValues(subject, metrics.Outcome(err)).Inc()
		}
		if err != nil {
			slog.Error("Failed to process message", "subject", subject, "sequence", m.Sequence, "redelivered", m.Redelivered, "error", err)
			return
		}
		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", subject, "sequence", m.Sequence, "error", err)
		}
	}
}

// HandleEventChanged reindexes the event named in the message, or drops it
// from the index when it no longer exists.
func (h *Handlers) HandleEventChanged(ctx context.Context, data []byte) error {
	var msg models.EventChangedEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		// malformed payloads are never going to succeed
		slog.Error("Failed to unmarshal event change", "error", err)
		return nil
	}
	if h.eventIdx == nil {
		return nil
	}

	event, err := h.events.GetByID(ctx, msg.EventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", msg.EventID, err)
	}
	if event == nil {
		return h.eventIdx.DeleteEvent(ctx, msg.EventID)
	}
	slog.Info("Reindexing event", "event_id", event.ID, "status", event.Status)
	return h.eventIdx.IndexEvent(ctx, event)
}

// HandleEventCompleted drops cached analytics and reindexes the event
func (h *Handlers) HandleEventCompleted(ctx context.Context, data []byte) error {
	if h.analytics != nil {
		h.analytics.Invalidate(ctx)
	}
	return h.HandleEventChanged(ctx, data)
}

// HandleReportChanged reindexes the report named in the message
func (h *Handlers) HandleReportChanged(ctx context.Context, data []byte) error {
	var msg models.ReportChangedEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("Failed to unmarshal report change", "error", err)
		return nil
	}
	if h.reportIdx == nil {
		return nil
	}

	report, err := h.reports.GetByID(ctx, msg.ReportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", msg.ReportID, err)
	}
	if report == nil {
		return h.reportIdx.DeleteReport(ctx, msg.ReportID)
	}
	return h.reportIdx.IndexReport(ctx, report)
}

// HandleActivity logs registration, seat and account events
func (h *Handlers) HandleActivity(_ context.Context, data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		slog.Error("Failed to unmarshal activity event", "error", err)
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	slog.Info("Activity", args...)
	return nil
}

package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"shoreline/internal/backend"
	"shoreline/internal/models"
	"shoreline/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

type ConsumerService struct {
	backend  *backend.Backend
	handlers *Handlers
	subs     []stan.Subscription
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewConsumerService(b *backend.Backend) *ConsumerService {
	var eventIdx service.EventIndex
	var reportIdx service.ReportIndex
	if b.Search != nil {
		eventIdx = b.Search
		reportIdx = b.Search
	}

	return &ConsumerService{
		backend:  b,
		handlers: NewHandlers(b.Repos, eventIdx, reportIdx, b.Services.Analytics, b.Metrics),
	}
}

// routes maps every consumed subject to its handler
func (cs *ConsumerService) routes() map[string]handlerFunc {
	h := cs.handlers
	return map[string]handlerFunc{
		models.SubjectEventCreated:          h.HandleEventChanged,
		models.SubjectEventUpdated:          h.HandleEventChanged,
		models.SubjectEventDeleted:          h.HandleEventChanged,
		models.SubjectEventCompleted:        h.HandleEventCompleted,
		models.SubjectReportCreated:         h.HandleReportChanged,
		models.SubjectReportUpdated:         h.HandleReportChanged,
		models.SubjectReportDeleted:         h.HandleReportChanged,
		models.SubjectVolunteerRegistered:   h.HandleActivity,
		models.SubjectVolunteerUnregistered: h.HandleActivity,
		models.SubjectSeatBooked:            h.HandleActivity,
		models.SubjectSeatReleased:          h.HandleActivity,
		models.SubjectBusCreated:            h.HandleActivity,
		models.SubjectUserCreated:           h.HandleActivity,
		models.SubjectUserDeleted:           h.HandleActivity,
	}
}

// Start subscribes to the domain events and starts the realtime analytics
// recomputation over the completion records.
func (cs *ConsumerService) Start(ctx context.Context) error {
	slog.Info("Starting consumers...")

	if cs.backend.NATS != nil {
		for subject, fn := range cs.routes() {
			sub, err := cs.backend.NATS.SubscribeQueue(subject, queueGroup, cs.handlers.wrap(subject, fn))
			if err != nil {
				return err
			}
			cs.subs = append(cs.subs, sub)
		}
	} else {
		slog.Warn("NATS disabled, only the analytics watcher runs")
	}

	ctx, cs.cancel = context.WithCancel(ctx)
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		err := cs.backend.Services.Analytics.Watch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Analytics watcher stopped", "error", err)
		}
	}()

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		// Close keeps the durable position, Unsubscribe would drop it
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}
	if cs.cancel != nil {
		cs.cancel()
	}

	done := make(chan struct{})
	go func() {
		cs.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("analytics watcher did not stop: %w", ctx.Err())
	}

	return cs.backend.Close()
}

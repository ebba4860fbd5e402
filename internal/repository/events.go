package repository

import (
	"context"
	"time"

	"shoreline/internal/docstore"
	"shoreline/internal/models"

	"github.com/google/uuid"
)

type EventRepository struct {
	docs collection[models.Event]
}

func NewEventRepository(store docstore.Store) *EventRepository {
	return &EventRepository{docs: collection[models.Event]{
		store: store,
		name:  models.CollectionEvents,
		setID: func(e *models.Event, id string) { e.ID = id },
	}}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	event.ID = uuid.New().String()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.VolunteerIDs == nil {
		event.VolunteerIDs = []string{}
	}
	return r.docs.set(ctx, event.ID, event)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return r.docs.get(ctx, id)
}

// List returns events in creation order, optionally filtered by status.
func (r *EventRepository) List(ctx context.Context, status string) ([]models.Event, error) {
	if status == "" {
		return r.docs.list(ctx)
	}
	return r.docs.list(ctx, docstore.Eq("status", status))
}

func (r *EventRepository) ListByVolunteer(ctx context.Context, uid string) ([]models.Event, error) {
	return r.docs.list(ctx, docstore.ArrayContains("volunteerIds", uid))
}

// Update applies fn under the document lock.
func (r *EventRepository) Update(ctx context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	return r.docs.mutate(ctx, id, func(e *models.Event) error {
		if err := fn(e); err != nil {
			return err
		}
		e.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	return r.docs.delete(ctx, id)
}

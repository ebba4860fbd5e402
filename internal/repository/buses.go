package repository

import (
	"context"
	"time"

	"shoreline/internal/docstore"
	"shoreline/internal/models"

	"github.com/google/uuid"
)

type BusRepository struct {
	docs collection[models.Bus]
}

func NewBusRepository(store docstore.Store) *BusRepository {
	return &BusRepository{docs: collection[models.Bus]{
		store: store,
		name:  models.CollectionBuses,
		setID: func(b *models.Bus, id string) { b.ID = id },
	}}
}

func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	now := time.Now().UTC()
	bus.ID = uuid.New().String()
	bus.CreatedAt = now
	bus.UpdatedAt = now
	return r.docs.set(ctx, bus.ID, bus)
}

func (r *BusRepository) GetByID(ctx context.Context, id string) (*models.Bus, error) {
	return r.docs.get(ctx, id)
}

func (r *BusRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Bus, error) {
	if eventID == "" {
		return r.docs.list(ctx)
	}
	return r.docs.list(ctx, docstore.Eq("eventId", eventID))
}

// Update applies fn to the bus under the document lock, so seat flips from
// concurrent bookings never interleave.
func (r *BusRepository) Update(ctx context.Context, id string, fn func(*models.Bus) error) (*models.Bus, error) {
	return r.docs.mutate(ctx, id, func(b *models.Bus) error {
		if err := fn(b); err != nil {
			return err
		}
		b.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *BusRepository) Delete(ctx context.Context, id string) error {
	return r.docs.delete(ctx, id)
}

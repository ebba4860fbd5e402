package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shoreline/internal/docstore"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/metrics"
	"shoreline/internal/models"
	"shoreline/internal/repository"
	"shoreline/internal/seatmap"
)

// BusService manages buses and their embedded seat maps. Every seat change
// runs inside a single document transaction on the bus.
type BusService struct {
	busRepo   *repository.BusRepository
	eventRepo *repository.EventRepository
	publisher Publisher
	metrics   *metrics.Metrics
}

func NewBusService(busRepo *repository.BusRepository, eventRepo *repository.EventRepository, publisher Publisher, m *metrics.Metrics) *BusService {
	return &BusService{
		busRepo:   busRepo,
		eventRepo: eventRepo,
		publisher: publisher,
		metrics:   m,
	}
}

// seatError maps seat map errors onto API error classes.
func seatError(err error) error {
	switch {
	case errors.Is(err, seatmap.ErrInvalidConfiguration):
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	case errors.Is(err, seatmap.ErrSeatNotFound):
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	case errors.Is(err, seatmap.ErrSeatTaken),
		errors.Is(err, seatmap.ErrAlreadySeated),
		errors.Is(err, seatmap.ErrSeatNotBooked):
		return fmt.Errorf("%w: %w", apperrors.ErrConflict, err)
	case errors.Is(err, seatmap.ErrNotOccupant):
		return fmt.Errorf("%w: %w", apperrors.ErrForbidden, err)
	}
	return err
}

func (s *BusService) event(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, notFound("event", id)
	}
	return event, nil
}

// Preview returns the seat map a layout would produce without storing it.
func (s *BusService) Preview(rowCount, seatsPerRow int) (*models.SeatMapPreviewResponse, error) {
	seats, err := seatmap.Generate(rowCount, seatsPerRow)
	if err != nil {
		return nil, seatError(err)
	}
	return &models.SeatMapPreviewResponse{
		RowCount:    rowCount,
		SeatsPerRow: seatsPerRow,
		Capacity:    len(seats),
		Seats:       seats,
	}, nil
}

// Create stores a bus with a freshly generated seat map. An invalid layout is
// rejected before anything is written.
func (s *BusService) Create(ctx context.Context, actor Actor, req *models.CreateBusRequest) (*models.BusResponse, error) {
	if !actor.CanOrganize() {
		return nil, apperrors.ErrForbidden
	}
	seats, err := seatmap.Generate(req.RowCount, req.SeatsPerRow)
	if err != nil {
		return nil, seatError(err)
	}

	event, err := s.event(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(event.OrganizerID) {
		return nil, apperrors.ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Bus"
	}
	bus := &models.Bus{
		EventID:       event.ID,
		Name:          name,
		RowCount:      req.RowCount,
		SeatsPerRow:   req.SeatsPerRow,
		DepartureTime: req.DepartureTime,
		Seats:         seats,
	}
	if err := s.busRepo.Create(ctx, bus); err != nil {
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}

	publish(s.publisher, models.SubjectBusCreated, models.BusCreatedEvent{
		BusID:     bus.ID,
		EventID:   bus.EventID,
		Capacity:  len(bus.Seats),
		Timestamp: time.Now(),
	})
	return response(bus), nil
}

func response(bus *models.Bus) *models.BusResponse {
	return &models.BusResponse{Bus: bus, Summary: seatmap.Summarize(bus.Seats)}
}

func (s *BusService) Get(ctx context.Context, id string) (*models.BusResponse, error) {
	bus, err := s.busRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}
	if bus == nil {
		return nil, notFound("bus", id)
	}
	return response(bus), nil
}

func (s *BusService) ListByEvent(ctx context.Context, eventID string) ([]models.BusResponse, error) {
	buses, err := s.busRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	out := make([]models.BusResponse, 0, len(buses))
	for i := range buses {
		out = append(out, *response(&buses[i]))
	}
	return out, nil
}

// update runs fn on the bus and maps a missing document to ErrNotFound.
func (s *BusService) update(ctx context.Context, id string, fn func(*models.Bus) error) (*models.Bus, error) {
	bus, err := s.busRepo.Update(ctx, id, fn)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound("bus", id)
	}
	return bus, err
}

// Reconfigure replaces the seat map with a new layout. It is refused while
// any seat is booked.
func (s *BusService) Reconfigure(ctx context.Context, actor Actor, id string, req *models.UpdateLayoutRequest) (*models.BusResponse, error) {
	if !actor.CanOrganize() {
		return nil, apperrors.ErrForbidden
	}
	seats, err := seatmap.Generate(req.RowCount, req.SeatsPerRow)
	if err != nil {
		return nil, seatError(err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := s.event(ctx, current.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(event.OrganizerID) {
		return nil, apperrors.ErrForbidden
	}

	bus, err := s.update(ctx, id, func(b *models.Bus) error {
		if booked := seatmap.Summarize(b.Seats).Booked; booked > 0 {
			return fmt.Errorf("%w: %d seats are booked", apperrors.ErrConflict, booked)
		}
		b.RowCount = req.RowCount
		b.SeatsPerRow = req.SeatsPerRow
		b.Seats = seats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response(bus), nil
}

func (s *BusService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.CanOrganize() {
		return apperrors.ErrForbidden
	}
	bus, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	event, err := s.eventRepo.GetByID(ctx, bus.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event != nil && !actor.Owns(event.OrganizerID) {
		return apperrors.ErrForbidden
	}
	if err := s.busRepo.Delete(ctx, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to delete bus: %w", err)
	}
	return nil
}

// DeleteForEvent removes every bus of an event.
func (s *BusService) DeleteForEvent(ctx context.Context, eventID string) error {
	buses, err := s.busRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list buses: %w", err)
	}
	for _, bus := range buses {
		if err := s.busRepo.Delete(ctx, bus.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to delete bus %s: %w", bus.ID, err)
		}
	}
	return nil
}

// BookSeat books a seat for the actor. Volunteers must be registered for the
// event the bus serves.
func (s *BusService) BookSeat(ctx context.Context, actor Actor, busID string, seatNumber int) (*models.BusResponse, error) {
	current, err := s.Get(ctx, busID)
	if err != nil {
		return nil, err
	}
	event, err := s.event(ctx, current.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusUpcoming {
		return nil, fmt.Errorf("%w: event is %s", apperrors.ErrConflict, event.Status)
	}
	if !actor.CanOrganize() && !event.HasVolunteer(actor.UID) {
		return nil, fmt.Errorf("%w: not registered for event %s", apperrors.ErrForbidden, event.ID)
	}

	bus, err := s.update(ctx, busID, func(b *models.Bus) error {
		return seatmap.Book(b.Seats, seatNumber, actor.UID)
	})
	s.countSeatOperation("book", err)
	if err != nil {
		return nil, seatError(err)
	}

	// Unregister removes the volunteer before it releases seats, so a
	// registration that is gone after the commit means its release pass may
	// have missed this seat.
	if !actor.CanOrganize() {
		if err := s.confirmRegistration(ctx, bus, actor.UID, seatNumber); err != nil {
			return nil, err
		}
	}

	publish(s.publisher, models.SubjectSeatBooked, models.SeatEvent{
		BusID:      bus.ID,
		EventID:    bus.EventID,
		SeatNumber: seatNumber,
		UserID:     actor.UID,
		Timestamp:  time.Now(),
	})
	return response(bus), nil
}

// confirmRegistration re-reads the event after a volunteer's booking and
// takes the seat back if the volunteer has left it in the meantime.
func (s *BusService) confirmRegistration(ctx context.Context, bus *models.Bus, uid string, seatNumber int) error {
	event, err := s.eventRepo.GetByID(ctx, bus.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event != nil && event.HasVolunteer(uid) {
		return nil
	}

	_, err = s.update(ctx, bus.ID, func(b *models.Bus) error {
		return seatmap.Release(b.Seats, seatNumber, uid, true)
	})
	if err != nil && !errors.Is(err, seatmap.ErrSeatNotBooked) && !errors.Is(err, seatmap.ErrNotOccupant) {
		slog.Error("Failed to take back seat of unregistered volunteer",
			"bus_id", bus.ID, "seat", seatNumber, "user_id", uid, "error", err)
	}
	return fmt.Errorf("%w: not registered for event %s", apperrors.ErrForbidden, bus.EventID)
}

// ReleaseSeat frees a seat. Only the occupant or an admin may release it.
func (s *BusService) ReleaseSeat(ctx context.Context, actor Actor, busID string, seatNumber int) (*models.BusResponse, error) {
	var occupant string
	bus, err := s.update(ctx, busID, func(b *models.Bus) error {
		if idx, ok := seatmap.Find(b.Seats, seatNumber); ok && b.Seats[idx].OccupantID != nil {
			occupant = *b.Seats[idx].OccupantID
		}
		return seatmap.Release(b.Seats, seatNumber, actor.UID, !actor.IsAdmin())
	})
	s.countSeatOperation("release", err)
	if err != nil {
		return nil, seatError(err)
	}

	publish(s.publisher, models.SubjectSeatReleased, models.SeatEvent{
		BusID:      bus.ID,
		EventID:    bus.EventID,
		SeatNumber: seatNumber,
		UserID:     occupant,
		Timestamp:  time.Now(),
	})
	return response(bus), nil
}

// ReleaseAllForUser frees every seat uid holds on the buses of an event.
func (s *BusService) ReleaseAllForUser(ctx context.Context, eventID, uid string) error {
	buses, err := s.busRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list buses: %w", err)
	}
	for _, b := range buses {
		number, ok := seatmap.HeldBy(b.Seats, uid)
		if !ok {
			continue
		}
		_, err := s.update(ctx, b.ID, func(bus *models.Bus) error {
			return seatmap.Release(bus.Seats, number, uid, true)
		})
		s.countSeatOperation("release", err)
		if err != nil {
			// the seat may have changed hands since the list was read
			slog.Warn("Failed to release seat", "bus_id", b.ID, "seat", number, "user_id", uid, "error", err)
			continue
		}
		publish(s.publisher, models.SubjectSeatReleased, models.SeatEvent{
			BusID:      b.ID,
			EventID:    eventID,
			SeatNumber: number,
			UserID:     uid,
			Timestamp:  time.Now(),
		})
	}
	return nil
}

func (s *BusService) countSeatOperation(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.SeatOperations.WithLabelValues(op, metrics.Outcome(err)).Inc()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"shoreline/internal/analytics"
	"shoreline/internal/docstore"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/models"
	"shoreline/internal/repository"
)

type EventService struct {
	eventRepo      *repository.EventRepository
	completionRepo *repository.CompletionRepository
	buses          *BusService
	analytics      *AnalyticsService
	index          EventIndex
	publisher      Publisher
}

func NewEventService(eventRepo *repository.EventRepository, completionRepo *repository.CompletionRepository, buses *BusService, analytics *AnalyticsService, index EventIndex, publisher Publisher) *EventService {
	return &EventService{
		eventRepo:      eventRepo,
		completionRepo: completionRepo,
		buses:          buses,
		analytics:      analytics,
		index:          index,
		publisher:      publisher,
	}
}

func validateLocation(loc models.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("%w: coordinates out of range", apperrors.ErrValidation)
	}
	return nil
}

func validateDate(date string) error {
	if _, err := analytics.ParseDate(date); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, kind, id)
}

func (s *EventService) Create(ctx context.Context, actor Actor, req *models.CreateEventRequest) (*models.Event, error) {
	if !actor.CanOrganize() {
		return nil, apperrors.ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if err := validateDate(req.Date); err != nil {
		return nil, err
	}
	if err := validateLocation(req.Location); err != nil {
		return nil, err
	}
	if req.MaxVolunteers < 0 {
		return nil, fmt.Errorf("%w: maxVolunteers must be >= 0", apperrors.ErrValidation)
	}

	event := &models.Event{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Location:      req.Location,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		OrganizerID:   actor.UID,
		MaxVolunteers: req.MaxVolunteers,
		Status:        models.EventStatusUpcoming,
		ImageURL:      req.ImageURL,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.reindex(ctx, event)
	s.publishChange(models.SubjectEventCreated, event)
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, notFound("event", id)
	}
	return event, nil
}

// List returns events filtered by status. A text query goes to the search
// index when one is configured and falls back to a substring scan otherwise.
func (s *EventService) List(ctx context.Context, query, status string) ([]models.Event, error) {
	if status != "" && !models.ValidEventStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
	}
	query = strings.TrimSpace(query)

	if query != "" && s.index != nil {
		events, err := s.index.SearchEvents(ctx, query, status, 100)
		if err == nil {
			return events, nil
		}
		slog.Error("Event search failed, scanning store", "error", err)
	}

	events, err := s.eventRepo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if query == "" {
		return events, nil
	}

	q := strings.ToLower(query)
	return slices.DeleteFunc(events, func(e models.Event) bool {
		return !strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) &&
			!strings.Contains(strings.ToLower(e.Location.Name), q)
	}), nil
}

func (s *EventService) ListForVolunteer(ctx context.Context, uid string) ([]models.Event, error) {
	events, err := s.eventRepo.ListByVolunteer(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// update runs fn on the event and maps a missing document to ErrNotFound.
func (s *EventService) update(ctx context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	event, err := s.eventRepo.Update(ctx, id, fn)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound("event", id)
	}
	return event, err
}

func (s *EventService) Update(ctx context.Context, actor Actor, id string, req *models.UpdateEventRequest) (*models.Event, error) {
	if req.Date != nil {
		if err := validateDate(*req.Date); err != nil {
			return nil, err
		}
	}
	if req.Location != nil {
		if err := validateLocation(*req.Location); err != nil {
			return nil, err
		}
	}
	if req.Status != nil && !models.ValidEventStatus(*req.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *req.Status)
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", apperrors.ErrValidation)
	}

	event, err := s.update(ctx, id, func(e *models.Event) error {
		if !actor.CanOrganize() || !actor.Owns(e.OrganizerID) {
			return apperrors.ErrForbidden
		}
		if req.MaxVolunteers != nil {
			if *req.MaxVolunteers < 0 {
				return fmt.Errorf("%w: maxVolunteers must be >= 0", apperrors.ErrValidation)
			}
			if *req.MaxVolunteers > 0 && *req.MaxVolunteers < len(e.VolunteerIDs) {
				return fmt.Errorf("%w: %d volunteers already registered", apperrors.ErrConflict, len(e.VolunteerIDs))
			}
			e.MaxVolunteers = *req.MaxVolunteers
		}
		if req.Title != nil {
			e.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			e.Description = *req.Description
		}
		if req.Location != nil {
			e.Location = *req.Location
		}
		if req.Date != nil {
			e.Date = *req.Date
		}
		if req.StartTime != nil {
			e.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			e.EndTime = *req.EndTime
		}
		if req.Status != nil {
			e.Status = *req.Status
		}
		if req.ImageURL != nil {
			e.ImageURL = *req.ImageURL
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, event)
	s.publishChange(models.SubjectEventUpdated, event)
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, actor Actor, id string) error {
	event, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanOrganize() || !actor.Owns(event.OrganizerID) {
		return apperrors.ErrForbidden
	}

	if err := s.buses.DeleteForEvent(ctx, id); err != nil {
		return err
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if s.index != nil {
		if err := s.index.DeleteEvent(ctx, id); err != nil {
			slog.Error("Failed to remove event from search index", "event_id", id, "error", err)
		}
	}
	s.publishChange(models.SubjectEventDeleted, event)
	return nil
}

// Register adds the actor to the volunteer list. Capacity is checked under
// the document lock, so concurrent registrations cannot overbook.
func (s *EventService) Register(ctx context.Context, actor Actor, id string) (*models.Event, error) {
	event, err := s.update(ctx, id, func(e *models.Event) error {
		if e.Status != models.EventStatusUpcoming {
			return fmt.Errorf("%w: event is %s", apperrors.ErrConflict, e.Status)
		}
		if e.HasVolunteer(actor.UID) {
			return fmt.Errorf("%w: already registered", apperrors.ErrConflict)
		}
		if e.IsFull() {
			return fmt.Errorf("%w: event is full", apperrors.ErrConflict)
		}
		e.VolunteerIDs = append(e.VolunteerIDs, actor.UID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.publisher, models.SubjectVolunteerRegistered, models.VolunteerEvent{
		EventID:   id,
		UserID:    actor.UID,
		Timestamp: time.Now(),
	})
	return event, nil
}

// Unregister removes the actor and frees any bus seat they held for the event.
func (s *EventService) Unregister(ctx context.Context, actor Actor, id string) (*models.Event, error) {
	event, err := s.update(ctx, id, func(e *models.Event) error {
		if !e.HasVolunteer(actor.UID) {
			return fmt.Errorf("%w: not registered", apperrors.ErrConflict)
		}
		e.VolunteerIDs = slices.DeleteFunc(e.VolunteerIDs, func(uid string) bool { return uid == actor.UID })
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.buses.ReleaseAllForUser(ctx, id, actor.UID); err != nil {
		slog.Error("Failed to release seats of unregistered volunteer", "event_id", id, "user_id", actor.UID, "error", err)
	}

	publish(s.publisher, models.SubjectVolunteerUnregistered, models.VolunteerEvent{
		EventID:   id,
		UserID:    actor.UID,
		Timestamp: time.Now(),
	})
	return event, nil
}

// Complete stores the completion record of an event and marks it completed.
// A record without a date takes the event date.
func (s *EventService) Complete(ctx context.Context, actor Actor, id string, rec analytics.Record) (*models.Event, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanOrganize() || !actor.Owns(current.OrganizerID) {
		return nil, apperrors.ErrForbidden
	}
	if current.Status == models.EventStatusCancelled {
		return nil, fmt.Errorf("%w: event is cancelled", apperrors.ErrConflict)
	}

	if strings.TrimSpace(rec.Date) == "" {
		rec.Date = current.Date
	}
	if err := validateDate(rec.Date); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}

	if err := s.completionRepo.Save(ctx, id, rec); err != nil {
		return nil, fmt.Errorf("failed to save completion record: %w", err)
	}

	event, err := s.update(ctx, id, func(e *models.Event) error {
		e.Status = models.EventStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.analytics.Invalidate(ctx)
	s.reindex(ctx, event)
	s.publishChange(models.SubjectEventCompleted, event)
	return event, nil
}

func (s *EventService) reindex(ctx context.Context, event *models.Event) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexEvent(ctx, event); err != nil {
		slog.Error("Failed to index event", "event_id", event.ID, "error", err)
	}
}

func (s *EventService) publishChange(subject string, event *models.Event) {
	publish(s.publisher, subject, models.EventChangedEvent{
		EventID:   event.ID,
		Title:     event.Title,
		Status:    event.Status,
		Timestamp: time.Now(),
	})
}

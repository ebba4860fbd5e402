package models

import "time"

// NATS subjects
const (
	SubjectEventCreated          = "event.created"
	SubjectEventUpdated          = "event.updated"
	SubjectEventDeleted          = "event.deleted"
	SubjectEventCompleted        = "event.completed"
	SubjectVolunteerRegistered   = "volunteer.registered"
	SubjectVolunteerUnregistered = "volunteer.unregistered"
	SubjectBusCreated            = "bus.created"
	SubjectSeatBooked            = "seat.booked"
	SubjectSeatReleased          = "seat.released"
	SubjectReportCreated         = "report.created"
	SubjectReportUpdated         = "report.updated"
	SubjectReportDeleted         = "report.deleted"
	SubjectUserCreated           = "user.created"
	SubjectUserDeleted           = "user.deleted"
)

// EventChangedEvent is published for event.created/updated/deleted/completed
type EventChangedEvent struct {
	EventID   string    `json:"event_id"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// VolunteerEvent represents a registration change
type VolunteerEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BusCreatedEvent represents a new bus and its capacity
type BusCreatedEvent struct {
	BusID     string    `json:"bus_id"`
	EventID   string    `json:"event_id"`
	Capacity  int       `json:"capacity"`
	Timestamp time.Time `json:"timestamp"`
}

// SeatEvent represents a seat booking or release
type SeatEvent struct {
	BusID      string    `json:"bus_id"`
	EventID    string    `json:"event_id"`
	SeatNumber int       `json:"seat_number"`
	UserID     string    `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReportChangedEvent is published for report.created/updated/deleted
type ReportChangedEvent struct {
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserEvent represents account creation or deletion
type UserEvent struct {
	UID       string    `json:"uid"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

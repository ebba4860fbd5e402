package models

import (
	"slices"
	"time"

	"shoreline/internal/seatmap"
)

// Collections of the document store
const (
	CollectionUsers       = "users"
	CollectionEvents      = "events"
	CollectionBuses       = "buses"
	CollectionReports     = "reports"
	CollectionCompletions = "completions"
)

// Event statuses
const (
	EventStatusUpcoming  = "upcoming"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// Report severities and statuses
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"

	ReportStatusPending  = "pending"
	ReportStatusReviewed = "reviewed"
	ReportStatusResolved = "resolved"
)

// User is the profile document of an account; credentials live in auth.
type User struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ContactNo string    `json:"contactNo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Location is a named point on the coast
type Location struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event is a scheduled cleanup
type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      Location  `json:"location"`
	Date          string    `json:"date"`
	StartTime     string    `json:"startTime,omitempty"`
	EndTime       string    `json:"endTime,omitempty"`
	OrganizerID   string    `json:"organizerId"`
	MaxVolunteers int       `json:"maxVolunteers"`
	VolunteerIDs  []string  `json:"volunteerIds"`
	Status        string    `json:"status"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (e *Event) HasVolunteer(uid string) bool {
	return slices.Contains(e.VolunteerIDs, uid)
}

// IsFull reports whether registration capacity is reached. Zero means unlimited.
func (e *Event) IsFull() bool {
	return e.MaxVolunteers > 0 && len(e.VolunteerIDs) >= e.MaxVolunteers
}

// Bus carries volunteers to an event. Seats is the embedded seat map.
type Bus struct {
	ID            string         `json:"id"`
	EventID       string         `json:"eventId"`
	Name          string         `json:"name"`
	RowCount      int            `json:"rowCount"`
	SeatsPerRow   int            `json:"seatsPerRow"`
	DepartureTime string         `json:"departureTime,omitempty"`
	Seats         []seatmap.Seat `json:"seats"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Report is a pollution-area report submitted by a user
type Report struct {
	ID          string    `json:"id"`
	ReporterID  string    `json:"reporterId"`
	Description string    `json:"description"`
	Location    Location  `json:"location"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	PhotoPath   string    `json:"photoPath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func ValidReportStatus(s string) bool {
	switch s {
	case ReportStatusPending, ReportStatusReviewed, ReportStatusResolved:
		return true
	}
	return false
}

func ValidEventStatus(s string) bool {
	switch s {
	case EventStatusUpcoming, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

package models

import (
	"fmt"
	"strings"
	"time"

	"shoreline/internal/analytics"
	"shoreline/internal/seatmap"
)

// FlexibleBool - boolean that also accepts strings and numbers
type FlexibleBool bool

// UnmarshalJSON parses boolean from bool, string and number
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	v, err := ParseFlexibleBool(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*fb = FlexibleBool(v)
	return nil
}

// Bool returns the plain bool value
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// ParseFlexibleBool is used for query parameters as well as JSON
func ParseFlexibleBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

// MessageResponse - generic acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Auth

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SignInResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// Admin users

type CreateUserRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Role      string `json:"role"`
	ContactNo string `json:"contactNo"`
}

type CreateUserResponse struct {
	UID string `json:"uid"`
}

type UpdateUserRequest struct {
	Email     *string       `json:"email"`
	Password  *string       `json:"password"`
	Name      *string       `json:"name"`
	Role      *string       `json:"role"`
	ContactNo *string       `json:"contactNo"`
	Disabled  *FlexibleBool `json:"disabled"`
}

type LastLoginResponse struct {
	UID           string     `json:"uid"`
	LastLoginTime *time.Time `json:"lastLoginTime"`
}

// Events

type CreateEventRequest struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description"`
	Location      Location `json:"location"`
	Date          string   `json:"date" binding:"required"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime"`
	MaxVolunteers int      `json:"maxVolunteers"`
	ImageURL      string   `json:"imageUrl"`
}

type UpdateEventRequest struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Location      *Location `json:"location"`
	Date          *string   `json:"date"`
	StartTime     *string   `json:"startTime"`
	EndTime       *string   `json:"endTime"`
	MaxVolunteers *int      `json:"maxVolunteers"`
	Status        *string   `json:"status"`
	ImageURL      *string   `json:"imageUrl"`
}

// Buses

type CreateBusRequest struct {
	EventID       string `json:"eventId" binding:"required"`
	Name          string `json:"name"`
	RowCount      int    `json:"rowCount" binding:"min=1,max=100"`
	SeatsPerRow   int    `json:"seatsPerRow" binding:"min=1,max=20"`
	DepartureTime string `json:"departureTime"`
}

// UpdateLayoutRequest limits mirror seatmap.MaxRows and seatmap.MaxSeatsPerRow
type UpdateLayoutRequest struct {
	RowCount    int `json:"rowCount" binding:"min=1,max=100"`
	SeatsPerRow int `json:"seatsPerRow" binding:"min=1,max=20"`
}

// BusResponse is a bus with its seat occupancy summary
type BusResponse struct {
	*Bus
	Summary seatmap.Summary `json:"summary"`
}

type SeatMapPreviewResponse struct {
	RowCount    int            `json:"rowCount"`
	SeatsPerRow int            `json:"seatsPerRow"`
	Capacity    int            `json:"capacity"`
	Seats       []seatmap.Seat `json:"seats"`
}

// Reports

type CreateReportRequest struct {
	Description string
	Latitude    float64
	Longitude   float64
	Severity    string
	Photo       []byte
	PhotoName   string
	PhotoType   string
}

type UpdateReportStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Analytics

type AnalyticsResponse struct {
	Report      string                    `json:"report"`
	Buckets     []analytics.MonthlyBucket `json:"buckets"`
	Composition []analytics.WasteShare    `json:"composition"`
	Skipped     int                       `json:"skipped"`
}

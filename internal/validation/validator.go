// Package validation runs a smoke check against a live API: it signs in as an
// admin, walks the event, bus and analytics routes and cleans up after itself.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"shoreline/internal/models"
)

// SmokeValidator - проверка основных сценариев API на живом сервере
type SmokeValidator struct {
	baseURL  string
	email    string
	password string
	client   *http.Client
	token    string
}

// NewSmokeValidator создает новый валидатор
func NewSmokeValidator(baseURL, email, password string) *SmokeValidator {
	return &SmokeValidator{
		baseURL:  baseURL,
		email:    email,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ValidateAll проверяет все группы маршрутов по очереди
func (v *SmokeValidator) ValidateAll(ctx context.Context) error {
	slog.Info("Starting API smoke validation", "url", v.baseURL)

	if err := v.validateHealth(ctx); err != nil {
		return fmt.Errorf("health validation failed: %w", err)
	}
	if err := v.signIn(ctx); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	eventID, err := v.validateEvents(ctx)
	if err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}
	defer v.cleanup(ctx, eventID)

	if err := v.validateBuses(ctx, eventID); err != nil {
		return fmt.Errorf("buses validation failed: %w", err)
	}
	if err := v.validateAnalytics(ctx); err != nil {
		return fmt.Errorf("analytics validation failed: %w", err)
	}

	slog.Info("All endpoints passed validation")
	return nil
}

func (v *SmokeValidator) validateHealth(ctx context.Context) error {
	return v.expect(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (v *SmokeValidator) signIn(ctx context.Context) error {
	var res models.SignInResponse
	req := models.SignInRequest{Email: v.email, Password: v.password}
	if err := v.expect(ctx, http.MethodPost, "/auth/sign-in", req, http.StatusOK, &res); err != nil {
		return err
	}
	if res.Token == "" {
		return fmt.Errorf("POST /auth/sign-in: empty token")
	}
	v.token = res.Token
	return nil
}

func (v *SmokeValidator) validateEvents(ctx context.Context) (string, error) {
	slog.Info("Validating event endpoints")

	req := models.CreateEventRequest{
		Title:         "Smoke check cleanup",
		Description:   "Created by the API validator",
		Location:      models.Location{Name: "Validator beach", Latitude: 1.29, Longitude: 103.85},
		Date:          time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		MaxVolunteers: 5,
	}
	var event models.Event
	if err := v.expect(ctx, http.MethodPost, "/api/events", req, http.StatusCreated, &event); err != nil {
		return "", err
	}
	if event.ID == "" {
		return "", fmt.Errorf("POST /api/events: expected non-empty id")
	}

	var list []models.Event
	if err := v.expect(ctx, http.MethodGet, "/api/events", nil, http.StatusOK, &list); err != nil {
		return event.ID, err
	}
	if len(list) == 0 {
		return event.ID, fmt.Errorf("GET /api/events: expected non-empty list")
	}

	var got models.Event
	if err := v.expect(ctx, http.MethodGet, "/api/events/"+event.ID, nil, http.StatusOK, &got); err != nil {
		return event.ID, err
	}
	if got.Title != req.Title {
		return event.ID, fmt.Errorf("GET /api/events/%s: title %q, want %q", event.ID, got.Title, req.Title)
	}
	return event.ID, nil
}

func (v *SmokeValidator) validateBuses(ctx context.Context, eventID string) error {
	slog.Info("Validating bus endpoints")

	var preview models.SeatMapPreviewResponse
	if err := v.expect(ctx, http.MethodGet, "/api/seatmap/preview?rows=2&seatsPerRow=4", nil, http.StatusOK, &preview); err != nil {
		return err
	}
	if preview.Capacity != 9 {
		return fmt.Errorf("GET /api/seatmap/preview: capacity %d, want 9", preview.Capacity)
	}

	req := models.CreateBusRequest{EventID: eventID, Name: "Smoke bus", RowCount: 2, SeatsPerRow: 4}
	var bus models.BusResponse
	if err := v.expect(ctx, http.MethodPost, "/api/buses", req, http.StatusCreated, &bus); err != nil {
		return err
	}
	if bus.Bus == nil || bus.Summary.Total != 9 {
		return fmt.Errorf("POST /api/buses: expected 9 seats, got %+v", bus.Summary)
	}

	seatPath := fmt.Sprintf("/api/buses/%s/seats/9/book", bus.ID)
	if err := v.expect(ctx, http.MethodPost, seatPath, nil, http.StatusOK, &bus); err != nil {
		return err
	}
	if bus.Summary.Booked != 1 {
		return fmt.Errorf("POST %s: booked %d, want 1", seatPath, bus.Summary.Booked)
	}
	if err := v.expect(ctx, http.MethodPost, seatPath, nil, http.StatusConflict, nil); err != nil {
		return err
	}
	return v.expect(ctx, http.MethodDelete, seatPath, nil, http.StatusOK, nil)
}

func (v *SmokeValidator) validateAnalytics(ctx context.Context) error {
	slog.Info("Validating analytics endpoints")

	var list struct {
		Reports []string `json:"reports"`
	}
	if err := v.expect(ctx, http.MethodGet, "/api/analytics/reports", nil, http.StatusOK, &list); err != nil {
		return err
	}
	for _, name := range list.Reports {
		if err := v.expect(ctx, http.MethodGet, "/api/analytics/"+name, nil, http.StatusOK, nil); err != nil {
			return err
		}
	}
	return v.expect(ctx, http.MethodGet, "/api/analytics/unknown", nil, http.StatusNotFound, nil)
}

// cleanup removes the event created by the run; its buses go with it
func (v *SmokeValidator) cleanup(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := v.expect(ctx, http.MethodDelete, "/api/events/"+eventID, nil, http.StatusOK, nil); err != nil {
		slog.Warn("Failed to remove validation event", "event_id", eventID, "error", err)
	}
}

// expect sends the request and checks the status; out, when set, receives
// the decoded body
func (v *SmokeValidator) expect(ctx context.Context, method, path string, body any, status int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != status {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return nil
}

// RunValidation запускает валидацию API. Адрес и учётная запись берутся из
// VALIDATE_URL, ADMIN_EMAIL и ADMIN_PASSWORD.
func RunValidation(ctx context.Context) error {
	baseURL := os.Getenv("VALIDATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return NewSmokeValidator(baseURL, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")).ValidateAll(ctx)
}

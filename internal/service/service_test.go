package service

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"shoreline/internal/analytics"
	"shoreline/internal/auth"
	"shoreline/internal/blobstore"
	"shoreline/internal/cache"
	"shoreline/internal/docstore"
	apperrors "shoreline/internal/errors"
	"shoreline/internal/metrics"
	"shoreline/internal/models"
	"shoreline/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fixture struct {
	svc       *Services
	repos     *repository.Repositories
	blobs     *blobstore.MemoryStore
	cache     *cache.MemoryCache
	metrics   *metrics.Metrics
	publisher *recordingPublisher
}

var (
	admin     = Actor{UID: "admin-1", Role: auth.RoleAdmin}
	organizer = Actor{UID: "org-1", Role: auth.RoleOrganizer}
	volunteer = Actor{UID: "vol-1", Role: auth.RoleVolunteer}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, docstore.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	cfg := auth.Config{JWTSecret: "test-secret", TokenTTL: time.Hour, Issuer: "shoreline", BcryptCost: bcrypt.MinCost}
	tokens, err := auth.NewTokens(cfg)
	require.NoError(t, err)

	f := &fixture{
		repos:     repository.NewRepositories(store),
		blobs:     blobstore.NewMemoryStore(blobstore.Config{PublicBaseURL: "http://localhost:8080", MaxUploadBytes: 1024}),
		cache:     cache.NewMemoryCache(),
		metrics:   metrics.New(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewServices(Deps{
		Repos:     f.repos,
		Accounts:  auth.NewMemoryProvider(cfg),
		Tokens:    tokens,
		Blobs:     f.blobs,
		Publisher: f.publisher,
		Cache:     f.cache,
		Metrics:   f.metrics,
	})
	return f
}

func (f *fixture) event(t *testing.T, maxVolunteers int) *models.Event {
	t.Helper()
	e, err := f.svc.Events.Create(context.Background(), organizer, &models.CreateEventRequest{
		Title:         "Beach cleanup",
		Description:   "North pier",
		Location:      models.Location{Name: "Pier", Latitude: 6.9, Longitude: 79.8},
		Date:          "2024-06-01",
		MaxVolunteers: maxVolunteers,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) bus(t *testing.T, eventID string, rows, perRow int) *models.BusResponse {
	t.Helper()
	b, err := f.svc.Buses.Create(context.Background(), organizer, &models.CreateBusRequest{
		EventID:     eventID,
		Name:        "Bus A",
		RowCount:    rows,
		SeatsPerRow: perRow,
	})
	require.NoError(t, err)
	return b
}

func TestUserService_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Users.Create(ctx, &models.CreateUserRequest{
		Email:    "Ana@Example.org",
		Password: "secret1",
		Name:     "Ana",
		Role:     "organizer",
	})
	require.NoError(t, err)

	user, err := f.svc.Users.Get(ctx, res.UID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", user.Email)
	assert.Equal(t, "organizer", user.Role)

	_, err = f.svc.Users.Create(ctx, &models.CreateUserRequest{Email: "ana@example.org", Password: "secret1", Name: "Dup"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	name := "Ana Maria"
	role := "admin"
	require.NoError(t, f.svc.Users.Update(ctx, res.UID, &models.UpdateUserRequest{Name: &name, Role: &role}))
	user, err = f.svc.Users.Get(ctx, res.UID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", user.Name)
	assert.Equal(t, "admin", user.Role)

	last, err := f.svc.Users.LastLoginTime(ctx, res.UID)
	require.NoError(t, err)
	assert.Nil(t, last.LastLoginTime)

	signIn, err := f.svc.Auth.SignIn(ctx, &models.SignInRequest{Email: "ana@example.org", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, signIn.Token)
	assert.Equal(t, "Ana Maria", signIn.User.Name)

	actor, err := f.svc.Auth.Authenticate(signIn.Token)
	require.NoError(t, err)
	assert.Equal(t, res.UID, actor.UID)
	assert.True(t, actor.IsAdmin())

	last, err = f.svc.Users.LastLoginTime(ctx, res.UID)
	require.NoError(t, err)
	assert.NotNil(t, last.LastLoginTime)

	require.NoError(t, f.svc.Users.Delete(ctx, res.UID))
	_, err = f.svc.Users.Get(ctx, res.UID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, f.svc.Users.Delete(ctx, res.UID), apperrors.ErrNotFound)

	assert.Equal(t, []string{models.SubjectUserCreated, models.SubjectUserDeleted}, f.publisher.published())
}

func TestUserService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Users.Create(ctx, &models.CreateUserRequest{Email: "bad", Password: "secret1", Name: "X"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.Users.Create(ctx, &models.CreateUserRequest{Email: "x@example.org", Password: "123", Name: "X"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.Users.Create(ctx, &models.CreateUserRequest{Email: "x@example.org", Password: "secret1", Name: "X", Role: "root"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.ErrorIs(t, f.svc.Users.Update(ctx, "missing", &models.UpdateUserRequest{}), apperrors.ErrNotFound)
}

func TestAuthService_RejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Users.Create(ctx, &models.CreateUserRequest{Email: "v@example.org", Password: "secret1", Name: "V"})
	require.NoError(t, err)

	_, err = f.svc.Auth.SignIn(ctx, &models.SignInRequest{Email: "v@example.org", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.svc.Auth.Authenticate("not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestEventService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Events.Create(ctx, volunteer, &models.CreateEventRequest{Title: "x", Date: "2024-06-01"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Events.Create(ctx, organizer, &models.CreateEventRequest{Title: "x", Date: "next friday"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Events.Create(ctx, organizer, &models.CreateEventRequest{Title: "x", Date: "2024-06-01", MaxVolunteers: -1})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Events.Create(ctx, organizer, &models.CreateEventRequest{
		Title: "x", Date: "2024-06-01", Location: models.Location{Latitude: 91},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEventService_ListAndSearchFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.event(t, 0)
	_, err := f.svc.Events.Create(ctx, organizer, &models.CreateEventRequest{Title: "Mangrove planting", Date: "2024-07-01"})
	require.NoError(t, err)

	all, err := f.svc.Events.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := f.svc.Events.List(ctx, "MANGROVE", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Mangrove planting", found[0].Title)

	found, err = f.svc.Events.List(ctx, "pier", models.EventStatusUpcoming)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = f.svc.Events.List(ctx, "", "archived")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEventService_UpdateOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 5)

	title := "Renamed"
	other := Actor{UID: "org-2", Role: auth.RoleOrganizer}
	_, err := f.svc.Events.Update(ctx, other, e.ID, &models.UpdateEventRequest{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := f.svc.Events.Update(ctx, admin, e.ID, &models.UpdateEventRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	_, err = f.svc.Events.Update(ctx, organizer, "missing", &models.UpdateEventRequest{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEventService_RegistrationCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, full int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := Actor{UID: "vol-" + string(rune('a'+i)), Role: auth.RoleVolunteer}
			_, err := f.svc.Events.Register(ctx, actor, e.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, apperrors.ErrConflict) {
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, full)

	got, err := f.svc.Events.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.VolunteerIDs, 3)

	limit := 2
	_, err = f.svc.Events.Update(ctx, organizer, e.ID, &models.UpdateEventRequest{MaxVolunteers: &limit})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestEventService_RegisterTwiceAndUnregister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)
	b := f.bus(t, e.ID, 2, 2)

	_, err := f.svc.Events.Register(ctx, volunteer, e.ID)
	require.NoError(t, err)
	_, err = f.svc.Events.Register(ctx, volunteer, e.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.svc.Buses.BookSeat(ctx, volunteer, b.ID, 3)
	require.NoError(t, err)

	_, err = f.svc.Events.Unregister(ctx, volunteer, e.ID)
	require.NoError(t, err)

	after, err := f.svc.Buses.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Summary.Booked)

	_, err = f.svc.Events.Unregister(ctx, volunteer, e.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestEventService_DeleteRemovesBuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)
	b := f.bus(t, e.ID, 1, 4)

	assert.ErrorIs(t, f.svc.Events.Delete(ctx, volunteer, e.ID), apperrors.ErrForbidden)
	require.NoError(t, f.svc.Events.Delete(ctx, organizer, e.ID))

	_, err := f.svc.Buses.Get(ctx, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.svc.Events.Get(ctx, e.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBusService_CreateRejectsInvalidLayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)

	_, err := f.svc.Buses.Create(ctx, organizer, &models.CreateBusRequest{EventID: e.ID, RowCount: 0, SeatsPerRow: 4})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	buses, err := f.svc.Buses.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, buses)

	_, err = f.svc.Buses.Create(ctx, organizer, &models.CreateBusRequest{EventID: "missing", RowCount: 2, SeatsPerRow: 2})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBusService_CreateGeneratesSeats(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 0)
	b := f.bus(t, e.ID, 2, 4)

	assert.Len(t, b.Seats, 9)
	assert.Equal(t, 9, b.Summary.Total)
	assert.Equal(t, 9, b.Summary.Available)
	assert.Contains(t, f.publisher.published(), models.SubjectBusCreated)
}

func TestBusService_BookingRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)
	b := f.bus(t, e.ID, 2, 4)

	_, err := f.svc.Buses.BookSeat(ctx, volunteer, b.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "unregistered volunteer")

	_, err = f.svc.Events.Register(ctx, volunteer, e.ID)
	require.NoError(t, err)
	other := Actor{UID: "vol-2", Role: auth.RoleVolunteer}
	_, err = f.svc.Events.Register(ctx, other, e.ID)
	require.NoError(t, err)

	res, err := f.svc.Buses.BookSeat(ctx, volunteer, b.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Booked)

	_, err = f.svc.Buses.BookSeat(ctx, other, b.ID, 9)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = f.svc.Buses.BookSeat(ctx, volunteer, b.ID, 2)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = f.svc.Buses.BookSeat(ctx, other, b.ID, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Buses.ReleaseSeat(ctx, other, b.ID, 9)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.svc.Buses.ReleaseSeat(ctx, other, b.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	res, err = f.svc.Buses.ReleaseSeat(ctx, admin, b.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.Booked)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SeatOperations.WithLabelValues("book", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SeatOperations.WithLabelValues("book", "error")))
}

func TestBusService_ConcurrentBookingOfOneSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)
	b := f.bus(t, e.ID, 3, 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := Actor{UID: "org-" + string(rune('a'+i)), Role: auth.RoleOrganizer}
			if _, err := f.svc.Buses.BookSeat(ctx, actor, b.ID, 5); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestBusService_ReconfigureRefusedWhileBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)
	b := f.bus(t, e.ID, 2, 4)

	res, err := f.svc.Buses.Reconfigure(ctx, organizer, b.ID, &models.UpdateLayoutRequest{RowCount: 3, SeatsPerRow: 3})
	require.NoError(t, err)
	assert.Len(t, res.Seats, 10)

	_, err = f.svc.Buses.Reconfigure(ctx, organizer, b.ID, &models.UpdateLayoutRequest{RowCount: 0, SeatsPerRow: 3})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Buses.BookSeat(ctx, organizer, b.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Buses.Reconfigure(ctx, organizer, b.ID, &models.UpdateLayoutRequest{RowCount: 4, SeatsPerRow: 4})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	after, err := f.svc.Buses.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, after.Seats, 10)
}

func TestBusService_Preview(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Buses.Preview(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Capacity)

	_, err = f.svc.Buses.Preview(2, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestReportService_PhotoLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	png := []byte("\x89PNG\r\n\x1a\n0000")
	r, err := f.svc.Reports.Create(ctx, volunteer, &models.CreateReportRequest{
		Description: "Oil slick near the rocks",
		Latitude:    6.1,
		Longitude:   80.2,
		Photo:       png,
		PhotoName:   "IMG_001.PNG",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, r.Severity)
	assert.Equal(t, models.ReportStatusPending, r.Status)
	assert.Equal(t, "reports/"+r.ID+"/photo.png", r.PhotoPath)
	assert.Equal(t, "http://localhost:8080/blobs/reports/"+r.ID+"/photo.png", r.PhotoURL)

	obj, err := f.blobs.Open(ctx, r.PhotoPath)
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = f.svc.Reports.UpdateStatus(ctx, volunteer, r.ID, models.ReportStatusResolved)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	updated, err := f.svc.Reports.UpdateStatus(ctx, admin, r.ID, models.ReportStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, updated.Status)

	require.NoError(t, f.svc.Reports.Delete(ctx, admin, r.ID))
	_, err = f.blobs.Open(ctx, r.PhotoPath)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	_, err = f.svc.Reports.Get(ctx, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReportService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []*models.CreateReportRequest{
		{Description: ""},
		{Description: "x", Latitude: 100},
		{Description: "x", Longitude: -181},
		{Description: "x", Severity: "apocalyptic"},
		{Description: "x", Photo: []byte("plain text, not an image")},
		{Description: "x", Photo: make([]byte, 2048), PhotoType: "image/jpeg"},
	}
	for i, req := range cases {
		_, err := f.svc.Reports.Create(ctx, volunteer, req)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "case %d", i)
	}

	reports, err := f.svc.Reports.List(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestPhotoPath(t *testing.T) {
	assert.Equal(t, "reports/r1/photo.jpg", photoPath("r1", "beach.JPG"))
	assert.Equal(t, "reports/r1/photo", photoPath("r1", "noext"))
	assert.Equal(t, "reports/r1/photo", photoPath("r1", "../../etc/passwd.sh;rm"))
	assert.Equal(t, "reports/r1/photo.png", photoPath("r1", `C:\pics\a.png`))
}

func TestAnalytics_CompleteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)

	first, err := f.svc.Analytics.Report(ctx, analytics.ReportPerformance)
	require.NoError(t, err)
	var resp models.AnalyticsResponse
	require.NoError(t, json.Unmarshal(first, &resp))
	assert.Empty(t, resp.Buckets)

	_, err = f.svc.Events.Complete(ctx, volunteer, e.ID, analytics.Record{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	done, err := f.svc.Events.Complete(ctx, organizer, e.ID, analytics.Record{
		Metrics: map[analytics.MetricKey]float64{
			analytics.WasteCollected: 120,
			analytics.Participants:   6,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, done.Status)

	second, err := f.svc.Analytics.Report(ctx, analytics.ReportPerformance)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(second, &resp))
	require.Len(t, resp.Buckets, 1)
	assert.Equal(t, "2024-06", resp.Buckets[0].Month)
	assert.Equal(t, 120.0, resp.Buckets[0].Values[analytics.WasteCollected])
	require.NotNil(t, resp.Buckets[0].Ratios["efficiency"])
	assert.InDelta(t, 20.0, *resp.Buckets[0].Ratios["efficiency"], 1e-9)

	cached, err := f.cache.GetReport(ctx, analytics.ReportPerformance)
	require.NoError(t, err)
	assert.JSONEq(t, string(second), string(cached))
}

func TestAnalytics_CompleteRejectsBadDate(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 0)
	_, err := f.svc.Events.Complete(context.Background(), organizer, e.ID, analytics.Record{Date: "soon"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAnalytics_ReportUnknownAndCustom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Analytics.Report(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Analytics.Custom(ctx, "bogus:sum", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	require.NoError(t, f.repos.Completions.Save(ctx, "e1", analytics.Record{
		Date:    "2024-02-03",
		Metrics: map[analytics.MetricKey]float64{analytics.BusUsers: 30},
	}))
	require.NoError(t, f.repos.Completions.Save(ctx, "e2", analytics.Record{
		Date:    "garbage",
		Metrics: map[analytics.MetricKey]float64{analytics.BusUsers: 1000},
	}))

	res, err := f.svc.Analytics.Custom(ctx, "busUsers:sum", true)
	require.NoError(t, err)
	assert.Equal(t, CustomReport, res.Report)
	require.Len(t, res.Buckets, 1)
	assert.Equal(t, 30.0, res.Buckets[0].Values[analytics.BusUsers])
	assert.Equal(t, 1, res.Skipped)
	assert.NotNil(t, res.Composition)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AggregationSkipped))
}

func TestAnalytics_WatchRefreshesPresets(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.svc.Analytics.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_, err := f.cache.GetReport(ctx, analytics.ReportTransport)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.repos.Completions.Save(ctx, "e1", analytics.Record{
		Date: "2024-03-01",
		Metrics: map[analytics.MetricKey]float64{
			analytics.BusUsers:      10,
			analytics.TransportCost: 50,
		},
	}))

	require.Eventually(t, func() bool {
		data, err := f.cache.GetReport(ctx, analytics.ReportTransport)
		if err != nil {
			return false
		}
		var resp models.AnalyticsResponse
		if json.Unmarshal(data, &resp) != nil || len(resp.Buckets) != 1 {
			return false
		}
		ratio := resp.Buckets[0].Ratios["costPerRider"]
		return ratio != nil && *ratio == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

// racingStore runs afterQuery once, right after the first completions query
// has read its snapshot, and afterBusTx once after the first bus transaction
// commits.
type racingStore struct {
	docstore.Store
	queryOnce  sync.Once
	txOnce     sync.Once
	afterQuery func()
	afterBusTx func()
}

func (s *racingStore) RunTransaction(ctx context.Context, collection, id string, fn docstore.TxFunc) error {
	err := s.Store.RunTransaction(ctx, collection, id, fn)
	if err == nil && collection == models.CollectionBuses && s.afterBusTx != nil {
		s.txOnce.Do(s.afterBusTx)
	}
	return err
}

func (s *racingStore) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Snapshot, error) {
	snaps, err := s.Store.Query(ctx, collection, filters...)
	if collection == models.CollectionCompletions && s.afterQuery != nil {
		s.queryOnce.Do(s.afterQuery)
	}
	return snaps, err
}

func TestAnalytics_ReportComputedAcrossInvalidateIsNotCached(t *testing.T) {
	store := &racingStore{Store: docstore.NewMemoryStore()}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	record := func(mass float64) analytics.Record {
		return analytics.Record{
			Date:       "2024-06-01",
			Metrics:    map[analytics.MetricKey]float64{analytics.WasteCollected: mass},
			WasteTypes: []analytics.WasteType{{Type: "Plastics", Percentage: 100}},
		}
	}
	require.NoError(t, f.repos.Completions.Save(ctx, "e1", record(100)))
	store.afterQuery = func() {
		require.NoError(t, f.repos.Completions.Save(ctx, "e2", record(200)))
		f.svc.Analytics.Invalidate(ctx)
	}

	wasteCollected := func() float64 {
		data, err := f.svc.Analytics.Report(ctx, analytics.ReportWasteComposition)
		require.NoError(t, err)
		var resp models.AnalyticsResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		require.Len(t, resp.Buckets, 1)
		return resp.Buckets[0].Values[analytics.WasteCollected]
	}

	assert.Equal(t, 100.0, wasteCollected())
	_, err := f.cache.GetReport(ctx, analytics.ReportWasteComposition)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	assert.Equal(t, 300.0, wasteCollected())
	assert.Equal(t, 300.0, wasteCollected())
}

func TestBusService_BookingTakenBackWhenVolunteerLeftMeanwhile(t *testing.T) {
	store := &racingStore{Store: docstore.NewMemoryStore()}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	e := f.event(t, 0)
	bus := f.bus(t, e.ID, 2, 4)
	_, err := f.svc.Events.Register(ctx, volunteer, e.ID)
	require.NoError(t, err)

	// the volunteer leaves after the seat is written but before the booking
	// returns; the release pass of that unregister saw no seat yet
	store.afterBusTx = func() {
		_, err := f.repos.Events.Update(ctx, e.ID, func(ev *models.Event) error {
			ev.VolunteerIDs = nil
			return nil
		})
		require.NoError(t, err)
	}

	_, err = f.svc.Buses.BookSeat(ctx, volunteer, bus.ID, 9)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	got, err := f.svc.Buses.Get(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Summary.Booked)
	assert.NotContains(t, f.publisher.published(), models.SubjectSeatBooked)
}

func TestEventService_CompleteRejectsNonFiniteMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 0)

	_, err := f.svc.Events.Complete(ctx, organizer, e.ID, analytics.Record{
		Metrics: map[analytics.MetricKey]float64{analytics.WasteCollected: math.Inf(1)},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	records, err := f.repos.Completions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	got, err := f.svc.Events.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusUpcoming, got.Status)
}

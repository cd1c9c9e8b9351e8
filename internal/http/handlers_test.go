package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/room-booking/internal/application"
)

type stubBookingService struct {
	createFn func(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	updateFn func(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	deleteFn func(ctx context.Context, principal application.Principal, ref string) error
	listFn   func(ctx context.Context) ([]application.Booking, error)
}

func (s *stubBookingService) CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error) {
	return s.createFn(ctx, params)
}

func (s *stubBookingService) UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	return s.updateFn(ctx, params)
}

func (s *stubBookingService) DeleteBooking(ctx context.Context, principal application.Principal, ref string) error {
	return s.deleteFn(ctx, principal, ref)
}

func (s *stubBookingService) ListBookings(ctx context.Context) ([]application.Booking, error) {
	return s.listFn(ctx)
}

type stubRoomService struct {
	rooms []application.Room
	err   error
}

func (s *stubRoomService) ListAvailableRooms(context.Context) ([]application.Room, error) {
	return s.rooms, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, bookings bookingService, middleware ...func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	return NewRouter(RouterConfig{
		Bookings:   NewBookingHandler(bookings, nil),
		Rooms:      NewRoomHandler(&stubRoomService{rooms: []application.Room{{ID: "sala-1", Name: "Sala 1", Capacity: 8, Status: "available"}}}, nil),
		Health:     stubPinger{},
		Middleware: middleware,
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &stubBookingService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, SchemaVersion, body["version"])
}

func TestCreateBooking_Envelope(t *testing.T) {
	t.Parallel()

	service := &stubBookingService{
		createFn: func(_ context.Context, params application.CreateBookingParams) (application.Booking, error) {
			booking := application.Booking{
				ID:              "b-1",
				ExternalID:      params.Input.ExternalID,
				Room:            params.Input.Room,
				Date:            params.Input.Date,
				StartTime:       params.Input.StartTime,
				DurationMinutes: params.Input.DurationMinutes,
				Status:          application.StatusPending,
			}
			return booking, nil
		},
	}
	router := newTestRouter(t, service)

	payload := `{"externalId":"ext-1","room":"sala-1","date":"2026-03-03","startTime":"09:00","durationMinutes":60,"requester":"Ana","contact":"ana@example.com","subject":"Planning"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(payload)))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, SchemaVersion, body["version"])
	booking, ok := body["booking"].(map[string]any)
	require.True(t, ok, "expected booking object, got %v", body)
	assert.Equal(t, "b-1", booking["id"])
	assert.Equal(t, "ext-1", booking["externalId"])
}

func TestCreateBooking_ValidationEnvelope(t *testing.T) {
	t.Parallel()

	service := &stubBookingService{
		createFn: func(context.Context, application.CreateBookingParams) (application.Booking, error) {
			return application.Booking{}, &application.ValidationError{FieldErrors: map[string]string{"date": "date must not be in the past"}}
		},
	}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	errorsMap, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errorsMap, "date")
}

func TestCreateBooking_ConflictCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "duplicate external id", err: application.ErrDuplicateExternalID, wantCode: "DUPLICATE_EXTERNAL_ID"},
		{name: "time conflict", err: &application.ConflictError{WithBookingID: "b-9"}, wantCode: "TIME_CONFLICT"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service := &stubBookingService{
				createFn: func(context.Context, application.CreateBookingParams) (application.Booking, error) {
					return application.Booking{}, tt.err
				},
			}
			router := newTestRouter(t, service)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{}`)))

			require.Equal(t, http.StatusConflict, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["error_code"])
		})
	}
}

func TestUpdateBooking_RequiresRef(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &stubBookingService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/bookings", strings.NewReader(`{"notes":"x"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
}

func TestDeleteBooking_ForbiddenWithoutAdmin(t *testing.T) {
	t.Parallel()

	service := &stubBookingService{
		deleteFn: func(_ context.Context, principal application.Principal, _ string) error {
			if !principal.IsAdmin {
				return application.ErrUnauthorized
			}
			return nil
		},
	}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/bookings", strings.NewReader(`{"id":"b-1"}`)))

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FORBIDDEN", body["error_code"])
}

func TestAdminTagger(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	var seen application.Principal
	service := &stubBookingService{
		deleteFn: func(_ context.Context, principal application.Principal, _ string) error {
			seen = principal
			return nil
		},
	}
	router := newTestRouter(t, service, AdminTagger(hash, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/bookings", strings.NewReader(`{"id":"b-1"}`))
	req.Header.Set(AdminSecretHeader, "hunter2")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen.IsAdmin)

	req = httptest.NewRequest(http.MethodDelete, "/api/bookings", strings.NewReader(`{"id":"b-1"}`))
	req.Header.Set(AdminSecretHeader, "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListRooms(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &stubBookingService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	rooms, ok := body["rooms"].([]any)
	require.True(t, ok)
	require.Len(t, rooms, 1)
	room := rooms[0].(map[string]any)
	assert.Equal(t, "sala-1", room["id"])
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Typed failures reported by the API client. ErrUnavailable covers transport
// level failures where the outcome on the server is unknown; the other
// errors are definitive answers from the server.
var (
	ErrConflict    = errors.New("client: slot conflict")
	ErrDuplicate   = errors.New("client: duplicate external id")
	ErrNotFound    = errors.New("client: booking not found")
	ErrRejected    = errors.New("client: request rejected")
	ErrUnavailable = errors.New("client: server unavailable")
)

// RejectionError wraps ErrRejected with the field errors the server reported.
type RejectionError struct {
	Message     string
	FieldErrors map[string]string
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "request rejected"
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// Booking mirrors the server's booking representation.
type Booking struct {
	ID              string `json:"id"`
	ExternalID      string `json:"externalId"`
	Room            string `json:"room"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	DurationMinutes int    `json:"durationMinutes"`
	Requester       string `json:"requester"`
	Contact         string `json:"contact"`
	Subject         string `json:"subject"`
	Notes           string `json:"notes,omitempty"`
	Status          string `json:"status"`
	Origin          string `json:"origin,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// Room mirrors the server's room representation.
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Equipment string `json:"equipment,omitempty"`
	Status    string `json:"status"`
}

// BookingPatch carries the fields of a partial update. Nil pointers leave
// the stored value untouched.
type BookingPatch struct {
	Room            *string `json:"room,omitempty"`
	Date            *string `json:"date,omitempty"`
	StartTime       *string `json:"startTime,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	Requester       *string `json:"requester,omitempty"`
	Contact         *string `json:"contact,omitempty"`
	Subject         *string `json:"subject,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Status          *string `json:"status,omitempty"`
}

// API talks to the booking server. Mutations address their target in the
// request body.
type API struct {
	baseURL     string
	adminSecret string
	httpClient  *http.Client
}

// NewAPI builds a client for the server at baseURL. The admin secret may be
// empty; it is attached to every request when set.
func NewAPI(baseURL, adminSecret string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{
		baseURL:     strings.TrimRight(baseURL, "/"),
		adminSecret: adminSecret,
		httpClient:  httpClient,
	}
}

type apiEnvelope struct {
	Success   bool              `json:"success"`
	Version   string            `json:"version"`
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
	Booking   *Booking          `json:"booking"`
	Bookings  []Booking         `json:"bookings"`
	Rooms     []Room            `json:"rooms"`
}

// Ping reports whether the server answers its health endpoint.
func (a *API) Ping(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodGet, "/api/health", nil)
	return err
}

// ListBookings fetches every booking known to the server.
func (a *API) ListBookings(ctx context.Context) ([]Booking, error) {
	env, err := a.do(ctx, http.MethodGet, "/api/bookings", nil)
	if err != nil {
		return nil, err
	}
	return env.Bookings, nil
}

// ListRooms fetches the available room catalog.
func (a *API) ListRooms(ctx context.Context) ([]Room, error) {
	env, err := a.do(ctx, http.MethodGet, "/api/rooms", nil)
	if err != nil {
		return nil, err
	}
	return env.Rooms, nil
}

// CreateBooking submits a booking. The external id makes retries idempotent:
// a replay of an already applied create answers ErrDuplicate.
func (a *API) CreateBooking(ctx context.Context, booking Booking) (Booking, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/bookings", booking)
	if err != nil {
		return Booking{}, err
	}
	if env.Booking == nil {
		return Booking{}, fmt.Errorf("%w: response carried no booking", ErrUnavailable)
	}
	return *env.Booking, nil
}

type updateRequest struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	BookingPatch
}

// UpdateBooking patches the booking identified by ref.
func (a *API) UpdateBooking(ctx context.Context, ref string, patch BookingPatch) (Booking, error) {
	env, err := a.do(ctx, http.MethodPut, "/api/bookings", updateRequest{ExternalID: ref, BookingPatch: patch})
	if err != nil {
		return Booking{}, err
	}
	if env.Booking == nil {
		return Booking{}, fmt.Errorf("%w: response carried no booking", ErrUnavailable)
	}
	return *env.Booking, nil
}

// DeleteBooking removes the booking identified by ref. Deletion is an
// administrative operation on the server.
func (a *API) DeleteBooking(ctx context.Context, ref string) error {
	_, err := a.do(ctx, http.MethodDelete, "/api/bookings", map[string]string{"externalId": ref})
	return err
}

func (a *API) do(ctx context.Context, method, path string, payload any) (apiEnvelope, error) {
	var body *bytes.Buffer
	if payload != nil {
		body = &bytes.Buffer{}
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			return apiEnvelope{}, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return apiEnvelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", a.adminSecret)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apiEnvelope{}, fmt.Errorf("%w: malformed response", ErrUnavailable)
	}

	if env.Success {
		return env, nil
	}
	return apiEnvelope{}, mapAPIError(resp.StatusCode, env)
}

func mapAPIError(status int, env apiEnvelope) error {
	switch env.ErrorCode {
	case "TIME_CONFLICT":
		return fmt.Errorf("%w: %s", ErrConflict, env.Message)
	case "DUPLICATE_EXTERNAL_ID":
		return ErrDuplicate
	case "NOT_FOUND":
		return ErrNotFound
	case "VALIDATION_FAILED", "FORBIDDEN":
		return &RejectionError{Message: env.Message, FieldErrors: env.Errors}
	}
	if status >= 500 {
		return fmt.Errorf("%w: %s", ErrUnavailable, env.Message)
	}
	return &RejectionError{Message: env.Message, FieldErrors: env.Errors}
}

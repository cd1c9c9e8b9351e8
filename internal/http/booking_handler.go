package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	DeleteBooking(ctx context.Context, principal application.Principal, ref string) error
	ListBookings(ctx context.Context) ([]application.Booking, error)
}

// BookingHandler serves the booking collection. All mutations address their
// target through the request body, never the path.
type BookingHandler struct {
	service   bookingService
	responder responder
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: service, responder: newResponder(logger)}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookings, err := h.service.ListBookings(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{
		meta:     okMeta(),
		Bookings: toBookingDTOs(bookings),
	})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeValidationFailed, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{
		meta:    okMeta(),
		Booking: toBookingDTO(booking),
	})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeValidationFailed, errBadRequestBody)
		return
	}

	ref := req.ref()
	if ref == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeValidationFailed, errMissingRef)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		Ref:       ref,
		Patch:     req.toPatch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{
		meta:    okMeta(),
		Booking: toBookingDTO(booking),
	})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req deleteBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeValidationFailed, errBadRequestBody)
		return
	}

	ref := req.ref()
	if ref == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeValidationFailed, errMissingRef)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteBooking(r.Context(), principal, ref); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, meta{Success: true, Version: SchemaVersion})
}

type bookingRequest struct {
	ExternalID      string `json:"externalId"`
	Room            string `json:"room"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	DurationMinutes int    `json:"durationMinutes"`
	Requester       string `json:"requester"`
	Contact         string `json:"contact"`
	Subject         string `json:"subject"`
	Notes           string `json:"notes"`
	Status          string `json:"status"`
	Origin          string `json:"origin"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		ExternalID:      strings.TrimSpace(r.ExternalID),
		Room:            strings.TrimSpace(r.Room),
		Date:            strings.TrimSpace(r.Date),
		StartTime:       strings.TrimSpace(r.StartTime),
		DurationMinutes: r.DurationMinutes,
		Requester:       strings.TrimSpace(r.Requester),
		Contact:         strings.TrimSpace(r.Contact),
		Subject:         strings.TrimSpace(r.Subject),
		Notes:           r.Notes,
		Status:          strings.TrimSpace(r.Status),
		Origin:          strings.TrimSpace(r.Origin),
	}
}

type updateBookingRequest struct {
	ID              string  `json:"id"`
	ExternalID      string  `json:"externalId"`
	Room            *string `json:"room"`
	Date            *string `json:"date"`
	StartTime       *string `json:"startTime"`
	DurationMinutes *int    `json:"durationMinutes"`
	Requester       *string `json:"requester"`
	Contact         *string `json:"contact"`
	Subject         *string `json:"subject"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
}

func (r updateBookingRequest) ref() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ExternalID)
}

func (r updateBookingRequest) toPatch() application.BookingPatch {
	return application.BookingPatch{
		Room:            r.Room,
		Date:            r.Date,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		Requester:       r.Requester,
		Contact:         r.Contact,
		Subject:         r.Subject,
		Notes:           r.Notes,
		Status:          r.Status,
	}
}

type deleteBookingRequest struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
}

func (r deleteBookingRequest) ref() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ExternalID)
}

type bookingResponse struct {
	meta
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	meta
	Bookings []bookingDTO `json:"bookings"`
}

type bookingDTO struct {
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
	Origin          string `json:"origin"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:              booking.ID,
		ExternalID:      booking.ExternalID,
		Room:            booking.Room,
		Date:            booking.Date,
		StartTime:       booking.StartTime,
		DurationMinutes: booking.DurationMinutes,
		Requester:       booking.Requester,
		Contact:         booking.Contact,
		Subject:         booking.Subject,
		Notes:           booking.Notes,
		Status:          booking.Status,
		Origin:          booking.Origin,
		CreatedAt:       booking.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       booking.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

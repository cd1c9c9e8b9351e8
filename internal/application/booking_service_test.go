package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type stubBookingRepository struct {
	bookings map[string]Booking

	createErr error
	updateErr error
}

func newStubBookingRepository() *stubBookingRepository {
	return &stubBookingRepository{bookings: make(map[string]Booking)}
}

func (r *stubBookingRepository) CreateBooking(_ context.Context, booking Booking, guard ConflictGuard) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, b := range r.bookings {
		if b.ExternalID == booking.ExternalID {
			return persistence.ErrDuplicateExternalID
		}
	}
	if guard != nil {
		if err := guard(r.slotNeighbors(booking)); err != nil {
			return err
		}
	}
	r.bookings[booking.ID] = booking
	return nil
}

func (r *stubBookingRepository) UpdateBooking(_ context.Context, booking Booking, guard ConflictGuard) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.bookings[booking.ID]; !ok {
		return persistence.ErrNotFound
	}
	if guard != nil {
		if err := guard(r.slotNeighbors(booking)); err != nil {
			return err
		}
	}
	r.bookings[booking.ID] = booking
	return nil
}

func (r *stubBookingRepository) GetBooking(_ context.Context, id string) (Booking, error) {
	booking, ok := r.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (r *stubBookingRepository) GetBookingByExternalID(_ context.Context, externalID string) (Booking, error) {
	for _, b := range r.bookings {
		if b.ExternalID == externalID {
			return b, nil
		}
	}
	return Booking{}, persistence.ErrNotFound
}

func (r *stubBookingRepository) ListBookings(_ context.Context) ([]Booking, error) {
	out := make([]Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		out = append(out, b)
	}
	return out, nil
}

func (r *stubBookingRepository) DeleteBooking(_ context.Context, id string) error {
	if _, ok := r.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *stubBookingRepository) slotNeighbors(booking Booking) []Booking {
	var out []Booking
	for _, b := range r.bookings {
		if b.Room == booking.Room && b.Date == booking.Date {
			out = append(out, b)
		}
	}
	return out
}

type stubRoomCatalog struct {
	rooms map[string]bool
}

func (c *stubRoomCatalog) RoomExists(_ context.Context, id string) (bool, error) {
	return c.rooms[id], nil
}

type recordingAudit struct {
	entries []AuditEntry
}

func (a *recordingAudit) Append(_ context.Context, entry AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
}

func newTestService(repo *stubBookingRepository, audit *recordingAudit) *BookingService {
	catalog := &stubRoomCatalog{rooms: map[string]bool{"sala-1": true, "sala-2": true}}
	return NewBookingService(repo, catalog, audit, DefaultRules(), sequentialIDs(), fixedClock)
}

func validInput() BookingInput {
	return BookingInput{
		Room:            "sala-1",
		Date:            "2026-03-03",
		StartTime:       "09:00",
		DurationMinutes: 60,
		Requester:       "Ana",
		Contact:         "ana@example.com",
		Subject:         "Planning",
	}
}

func TestCreateBooking_Succeeds(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	audit := &recordingAudit{}
	service := newTestService(repo, audit)

	booking, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()})
	if err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}
	if booking.ID == "" {
		t.Error("expected generated id")
	}
	if booking.ExternalID == "" {
		t.Error("expected generated external id")
	}
	if booking.Status != StatusPending {
		t.Errorf("expected status pending, got %s", booking.Status)
	}
	if len(audit.entries) != 1 || audit.entries[0].Outcome != "success" {
		t.Errorf("expected one success audit entry, got %+v", audit.entries)
	}
}

func TestCreateBooking_ValidationOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*BookingInput)
		field   string
		message string
	}{
		{
			name:   "missing room",
			mutate: func(in *BookingInput) { in.Room = "" },
			field:  "room",
		},
		{
			name:   "invalid contact",
			mutate: func(in *BookingInput) { in.Contact = "not-an-email" },
			field:  "contact",
		},
		{
			name:   "past date",
			mutate: func(in *BookingInput) { in.Date = "2026-03-01" },
			field:  "date",
		},
		{
			name:   "weekend date",
			mutate: func(in *BookingInput) { in.Date = "2026-03-07" },
			field:  "date",
		},
		{
			name:   "zero duration",
			mutate: func(in *BookingInput) { in.DurationMinutes = 0 },
			field:  "durationMinutes",
		},
		{
			name:   "duration over cap",
			mutate: func(in *BookingInput) { in.DurationMinutes = 481 },
			field:  "durationMinutes",
		},
		{
			name:   "start before opening",
			mutate: func(in *BookingInput) { in.StartTime = "07:30" },
			field:  "startTime",
		},
		{
			name:   "start after closing",
			mutate: func(in *BookingInput) { in.StartTime = "18:30" },
			field:  "startTime",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service := newTestService(newStubBookingRepository(), &recordingAudit{})
			input := validInput()
			tt.mutate(&input)

			_, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: input})

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Errorf("expected error on field %q, got %v", tt.field, vErr.FieldErrors)
			}
		})
	}
}

func TestCreateBooking_UnknownRoom(t *testing.T) {
	t.Parallel()

	service := newTestService(newStubBookingRepository(), &recordingAudit{})
	input := validInput()
	input.Room = "sala-9"

	_, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: input})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["room"]; !ok {
		t.Errorf("expected error on field room, got %v", vErr.FieldErrors)
	}
}

func TestCreateBooking_DuplicateExternalID(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	input := validInput()
	input.ExternalID = "ext-1"
	if _, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: input}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	retry := validInput()
	retry.ExternalID = "ext-1"
	retry.StartTime = "14:00"
	_, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: retry})
	if !errors.Is(err, ErrDuplicateExternalID) {
		t.Fatalf("expected ErrDuplicateExternalID, got %v", err)
	}
	if len(repo.bookings) != 1 {
		t.Errorf("expected a single stored booking, got %d", len(repo.bookings))
	}
}

func TestCreateBooking_TrailingBufferConflict(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	if _, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()}); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	// 09:00 plus 60 minutes plus the 15 minute buffer blocks starts before
	// 10:15.
	blocked := validInput()
	blocked.StartTime = "10:00"
	_, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: blocked})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	allowed := validInput()
	allowed.StartTime = "10:15"
	if _, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: allowed}); err != nil {
		t.Fatalf("expected 10:15 start to be admissible, got %v", err)
	}
}

func TestCreateBooking_NonAdminCannotPresetStatus(t *testing.T) {
	t.Parallel()

	service := newTestService(newStubBookingRepository(), &recordingAudit{})
	input := validInput()
	input.Status = StatusConfirmed

	_, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: input})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	_, err = service.CreateBooking(context.Background(), CreateBookingParams{
		Principal: Principal{IsAdmin: true},
		Input:     input,
	})
	if err != nil {
		t.Fatalf("admin create with preset status failed: %v", err)
	}
}

func TestUpdateBooking_StatusRequiresAdmin(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	created, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	confirmed := StatusConfirmed
	_, err = service.UpdateBooking(context.Background(), UpdateBookingParams{
		Ref:   created.ID,
		Patch: BookingPatch{Status: &confirmed},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	updated, err := service.UpdateBooking(context.Background(), UpdateBookingParams{
		Principal: Principal{IsAdmin: true},
		Ref:       created.ID,
		Patch:     BookingPatch{Status: &confirmed},
	})
	if err != nil {
		t.Fatalf("admin status update failed: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", updated.Status)
	}
}

func TestUpdateBooking_RejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	created, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cancelled := StatusCancelled
	if _, err := service.UpdateBooking(context.Background(), UpdateBookingParams{
		Principal: Principal{IsAdmin: true},
		Ref:       created.ID,
		Patch:     BookingPatch{Status: &cancelled},
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	confirmed := StatusConfirmed
	_, err = service.UpdateBooking(context.Background(), UpdateBookingParams{
		Principal: Principal{IsAdmin: true},
		Ref:       created.ID,
		Patch:     BookingPatch{Status: &confirmed},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for cancelled to confirmed, got %v", err)
	}
}

func TestUpdateBooking_MoveRerunsConflictCheck(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	first, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := validInput()
	second.StartTime = "11:00"
	moved, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: second})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	// Moving the 11:00 booking onto the first booking's buffered window must
	// fail with a conflict naming the first booking.
	clash := "10:00"
	_, err = service.UpdateBooking(context.Background(), UpdateBookingParams{
		Ref:   moved.ID,
		Patch: BookingPatch{StartTime: &clash},
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.WithBookingID != first.ID {
		t.Errorf("expected conflict with %s, got %s", first.ID, conflict.WithBookingID)
	}

	// Keeping its own slot is never a self conflict.
	same := "11:00"
	if _, err := service.UpdateBooking(context.Background(), UpdateBookingParams{
		Ref:   moved.ID,
		Patch: BookingPatch{StartTime: &same},
	}); err != nil {
		t.Fatalf("no-op move failed: %v", err)
	}
}

func TestUpdateBooking_UncancelRerunsConflictCheck(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})
	admin := Principal{IsAdmin: true}

	first, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	cancelled := StatusCancelled
	if _, err := service.UpdateBooking(context.Background(), UpdateBookingParams{
		Principal: admin,
		Ref:       first.ID,
		Patch:     BookingPatch{Status: &cancelled},
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// The freed slot is taken by another booking.
	if _, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()}); err != nil {
		t.Fatalf("replacement create failed: %v", err)
	}

	pending := StatusPending
	_, err = service.UpdateBooking(context.Background(), UpdateBookingParams{
		Principal: admin,
		Ref:       first.ID,
		Patch:     BookingPatch{Status: &pending},
	})
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		t.Fatalf("expected conflict, got validation error %v", vErr.FieldErrors)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError when re-occupying a taken slot, got %v", err)
	}
}

func TestUpdateBooking_ResolvesExternalID(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	input := validInput()
	input.ExternalID = "ext-42"
	created, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: input})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	notes := "moved by reception"
	updated, err := service.UpdateBooking(context.Background(), UpdateBookingParams{
		Ref:   "ext-42",
		Patch: BookingPatch{Notes: &notes},
	})
	if err != nil {
		t.Fatalf("update by external id failed: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected booking %s, got %s", created.ID, updated.ID)
	}
	if updated.Notes != notes {
		t.Errorf("expected notes to be patched, got %q", updated.Notes)
	}
}

func TestDeleteBooking_RequiresAdmin(t *testing.T) {
	t.Parallel()

	repo := newStubBookingRepository()
	service := newTestService(repo, &recordingAudit{})

	created, err := service.CreateBooking(context.Background(), CreateBookingParams{Input: validInput()})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := service.DeleteBooking(context.Background(), Principal{}, created.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := service.DeleteBooking(context.Background(), Principal{IsAdmin: true}, created.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if _, err := service.GetBooking(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteBooking_UnknownRef(t *testing.T) {
	t.Parallel()

	service := newTestService(newStubBookingRepository(), &recordingAudit{})
	err := service.DeleteBooking(context.Background(), Principal{IsAdmin: true}, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

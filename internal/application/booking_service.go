package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// ConflictGuard inspects the bookings stored for the same room and date as a
// pending write and rejects the write when the slot is taken. Repositories
// run the guard inside the same transaction as the write.
type ConflictGuard func(existing []Booking) error

// BookingRepository captures the persistence interactions needed by the
// booking service.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, guard ConflictGuard) error
	UpdateBooking(ctx context.Context, booking Booking, guard ConflictGuard) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	GetBookingByExternalID(ctx context.Context, externalID string) (Booking, error)
	ListBookings(ctx context.Context) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// RoomCatalog exposes room lookup operations.
type RoomCatalog interface {
	RoomExists(ctx context.Context, id string) (bool, error)
}

// BookingService orchestrates validation, conflict detection, and
// persistence for booking operations.
type BookingService struct {
	bookings    BookingRepository
	rooms       RoomCatalog
	audit       AuditRecorder
	rules       Rules
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingRepository, rooms RoomCatalog, audit AuditRecorder, rules Rules, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, audit, rules, idGenerator, now, nil)
}

// NewBookingServiceWithLogger wires dependencies plus a logger used for
// swallowed audit failures.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomCatalog, audit AuditRecorder, rules Rules, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingService{
		bookings:    bookings,
		rooms:       rooms,
		audit:       audit,
		rules:       rules,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// CreateBooking validates the request, checks external id idempotency and
// slot availability, and persists the booking. The duplicate check, the
// conflict check, and the insert share one transaction inside the
// repository.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (Booking, error) {
	input := params.Input

	vErr := &ValidationError{}
	s.validateNewBooking(input, vErr)
	if vErr.HasErrors() {
		s.recordAudit(ctx, "POST", "rejected", "validation failed")
		return Booking{}, vErr
	}

	if err := s.ensureRoomExists(ctx, strings.TrimSpace(input.Room), vErr); err != nil {
		return Booking{}, err
	}
	if vErr.HasErrors() {
		s.recordAudit(ctx, "POST", "rejected", "unknown room "+input.Room)
		return Booking{}, vErr
	}

	status := input.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && !params.Principal.IsAdmin {
		return Booking{}, ErrUnauthorized
	}

	origin := input.Origin
	if origin == "" {
		origin = OriginWeb
	}

	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		externalID = s.idGenerator()
	}

	createdAt := s.now()
	booking := Booking{
		ID:              s.idGenerator(),
		ExternalID:      externalID,
		Room:            strings.TrimSpace(input.Room),
		Date:            strings.TrimSpace(input.Date),
		StartTime:       strings.TrimSpace(input.StartTime),
		DurationMinutes: input.DurationMinutes,
		Requester:       strings.TrimSpace(input.Requester),
		Contact:         strings.TrimSpace(input.Contact),
		Subject:         strings.TrimSpace(input.Subject),
		Notes:           input.Notes,
		Status:          status,
		Origin:          origin,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}

	if err := s.bookings.CreateBooking(ctx, booking, s.conflictGuard(booking, "")); err != nil {
		mapped := mapBookingRepoError(err)
		s.recordAudit(ctx, "POST", "rejected", mapped.Error())
		return Booking{}, mapped
	}

	s.recordAudit(ctx, "POST", "success", "created "+booking.ID)
	return booking, nil
}

// UpdateBooking applies an allow-listed partial patch to the booking
// identified by params.Ref. Patches that move the booking to another slot
// (room, date, start time, duration, or a status change that re-occupies the
// slot) re-run the conflict checker against the target slot.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (Booking, error) {
	current, err := s.findBooking(ctx, params.Ref)
	if err != nil {
		s.recordAudit(ctx, "PUT", "rejected", "booking not found")
		return Booking{}, err
	}

	patch := params.Patch
	if patch.Status != nil && !params.Principal.IsAdmin {
		return Booking{}, ErrUnauthorized
	}

	updated := current
	vErr := &ValidationError{}
	s.applyPatch(&updated, patch, vErr)
	if patch.Status != nil && !validTransition(current.Status, *patch.Status) {
		vErr.add("status", fmt.Sprintf("cannot transition from %s to %s", current.Status, *patch.Status))
	}
	if vErr.HasErrors() {
		s.recordAudit(ctx, "PUT", "rejected", "validation failed")
		return Booking{}, vErr
	}

	if patch.Room != nil {
		if err := s.ensureRoomExists(ctx, updated.Room, vErr); err != nil {
			return Booking{}, err
		}
		if vErr.HasErrors() {
			return Booking{}, vErr
		}
	}

	var guard ConflictGuard
	if slotAffecting(current, patch) {
		guard = s.conflictGuard(updated, current.ID)
	}

	updated.UpdatedAt = s.now()
	if err := s.bookings.UpdateBooking(ctx, updated, guard); err != nil {
		mapped := mapBookingRepoError(err)
		s.recordAudit(ctx, "PUT", "rejected", mapped.Error())
		return Booking{}, mapped
	}

	s.recordAudit(ctx, "PUT", "success", "updated "+updated.ID)
	return updated, nil
}

// DeleteBooking hard-deletes the booking identified by ref. Deletion is an
// administrative operation.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, ref string) error {
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	current, err := s.findBooking(ctx, ref)
	if err != nil {
		s.recordAudit(ctx, "DELETE", "rejected", "booking not found")
		return err
	}

	if err := s.bookings.DeleteBooking(ctx, current.ID); err != nil {
		mapped := mapBookingRepoError(err)
		s.recordAudit(ctx, "DELETE", "rejected", mapped.Error())
		return mapped
	}

	s.recordAudit(ctx, "DELETE", "success", "deleted "+current.ID)
	return nil
}

// GetBooking resolves ref as a server id first, then as an external id.
func (s *BookingService) GetBooking(ctx context.Context, ref string) (Booking, error) {
	return s.findBooking(ctx, ref)
}

// ListBookings returns all bookings ordered by (date, start time).
func (s *BookingService) ListBookings(ctx context.Context) ([]Booking, error) {
	bookings, err := s.bookings.ListBookings(ctx)
	if err != nil {
		return nil, mapBookingRepoError(err)
	}
	return bookings, nil
}

// Rules exposes the scheduling policy so boundaries can report it.
func (s *BookingService) Rules() Rules {
	return s.rules
}

func (s *BookingService) findBooking(ctx context.Context, ref string) (Booking, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Booking{}, ErrNotFound
	}

	booking, err := s.bookings.GetBooking(ctx, ref)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return Booking{}, mapBookingRepoError(err)
	}

	booking, err = s.bookings.GetBookingByExternalID(ctx, ref)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	return booking, nil
}

func (s *BookingService) ensureRoomExists(ctx context.Context, room string, vErr *ValidationError) error {
	if s.rooms == nil {
		return nil
	}
	exists, err := s.rooms.RoomExists(ctx, room)
	if err != nil {
		return err
	}
	if !exists {
		vErr.add("room", "room does not exist")
	}
	return nil
}

// validateNewBooking checks every field a create request must carry, in the
// order the API reports them: required fields, contact format, past date,
// duration bounds, business hours and weekday.
func (s *BookingService) validateNewBooking(input BookingInput, vErr *ValidationError) {
	required := []struct {
		field string
		value string
	}{
		{"room", input.Room},
		{"date", input.Date},
		{"startTime", input.StartTime},
		{"requester", input.Requester},
		{"contact", input.Contact},
		{"subject", input.Subject},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			vErr.add(r.field, r.field+" is required")
		}
	}
	if vErr.HasErrors() {
		return
	}

	s.validateContact(input.Contact, vErr)
	s.validateDate(input.Date, vErr)
	s.validateDuration(input.DurationMinutes, vErr)
	s.validateStartTime(input.StartTime, vErr)
}

func (s *BookingService) validateContact(contact string, vErr *ValidationError) {
	if _, err := mail.ParseAddress(strings.TrimSpace(contact)); err != nil {
		vErr.add("contact", "contact must be a valid email address")
	}
}

func (s *BookingService) validateDate(date string, vErr *ValidationError) {
	date = strings.TrimSpace(date)
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		vErr.add("date", "date must use the YYYY-MM-DD format")
		return
	}
	if date < s.now().Format(DateLayout) {
		vErr.add("date", "date must not be in the past")
		return
	}
	if len(s.rules.Weekdays) > 0 && !s.rules.Weekdays[parsed.Weekday()] {
		vErr.add("date", "bookings are not accepted on "+parsed.Weekday().String())
	}
}

func (s *BookingService) validateDuration(duration int, vErr *ValidationError) {
	if duration <= 0 {
		vErr.add("durationMinutes", "duration must be positive")
		return
	}
	if s.rules.MaxDurationMinutes > 0 && duration > s.rules.MaxDurationMinutes {
		vErr.add("durationMinutes", fmt.Sprintf("duration must not exceed %d minutes", s.rules.MaxDurationMinutes))
	}
}

func (s *BookingService) validateStartTime(startTime string, vErr *ValidationError) {
	minute, err := MinuteOfDay(strings.TrimSpace(startTime))
	if err != nil {
		vErr.add("startTime", "startTime must use the HH:MM format")
		return
	}
	if minute < s.rules.OpenMinute || minute > s.rules.CloseMinute {
		vErr.add("startTime", "startTime is outside business hours")
	}
}

// applyPatch copies the allow-listed patch fields onto the booking,
// validating each patched field individually. Unpatched fields are not
// re-validated, so administrative changes to bookings whose date has since
// passed remain possible.
func (s *BookingService) applyPatch(booking *Booking, patch BookingPatch, vErr *ValidationError) {
	if patch.Room != nil {
		booking.Room = strings.TrimSpace(*patch.Room)
		if booking.Room == "" {
			vErr.add("room", "room is required")
		}
	}
	if patch.Date != nil {
		booking.Date = strings.TrimSpace(*patch.Date)
		s.validateDate(booking.Date, vErr)
	}
	if patch.StartTime != nil {
		booking.StartTime = strings.TrimSpace(*patch.StartTime)
		s.validateStartTime(booking.StartTime, vErr)
	}
	if patch.DurationMinutes != nil {
		booking.DurationMinutes = *patch.DurationMinutes
		s.validateDuration(booking.DurationMinutes, vErr)
	}
	if patch.Requester != nil {
		booking.Requester = strings.TrimSpace(*patch.Requester)
		if booking.Requester == "" {
			vErr.add("requester", "requester is required")
		}
	}
	if patch.Contact != nil {
		booking.Contact = strings.TrimSpace(*patch.Contact)
		s.validateContact(booking.Contact, vErr)
	}
	if patch.Subject != nil {
		booking.Subject = strings.TrimSpace(*patch.Subject)
		if booking.Subject == "" {
			vErr.add("subject", "subject is required")
		}
	}
	if patch.Notes != nil {
		booking.Notes = *patch.Notes
	}
	if patch.Status != nil {
		booking.Status = *patch.Status
	}
}

// slotAffecting reports whether the patch can change which slot the booking
// occupies. A cancelled booking returning to an occupying status counts: it
// must pass the conflict checker again.
func slotAffecting(current Booking, patch BookingPatch) bool {
	if patch.Room != nil || patch.Date != nil || patch.StartTime != nil || patch.DurationMinutes != nil {
		return true
	}
	if patch.Status != nil && current.Status == StatusCancelled && *patch.Status != StatusCancelled {
		return true
	}
	return false
}

func validTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	case StatusCancelled:
		// Reinstating starts the approval flow over; the slot must pass the
		// conflict checker again.
		return to == StatusPending
	default:
		return false
	}
}

func (s *BookingService) conflictGuard(candidate Booking, excludeID string) ConflictGuard {
	return func(existing []Booking) error {
		cand, err := toSchedulerBooking(candidate)
		if err != nil {
			return err
		}
		others := make([]scheduler.Booking, 0, len(existing))
		for _, b := range existing {
			sb, err := toSchedulerBooking(b)
			if err != nil {
				// A stored booking with an unparsable start time cannot be
				// compared; skip it rather than block every write.
				s.logger.Warn("skipping booking with invalid start time", "booking_id", b.ID)
				continue
			}
			others = append(others, sb)
		}
		if conflict := scheduler.Check(cand, others, s.rules.BufferMinutes, excludeID); conflict != nil {
			return &ConflictError{WithBookingID: conflict.WithBookingID}
		}
		return nil
	}
}

func toSchedulerBooking(b Booking) (scheduler.Booking, error) {
	start, err := MinuteOfDay(b.StartTime)
	if err != nil {
		return scheduler.Booking{}, err
	}
	return scheduler.Booking{
		ID:              b.ID,
		StartMinute:     start,
		DurationMinutes: b.DurationMinutes,
		Cancelled:       b.Status == StatusCancelled,
	}, nil
}

func mapBookingRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicateExternalID):
		return ErrDuplicateExternalID
	default:
		return err
	}
}

func (s *BookingService) recordAudit(ctx context.Context, method, outcome, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, AuditEntry{
		Method:   method,
		Endpoint: "bookings",
		Outcome:  outcome,
		Detail:   detail,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "error", err)
	}
}

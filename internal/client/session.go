package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

// maxReplayAttempts bounds how often a queued mutation is retried against an
// unreachable server before it is dropped.
const maxReplayAttempts = 3

type serverAPI interface {
	Ping(ctx context.Context) error
	ListBookings(ctx context.Context) ([]Booking, error)
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	UpdateBooking(ctx context.Context, ref string, patch BookingPatch) (Booking, error)
	DeleteBooking(ctx context.Context, ref string) error
}

// Session coordinates the local mirror with the server. While offline every
// mutation lands in the mirror and the replay queue; reconnecting drains the
// queue first and refreshes the mirror afterwards, so replayed work is judged
// against the server state before the mirror is overwritten.
type Session struct {
	api         serverAPI
	store       *Store
	rules       application.Rules
	idGenerator func() string
	logger      *slog.Logger
	limiter     *rate.Limiter

	online   atomic.Bool
	draining atomic.Bool
}

// NewSession wires a session over the given API client and mirror store.
func NewSession(api serverAPI, store *Store, rules application.Rules, idGenerator func() string, logger *slog.Logger) *Session {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:         api,
		store:       store,
		rules:       rules,
		idGenerator: idGenerator,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Limit(5), 1),
	}
}

// Online reports whether the session currently talks to the server.
func (s *Session) Online() bool {
	return s.online.Load()
}

// SetOffline switches the session to offline operation. Nothing else
// changes: the mirror and the queue already hold everything needed to keep
// working.
func (s *Session) SetOffline() {
	s.online.Store(false)
}

// Connect probes the server and, on success, drains the replay queue and
// refreshes the mirror, in that order.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.api.Ping(ctx); err != nil {
		s.online.Store(false)
		return fmt.Errorf("connect: %w", err)
	}
	s.online.Store(true)

	if err := s.Drain(ctx); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh replaces the synchronized part of the mirror with the server's
// current bookings. Unsynchronized records survive untouched.
func (s *Session) Refresh(ctx context.Context) error {
	bookings, err := s.api.ListBookings(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			s.online.Store(false)
		}
		return fmt.Errorf("refresh: %w", err)
	}
	return s.store.ReplaceSynchronized(ctx, bookings)
}

// Drain replays queued mutations in arrival order. Concurrent calls are
// collapsed: a drain already in flight makes later calls no-ops. Replays are
// paced so a long queue does not hammer a freshly recovered server.
func (s *Session) Drain(ctx context.Context) error {
	if !s.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer s.draining.Store(false)

	mutations, err := s.store.PendingMutations(ctx)
	if err != nil {
		return err
	}

	for _, m := range mutations {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		attempts, err := s.store.BeginAttempt(ctx, m.ID)
		if err != nil {
			return err
		}

		replayErr := s.replay(ctx, m)
		switch {
		case replayErr == nil:
			if err := s.store.CompleteMutation(ctx, m.ID); err != nil {
				return err
			}
		case errors.Is(replayErr, ErrUnavailable):
			state, err := s.store.FailMutation(ctx, m.ID, attempts, maxReplayAttempts)
			if err != nil {
				return err
			}
			if state == MutationDropped {
				s.logger.WarnContext(ctx, "dropping mutation after repeated failures",
					"operation", m.Operation, "external_id", m.ExternalID, "attempts", attempts)
			}
			s.online.Store(false)
			return fmt.Errorf("drain: %w", replayErr)
		default:
			// The server answered and said no. Retrying cannot change the
			// outcome, so the mutation is dropped and its mirror record
			// stays unsynchronized as the local evidence of the rejection.
			if _, err := s.store.FailMutation(ctx, m.ID, maxReplayAttempts, maxReplayAttempts); err != nil {
				return err
			}
			s.logger.WarnContext(ctx, "mutation rejected by server",
				"operation", m.Operation, "external_id", m.ExternalID, "error", replayErr)
		}
	}

	return nil
}

func (s *Session) replay(ctx context.Context, m Mutation) error {
	switch m.Operation {
	case OpCreate:
		var booking Booking
		if err := json.Unmarshal(m.Payload, &booking); err != nil {
			return err
		}
		created, err := s.api.CreateBooking(ctx, booking)
		if errors.Is(err, ErrDuplicate) {
			// An earlier attempt reached the server before the response was
			// lost. The create already happened.
			return s.store.MarkSynchronized(ctx, m.ExternalID, "")
		}
		if err != nil {
			return err
		}
		return s.store.MarkSynchronized(ctx, m.ExternalID, created.ID)
	case OpUpdate:
		var patch BookingPatch
		if err := json.Unmarshal(m.Payload, &patch); err != nil {
			return err
		}
		updated, err := s.api.UpdateBooking(ctx, m.ExternalID, patch)
		if err != nil {
			return err
		}
		return s.store.SaveBooking(ctx, updated, true)
	case OpDelete:
		err := s.api.DeleteBooking(ctx, m.ExternalID)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		if err != nil {
			return err
		}
		return s.store.DeleteBooking(ctx, m.ExternalID)
	default:
		return fmt.Errorf("unknown operation %q", m.Operation)
	}
}

// CreateBooking books a slot. Online it goes straight to the server; offline
// it is checked against the mirror, stored unsynchronized, and queued for
// replay. A transport failure mid-request downgrades to the offline path so
// the booking is never lost.
func (s *Session) CreateBooking(ctx context.Context, booking Booking) (MirrorRecord, error) {
	if booking.ExternalID == "" {
		booking.ExternalID = s.idGenerator()
	}
	if booking.Status == "" {
		booking.Status = application.StatusPending
	}

	if s.Online() {
		created, err := s.api.CreateBooking(ctx, booking)
		switch {
		case err == nil:
			if err := s.store.SaveBooking(ctx, created, true); err != nil {
				return MirrorRecord{}, err
			}
			return MirrorRecord{Booking: created, Synchronized: true}, nil
		case errors.Is(err, ErrUnavailable):
			s.online.Store(false)
		default:
			return MirrorRecord{}, err
		}
	}

	if err := s.localConflictCheck(ctx, booking, booking.ExternalID); err != nil {
		return MirrorRecord{}, err
	}
	if err := s.store.SaveBooking(ctx, booking, false); err != nil {
		return MirrorRecord{}, err
	}
	if _, err := s.store.Enqueue(ctx, OpCreate, booking.ExternalID, booking); err != nil {
		return MirrorRecord{}, err
	}
	return MirrorRecord{Booking: booking, Synchronized: false}, nil
}

// UpdateBooking patches the booking identified by its external id.
func (s *Session) UpdateBooking(ctx context.Context, externalID string, patch BookingPatch) (MirrorRecord, error) {
	if s.Online() {
		updated, err := s.api.UpdateBooking(ctx, externalID, patch)
		switch {
		case err == nil:
			if err := s.store.SaveBooking(ctx, updated, true); err != nil {
				return MirrorRecord{}, err
			}
			return MirrorRecord{Booking: updated, Synchronized: true}, nil
		case errors.Is(err, ErrUnavailable):
			s.online.Store(false)
		default:
			return MirrorRecord{}, err
		}
	}

	record, err := s.store.GetBooking(ctx, externalID)
	if err != nil {
		return MirrorRecord{}, err
	}

	updated := record.Booking
	applyPatch(&updated, patch)
	if slotAffecting(record.Booking, patch) {
		if err := s.localConflictCheck(ctx, updated, externalID); err != nil {
			return MirrorRecord{}, err
		}
	}

	if err := s.store.SaveBooking(ctx, updated, false); err != nil {
		return MirrorRecord{}, err
	}
	if _, err := s.store.Enqueue(ctx, OpUpdate, externalID, patch); err != nil {
		return MirrorRecord{}, err
	}
	return MirrorRecord{Booking: updated, Synchronized: false}, nil
}

// DeleteBooking removes the booking identified by its external id.
func (s *Session) DeleteBooking(ctx context.Context, externalID string) error {
	if s.Online() {
		err := s.api.DeleteBooking(ctx, externalID)
		switch {
		case err == nil:
			return s.store.DeleteBooking(ctx, externalID)
		case errors.Is(err, ErrUnavailable):
			s.online.Store(false)
		default:
			return err
		}
	}

	if err := s.store.DeleteBooking(ctx, externalID); err != nil {
		return err
	}
	_, err := s.store.Enqueue(ctx, OpDelete, externalID, map[string]string{"externalId": externalID})
	return err
}

// ListBookings returns the mirror's view, which offline is the only view.
func (s *Session) ListBookings(ctx context.Context) ([]MirrorRecord, error) {
	return s.store.ListBookings(ctx)
}

// AvailableSlots lists the admissible start times for a booking of the given
// duration, judged against the mirror with the same buffered overlap rule
// the server applies.
func (s *Session) AvailableSlots(ctx context.Context, room, date string, durationMinutes int) ([]string, error) {
	records, err := s.store.ListForSlot(ctx, room, date)
	if err != nil {
		return nil, err
	}
	taken := mirrorToScheduler(records, "", s.logger)

	var slots []string
	for start := s.rules.OpenMinute; start <= s.rules.CloseMinute; start += 15 {
		candidate := scheduler.Booking{ID: "candidate", StartMinute: start, DurationMinutes: durationMinutes}
		if scheduler.Check(candidate, taken, s.rules.BufferMinutes, "") == nil {
			slots = append(slots, fmt.Sprintf("%02d:%02d", start/60, start%60))
		}
	}
	return slots, nil
}

// localConflictCheck runs the buffered overlap rule against the mirror. It
// is speculative: the server re-checks on replay and its verdict wins.
func (s *Session) localConflictCheck(ctx context.Context, booking Booking, excludeExternalID string) error {
	records, err := s.store.ListForSlot(ctx, booking.Room, booking.Date)
	if err != nil {
		return err
	}

	start, err := application.MinuteOfDay(booking.StartTime)
	if err != nil {
		return &RejectionError{Message: fmt.Sprintf("invalid start time %q", booking.StartTime)}
	}

	candidate := scheduler.Booking{
		ID:              booking.ExternalID,
		StartMinute:     start,
		DurationMinutes: booking.DurationMinutes,
	}
	taken := mirrorToScheduler(records, excludeExternalID, s.logger)
	if conflict := scheduler.Check(candidate, taken, s.rules.BufferMinutes, excludeExternalID); conflict != nil {
		return fmt.Errorf("%w: overlaps local booking %s", ErrConflict, conflict.WithBookingID)
	}
	return nil
}

func mirrorToScheduler(records []MirrorRecord, excludeExternalID string, logger *slog.Logger) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(records))
	for _, record := range records {
		if record.ExternalID == excludeExternalID {
			continue
		}
		start, err := application.MinuteOfDay(record.StartTime)
		if err != nil {
			logger.Warn("skipping mirrored booking with invalid start time", "external_id", record.ExternalID)
			continue
		}
		out = append(out, scheduler.Booking{
			ID:              record.ExternalID,
			StartMinute:     start,
			DurationMinutes: record.DurationMinutes,
			Cancelled:       record.Status == application.StatusCancelled,
		})
	}
	return out
}

func applyPatch(booking *Booking, patch BookingPatch) {
	if patch.Room != nil {
		booking.Room = *patch.Room
	}
	if patch.Date != nil {
		booking.Date = *patch.Date
	}
	if patch.StartTime != nil {
		booking.StartTime = *patch.StartTime
	}
	if patch.DurationMinutes != nil {
		booking.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Requester != nil {
		booking.Requester = *patch.Requester
	}
	if patch.Contact != nil {
		booking.Contact = *patch.Contact
	}
	if patch.Subject != nil {
		booking.Subject = *patch.Subject
	}
	if patch.Notes != nil {
		booking.Notes = *patch.Notes
	}
	if patch.Status != nil {
		booking.Status = *patch.Status
	}
}

func slotAffecting(current Booking, patch BookingPatch) bool {
	if patch.Room != nil || patch.Date != nil || patch.StartTime != nil || patch.DurationMinutes != nil {
		return true
	}
	if patch.Status != nil && current.Status == application.StatusCancelled && *patch.Status != application.StatusCancelled {
		return true
	}
	return false
}

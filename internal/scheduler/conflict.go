package scheduler

import "github.com/example/room-booking/internal/interval"

// Booking carries the slice of booking state the conflict checker inspects.
// Callers are expected to pass only bookings for the same room and date as
// the candidate; status filtering happens here.
type Booking struct {
	ID              string
	StartMinute     int
	DurationMinutes int
	Cancelled       bool
}

// Conflict identifies an existing booking that blocks a candidate slot.
type Conflict struct {
	WithBookingID string
}

// Check decides whether the candidate booking may occupy its slot among the
// existing bookings for the same room and date.
//
// The buffer is appended to each existing booking's nominal end before the
// overlap test, never to the candidate's: a new booking must start at or
// after a prior booking's end plus buffer, but may still end immediately
// before another booking starts.
//
// Cancelled bookings and the booking identified by excludeID (the one being
// edited) never conflict. When several existing bookings overlap the
// candidate, any one of them may be reported.
//
// Check is side-effect free and safe to call speculatively.
func Check(candidate Booking, existing []Booking, bufferMinutes int, excludeID string) *Conflict {
	want := interval.New(candidate.StartMinute, candidate.DurationMinutes)

	for _, b := range existing {
		if b.Cancelled {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if candidate.ID != "" && b.ID == candidate.ID {
			continue
		}

		taken := interval.New(b.StartMinute, b.DurationMinutes).WithBuffer(bufferMinutes)
		if want.Overlaps(taken) {
			return &Conflict{WithBookingID: b.ID}
		}
	}

	return nil
}

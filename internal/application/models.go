package application

import (
	"fmt"
	"time"
)

// Layouts shared by the API, the stores, and the client.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Booking status values. A booking starts pending and is confirmed or
// cancelled only by an administrative actor.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// OriginWeb is the default channel recorded for bookings.
const OriginWeb = "web"

// Principal represents the actor invoking a service method. Only the
// administrative flag matters: admin rights come from the static shared
// secret checked at the HTTP boundary.
type Principal struct {
	IsAdmin bool
}

// Booking represents a reservation of one room for one contiguous time
// window on a single day.
type Booking struct {
	ID              string
	ExternalID      string
	Room            string
	Date            string
	StartTime       string
	DurationMinutes int
	Requester       string
	Contact         string
	Subject         string
	Notes           string
	Status          string
	Origin          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookingInput captures caller provided fields for a create request.
type BookingInput struct {
	ExternalID      string
	Room            string
	Date            string
	StartTime       string
	DurationMinutes int
	Requester       string
	Contact         string
	Subject         string
	Notes           string
	Status          string
	Origin          string
}

// BookingPatch carries the allow-listed fields of a partial update. Nil
// pointers leave the stored value untouched.
type BookingPatch struct {
	Room            *string
	Date            *string
	StartTime       *string
	DurationMinutes *int
	Requester       *string
	Contact         *string
	Subject         *string
	Notes           *string
	Status          *string
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to patch an existing booking.
// Ref is resolved as a server id first, then as an external id.
type UpdateBookingParams struct {
	Principal Principal
	Ref       string
	Patch     BookingPatch
}

// Room represents a bookable resource from the catalog.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Equipment string
	Status    string
	CreatedAt time.Time
}

// Rules bundles the scheduling policy the conflict checker and validators
// enforce: the idle buffer after each booking, the bookable start window,
// the duration bound, and the bookable weekdays.
type Rules struct {
	BufferMinutes      int
	OpenMinute         int
	CloseMinute        int
	MaxDurationMinutes int
	Weekdays           map[time.Weekday]bool
}

// DefaultRules returns the policy observed in production: 15 minute buffer,
// bookings starting between 08:00 and 18:00, at most 8 hours long, Monday
// through Friday.
func DefaultRules() Rules {
	return Rules{
		BufferMinutes:      15,
		OpenMinute:         8 * 60,
		CloseMinute:        18 * 60,
		MaxDurationMinutes: 480,
		Weekdays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
	}
}

// MinuteOfDay parses an HH:MM clock value into minutes since midnight.
func MinuteOfDay(value string) (int, error) {
	parsed, err := time.Parse(TimeLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

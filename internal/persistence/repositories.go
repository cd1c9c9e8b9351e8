package persistence

import "context"

// ConflictGuard inspects the bookings already stored for the same room and
// date as a pending write and returns an error when the write may not
// proceed. Implementations of BookingRepository must invoke the guard inside
// the same transaction as the write itself, so that the existence check and
// the insert are free of the race that would let two concurrent creates both
// pass the check for one slot.
type ConflictGuard func(existing []Booking) error

// BookingRepository exposes CRUD operations for bookings.
type BookingRepository interface {
	// CreateBooking stores a new booking. It fails with
	// ErrDuplicateExternalID when the external id is already present, and
	// with the guard's error when the guard rejects the slot.
	CreateBooking(ctx context.Context, booking Booking, guard ConflictGuard) error
	// UpdateBooking replaces the stored booking with the same ID, running
	// the guard (when non-nil) against the booking's target room and date.
	UpdateBooking(ctx context.Context, booking Booking, guard ConflictGuard) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	GetBookingByExternalID(ctx context.Context, externalID string) (Booking, error)
	// ListBookings returns all bookings ordered by (date, start time).
	ListBookings(ctx context.Context) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// RoomRepository exposes read operations for the room catalog plus the
// upsert used when seeding rooms from configuration.
type RoomRepository interface {
	UpsertRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	// ListAvailableRooms returns rooms with status "available" ordered by name.
	ListAvailableRooms(ctx context.Context) ([]Room, error)
}

// AuditRepository appends audit entries. Writes are fire-and-forget from the
// caller's perspective; failures must never affect the primary operation.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

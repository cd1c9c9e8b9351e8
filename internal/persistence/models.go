package persistence

import "time"

// Booking represents a reservation row in the authoritative store. Date uses
// the YYYY-MM-DD layout and StartTime the HH:MM layout; both are kept as
// strings so the persisted form matches the wire form exactly.
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

// Room represents a bookable resource. Rooms are owned by configuration and
// never mutated by the booking flow.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Equipment string
	Status    string
	CreatedAt time.Time
}

// AuditEntry is an append-only record of a mutation attempt against the
// booking API.
type AuditEntry struct {
	Method    string
	Endpoint  string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

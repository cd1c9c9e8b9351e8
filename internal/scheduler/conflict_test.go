package scheduler

import "testing"

func TestCheck_TrailingBuffer(t *testing.T) {
	t.Parallel()

	// Existing booking 09:00 for 60 minutes, 15 minute buffer.
	existing := []Booking{{ID: "b1", StartMinute: 540, DurationMinutes: 60}}

	tests := []struct {
		name      string
		candidate Booking
		wantID    string
	}{
		{
			name:      "start inside buffer conflicts",
			candidate: Booking{StartMinute: 600, DurationMinutes: 30}, // 10:00
			wantID:    "b1",
		},
		{
			name:      "start exactly at buffered end is admissible",
			candidate: Booking{StartMinute: 615, DurationMinutes: 30}, // 10:15
		},
		{
			name:      "overlapping the occupied window conflicts",
			candidate: Booking{StartMinute: 570, DurationMinutes: 30}, // 09:30
			wantID:    "b1",
		},
		{
			name:      "ending exactly at the existing start is admissible",
			candidate: Booking{StartMinute: 480, DurationMinutes: 60}, // 08:00-09:00
		},
		{
			name:      "candidate end is never buffered",
			candidate: Booking{StartMinute: 500, DurationMinutes: 40}, // 08:20-09:00
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Check(tc.candidate, existing, 15, "")
			if tc.wantID == "" {
				if got != nil {
					t.Fatalf("Check() = conflict with %s, want admissible", got.WithBookingID)
				}
				return
			}
			if got == nil {
				t.Fatalf("Check() = admissible, want conflict with %s", tc.wantID)
			}
			if got.WithBookingID != tc.wantID {
				t.Fatalf("Check().WithBookingID = %s, want %s", got.WithBookingID, tc.wantID)
			}
		})
	}
}

func TestCheck_ZeroBufferBackToBack(t *testing.T) {
	t.Parallel()

	existing := []Booking{{ID: "b1", StartMinute: 540, DurationMinutes: 60}}
	candidate := Booking{StartMinute: 600, DurationMinutes: 30}

	if got := Check(candidate, existing, 0, ""); got != nil {
		t.Fatalf("back-to-back booking without buffer should be admissible, got conflict with %s", got.WithBookingID)
	}
}

func TestCheck_SkipsCancelledAndExcluded(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "cancelled", StartMinute: 540, DurationMinutes: 60, Cancelled: true},
		{ID: "edited", StartMinute: 540, DurationMinutes: 60},
	}
	candidate := Booking{ID: "edited", StartMinute: 555, DurationMinutes: 30}

	if got := Check(candidate, existing, 15, "edited"); got != nil {
		t.Fatalf("cancelled and excluded bookings must not conflict, got %s", got.WithBookingID)
	}

	// Without the exclusion the same slot is blocked.
	candidate.ID = ""
	if got := Check(candidate, existing, 15, ""); got == nil || got.WithBookingID != "edited" {
		t.Fatalf("expected conflict with edited booking, got %v", got)
	}
}

func TestCheck_ReportsAnyConflictingBooking(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "a", StartMinute: 540, DurationMinutes: 60},
		{ID: "b", StartMinute: 600, DurationMinutes: 60},
	}
	candidate := Booking{StartMinute: 570, DurationMinutes: 60}

	got := Check(candidate, existing, 0, "")
	if got == nil {
		t.Fatal("expected a conflict")
	}
	if got.WithBookingID != "a" && got.WithBookingID != "b" {
		t.Fatalf("conflict reported against unknown booking %s", got.WithBookingID)
	}
}

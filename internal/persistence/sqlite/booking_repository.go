package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const bookingColumns = `id, external_id, room, date, start_time, duration_minutes,
	requester, contact, subject, notes, status, origin, created_at, updated_at`

// CreateBooking inserts a booking after checking external id uniqueness and
// running the conflict guard against the target room and date. All three
// steps share one transaction, so concurrent creates for the same slot
// serialize and exactly one passes the guard.
func (s *Store) CreateBooking(ctx context.Context, booking persistence.Booking, guard persistence.ConflictGuard) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM bookings WHERE external_id = ?`, booking.ExternalID,
		).Scan(&count); err != nil {
			return fmt.Errorf("sqlite: check external id: %w", err)
		}
		if count > 0 {
			return persistence.ErrDuplicateExternalID
		}

		if guard != nil {
			existing, err := listForSlotTx(ctx, tx, booking.Room, booking.Date)
			if err != nil {
				return err
			}
			if err := guard(existing); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			booking.ID,
			booking.ExternalID,
			booking.Room,
			booking.Date,
			booking.StartTime,
			booking.DurationMinutes,
			booking.Requester,
			booking.Contact,
			booking.Subject,
			booking.Notes,
			booking.Status,
			booking.Origin,
			booking.CreatedAt.UTC().Format(time.RFC3339),
			booking.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert booking: %w", err)
		}
		return nil
	})
}

// UpdateBooking replaces the stored booking, re-running the guard (when
// provided) against the booking's target slot inside the same transaction.
func (s *Store) UpdateBooking(ctx context.Context, booking persistence.Booking, guard persistence.ConflictGuard) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM bookings WHERE id = ?`, booking.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: check booking: %w", err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}

		if guard != nil {
			existing, err := listForSlotTx(ctx, tx, booking.Room, booking.Date)
			if err != nil {
				return err
			}
			if err := guard(existing); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET room = ?, date = ?, start_time = ?, duration_minutes = ?,
				requester = ?, contact = ?, subject = ?, notes = ?,
				status = ?, origin = ?, updated_at = ?
			WHERE id = ?`,
			booking.Room,
			booking.Date,
			booking.StartTime,
			booking.DurationMinutes,
			booking.Requester,
			booking.Contact,
			booking.Subject,
			booking.Notes,
			booking.Status,
			booking.Origin,
			booking.UpdatedAt.UTC().Format(time.RFC3339),
			booking.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: update booking: %w", err)
		}
		return nil
	})
}

// GetBooking retrieves a booking by its server-assigned identifier.
func (s *Store) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// GetBookingByExternalID retrieves a booking by its client-generated token.
func (s *Store) GetBookingByExternalID(ctx context.Context, externalID string) (persistence.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE external_id = ?`, externalID)
	return scanBooking(row)
}

// ListBookings returns every booking ordered by date then start time.
func (s *Store) ListBookings(ctx context.Context) ([]persistence.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY date, start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// DeleteBooking removes a booking permanently.
func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete booking: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func listForSlotTx(ctx context.Context, tx *sql.Tx, room, date string) ([]persistence.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE room = ? AND date = ? ORDER BY start_time, id`,
		room, date)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list bookings for slot: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking            persistence.Booking
		createdAt, updated string
	)

	err := row.Scan(
		&booking.ID,
		&booking.ExternalID,
		&booking.Room,
		&booking.Date,
		&booking.StartTime,
		&booking.DurationMinutes,
		&booking.Requester,
		&booking.Contact,
		&booking.Subject,
		&booking.Notes,
		&booking.Status,
		&booking.Origin,
		&createdAt,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, fmt.Errorf("sqlite: scan booking: %w", err)
	}

	if booking.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if booking.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return persistence.Booking{}, fmt.Errorf("sqlite: parse updated_at: %w", err)
	}

	return booking, nil
}

func collectBookings(rows *sql.Rows) ([]persistence.Booking, error) {
	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate bookings: %w", err)
	}
	return bookings, nil
}

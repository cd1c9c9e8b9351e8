package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// UpsertRoom inserts or refreshes a room catalog entry. Used when seeding
// rooms from configuration at startup.
func (s *Store) UpsertRoom(ctx context.Context, room persistence.Room) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, capacity, equipment, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			equipment = excluded.equipment,
			status = excluded.status`,
		room.ID,
		room.Name,
		room.Capacity,
		room.Equipment,
		room.Status,
		room.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by identifier.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, capacity, equipment, status, created_at FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// ListAvailableRooms returns rooms with status "available" ordered by name.
func (s *Store) ListAvailableRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, capacity, equipment, status, created_at
		FROM rooms
		WHERE status = 'available'
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate rooms: %w", err)
	}
	return rooms, nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room      persistence.Room
		createdAt string
	)

	err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.Equipment, &room.Status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Room{}, persistence.ErrNotFound
		}
		return persistence.Room{}, fmt.Errorf("sqlite: scan room: %w", err)
	}

	if room.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Room{}, fmt.Errorf("sqlite: parse created_at: %w", err)
	}

	return room, nil
}

package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Queue states for mirrored mutations.
const (
	MutationPending  = "pending"
	MutationApplying = "applying"
	MutationApplied  = "applied"
	MutationDropped  = "dropped"
)

// Mutation operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// MirrorRecord is a booking as stored in the local mirror. Synchronized
// reports whether the server has acknowledged it.
type MirrorRecord struct {
	Booking
	Synchronized bool
}

// Mutation is one queued write awaiting replay against the server.
type Mutation struct {
	ID         int64
	Operation  string
	ExternalID string
	Payload    []byte
	State      string
	Attempts   int
}

// Store is the client side SQLite database: a mirror of the server's
// bookings plus the queue of mutations made while offline.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens, or creates, the mirror database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			external_id TEXT PRIMARY KEY,
			server_id TEXT NOT NULL DEFAULT '',
			room TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			requester TEXT NOT NULL,
			contact TEXT NOT NULL,
			subject TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			origin TEXT NOT NULL DEFAULT '',
			synchronized INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mirror_room_date ON bookings (room, date)`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation TEXT NOT NULL,
			external_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate mirror: %w", err)
		}
	}
	return nil
}

const mirrorColumns = `external_id, server_id, room, date, start_time, duration_minutes,
	requester, contact, subject, notes, status, origin, synchronized`

// SaveBooking upserts a booking into the mirror keyed by its external id.
func (s *Store) SaveBooking(ctx context.Context, booking Booking, synchronized bool) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO bookings (`+mirrorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			server_id = excluded.server_id,
			room = excluded.room,
			date = excluded.date,
			start_time = excluded.start_time,
			duration_minutes = excluded.duration_minutes,
			requester = excluded.requester,
			contact = excluded.contact,
			subject = excluded.subject,
			notes = excluded.notes,
			status = excluded.status,
			origin = excluded.origin,
			synchronized = excluded.synchronized`,
		booking.ExternalID, booking.ID, booking.Room, booking.Date, booking.StartTime,
		booking.DurationMinutes, booking.Requester, booking.Contact, booking.Subject,
		booking.Notes, booking.Status, booking.Origin, boolToInt(synchronized))
	if err != nil {
		return fmt.Errorf("save booking: %w", err)
	}
	return nil
}

// GetBooking looks a mirrored booking up by external id.
func (s *Store) GetBooking(ctx context.Context, externalID string) (MirrorRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mirrorColumns+` FROM bookings WHERE external_id = ?`, externalID)
	return scanMirror(row)
}

// ListBookings returns every mirrored booking ordered by date and start time.
func (s *Store) ListBookings(ctx context.Context) ([]MirrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mirrorColumns+` FROM bookings ORDER BY date, start_time, external_id`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	return collectMirror(rows)
}

// ListForSlot returns the mirrored bookings sharing a room and date.
func (s *Store) ListForSlot(ctx context.Context, room, date string) ([]MirrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mirrorColumns+` FROM bookings WHERE room = ? AND date = ? ORDER BY start_time`, room, date)
	if err != nil {
		return nil, fmt.Errorf("list slot bookings: %w", err)
	}
	defer rows.Close()
	return collectMirror(rows)
}

// DeleteBooking removes a mirrored booking.
func (s *Store) DeleteBooking(ctx context.Context, externalID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE external_id = ?`, externalID)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}

// MarkSynchronized records the server's acknowledgement of a local booking.
func (s *Store) MarkSynchronized(ctx context.Context, externalID, serverID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE bookings SET synchronized = 1, server_id = ? WHERE external_id = ?`, serverID, externalID)
	if err != nil {
		return fmt.Errorf("mark synchronized: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceSynchronized swaps the synchronized part of the mirror for the
// server's current state. Unsynchronized records are never touched: they are
// the only copy of work the server has not acknowledged.
func (s *Store) ReplaceSynchronized(ctx context.Context, bookings []Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE synchronized = 1`); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}

	for _, booking := range bookings {
		_, err := tx.ExecContext(ctx, `INSERT INTO bookings (`+mirrorColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT (external_id) DO NOTHING`,
			booking.ExternalID, booking.ID, booking.Room, booking.Date, booking.StartTime,
			booking.DurationMinutes, booking.Requester, booking.Contact, booking.Subject,
			booking.Notes, booking.Status, booking.Origin)
		if err != nil {
			return fmt.Errorf("replace mirror: %w", err)
		}
	}

	return tx.Commit()
}

// Enqueue records a mutation for later replay. The payload is stored as JSON.
func (s *Store) Enqueue(ctx context.Context, operation, externalID string, payload any) (Mutation, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Mutation{}, fmt.Errorf("enqueue: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `INSERT INTO sync_queue (operation, external_id, payload, state, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		operation, externalID, string(encoded), MutationPending, now, now)
	if err != nil {
		return Mutation{}, fmt.Errorf("enqueue: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{
		ID:         id,
		Operation:  operation,
		ExternalID: externalID,
		Payload:    encoded,
		State:      MutationPending,
	}, nil
}

// PendingMutations returns queued mutations in arrival order.
func (s *Store) PendingMutations(ctx context.Context) ([]Mutation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, operation, external_id, payload, state, attempts
		FROM sync_queue WHERE state = ? ORDER BY id`, MutationPending)
	if err != nil {
		return nil, fmt.Errorf("pending mutations: %w", err)
	}
	defer rows.Close()

	var out []Mutation
	for rows.Next() {
		var m Mutation
		var payload string
		if err := rows.Scan(&m.ID, &m.Operation, &m.ExternalID, &payload, &m.State, &m.Attempts); err != nil {
			return nil, fmt.Errorf("pending mutations: %w", err)
		}
		m.Payload = []byte(payload)
		out = append(out, m)
	}
	return out, rows.Err()
}

// BeginAttempt moves a mutation to the applying state and bumps its attempt
// counter.
func (s *Store) BeginAttempt(ctx context.Context, id int64) (int, error) {
	now := s.now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `UPDATE sync_queue SET state = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		MutationApplying, now, id); err != nil {
		return 0, fmt.Errorf("begin attempt: %w", err)
	}

	var attempts int
	if err := s.db.QueryRowContext(ctx, `SELECT attempts FROM sync_queue WHERE id = ?`, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// CompleteMutation marks a mutation as applied.
func (s *Store) CompleteMutation(ctx context.Context, id int64) error {
	return s.setMutationState(ctx, id, MutationApplied)
}

// FailMutation returns a mutation to the queue, or drops it once it has
// exhausted maxAttempts. It reports the resulting state.
func (s *Store) FailMutation(ctx context.Context, id int64, attempts, maxAttempts int) (string, error) {
	state := MutationPending
	if attempts >= maxAttempts {
		state = MutationDropped
	}
	if err := s.setMutationState(ctx, id, state); err != nil {
		return "", err
	}
	return state, nil
}

// DroppedMutations returns mutations abandoned after exhausting their retry
// budget, oldest first.
func (s *Store) DroppedMutations(ctx context.Context) ([]Mutation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, operation, external_id, payload, state, attempts
		FROM sync_queue WHERE state = ? ORDER BY id`, MutationDropped)
	if err != nil {
		return nil, fmt.Errorf("dropped mutations: %w", err)
	}
	defer rows.Close()

	var out []Mutation
	for rows.Next() {
		var m Mutation
		var payload string
		if err := rows.Scan(&m.ID, &m.Operation, &m.ExternalID, &payload, &m.State, &m.Attempts); err != nil {
			return nil, fmt.Errorf("dropped mutations: %w", err)
		}
		m.Payload = []byte(payload)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) setMutationState(ctx context.Context, id int64, state string) error {
	now := s.now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `UPDATE sync_queue SET state = ?, updated_at = ? WHERE id = ?`, state, now, id)
	if err != nil {
		return fmt.Errorf("set mutation state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMirror(row rowScanner) (MirrorRecord, error) {
	var record MirrorRecord
	var synchronized int
	err := row.Scan(&record.ExternalID, &record.ID, &record.Room, &record.Date, &record.StartTime,
		&record.DurationMinutes, &record.Requester, &record.Contact, &record.Subject,
		&record.Notes, &record.Status, &record.Origin, &synchronized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MirrorRecord{}, ErrNotFound
		}
		return MirrorRecord{}, fmt.Errorf("scan booking: %w", err)
	}
	record.Synchronized = synchronized != 0
	return record, nil
}

func collectMirror(rows *sql.Rows) ([]MirrorRecord, error) {
	var out []MirrorRecord
	for rows.Next() {
		record, err := scanMirror(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

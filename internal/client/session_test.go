package client

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/testfixtures"
)

// fakeServer implements serverAPI in memory and records the order of calls.
type fakeServer struct {
	mu       sync.Mutex
	calls    []string
	bookings map[string]Booking
	nextID   int

	pingErr   error
	createErr error
	block     chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{bookings: make(map[string]Booking)}
}

func (f *fakeServer) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeServer) Ping(context.Context) error {
	f.record("ping")
	return f.pingErr
}

func (f *fakeServer) ListBookings(context.Context) ([]Booking, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeServer) CreateBooking(_ context.Context, booking Booking) (Booking, error) {
	f.record("create")
	if f.block != nil {
		<-f.block
	}
	if f.createErr != nil {
		return Booking{}, f.createErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.bookings[booking.ExternalID]; exists {
		return Booking{}, ErrDuplicate
	}
	f.nextID++
	booking.ID = fmt.Sprintf("b-%d", f.nextID)
	f.bookings[booking.ExternalID] = booking
	return booking, nil
}

func (f *fakeServer) UpdateBooking(_ context.Context, ref string, patch BookingPatch) (Booking, error) {
	f.record("update")
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[ref]
	if !ok {
		return Booking{}, ErrNotFound
	}
	applyPatch(&booking, patch)
	f.bookings[ref] = booking
	return booking, nil
}

func (f *fakeServer) DeleteBooking(_ context.Context, ref string) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[ref]; !ok {
		return ErrNotFound
	}
	delete(f.bookings, ref)
	return nil
}

func newTestSession(t *testing.T, server serverAPI) (*Session, *Store) {
	t.Helper()
	store := newTestStore(t)
	ids := testfixtures.NewIDGenerator("ext")
	session := NewSession(server, store, application.DefaultRules(), ids.NextFunc(), nil)
	return session, store
}

func TestSession_OfflineCreateQueuesAndMirrors(t *testing.T) {
	t.Parallel()

	session, store := newTestSession(t, newFakeServer())
	ctx := context.Background()

	record, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)
	assert.False(t, record.Synchronized)
	assert.NotEmpty(t, record.ExternalID)

	pending, err := store.PendingMutations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, OpCreate, pending[0].Operation)
	assert.Equal(t, record.ExternalID, pending[0].ExternalID)
}

func TestSession_OfflineCreateRejectsLocalConflict(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(t, newFakeServer())
	ctx := context.Background()

	_, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	// 10:00 falls inside the 15 minute buffer after the 09:00-10:00 booking.
	_, err = session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "10:00"))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "10:15"))
	assert.NoError(t, err)
}

func TestSession_ConnectDrainsThenRefreshes(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	session, store := newTestSession(t, server)
	ctx := context.Background()

	record, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	require.NoError(t, session.Connect(ctx))
	assert.True(t, session.Online())

	// The queued create must reach the server before the mirror is
	// refreshed, otherwise the refresh would judge a stale server state.
	assert.Equal(t, []string{"ping", "create", "list"}, server.calls)

	synced, err := store.GetBooking(ctx, record.ExternalID)
	require.NoError(t, err)
	assert.True(t, synced.Synchronized)
	assert.NotEmpty(t, synced.ID)

	pending, err := store.PendingMutations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSession_ReplayDuplicateIsSuccess(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	session, store := newTestSession(t, server)
	ctx := context.Background()

	record, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	// The first attempt reached the server but the response was lost: the
	// server already holds the booking when the queue replays.
	booking := record.Booking
	server.bookings[record.ExternalID] = booking

	require.NoError(t, session.Connect(ctx))

	synced, err := store.GetBooking(ctx, record.ExternalID)
	require.NoError(t, err)
	assert.True(t, synced.Synchronized)

	pending, err := store.PendingMutations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSession_ReplayRejectionDropsMutation(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	session, store := newTestSession(t, server)
	ctx := context.Background()

	// Another client took the slot while this one was offline.
	server.bookings["ext-other"] = mirrorBooking("ext-other", "2026-03-03", "09:00")

	record, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:30"))
	require.NoError(t, err)

	server.createErr = fmt.Errorf("%w: overlaps b-1", ErrConflict)
	require.NoError(t, session.Connect(ctx))

	// The rejected booking keeps its unsynchronized mirror record; the
	// refresh must not wipe it.
	kept, err := store.GetBooking(ctx, record.ExternalID)
	require.NoError(t, err)
	assert.False(t, kept.Synchronized)

	pending, err := store.PendingMutations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	dropped, err := store.DroppedMutations(ctx)
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, record.ExternalID, dropped[0].ExternalID)
}

func TestSession_UnavailableReplayGoesBackOffline(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	session, store := newTestSession(t, server)
	ctx := context.Background()

	_, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	server.createErr = fmt.Errorf("%w: connection refused", ErrUnavailable)
	err = session.Connect(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, session.Online())

	// The mutation survived for the next drain.
	pending, err := store.PendingMutations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestSession_DrainIsNotReentrant(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	server.block = make(chan struct{})
	session, _ := newTestSession(t, server)
	ctx := context.Background()

	_, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- session.Drain(ctx)
	}()

	// Wait until the first drain is inside the blocked create call.
	for {
		server.mu.Lock()
		busy := len(server.calls) > 0
		server.mu.Unlock()
		if busy {
			break
		}
	}

	// A second drain while one is in flight is a no-op.
	require.NoError(t, session.Drain(ctx))

	close(server.block)
	require.NoError(t, <-done)

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Equal(t, []string{"create"}, server.calls, "the mutation must be applied exactly once")
}

func TestSession_SetOfflineOnlyFlipsTheFlag(t *testing.T) {
	t.Parallel()

	server := newFakeServer()
	session, store := newTestSession(t, server)
	ctx := context.Background()

	require.NoError(t, session.Connect(ctx))
	_, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	session.SetOffline()
	assert.False(t, session.Online())

	// The mirror still serves reads.
	records, err := store.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Synchronized)
}

func TestSession_AvailableSlots(t *testing.T) {
	t.Parallel()

	session, _ := newTestSession(t, newFakeServer())
	ctx := context.Background()

	_, err := session.CreateBooking(ctx, mirrorBooking("", "2026-03-03", "09:00"))
	require.NoError(t, err)

	slots, err := session.AvailableSlots(ctx, "sala-1", "2026-03-03", 60)
	require.NoError(t, err)

	assert.NotContains(t, slots, "08:30", "a 60 minute booking at 08:30 would collide with 09:00")
	assert.NotContains(t, slots, "10:00", "inside the trailing buffer")
	assert.Contains(t, slots, "10:15", "first admissible start after the buffered booking")
	assert.Contains(t, slots, "08:00")
}

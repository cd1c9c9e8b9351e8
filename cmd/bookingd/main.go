package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	rules, err := cfg.Rules()
	if err != nil {
		logger.Error("invalid scheduling rules", "error", err)
		os.Exit(1)
	}

	adminSecretHash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminSecret), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash admin secret", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	if err := store.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	if err := seedRooms(context.Background(), store, cfg.Rooms); err != nil {
		logger.Error("failed to seed rooms", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	bookingRepo := newBookingRepositoryAdapter(store)
	roomRepo := newRoomRepositoryAdapter(store)
	roomCatalog := newRoomCatalogAdapter(store)
	auditRecorder := newAuditRecorderAdapter(store, now)

	bookingService := application.NewBookingServiceWithLogger(bookingRepo, roomCatalog, auditRecorder, rules, idGenerator, now, logger)
	roomService := application.NewRoomService(roomRepo, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Bookings: httptransport.NewBookingHandler(bookingService, logger),
		Rooms:    httptransport.NewRoomHandler(roomService, logger),
		Health:   store,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.AdminTagger(adminSecretHash, logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func seedRooms(ctx context.Context, rooms persistence.RoomRepository, seeds []config.RoomSeed) error {
	now := time.Now().UTC()
	for _, seed := range seeds {
		room := persistence.Room{
			ID:        seed.ID,
			Name:      seed.Name,
			Capacity:  seed.Capacity,
			Equipment: seed.Equipment,
			Status:    "available",
			CreatedAt: now,
		}
		if err := rooms.UpsertRoom(ctx, room); err != nil {
			return err
		}
	}
	return nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBooking(ctx context.Context, booking application.Booking, guard application.ConflictGuard) error {
	return a.repo.CreateBooking(ctx, toPersistenceBooking(booking), toPersistenceGuard(guard))
}

func (a *bookingRepositoryAdapter) UpdateBooking(ctx context.Context, booking application.Booking, guard application.ConflictGuard) error {
	return a.repo.UpdateBooking(ctx, toPersistenceBooking(booking), toPersistenceGuard(guard))
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) GetBookingByExternalID(ctx context.Context, externalID string) (application.Booking, error) {
	stored, err := a.repo.GetBookingByExternalID(ctx, externalID)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

func (a *bookingRepositoryAdapter) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func toPersistenceGuard(guard application.ConflictGuard) persistence.ConflictGuard {
	if guard == nil {
		return nil
	}
	return func(existing []persistence.Booking) error {
		bookings := make([]application.Booking, 0, len(existing))
		for _, model := range existing {
			bookings = append(bookings, toApplicationBooking(model))
		}
		return guard(bookings)
	}
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) ListAvailableRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListAvailableRooms(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, application.Room{
			ID:        model.ID,
			Name:      model.Name,
			Capacity:  model.Capacity,
			Equipment: model.Equipment,
			Status:    model.Status,
			CreatedAt: model.CreatedAt,
		})
	}
	return rooms, nil
}

type roomCatalogAdapter struct {
	repo persistence.RoomRepository
}

func newRoomCatalogAdapter(repo persistence.RoomRepository) *roomCatalogAdapter {
	return &roomCatalogAdapter{repo: repo}
}

func (a *roomCatalogAdapter) RoomExists(ctx context.Context, id string) (bool, error) {
	if _, err := a.repo.GetRoom(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type auditRecorderAdapter struct {
	repo persistence.AuditRepository
	now  func() time.Time
}

func newAuditRecorderAdapter(repo persistence.AuditRepository, now func() time.Time) *auditRecorderAdapter {
	return &auditRecorderAdapter{repo: repo, now: now}
}

func (a *auditRecorderAdapter) Append(ctx context.Context, entry application.AuditEntry) error {
	return a.repo.AppendAudit(ctx, persistence.AuditEntry{
		Method:    entry.Method,
		Endpoint:  entry.Endpoint,
		Outcome:   entry.Outcome,
		Detail:    entry.Detail,
		CreatedAt: a.now().UTC(),
	})
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:              booking.ID,
		ExternalID:      booking.ExternalID,
		Room:            booking.Room,
		Date:            booking.Date,
		StartTime:       booking.StartTime,
		DurationMinutes: booking.DurationMinutes,
		Requester:       booking.Requester,
		Contact:         booking.Contact,
		Subject:         booking.Subject,
		Notes:           booking.Notes,
		Status:          booking.Status,
		Origin:          booking.Origin,
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:              model.ID,
		ExternalID:      model.ExternalID,
		Room:            model.Room,
		Date:            model.Date,
		StartTime:       model.StartTime,
		DurationMinutes: model.DurationMinutes,
		Requester:       model.Requester,
		Contact:         model.Contact,
		Subject:         model.Subject,
		Notes:           model.Notes,
		Status:          model.Status,
		Origin:          model.Origin,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

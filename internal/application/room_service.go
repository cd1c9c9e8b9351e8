package application

import (
	"context"
	"log/slog"
)

// RoomRepository exposes the read operations the room service needs.
type RoomRepository interface {
	ListAvailableRooms(ctx context.Context) ([]Room, error)
}

// RoomService serves the read-only room catalog. Rooms are owned by
// configuration; the booking flow never mutates them.
type RoomService struct {
	rooms  RoomRepository
	logger *slog.Logger
}

// NewRoomService wires dependencies for room lookups.
func NewRoomService(rooms RoomRepository, logger *slog.Logger) *RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{rooms: rooms, logger: logger}
}

// ListAvailableRooms returns rooms with status "available" ordered by name.
func (s *RoomService) ListAvailableRooms(ctx context.Context) ([]Room, error) {
	return s.rooms.ListAvailableRooms(ctx)
}

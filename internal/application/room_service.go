package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	ListRooms(ctx context.Context) ([]Room, error)
	CountReservationsForRoom(ctx context.Context, roomID int64) (int, error)
}

// RoomService owns the room catalog.
type RoomService struct {
	rooms  RoomRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, now func() time.Time, logger *slog.Logger) *RoomService {
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, now: now, logger: logging.OrDefault(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// AddRoom validates input and persists a new room.
func (s *RoomService) AddRoom(ctx context.Context, input RoomInput) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "AddRoom")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room added")
	}()

	room = Room{
		Name:        strings.TrimSpace(input.Name),
		Location:    strings.TrimSpace(input.Location),
		Capacity:    input.Capacity,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if err = validateRoom(room).errOrNil(); err != nil {
		room = Room{}
		return
	}

	room, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		room = Room{}
		err = mapRoomRepoError(err)
	}
	return
}

// GetRoom returns the room with id or ErrNotFound.
func (s *RoomService) GetRoom(ctx context.Context, id int64) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	if id <= 0 {
		return Room{}, ErrNotFound
	}
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		err = mapRoomRepoError(err)
		if !errors.Is(err, ErrNotFound) {
			s.loggerWith(ctx, "GetRoom", "room_id", id).ErrorContext(ctx, "failed to load room", "error", err, "error_kind", ErrorKind(err))
		}
		return Room{}, err
	}
	return room, nil
}

// ListRooms returns every room ordered by id.
func (s *RoomService) ListRooms(ctx context.Context) (rooms []Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListRooms")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return
}

// UpdateRoom applies patch to the room with id. Fields left nil keep their
// value and the merged room must still be valid.
func (s *RoomService) UpdateRoom(ctx context.Context, id int64, patch RoomPatch) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom", "room_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	var existing Room
	if existing, err = s.GetRoom(ctx, id); err != nil {
		return
	}

	updated := existing
	if patch.Name != nil {
		updated.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Location != nil {
		updated.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Capacity != nil {
		updated.Capacity = *patch.Capacity
	}
	if patch.Description != nil {
		updated.Description = strings.TrimSpace(*patch.Description)
	}

	if err = validateRoom(updated).errOrNil(); err != nil {
		return
	}

	updated.UpdatedAt = s.now()
	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		room = Room{}
		err = mapRoomRepoError(err)
	}
	return
}

// DeleteRoom removes a room that no reservation references.
func (s *RoomService) DeleteRoom(ctx context.Context, id int64) (err error) {
	if s == nil || s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", "room_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room deleted")
	}()

	if _, err = s.GetRoom(ctx, id); err != nil {
		return
	}

	var references int
	if references, err = s.rooms.CountReservationsForRoom(ctx, id); err != nil {
		err = mapRoomRepoError(err)
		return
	}
	if references > 0 {
		err = fmt.Errorf("%w: %d reservations reference room %d", ErrRoomInUse, references, id)
		return
	}

	err = mapRoomRepoError(s.rooms.DeleteRoom(ctx, id))
	return
}

func validateRoom(room Room) *ValidationError {
	vErr := &ValidationError{}

	if room.Name == "" {
		vErr.add("name", "name is required")
	}
	if room.Location == "" {
		vErr.add("location", "location is required")
	}
	if room.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrRoomInUse), errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrRoomInUse
	case errors.Is(err, persistence.ErrConstraintViolation):
		return NewValidationError("room", "room violates catalog constraints")
	}
	return err
}

package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// storageDateLayout is the sortable day format used by persistence rows.
const storageDateLayout = "2006-01-02"

// RoomStore adapts a persistence.RoomRepository to RoomRepository.
type RoomStore struct {
	repo persistence.RoomRepository
}

// NewRoomStore wraps repo.
func NewRoomStore(repo persistence.RoomRepository) *RoomStore {
	return &RoomStore{repo: repo}
}

func (s *RoomStore) CreateRoom(ctx context.Context, room Room) (Room, error) {
	stored, err := s.repo.CreateRoom(ctx, toRoomRow(room))
	if err != nil {
		return Room{}, err
	}
	return fromRoomRow(stored), nil
}

func (s *RoomStore) GetRoom(ctx context.Context, id int64) (Room, error) {
	row, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}
	return fromRoomRow(row), nil
}

func (s *RoomStore) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	if err := s.repo.UpdateRoom(ctx, toRoomRow(room)); err != nil {
		return Room{}, err
	}
	return s.GetRoom(ctx, room.ID)
}

func (s *RoomStore) DeleteRoom(ctx context.Context, id int64) error {
	return s.repo.DeleteRoom(ctx, id)
}

func (s *RoomStore) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, fromRoomRow(row))
	}
	return rooms, nil
}

func (s *RoomStore) CountReservationsForRoom(ctx context.Context, roomID int64) (int, error) {
	return s.repo.CountReservationsForRoom(ctx, roomID)
}

func toRoomRow(room Room) persistence.Room {
	return persistence.Room(room)
}

func fromRoomRow(row persistence.Room) Room {
	return Room(row)
}

// ReservationStore adapts a persistence.ReservationRepository to
// ReservationRepository, converting between instants and the row's day and
// clock strings in the calendar's zone.
type ReservationStore struct {
	repo     persistence.ReservationRepository
	calendar Calendar
}

// NewReservationStore wraps repo.
func NewReservationStore(repo persistence.ReservationRepository, calendar Calendar) *ReservationStore {
	return &ReservationStore{repo: repo, calendar: calendar}
}

func (s *ReservationStore) CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	stored, err := s.repo.CreateReservation(ctx, s.toRow(reservation))
	if err != nil {
		return Reservation{}, err
	}
	return s.fromRow(stored)
}

// GetReservation loads a reservation by id.
func (s *ReservationStore) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	row, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	return s.fromRow(row)
}

func (s *ReservationStore) FindReservationByToken(ctx context.Context, token string) (Reservation, error) {
	row, err := s.repo.FindReservationByToken(ctx, token)
	if err != nil {
		return Reservation{}, err
	}
	return s.fromRow(row)
}

func (s *ReservationStore) ListReservationsForSlot(ctx context.Context, roomID int64, date time.Time) ([]Reservation, error) {
	rows, err := s.repo.ListReservationsForSlot(ctx, roomID, s.calendar.Day(date).Format(storageDateLayout))
	if err != nil {
		return nil, err
	}
	return s.fromRows(rows)
}

func (s *ReservationStore) ListReservationsFrom(ctx context.Context, date time.Time) ([]Reservation, error) {
	rows, err := s.repo.ListReservationsFrom(ctx, s.calendar.Day(date).Format(storageDateLayout))
	if err != nil {
		return nil, err
	}
	return s.fromRows(rows)
}

func (s *ReservationStore) SaveReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	if err := s.repo.SaveReservation(ctx, s.toRow(reservation)); err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

func (s *ReservationStore) toRow(r Reservation) persistence.Reservation {
	loc := s.calendar.Location()
	return persistence.Reservation{
		ID:         r.ID,
		Email:      r.Email,
		Date:       s.calendar.Day(r.Date).Format(storageDateLayout),
		StartTime:  r.Start.In(loc).Format(ClockLayout),
		EndTime:    r.End.In(loc).Format(ClockLayout),
		Reason:     r.Reason,
		RoomID:     r.RoomID,
		Approved:   r.Approved,
		Token:      r.Token,
		CreatedAt:  r.CreatedAt,
		ApprovedAt: r.ApprovedAt,
	}
}

func (s *ReservationStore) fromRow(row persistence.Reservation) (Reservation, error) {
	day, err := time.ParseInLocation(storageDateLayout, row.Date, s.calendar.Location())
	if err != nil {
		return Reservation{}, fmt.Errorf("decode reservation %d date %q: %w", row.ID, row.Date, err)
	}
	start, err := s.calendar.ParseClock(day, row.StartTime)
	if err != nil {
		return Reservation{}, fmt.Errorf("decode reservation %d start %q: %w", row.ID, row.StartTime, err)
	}
	end, err := s.calendar.ParseClock(day, row.EndTime)
	if err != nil {
		return Reservation{}, fmt.Errorf("decode reservation %d end %q: %w", row.ID, row.EndTime, err)
	}
	return Reservation{
		ID:         row.ID,
		Email:      row.Email,
		RoomID:     row.RoomID,
		Date:       day,
		Start:      start,
		End:        end,
		Reason:     row.Reason,
		Approved:   row.Approved,
		Token:      row.Token,
		CreatedAt:  row.CreatedAt,
		ApprovedAt: row.ApprovedAt,
	}, nil
}

func (s *ReservationStore) fromRows(rows []persistence.Reservation) ([]Reservation, error) {
	out := make([]Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := s.fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, reservation)
	}
	return out, nil
}

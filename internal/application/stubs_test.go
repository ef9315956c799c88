package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

var testNow = time.Date(2030, time.March, 4, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type roomRepoStub struct {
	mu     sync.Mutex
	rooms  map[int64]Room
	nextID int64

	createErr error
	updateErr error
	deleteErr error
	listErr   error
	countErr  error

	references map[int64]int
	deletedID  int64
}

func newRoomRepoStub(rooms ...Room) *roomRepoStub {
	stub := &roomRepoStub{rooms: make(map[int64]Room), references: make(map[int64]int)}
	for _, room := range rooms {
		stub.rooms[room.ID] = room
		if room.ID > stub.nextID {
			stub.nextID = room.ID
		}
	}
	return stub
}

func (r *roomRepoStub) CreateRoom(ctx context.Context, room Room) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Room{}, r.createErr
	}
	r.nextID++
	room.ID = r.nextID
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) GetRoom(ctx context.Context, id int64) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Room{}, r.updateErr
	}
	if _, ok := r.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) DeleteRoom(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rooms, id)
	r.deletedID = id
	return nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context) ([]Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (r *roomRepoStub) CountReservationsForRoom(ctx context.Context, roomID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.references[roomID], nil
}

// reservationRepoStub keeps reservations in memory and enforces token
// uniqueness and slot overlap the way the SQLite schema does.
type reservationRepoStub struct {
	mu     sync.Mutex
	rows   []Reservation
	nextID int64

	createErr error
	saveErr   error
	listErr   error
	saves     int

	// afterWrite runs once a create or save has been stored.
	afterWrite func()
}

func (r *reservationRepoStub) CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Reservation{}, r.createErr
	}
	for _, existing := range r.rows {
		if existing.Token == reservation.Token {
			return Reservation{}, fmt.Errorf("%w: token", persistence.ErrDuplicate)
		}
		if existing.RoomID == reservation.RoomID && existing.Date.Equal(reservation.Date) &&
			existing.Start.Before(reservation.End) && reservation.Start.Before(existing.End) {
			return Reservation{}, persistence.ErrOverlap
		}
	}
	r.nextID++
	reservation.ID = r.nextID
	r.rows = append(r.rows, reservation)
	if r.afterWrite != nil {
		r.afterWrite()
	}
	return reservation, nil
}

func (r *reservationRepoStub) FindReservationByToken(ctx context.Context, token string) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Token == token {
			return row, nil
		}
	}
	return Reservation{}, persistence.ErrNotFound
}

func (r *reservationRepoStub) ListReservationsForSlot(ctx context.Context, roomID int64, date time.Time) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Reservation
	for _, row := range r.rows {
		if row.RoomID == roomID && row.Date.Equal(date) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *reservationRepoStub) ListReservationsFrom(ctx context.Context, date time.Time) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Reservation
	for _, row := range r.rows {
		if !row.Date.Before(date) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *reservationRepoStub) SaveReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return Reservation{}, r.saveErr
	}
	for i, row := range r.rows {
		if row.ID == reservation.ID {
			r.rows[i] = reservation
			r.saves++
			if r.afterWrite != nil {
				r.afterWrite()
			}
			return reservation, nil
		}
	}
	return Reservation{}, persistence.ErrNotFound
}

func (r *reservationRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	ctxs []sendContext
	err  error
}

// sendContext records the state of the context a notification was sent with.
type sendContext struct {
	err         error
	hasDeadline bool
}

func (n *capturingNotifier) Send(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	_, hasDeadline := ctx.Deadline()
	n.ctxs = append(n.ctxs, sendContext{err: ctx.Err(), hasDeadline: hasDeadline})
	return n.err
}

func (n *capturingNotifier) contexts() []sendContext {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sendContext, len(n.ctxs))
	copy(out, n.ctxs)
	return out
}

func (n *capturingNotifier) messages() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

type tokenStoreStub struct {
	issued  []time.Duration
	valid   map[string]bool
	revoked []string
	token   string
	err     error
}

func (s *tokenStoreStub) Issue(ctx context.Context, duration time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.issued = append(s.issued, duration)
	if s.valid == nil {
		s.valid = make(map[string]bool)
	}
	s.valid[s.token] = true
	return s.token, nil
}

func (s *tokenStoreStub) Verify(ctx context.Context, token string) bool {
	return s.valid[token]
}

func (s *tokenStoreStub) Revoke(ctx context.Context, token string) error {
	if s.err != nil {
		return s.err
	}
	s.revoked = append(s.revoked, token)
	delete(s.valid, token)
	return nil
}

func sequentialTokens(prefix string) func() (string, error) {
	var (
		mu sync.Mutex
		n  int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

var errStorageDown = errors.New("storage down")

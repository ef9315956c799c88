package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var (
	testRoom = Room{ID: 1, Name: "Lab 1", Location: "Block A", Capacity: 20}
	testDay  = time.Date(2030, time.March, 10, 0, 0, 0, 0, time.UTC)
)

type reservationFixture struct {
	svc      *ReservationService
	rooms    *roomRepoStub
	repo     *reservationRepoStub
	notifier *capturingNotifier
	clock    *testClock
}

func newReservationFixture(t *testing.T, mutate ...func(*ReservationServiceDeps)) reservationFixture {
	t.Helper()
	f := reservationFixture{
		rooms:    newRoomRepoStub(testRoom, Room{ID: 2, Name: "Lab 2", Location: "Block B", Capacity: 8}),
		repo:     &reservationRepoStub{},
		notifier: &capturingNotifier{},
		clock:    newTestClock(),
	}
	deps := ReservationServiceDeps{
		Rooms:          f.rooms,
		Reservations:   f.repo,
		Notifier:       f.notifier,
		TokenGenerator: sequentialTokens("res"),
		Now:            f.clock.Now,
		Calendar:       NewCalendar(time.UTC),
		PublicURL:      "https://rooms.example.com/",
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	f.svc = NewReservationService(deps)
	return f
}

func slotRequest(roomID int64, start, end string) ReservationRequest {
	cal := NewCalendar(time.UTC)
	s, _ := cal.ParseClock(testDay, start)
	e, _ := cal.ParseClock(testDay, end)
	return ReservationRequest{
		Email:  "Ana@Example.com",
		RoomID: roomID,
		Date:   testDay,
		Start:  s,
		End:    e,
		Reason: "  thesis defense  ",
	}
}

func TestReservationService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a pending reservation and sends the token", func(t *testing.T) {
		f := newReservationFixture(t)

		reservation, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if reservation.ID == 0 || reservation.Token != "res-1" {
			t.Fatalf("unexpected reservation: %+v", reservation)
		}
		if reservation.Approved || reservation.ApprovedAt != nil {
			t.Fatal("new reservations must be pending")
		}
		if reservation.Email != "ana@example.com" || reservation.Reason != "thesis defense" {
			t.Fatalf("expected normalised fields, got %q / %q", reservation.Email, reservation.Reason)
		}
		if !reservation.Date.Equal(testDay) || !reservation.CreatedAt.Equal(testNow) {
			t.Fatalf("unexpected dates: %+v", reservation)
		}

		sent := f.notifier.messages()
		if len(sent) != 1 {
			t.Fatalf("expected one confirmation, got %d", len(sent))
		}
		msg := sent[0]
		if msg.To != "ana@example.com" || !strings.Contains(msg.Body, "res-1") {
			t.Fatalf("confirmation must reach the requester with the token: %+v", msg)
		}
		if msg.Data["approve_url"] != "https://rooms.example.com/reservations/res-1/approve" {
			t.Fatalf("unexpected approve url %q", msg.Data["approve_url"])
		}
		if msg.Data["date"] != "10-03-2030" || msg.Data["start_time"] != "09:00" || msg.Data["end_time"] != "10:00" {
			t.Fatalf("unexpected notification data: %+v", msg.Data)
		}
	})

	t.Run("rejects an overlapping request without writing", func(t *testing.T) {
		f := newReservationFixture(t)

		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("first Create returned error: %v", err)
		}
		_, err := f.svc.Create(ctx, slotRequest(1, "09:30", "10:30"))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected *ConflictError, got %T", err)
		}
		if conflict.Existing.Start.Hour() != 9 || conflict.Existing.End.Hour() != 10 {
			t.Fatalf("expected the 09:00-10:00 booking as the clash, got %+v", conflict.Existing)
		}
		if f.repo.count() != 1 {
			t.Fatalf("expected no new record, have %d", f.repo.count())
		}
		if len(f.notifier.messages()) != 1 {
			t.Fatal("rejected requests must not notify")
		}
	})

	t.Run("back-to-back bookings both succeed", func(t *testing.T) {
		f := newReservationFixture(t)

		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("first Create returned error: %v", err)
		}
		if _, err := f.svc.Create(ctx, slotRequest(1, "10:00", "11:00")); err != nil {
			t.Fatalf("second Create returned error: %v", err)
		}
		if f.repo.count() != 2 {
			t.Fatalf("expected two reservations, have %d", f.repo.count())
		}
	})

	t.Run("the same slot in another room is free", func(t *testing.T) {
		f := newReservationFixture(t)

		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("first Create returned error: %v", err)
		}
		if _, err := f.svc.Create(ctx, slotRequest(2, "09:00", "10:00")); err != nil {
			t.Fatalf("second Create returned error: %v", err)
		}
	})

	t.Run("validates the request", func(t *testing.T) {
		f := newReservationFixture(t, func(d *ReservationServiceDeps) {
			d.Emails = NewAllowedDomains([]string{"example.com"})
		})

		tests := []struct {
			name  string
			req   func() ReservationRequest
			field string
		}{
			{"malformed email", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Email = "not-an-email"
				return r
			}, "email"},
			{"foreign domain", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Email = "ana@elsewhere.org"
				return r
			}, "email"},
			{"missing room", func() ReservationRequest {
				return slotRequest(0, "09:00", "10:00")
			}, "room_id"},
			{"inverted range", func() ReservationRequest {
				return slotRequest(1, "10:00", "09:00")
			}, "end_time"},
			{"zero length", func() ReservationRequest {
				return slotRequest(1, "10:00", "10:00")
			}, "end_time"},
			{"missing date", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Date = time.Time{}
				return r
			}, "date"},
			{"past date", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Date = testNow.AddDate(0, 0, -1)
				return r
			}, "date"},
			{"times on another day", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Date = testDay.AddDate(0, 0, 1)
				return r
			}, "date"},
			{"start with seconds", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Start = r.Start.Add(30 * time.Second)
				return r
			}, "start_time"},
			{"end with seconds", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.End = r.End.Add(-time.Millisecond)
				return r
			}, "end_time"},
			{"sub-minute slot", func() ReservationRequest {
				r := slotRequest(1, "09:00", "09:00")
				r.Start = r.Start.Add(30 * time.Second)
				r.End = r.End.Add(50 * time.Second)
				return r
			}, "start_time"},
			{"reason too long", func() ReservationRequest {
				r := slotRequest(1, "09:00", "10:00")
				r.Reason = strings.Repeat("x", maxReasonLength+1)
				return r
			}, "reason"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Create(ctx, tt.req())
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tt.field]; !ok {
					t.Fatalf("expected %s error, got %v", tt.field, vErr.FieldErrors)
				}
			})
		}
		if f.repo.count() != 0 {
			t.Fatal("invalid requests must not be stored")
		}
	})

	t.Run("unknown rooms are not found", func(t *testing.T) {
		f := newReservationFixture(t)

		if _, err := f.svc.Create(ctx, slotRequest(99, "09:00", "10:00")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("storage-level overlap surfaces as a conflict", func(t *testing.T) {
		f := newReservationFixture(t)
		f.repo.createErr = persistence.ErrOverlap

		_, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00"))
		var conflict *ConflictError
		if !errors.As(err, &conflict) || !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if len(f.notifier.messages()) != 0 {
			t.Fatal("conflicts must not notify")
		}
	})

	t.Run("regenerates a token that is already taken", func(t *testing.T) {
		sequence := []string{"same", "same", "other"}
		var i int
		f := newReservationFixture(t, func(d *ReservationServiceDeps) {
			d.TokenGenerator = func() (string, error) {
				token := sequence[i]
				i++
				return token, nil
			}
		})

		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("first Create returned error: %v", err)
		}
		second, err := f.svc.Create(ctx, slotRequest(1, "11:00", "12:00"))
		if err != nil {
			t.Fatalf("second Create returned error: %v", err)
		}
		if second.Token != "other" {
			t.Fatalf("expected regenerated token, got %q", second.Token)
		}
	})

	t.Run("notification failures do not fail the booking", func(t *testing.T) {
		f := newReservationFixture(t)
		f.notifier.err = errors.New("smtp unreachable")

		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if f.repo.count() != 1 {
			t.Fatal("reservation must be stored even when notification fails")
		}
	})

	t.Run("confirmation survives a cancelled request", func(t *testing.T) {
		f := newReservationFixture(t)
		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		f.repo.afterWrite = cancel

		if _, err := f.svc.Create(reqCtx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if reqCtx.Err() == nil {
			t.Fatal("expected the request context to be cancelled after the insert")
		}
		sends := f.notifier.contexts()
		if len(sends) != 1 {
			t.Fatalf("expected one confirmation, got %d", len(sends))
		}
		if sends[0].err != nil || !sends[0].hasDeadline {
			t.Fatalf("expected a live bounded context, got %+v", sends[0])
		}
	})

	t.Run("storage failures are returned unchanged", func(t *testing.T) {
		f := newReservationFixture(t)
		f.repo.listErr = errStorageDown

		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); !errors.Is(err, errStorageDown) {
			t.Fatalf("expected storage error, got %v", err)
		}
	})

	t.Run("concurrent requests for one slot admit exactly one", func(t *testing.T) {
		f := newReservationFixture(t)

		const workers = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Create(ctx, slotRequest(1, "14:00", "15:00"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if succeeded != 1 || conflicts != workers-1 {
			t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, succeeded, conflicts)
		}
	})
}

func TestReservationService_ApproveAndVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown tokens are not found", func(t *testing.T) {
		f := newReservationFixture(t)

		if _, err := f.svc.Approve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := f.svc.Approve(ctx, "  "); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for blank token, got %v", err)
		}
		if _, err := f.svc.Verify(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Verify, got %v", err)
		}
	})

	t.Run("round trip from create through approve", func(t *testing.T) {
		f := newReservationFixture(t)
		req := slotRequest(1, "09:00", "10:00")

		created, err := f.svc.Create(ctx, req)
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		view, err := f.svc.Verify(ctx, created.Token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if view.Reservation.Approved {
			t.Fatal("verify must not imply approval")
		}
		if view.Room.ID != req.RoomID || view.Room.Name != testRoom.Name {
			t.Fatalf("unexpected room in view: %+v", view.Room)
		}
		if !view.Reservation.Date.Equal(testDay) || !view.Reservation.Start.Equal(req.Start) || !view.Reservation.End.Equal(req.End) {
			t.Fatalf("view does not match the request: %+v", view.Reservation)
		}

		f.clock.Advance(time.Hour)
		approved, err := f.svc.Approve(ctx, created.Token)
		if err != nil {
			t.Fatalf("Approve returned error: %v", err)
		}
		if !approved.Approved || approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(testNow.Add(time.Hour)) {
			t.Fatalf("unexpected approval state: %+v", approved)
		}

		view, err = f.svc.Verify(ctx, created.Token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if !view.Reservation.Approved {
			t.Fatal("expected verify to observe approval")
		}

		sent := f.notifier.messages()
		if len(sent) != 2 {
			t.Fatalf("expected confirmation and approval notices, got %d", len(sent))
		}
		approval := sent[1]
		for _, want := range []string{"Lab 1", "10-03-2030", "09:00", "10:00"} {
			if !strings.Contains(approval.Body, want) {
				t.Fatalf("approval body %q lacks %q", approval.Body, want)
			}
		}
	})

	t.Run("approval notice survives a cancelled request", func(t *testing.T) {
		f := newReservationFixture(t)
		created, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		f.repo.afterWrite = cancel

		if _, err := f.svc.Approve(reqCtx, created.Token); err != nil {
			t.Fatalf("Approve returned error: %v", err)
		}
		sends := f.notifier.contexts()
		if len(sends) != 2 {
			t.Fatalf("expected confirmation and approval notices, got %d", len(sends))
		}
		if sends[1].err != nil || !sends[1].hasDeadline {
			t.Fatalf("expected a live bounded context, got %+v", sends[1])
		}
	})

	t.Run("approving twice is a no-op", func(t *testing.T) {
		f := newReservationFixture(t)
		created, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		first, err := f.svc.Approve(ctx, created.Token)
		if err != nil {
			t.Fatalf("first Approve returned error: %v", err)
		}
		f.clock.Advance(time.Minute)
		second, err := f.svc.Approve(ctx, created.Token)
		if err != nil {
			t.Fatalf("second Approve returned error: %v", err)
		}

		if !second.Approved || !second.ApprovedAt.Equal(*first.ApprovedAt) {
			t.Fatalf("second approval changed state: %+v", second)
		}
		if f.repo.saves != 1 {
			t.Fatalf("expected a single save, got %d", f.repo.saves)
		}
		if len(f.notifier.messages()) != 2 {
			t.Fatalf("expected no second approval notice, got %d messages", len(f.notifier.messages()))
		}
	})

	t.Run("approved reservations keep blocking the slot", func(t *testing.T) {
		f := newReservationFixture(t)
		created, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if _, err := f.svc.Approve(ctx, created.Token); err != nil {
			t.Fatalf("Approve returned error: %v", err)
		}
		if _, err := f.svc.Create(ctx, slotRequest(1, "09:15", "09:45")); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("save failures leave the reservation pending", func(t *testing.T) {
		f := newReservationFixture(t)
		created, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		f.repo.saveErr = errStorageDown

		if _, err := f.svc.Approve(ctx, created.Token); !errors.Is(err, errStorageDown) {
			t.Fatalf("expected storage error, got %v", err)
		}
		view, err := f.svc.Verify(ctx, created.Token)
		if err != nil || view.Reservation.Approved {
			t.Fatalf("expected reservation to stay pending, got %+v (err %v)", view.Reservation, err)
		}
		if len(f.notifier.messages()) != 1 {
			t.Fatal("failed approvals must not notify")
		}
	})
}

func TestReservationService_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("lists upcoming reservations in order", func(t *testing.T) {
		f := newReservationFixture(t)
		cal := NewCalendar(time.UTC)
		yesterday := cal.Day(testNow).AddDate(0, 0, -1)
		f.repo.rows = append(f.repo.rows, Reservation{
			ID: 100, RoomID: 1, Date: yesterday, Token: "old",
			Start: cal.At(yesterday, 9, 0), End: cal.At(yesterday, 10, 0),
		})
		f.repo.nextID = 100

		for _, slot := range [][2]string{{"15:00", "16:00"}, {"08:00", "09:00"}} {
			if _, err := f.svc.Create(ctx, slotRequest(1, slot[0], slot[1])); err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
		}
		today := cal.Day(testNow)
		if _, err := f.svc.Create(ctx, ReservationRequest{
			Email: "bo@example.com", RoomID: 2, Date: today,
			Start: cal.At(today, 18, 0), End: cal.At(today, 19, 0),
		}); err != nil {
			t.Fatalf("Create for today returned error: %v", err)
		}

		upcoming, err := f.svc.ListUpcoming(ctx)
		if err != nil {
			t.Fatalf("ListUpcoming returned error: %v", err)
		}
		if len(upcoming) != 3 {
			t.Fatalf("expected past reservation to be excluded, got %d", len(upcoming))
		}
		if !upcoming[0].Date.Equal(today) || upcoming[1].Start.Hour() != 8 || upcoming[2].Start.Hour() != 15 {
			t.Fatalf("unexpected order: %+v", upcoming)
		}
	})

	t.Run("booked intervals include pending reservations sorted by start", func(t *testing.T) {
		f := newReservationFixture(t)
		for _, slot := range [][2]string{{"13:00", "14:00"}, {"09:00", "10:00"}} {
			if _, err := f.svc.Create(ctx, slotRequest(1, slot[0], slot[1])); err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
		}

		booked, err := f.svc.BookedIntervals(ctx, 1, testDay.Add(15*time.Hour))
		if err != nil {
			t.Fatalf("BookedIntervals returned error: %v", err)
		}
		if len(booked) != 2 || booked[0].Start.Hour() != 9 || booked[1].Start.Hour() != 13 {
			t.Fatalf("unexpected intervals: %+v", booked)
		}

		empty, err := f.svc.BookedIntervals(ctx, 2, testDay)
		if err != nil || len(empty) != 0 {
			t.Fatalf("expected no intervals for an empty room, got %v (err %v)", empty, err)
		}

		if _, err := f.svc.BookedIntervals(ctx, 99, testDay); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("checks collisions for candidate slots", func(t *testing.T) {
		f := newReservationFixture(t)
		if _, err := f.svc.Create(ctx, slotRequest(1, "09:00", "10:00")); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		cal := NewCalendar(time.UTC)

		clash, err := f.svc.CheckCollision(ctx, 1, testDay, scheduler.Interval{Start: cal.At(testDay, 9, 30), End: cal.At(testDay, 10, 30)})
		if err != nil {
			t.Fatalf("CheckCollision returned error: %v", err)
		}
		if !clash.Conflict || clash.With == nil || clash.With.Start.Hour() != 9 {
			t.Fatalf("expected collision with 09:00-10:00, got %+v", clash)
		}

		free, err := f.svc.CheckCollision(ctx, 1, testDay, scheduler.Interval{Start: cal.At(testDay, 10, 0), End: cal.At(testDay, 11, 0)})
		if err != nil {
			t.Fatalf("CheckCollision returned error: %v", err)
		}
		if free.Conflict || free.With != nil {
			t.Fatalf("expected back-to-back slot to be free, got %+v", free)
		}

		_, err = f.svc.CheckCollision(ctx, 1, testDay, scheduler.Interval{Start: cal.At(testDay, 11, 0), End: cal.At(testDay, 11, 0)})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for empty slot, got %v", err)
		}
	})
}

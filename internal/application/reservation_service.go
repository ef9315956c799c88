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
	"github.com/example/room-reservations/internal/scheduler"
)

// maxReasonLength bounds the free-text reason.
const maxReasonLength = 500

// maxTokenAttempts bounds regeneration when a reservation token is already taken.
const maxTokenAttempts = 3

// notificationTimeout bounds a single notification send.
const notificationTimeout = 30 * time.Second

// ReservationRepository captures the persistence operations needed by the service.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	FindReservationByToken(ctx context.Context, token string) (Reservation, error)
	ListReservationsForSlot(ctx context.Context, roomID int64, date time.Time) ([]Reservation, error)
	ListReservationsFrom(ctx context.Context, date time.Time) ([]Reservation, error)
	SaveReservation(ctx context.Context, reservation Reservation) (Reservation, error)
}

// RoomLookup resolves rooms referenced by reservations.
type RoomLookup interface {
	GetRoom(ctx context.Context, id int64) (Room, error)
}

// ReservationServiceDeps groups the collaborators of a ReservationService.
// Notifier, Emails, Locks and Now are optional.
type ReservationServiceDeps struct {
	Rooms        RoomLookup
	Reservations ReservationRepository
	Notifier     Notifier
	Emails       EmailPolicy
	Locks        *scheduler.SlotLocks
	// TokenGenerator mints reservation tokens. These never expire and are
	// unrelated to the authorization TokenStore.
	TokenGenerator func() (string, error)
	Now            func() time.Time
	Calendar       Calendar
	// PublicURL prefixes links placed in notifications.
	PublicURL string
	Logger    *slog.Logger
}

// ReservationService runs the reservation lifecycle: a reservation is created
// pending and becomes approved when its token is presented.
type ReservationService struct {
	rooms          RoomLookup
	reservations   ReservationRepository
	notifier       Notifier
	emails         EmailPolicy
	locks          *scheduler.SlotLocks
	tokenGenerator func() (string, error)
	now            func() time.Time
	calendar       Calendar
	publicURL      string
	logger         *slog.Logger
}

// NewReservationService constructs a ReservationService.
func NewReservationService(deps ReservationServiceDeps) *ReservationService {
	svc := &ReservationService{
		rooms:          deps.Rooms,
		reservations:   deps.Reservations,
		notifier:       deps.Notifier,
		emails:         deps.Emails,
		locks:          deps.Locks,
		tokenGenerator: deps.TokenGenerator,
		now:            deps.Now,
		calendar:       deps.Calendar,
		publicURL:      strings.TrimRight(deps.PublicURL, "/"),
		logger:         logging.OrDefault(deps.Logger),
	}
	if svc.notifier == nil {
		svc.notifier = discardNotifier{}
	}
	if svc.emails == nil {
		svc.emails = AllowedDomains(nil)
	}
	if svc.locks == nil {
		svc.locks = scheduler.NewSlotLocks()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Calendar returns the calendar the service interprets dates with.
func (s *ReservationService) Calendar() Calendar {
	return s.calendar
}

// Create validates req, rejects it when the slot is taken and otherwise
// stores a pending reservation and notifies the requester with its token.
func (s *ReservationService) Create(ctx context.Context, req ReservationRequest) (reservation Reservation, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Create", "room_id", req.RoomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	var candidate Reservation
	if candidate, err = s.validateRequest(req); err != nil {
		return
	}

	var room Room
	if room, err = s.rooms.GetRoom(ctx, candidate.RoomID); err != nil {
		err = mapReservationRepoError(err, candidate)
		return
	}

	if reservation, err = s.insertExclusive(ctx, candidate); err != nil {
		reservation = Reservation{}
		return
	}

	s.notify(ctx, logger, s.confirmationFor(reservation, room))
	return
}

// insertExclusive checks the slot and inserts while holding the slot lock.
func (s *ReservationService) insertExclusive(ctx context.Context, candidate Reservation) (Reservation, error) {
	unlock := s.locks.Lock(candidate.RoomID, candidate.Date)
	defer unlock()

	booked, err := s.bookedIntervals(ctx, candidate.RoomID, candidate.Date)
	if err != nil {
		return Reservation{}, err
	}
	if existing, clash := scheduler.FirstConflict(candidate.Interval(), booked); clash {
		return Reservation{}, &ConflictError{
			RoomID:    candidate.RoomID,
			Date:      candidate.Date,
			Requested: candidate.Interval(),
			Existing:  existing,
		}
	}

	for attempt := 0; ; attempt++ {
		if candidate.Token, err = s.tokenGenerator(); err != nil {
			return Reservation{}, fmt.Errorf("generate reservation token: %w", err)
		}

		stored, err := s.reservations.CreateReservation(ctx, candidate)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, persistence.ErrDuplicate) && attempt+1 < maxTokenAttempts {
			continue
		}
		return Reservation{}, mapReservationRepoError(err, candidate)
	}
}

// Approve marks the reservation holding token as approved and notifies the
// requester. Approving an approved reservation returns it unchanged and sends
// nothing.
func (s *ReservationService) Approve(ctx context.Context, token string) (reservation Reservation, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Approve")
	var alreadyApproved bool
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"reservation_id", reservation.ID,
			"already_approved", alreadyApproved,
		).InfoContext(ctx, "reservation approved")
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		err = ErrNotFound
		return
	}

	var found Reservation
	if found, err = s.reservations.FindReservationByToken(ctx, token); err != nil {
		err = mapReservationRepoError(err, Reservation{})
		return
	}

	// The slot lock serialises concurrent approvals of the same reservation.
	unlock := s.locks.Lock(found.RoomID, found.Date)
	defer unlock()

	if found, err = s.reservations.FindReservationByToken(ctx, token); err != nil {
		err = mapReservationRepoError(err, Reservation{})
		return
	}
	if found.Approved {
		alreadyApproved = true
		reservation = found
		return
	}

	var room Room
	if room, err = s.rooms.GetRoom(ctx, found.RoomID); err != nil {
		err = mapReservationRepoError(err, found)
		return
	}

	approvedAt := s.now()
	found.Approved = true
	found.ApprovedAt = &approvedAt
	if reservation, err = s.reservations.SaveReservation(ctx, found); err != nil {
		reservation = Reservation{}
		err = mapReservationRepoError(err, found)
		return
	}

	s.notify(ctx, logger, s.approvalFor(reservation, room))
	return
}

// Verify returns the reservation holding token together with its room,
// whether or not it is approved.
func (s *ReservationService) Verify(ctx context.Context, token string) (ReservationView, error) {
	if err := s.configured(); err != nil {
		return ReservationView{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ReservationView{}, ErrNotFound
	}

	reservation, err := s.reservations.FindReservationByToken(ctx, token)
	if err != nil {
		return ReservationView{}, mapReservationRepoError(err, Reservation{})
	}
	room, err := s.rooms.GetRoom(ctx, reservation.RoomID)
	if err != nil {
		err = mapReservationRepoError(err, reservation)
		s.loggerWith(ctx, "Verify", "reservation_id", reservation.ID).
			ErrorContext(ctx, "failed to load reserved room", "error", err, "error_kind", ErrorKind(err))
		return ReservationView{}, err
	}
	return ReservationView{Reservation: reservation, Room: room}, nil
}

// ListUpcoming returns reservations dated today or later in the canonical
// zone, ordered by date, start and id.
func (s *ReservationService) ListUpcoming(ctx context.Context) (reservations []Reservation, err error) {
	if err = s.configured(); err != nil {
		return
	}

	today := s.calendar.Day(s.now())
	logger := s.loggerWith(ctx, "ListUpcoming", "from", today.Format(DateLayout))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(reservations)).DebugContext(ctx, "reservations listed")
	}()

	var raw []Reservation
	if raw, err = s.reservations.ListReservationsFrom(ctx, today); err != nil {
		err = mapReservationRepoError(err, Reservation{})
		return
	}

	reservations = make([]Reservation, len(raw))
	copy(reservations, raw)
	sort.SliceStable(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return
}

// BookedIntervals returns the spans held in roomID on date, sorted by start.
// Pending reservations hold their slot exactly like approved ones.
func (s *ReservationService) BookedIntervals(ctx context.Context, roomID int64, date time.Time) ([]scheduler.Interval, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, mapReservationRepoError(err, Reservation{})
	}
	return s.bookedIntervals(ctx, roomID, s.calendar.Day(date))
}

// CheckCollision reports whether slot would clash with a held reservation in
// roomID on date, and with which one.
func (s *ReservationService) CheckCollision(ctx context.Context, roomID int64, date time.Time, slot scheduler.Interval) (Collision, error) {
	if !slot.Valid() {
		return Collision{}, NewValidationError("end_time", "end time must be after start time")
	}
	booked, err := s.BookedIntervals(ctx, roomID, date)
	if err != nil {
		return Collision{}, err
	}
	existing, clash := scheduler.FirstConflict(slot, booked)
	if !clash {
		return Collision{}, nil
	}
	return Collision{Conflict: true, With: &existing}, nil
}

func (s *ReservationService) bookedIntervals(ctx context.Context, roomID int64, day time.Time) ([]scheduler.Interval, error) {
	held, err := s.reservations.ListReservationsForSlot(ctx, roomID, day)
	if err != nil {
		return nil, mapReservationRepoError(err, Reservation{})
	}

	intervals := make([]scheduler.Interval, 0, len(held))
	for _, reservation := range held {
		intervals = append(intervals, reservation.Interval())
	}
	return scheduler.SortByStart(intervals), nil
}

func (s *ReservationService) validateRequest(req ReservationRequest) (Reservation, error) {
	vErr := &ValidationError{}

	email, ok := normalizeEmail(req.Email)
	switch {
	case !ok:
		vErr.add("email", "a valid email address is required")
	case !s.emails.IsAcceptedDomain(email):
		vErr.add("email", "email domain is not accepted")
	}

	if req.RoomID <= 0 {
		vErr.add("room_id", "room_id must be positive")
	}

	var day time.Time
	if req.Date.IsZero() {
		vErr.add("date", "date is required")
	} else {
		day = s.calendar.Day(req.Date)
		if day.Before(s.calendar.Day(s.now())) {
			vErr.add("date", "date must not be in the past")
		}
	}

	if req.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if req.End.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if !req.Start.IsZero() && !s.onMinute(req.Start) {
		vErr.add("start_time", "start time must be a whole minute")
	}
	if !req.End.IsZero() && !s.onMinute(req.End) {
		vErr.add("end_time", "end time must be a whole minute")
	}

	slot := scheduler.Interval{Start: req.Start, End: req.End}
	if !req.Start.IsZero() && !req.End.IsZero() {
		switch {
		case !slot.Valid():
			vErr.add("end_time", "end time must be after start time")
		case !day.IsZero() && (!s.calendar.Day(req.Start).Equal(day) || !s.calendar.Day(req.End).Equal(day)):
			vErr.add("date", "start and end must fall on the reserved date")
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if len(reason) > maxReasonLength {
		vErr.add("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}

	if vErr.HasErrors() {
		return Reservation{}, vErr
	}

	return Reservation{
		Email:     email,
		RoomID:    req.RoomID,
		Date:      day,
		Start:     req.Start.In(s.calendar.Location()),
		End:       req.End.In(s.calendar.Location()),
		Reason:    reason,
		CreatedAt: s.now(),
	}, nil
}

// onMinute reports whether t has no seconds in the canonical zone. Storage
// keeps times as HH:MM.
func (s *ReservationService) onMinute(t time.Time) bool {
	local := t.In(s.calendar.Location())
	return local.Second() == 0 && local.Nanosecond() == 0
}

func (s *ReservationService) configured() error {
	switch {
	case s == nil:
		return fmt.Errorf("ReservationService is nil")
	case s.rooms == nil:
		return fmt.Errorf("room repository not configured")
	case s.reservations == nil:
		return fmt.Errorf("reservation repository not configured")
	case s.tokenGenerator == nil:
		return fmt.Errorf("reservation token generator not configured")
	}
	return nil
}

// notify sends outside the caller's cancellation: the reservation is already
// stored and the token reaches the requester only through this message.
func (s *ReservationService) notify(ctx context.Context, logger *slog.Logger, notification Notification) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
	defer cancel()

	if err := s.notifier.Send(sendCtx, notification); err != nil {
		logger.WarnContext(ctx, "notification failed",
			"subject", notification.Subject,
			"error", err,
		)
	}
}

func (s *ReservationService) confirmationFor(reservation Reservation, room Room) Notification {
	data := s.notificationData(reservation, room)
	return Notification{
		To:      reservation.Email,
		Subject: "Confirm your reservation of " + room.Name,
		Body: fmt.Sprintf(
			"We received your request for %s on %s from %s to %s. "+
				"It stays pending until you confirm it at %s (token %s).",
			room.Name, data["date"], data["start_time"], data["end_time"], data["approve_url"], reservation.Token,
		),
		Data: data,
	}
}

func (s *ReservationService) approvalFor(reservation Reservation, room Room) Notification {
	data := s.notificationData(reservation, room)
	return Notification{
		To:      reservation.Email,
		Subject: "Reservation approved: " + room.Name,
		Body: fmt.Sprintf(
			"Your reservation of %s on %s from %s to %s is approved.",
			room.Name, data["date"], data["start_time"], data["end_time"],
		),
		Data: data,
	}
}

func (s *ReservationService) notificationData(reservation Reservation, room Room) map[string]string {
	return map[string]string{
		"room":        room.Name,
		"location":    room.Location,
		"date":        reservation.Date.Format(DateLayout),
		"start_time":  reservation.Start.Format(ClockLayout),
		"end_time":    reservation.End.Format(ClockLayout),
		"token":       reservation.Token,
		"approve_url": fmt.Sprintf("%s/reservations/%s/approve", s.publicURL, reservation.Token),
	}
}

func mapReservationRepoError(err error, candidate Reservation) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, persistence.ErrOverlap):
		return &ConflictError{
			RoomID:    candidate.RoomID,
			Date:      candidate.Date,
			Requested: candidate.Interval(),
		}
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		// The room vanished between lookup and insert.
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return NewValidationError("reservation", "reservation violates storage constraints")
	}
	return err
}

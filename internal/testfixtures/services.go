package testfixtures

import (
	"log/slog"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic tokens and clocks.
type ServiceFactory struct {
	Clock    *Clock
	Tokens   *TokenSequence
	Calendar application.Calendar
	Notifier *RecordingNotifier
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the
// reference clock, "token" tokens, a UTC calendar and a recording notifier.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:    NewClock(time.Time{}),
		Tokens:   NewTokenSequence("token"),
		Calendar: application.NewCalendar(time.UTC),
		Notifier: &RecordingNotifier{},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.Tokens == nil {
		factory.Tokens = NewTokenSequence("token")
	}
	if factory.Notifier == nil {
		factory.Notifier = &RecordingNotifier{}
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithTokens overrides the reservation token sequence.
func WithTokens(tokens *TokenSequence) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Tokens = tokens
	}
}

// WithCalendar overrides the canonical zone.
func WithCalendar(cal application.Calendar) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Calendar = cal
	}
}

// NewRoomService builds a room service over rooms.
func (f *ServiceFactory) NewRoomService(rooms application.RoomRepository, logger *slog.Logger) *application.RoomService {
	return application.NewRoomServiceWithLogger(rooms, f.Clock.NowFunc(), logger)
}

// ReservationServiceDeps captures the collaborators a test wants to supply.
// Missing ones fall back to the factory defaults.
type ReservationServiceDeps struct {
	Rooms        application.RoomLookup
	Reservations application.ReservationRepository
	Notifier     application.Notifier
	Emails       application.EmailPolicy
	PublicURL    string
	Logger       *slog.Logger
}

// NewReservationService builds a reservation service using deps combined
// with the factory defaults.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = f.Notifier
	}
	publicURL := deps.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost:8080"
	}
	return application.NewReservationService(application.ReservationServiceDeps{
		Rooms:          deps.Rooms,
		Reservations:   deps.Reservations,
		Notifier:       notifier,
		Emails:         deps.Emails,
		TokenGenerator: f.Tokens.NextFunc(),
		Now:            f.Clock.NowFunc(),
		Calendar:       f.Calendar,
		PublicURL:      publicURL,
		Logger:         deps.Logger,
	})
}

// Services bundles room and reservation services sharing one database.
type Services struct {
	Harness      *SQLiteHarness
	Rooms        *application.RoomService
	Reservations *application.ReservationService
}

// NewSQLiteServices builds services backed by a fresh temporary database.
func (f *ServiceFactory) NewSQLiteServices(tb testing.TB) Services {
	tb.Helper()

	harness := NewSQLiteHarness(tb)
	roomStore := application.NewRoomStore(harness.Rooms)
	return Services{
		Harness: harness,
		Rooms:   f.NewRoomService(roomStore, nil),
		Reservations: f.NewReservationService(ReservationServiceDeps{
			Rooms:        roomStore,
			Reservations: application.NewReservationStore(harness.Reservations, f.Calendar),
		}),
	}
}

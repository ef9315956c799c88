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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/config"
	httptransport "github.com/example/room-reservations/internal/http"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/notify"
	"github.com/example/room-reservations/internal/persistence/sqlite"
	"github.com/example/room-reservations/internal/tokens"
)

const (
	redisTokenPrefix      = "reservations:authtoken"
	reservationTokenBytes = 32
	visitorTTL            = 10 * time.Minute
	sweepInterval         = time.Minute
	shutdownTimeout       = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger, migrateUp)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "apply database migrations on startup")
	return cmd
}

// server holds the wired HTTP handler and the resources it owns.
type server struct {
	handler http.Handler
	limiter *httptransport.RateLimiter
	storage *sqlite.Storage
	redis   *redis.Client
	logger  *slog.Logger
}

func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger, migrateUp bool) (srv *server, err error) {
	srv = &server{logger: logger}
	defer func() {
		if err != nil {
			srv.Close()
			srv = nil
		}
	}()

	srv.storage, err = sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return srv, fmt.Errorf("open storage: %w", err)
	}
	if migrateUp {
		applied, migrateErr := srv.storage.Migrate(ctx)
		if migrateErr != nil {
			return srv, migrateErr
		}
		logger.InfoContext(ctx, "database migrations applied", "count", applied)
	}

	var authTokens application.TokenStore
	if cfg.RedisAddr != "" {
		srv.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err = srv.redis.Ping(ctx).Err(); err != nil {
			return srv, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		authTokens = tokens.NewRedisStore(srv.redis, redisTokenPrefix, cfg.TokenDuration, nil, nil, logger)
		logger.InfoContext(ctx, "using redis token store", "addr", cfg.RedisAddr)
	} else {
		authTokens = tokens.NewMemoryStore(cfg.TokenDuration, nil, nil)
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return srv, err
	}

	calendar := application.NewCalendar(cfg.Location)
	roomStore := application.NewRoomStore(srv.storage.Rooms)

	roomService := application.NewRoomServiceWithLogger(roomStore, time.Now, logger)
	reservationService := application.NewReservationService(application.ReservationServiceDeps{
		Rooms:          roomStore,
		Reservations:   application.NewReservationStore(srv.storage.Reservations, calendar),
		Notifier:       notifier,
		Emails:         application.NewAllowedDomains(cfg.AllowedDomains),
		TokenGenerator: tokens.RandomHex(reservationTokenBytes),
		Now:            time.Now,
		Calendar:       calendar,
		PublicURL:      cfg.PublicURL,
		Logger:         logger,
	})
	authService := application.NewAuthServiceWithLogger(
		application.AdminCredentials{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash},
		authTokens, nil, time.Now, cfg.TokenDuration, logger,
	)
	if cfg.AdminPasswordHash == "" {
		logger.WarnContext(ctx, "admin login disabled: RESERVATIONS_ADMIN_PASSWORD_HASH is empty")
	}

	srv.limiter = httptransport.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, visitorTTL, nil)

	srv.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Info: httptransport.NewInfoHandler(httptransport.AppInfo{
			AppName:    cfg.AppName,
			AdminEmail: cfg.AdminEmail,
			Version:    cfg.Version,
		}),
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Rooms:        httptransport.NewRoomHandler(roomService, reservationService, logger),
		Reservations: httptransport.NewReservationHandler(reservationService, logger),
		RequireAuth:  httptransport.RequireAuthToken(authService, logger),
		RateLimit:    srv.limiter.Middleware(logger),
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return srv, nil
}

func newNotifier(cfg config.Config, logger *slog.Logger) (application.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierCourier:
		notifier, err := notify.NewCourierNotifier(notify.CourierConfig{
			URL:       cfg.CourierURL,
			AuthToken: cfg.CourierToken,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("configure courier notifier: %w", err)
		}
		return notifier, nil
	default:
		return notify.NewLogNotifier(logger), nil
	}
}

// Close releases the storage and redis connections.
func (s *server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.storage != nil {
		errs = append(errs, s.storage.Close())
	}
	return errors.Join(errs...)
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, migrateUp bool) error {
	srv, err := newServer(ctx, cfg, logger, migrateUp)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			logger.Error("failed to close resources", "error", cerr)
		}
	}()

	go srv.limiter.Run(ctx, sweepInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("reservations API listening", "addr", httpServer.Addr, "version", cfg.Version)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

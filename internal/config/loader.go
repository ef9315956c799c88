package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Notifier backends.
const (
	NotifierLog     = "log"
	NotifierCourier = "courier"
)

// DefaultEnvFiles lists the dotenv files Load reads, highest priority first.
var DefaultEnvFiles = []string{".env.prod", ".env"}

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort  int
	SQLiteDSN string
	LogLevel  slog.Level

	AppName    string
	Version    string
	AdminEmail string
	// AdminPasswordHash is an argon2id hash. Login is disabled when empty.
	AdminPasswordHash string
	TokenDuration     time.Duration

	AllowedDomains []string
	Location       *time.Location
	PublicURL      string
	RedisAddr      string

	Notifier     string
	CourierURL   string
	CourierToken string

	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads DefaultEnvFiles into the process environment and then parses it.
func Load() (Config, error) {
	if err := LoadEnvFiles(DefaultEnvFiles...); err != nil {
		return Config{}, err
	}
	return Parse()
}

// LoadEnvFiles copies variables from the given dotenv files into the process
// environment. Variables that are already set win, so earlier files take
// priority over later ones. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Parse builds a Config from the current process environment.
//
// Optional fields fall back to defaults. Missing and invalid variables are
// collected and reported together.
func Parse() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "reservations.db",
		LogLevel:           slog.LevelInfo,
		AppName:            "Room Reservations",
		Version:            "0.1.0",
		TokenDuration:      30 * time.Minute,
		PublicURL:          "http://localhost:8080",
		Notifier:           NotifierLog,
		CourierURL:         "https://api.courier.com/send",
		RateLimitPerMinute: 30,
		RateLimitBurst:     10,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	positiveInt := func(key string, dst *int) {
		value := env(key)
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, key)
			return
		}
		*dst = n
	}

	positiveInt("RESERVATIONS_HTTP_PORT", &cfg.HTTPPort)
	positiveInt("RESERVATIONS_RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)
	positiveInt("RESERVATIONS_RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	if dsn := env("RESERVATIONS_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if name := env("RESERVATIONS_APP_NAME"); name != "" {
		cfg.AppName = name
	}
	if version := env("RESERVATIONS_VERSION"); version != "" {
		cfg.Version = version
	}

	if level := env("RESERVATIONS_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, "RESERVATIONS_LOG_LEVEL")
		}
	}

	if email := env("RESERVATIONS_ADMIN_EMAIL"); email == "" {
		missing = append(missing, "RESERVATIONS_ADMIN_EMAIL")
	} else {
		cfg.AdminEmail = email
	}
	cfg.AdminPasswordHash = env("RESERVATIONS_ADMIN_PASSWORD_HASH")

	if value := env("RESERVATIONS_TOKEN_DURATION"); value != "" {
		duration, err := parseDuration(value)
		if err != nil || duration <= 0 {
			invalid = append(invalid, "RESERVATIONS_TOKEN_DURATION")
		} else {
			cfg.TokenDuration = duration
		}
	}

	if value := env("RESERVATIONS_ALLOWED_DOMAINS"); value != "" {
		for _, domain := range strings.Split(value, ",") {
			if domain = strings.TrimSpace(domain); domain != "" {
				cfg.AllowedDomains = append(cfg.AllowedDomains, domain)
			}
		}
	}

	zone := env("RESERVATIONS_TIMEZONE")
	if zone == "" {
		zone = "America/Sao_Paulo"
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "RESERVATIONS_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if value := env("RESERVATIONS_PUBLIC_URL"); value != "" {
		if !isAbsoluteURL(value) {
			invalid = append(invalid, "RESERVATIONS_PUBLIC_URL")
		} else {
			cfg.PublicURL = strings.TrimRight(value, "/")
		}
	}

	cfg.RedisAddr = env("RESERVATIONS_REDIS_ADDR")

	if notifier := strings.ToLower(env("RESERVATIONS_NOTIFIER")); notifier != "" {
		switch notifier {
		case NotifierLog, NotifierCourier:
			cfg.Notifier = notifier
		default:
			invalid = append(invalid, "RESERVATIONS_NOTIFIER")
		}
	}
	if value := env("RESERVATIONS_COURIER_URL"); value != "" {
		if !isAbsoluteURL(value) {
			invalid = append(invalid, "RESERVATIONS_COURIER_URL")
		} else {
			cfg.CourierURL = value
		}
	}
	cfg.CourierToken = env("RESERVATIONS_COURIER_TOKEN")
	if cfg.Notifier == NotifierCourier && cfg.CourierToken == "" {
		missing = append(missing, "RESERVATIONS_COURIER_TOKEN")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// parseDuration accepts Go durations and bare minute counts.
func parseDuration(value string) (time.Duration, error) {
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	return time.ParseDuration(value)
}

func isAbsoluteURL(value string) bool {
	u, err := url.Parse(value)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

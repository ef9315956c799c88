package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"RESERVATIONS_HTTP_PORT",
	"RESERVATIONS_SQLITE_DSN",
	"RESERVATIONS_LOG_LEVEL",
	"RESERVATIONS_APP_NAME",
	"RESERVATIONS_VERSION",
	"RESERVATIONS_ADMIN_EMAIL",
	"RESERVATIONS_ADMIN_PASSWORD_HASH",
	"RESERVATIONS_TOKEN_DURATION",
	"RESERVATIONS_ALLOWED_DOMAINS",
	"RESERVATIONS_TIMEZONE",
	"RESERVATIONS_PUBLIC_URL",
	"RESERVATIONS_REDIS_ADDR",
	"RESERVATIONS_NOTIFIER",
	"RESERVATIONS_COURIER_URL",
	"RESERVATIONS_COURIER_TOKEN",
	"RESERVATIONS_RATE_LIMIT_PER_MINUTE",
	"RESERVATIONS_RATE_LIMIT_BURST",
}

// clearEnv unsets every variable for the duration of the test. t.Setenv
// registers the restore before the unset takes effect.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestParse(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_ADMIN_EMAIL", "admin@example.com")

		cfg, err := Parse()
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
			t.Fatalf("expected default port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "reservations.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.TokenDuration != 30*time.Minute {
			t.Fatalf("unexpected default token duration %s", cfg.TokenDuration)
		}
		if cfg.Location == nil || cfg.Location.String() != "America/Sao_Paulo" {
			t.Fatalf("unexpected default location %v", cfg.Location)
		}
		if cfg.Notifier != NotifierLog || cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("unexpected notifier %q or level %v", cfg.Notifier, cfg.LogLevel)
		}
		if cfg.RateLimitPerMinute != 30 || cfg.RateLimitBurst != 10 {
			t.Fatalf("unexpected rate limit %d/%d", cfg.RateLimitPerMinute, cfg.RateLimitBurst)
		}
		if cfg.AllowedDomains != nil || cfg.RedisAddr != "" || cfg.AdminPasswordHash != "" {
			t.Fatalf("expected optional values to stay empty: %+v", cfg)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Parse()
		if err == nil {
			t.Fatal("expected error when required values are missing")
		}
		expected := "missing required environment variables: RESERVATIONS_ADMIN_EMAIL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("courier requires a token", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_NOTIFIER", "courier")

		_, err := Parse()
		expected := "missing required environment variables: RESERVATIONS_ADMIN_EMAIL, RESERVATIONS_COURIER_TOKEN"
		if err == nil || err.Error() != expected {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("parses every field", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_ADMIN_EMAIL", "admin@example.com")
		t.Setenv("RESERVATIONS_ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA")
		t.Setenv("RESERVATIONS_HTTP_PORT", "9090")
		t.Setenv("RESERVATIONS_SQLITE_DSN", "/tmp/reservations.db")
		t.Setenv("RESERVATIONS_LOG_LEVEL", "debug")
		t.Setenv("RESERVATIONS_TOKEN_DURATION", "45")
		t.Setenv("RESERVATIONS_ALLOWED_DOMAINS", "example.com, , uni.edu")
		t.Setenv("RESERVATIONS_TIMEZONE", "UTC")
		t.Setenv("RESERVATIONS_PUBLIC_URL", "https://rooms.example.com/")
		t.Setenv("RESERVATIONS_REDIS_ADDR", "localhost:6379")
		t.Setenv("RESERVATIONS_NOTIFIER", "Courier")
		t.Setenv("RESERVATIONS_COURIER_TOKEN", "secret")
		t.Setenv("RESERVATIONS_RATE_LIMIT_PER_MINUTE", "5")
		t.Setenv("RESERVATIONS_RATE_LIMIT_BURST", "2")

		cfg, err := Parse()
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/tmp/reservations.db" {
			t.Fatalf("unexpected server settings %+v", cfg)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", cfg.LogLevel)
		}
		if cfg.TokenDuration != 45*time.Minute {
			t.Fatalf("expected bare minutes to parse, got %s", cfg.TokenDuration)
		}
		if len(cfg.AllowedDomains) != 2 || cfg.AllowedDomains[1] != "uni.edu" {
			t.Fatalf("unexpected domains %v", cfg.AllowedDomains)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC, got %v", cfg.Location)
		}
		if cfg.PublicURL != "https://rooms.example.com" {
			t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicURL)
		}
		if cfg.Notifier != NotifierCourier || cfg.CourierToken != "secret" || cfg.CourierURL != "https://api.courier.com/send" {
			t.Fatalf("unexpected notifier settings %+v", cfg)
		}
		if cfg.RateLimitPerMinute != 5 || cfg.RateLimitBurst != 2 {
			t.Fatalf("unexpected rate limit %d/%d", cfg.RateLimitPerMinute, cfg.RateLimitBurst)
		}
	})

	t.Run("reports invalid values together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_ADMIN_EMAIL", "admin@example.com")
		t.Setenv("RESERVATIONS_HTTP_PORT", "-1")
		t.Setenv("RESERVATIONS_TOKEN_DURATION", "soon")
		t.Setenv("RESERVATIONS_TIMEZONE", "Mars/Olympus")
		t.Setenv("RESERVATIONS_NOTIFIER", "pigeon")

		_, err := Parse()
		expected := "invalid environment variable values: RESERVATIONS_HTTP_PORT, RESERVATIONS_TOKEN_DURATION, RESERVATIONS_TIMEZONE, RESERVATIONS_NOTIFIER"
		if err == nil || err.Error() != expected {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	prod := filepath.Join(dir, ".env.prod")
	base := filepath.Join(dir, ".env")
	if err := os.WriteFile(prod, []byte("RESERVATIONS_APP_NAME=Prod Rooms\n"), 0o600); err != nil {
		t.Fatalf("write %s: %v", prod, err)
	}
	content := "RESERVATIONS_APP_NAME=Dev Rooms\nRESERVATIONS_VERSION=9.9.9\nRESERVATIONS_ADMIN_EMAIL=file@example.com\n"
	if err := os.WriteFile(base, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", base, err)
	}
	t.Setenv("RESERVATIONS_ADMIN_EMAIL", "env@example.com")

	if err := LoadEnvFiles(prod, base, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles returned error: %v", err)
	}

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.AppName != "Prod Rooms" {
		t.Fatalf("expected .env.prod to win, got %q", cfg.AppName)
	}
	if cfg.Version != "9.9.9" {
		t.Fatalf("expected .env to fill gaps, got %q", cfg.Version)
	}
	if cfg.AdminEmail != "env@example.com" {
		t.Fatalf("expected the process environment to win, got %q", cfg.AdminEmail)
	}
}

package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/logging"
)

// TokenStore issues and checks expiring authorization tokens.
type TokenStore interface {
	Issue(ctx context.Context, duration time.Duration) (string, error)
	Verify(ctx context.Context, token string) bool
	Revoke(ctx context.Context, token string) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AdminCredentials identify the single administrator allowed to log in. An
// empty PasswordHash disables login.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// AuthService logs the administrator in and guards privileged operations with
// TokenStore tokens.
type AuthService struct {
	admin          AdminCredentials
	tokens         TokenStore
	verifyPassword PasswordVerifier
	now            func() time.Time
	tokenTTL       time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(admin AdminCredentials, tokens TokenStore, verify PasswordVerifier, now func() time.Time, tokenTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(admin, tokens, verify, now, tokenTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(admin AdminCredentials, tokens TokenStore, verify PasswordVerifier, now func() time.Time, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if now == nil {
		now = time.Now
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	return &AuthService{
		admin:          admin,
		tokens:         tokens,
		verifyPassword: verify,
		now:            now,
		tokenTTL:       tokenTTL,
		logger:         logging.OrDefault(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Login checks the administrator's credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (result LoginResult, err error) {
	if s == nil || s.tokens == nil {
		err = fmt.Errorf("token store not configured")
		return
	}

	email = strings.ToLower(strings.TrimSpace(email))
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("expires_at", result.ExpiresAt).InfoContext(ctx, "login succeeded")
	}()

	if s.admin.PasswordHash == "" || email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	emailMatches := subtle.ConstantTimeCompare([]byte(email), []byte(s.admin.Email)) == 1
	passwordErr := s.verifyPassword(s.admin.PasswordHash, password)
	if !emailMatches || passwordErr != nil {
		err = ErrInvalidCredentials
		return
	}

	issuedAt := s.now()
	var token string
	if token, err = s.tokens.Issue(ctx, s.tokenTTL); err != nil {
		err = fmt.Errorf("issue token: %w", err)
		return
	}

	result = LoginResult{Token: token, ExpiresAt: issuedAt.Add(s.tokenTTL)}
	return
}

// Authorize returns ErrUnauthorized unless token is currently valid.
func (s *AuthService) Authorize(ctx context.Context, token string) error {
	if s == nil || s.tokens == nil {
		return ErrUnauthorized
	}
	token = strings.TrimSpace(token)
	if token == "" || !s.tokens.Verify(ctx, token) {
		return ErrUnauthorized
	}
	return nil
}

// Logout revokes token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s == nil || s.tokens == nil {
		return fmt.Errorf("token store not configured")
	}
	if err := s.tokens.Revoke(ctx, strings.TrimSpace(token)); err != nil {
		s.loggerWith(ctx, "Logout").ErrorContext(ctx, "failed to revoke token", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	return nil
}

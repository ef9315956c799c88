// Package tokens issues and verifies opaque, time-limited authorization tokens.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultDuration applies when a store is constructed or asked to issue with a
// non-positive duration.
const DefaultDuration = 30 * time.Minute

// tokenBytes yields 256 bits of entropy per token.
const tokenBytes = 32

// maxIssueAttempts bounds regeneration when a generated token is already taken.
const maxIssueAttempts = 5

// ErrTokenCollision is returned when no unused token could be generated.
var ErrTokenCollision = errors.New("tokens: could not generate an unused token")

// Store issues tokens and answers whether a presented token is still valid.
//
// Verify never reports errors: a token that never existed and a token that
// has expired are indistinguishable to the caller.
type Store interface {
	Issue(ctx context.Context, duration time.Duration) (string, error)
	Verify(ctx context.Context, token string) bool
	Revoke(ctx context.Context, token string) error
}

// Generator produces candidate token strings.
type Generator func() (string, error)

// RandomHex returns a Generator yielding hex-encoded random strings of n bytes.
func RandomHex(n int) Generator {
	if n <= 0 {
		n = tokenBytes
	}
	return func() (string, error) {
		buf := make([]byte, n)
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("tokens: read random bytes: %w", err)
		}
		return hex.EncodeToString(buf), nil
	}
}

func resolveDuration(requested, fallback time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultDuration
}

// expired reports whether now lies strictly after issuedAt + duration.
func expired(now, issuedAt time.Time, duration time.Duration) bool {
	return now.After(issuedAt.Add(duration))
}

package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidPasswordHash is returned for hashes not in the encoded argon2id format.
	ErrInvalidPasswordHash = errors.New("invalid password hash format")
	// ErrIncompatiblePasswordVersion is returned for hashes from another argon2 version.
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

// Argon2idParams tunes password hashing cost.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is used by the hash-password command.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

var b64 = base64.RawStdEncoding

// passwordHash is the decoded form of $argon2id$v=19$m=...,t=...,p=...$salt$key.
type passwordHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h passwordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func (h passwordHash) matches(password string) bool {
	candidate := argon2.IDKey([]byte(password), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return subtle.ConstantTimeCompare(h.key, candidate) == 1
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return passwordHash{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return passwordHash{}, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return passwordHash{}, ErrIncompatiblePasswordVersion
	}

	var h passwordHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return passwordHash{}, ErrInvalidPasswordHash
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[4]); err != nil {
		return passwordHash{}, ErrInvalidPasswordHash
	}
	if h.key, err = b64.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return passwordHash{}, ErrInvalidPasswordHash
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))
	return h, nil
}

// CreatePasswordHash hashes password with a fresh random salt and returns the
// encoded form accepted by VerifyPassword.
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	h := passwordHash{params: params, salt: make([]byte, params.SaltLength)}
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	h.key = argon2.IDKey([]byte(password), h.salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return h.String(), nil
}

// VerifyPassword returns nil when password matches hashedPassword and
// ErrInvalidCredentials when it does not.
func VerifyPassword(hashedPassword, password string) error {
	h, err := parsePasswordHash(hashedPassword)
	if err != nil {
		return err
	}
	if !h.matches(password) {
		return ErrInvalidCredentials
	}
	return nil
}

package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/viralforge/dbfleet/internal/domain"
)

const (
	defaultIterations = 100000
	saltBytes         = 16
	keyBytes          = 32
)

// PBKDF2Hasher derives password hashes via PBKDF2-HMAC-SHA256 with a fresh
// random salt per account. The salt is stored hex-encoded and its encoded
// form is fed to the KDF as-is, matching credentials already present in
// fleet metadata stores.
type PBKDF2Hasher struct {
	iterations int
}

// NewPBKDF2Hasher creates a hasher with the given iteration count, falling
// back to the fleet default when non-positive.
func NewPBKDF2Hasher(iterations int) *PBKDF2Hasher {
	if iterations <= 0 {
		iterations = defaultIterations
	}
	return &PBKDF2Hasher{iterations: iterations}
}

func (h *PBKDF2Hasher) Hash(password string) (string, string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, keyBytes, sha256.New)
	return hex.EncodeToString(key), salt, nil
}

func (h *PBKDF2Hasher) Compare(hash, salt, password string) error {
	want, err := hex.DecodeString(hash)
	if err != nil || len(want) == 0 {
		return fmt.Errorf("%w: malformed stored hash", domain.ErrInvalidCredentials)
	}
	got := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return domain.ErrInvalidCredentials
	}
	return nil
}

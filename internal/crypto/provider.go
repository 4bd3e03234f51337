package crypto

import (
	"crypto/sha256"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/pbkdf2"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

const (
	// Magic opens every encrypted file.
	Magic = "ENCV1"

	// Key sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag
	SaltSize  = 16

	// HeaderSize is the length of magic, salt and nonce together.
	HeaderSize = len(Magic) + SaltSize + NonceSize

	// Iterations is the PBKDF2-HMAC-SHA256 work factor.
	Iterations = 200000
)

// Errors
var (
	ErrAuthFailed  = errors.BaseWrap(models.ErrWrongPassword, "authentication tag mismatch")
	ErrInvalidSalt = errors.BaseWrap(models.ErrKeyDerivation, "invalid salt")
	ErrTooLarge    = errors.Base("plaintext exceeds the GCM length limit")
)

// DeriveKey derives a 256-bit AES key from password and salt. The password
// is used as raw UTF-8 with no normalization, so keys match trees written by
// earlier tools.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, errors.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}

	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New), nil
}

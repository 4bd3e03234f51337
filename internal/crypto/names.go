package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

var nameEncoding = base64.RawURLEncoding

// ErrInvalidPath is returned when an encoded name does not decode.
var ErrInvalidPath = errors.Base("invalid encrypted name")

// ShortDirName returns the first n characters of the base64url encoded
// HMAC-SHA256 of name keyed by password. The result is deterministic and is
// not reversible without a mapping entry.
func ShortDirName(name, password string, n int) string {
	if n <= 0 {
		n = models.DefaultShortNameLength
	}
	if n > models.MaxShortNameLength {
		n = models.MaxShortNameLength
	}

	mac := hmac.New(sha256.New, []byte(password))
	mac.Write([]byte(name))
	return nameEncoding.EncodeToString(mac.Sum(nil))[:n]
}

// EncryptName encrypts a single path segment with fresh randomness. The
// result is safe to use as a file name on every common file system as long
// as the input is short.
func (c *Codec) EncryptName(name, password string) (string, error) {
	data, err := c.EncryptBytes([]byte(name), password)
	if err != nil {
		return "", err
	}
	return nameEncoding.EncodeToString(data), nil
}

// DecryptName reverses EncryptName and EncryptNameDeterministic.
func (c *Codec) DecryptName(encoded, password string) (string, error) {
	data, err := nameEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Errorf("%w: %s", ErrInvalidPath, err.Error())
	}

	plain, err := c.DecryptBytes(data, password)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptNameDeterministic encrypts name so that the same name and password
// always produce the same output. Salt and nonce are taken from SHA-256 of
// the password and the name.
func EncryptNameDeterministic(name, password string) (string, error) {
	salt := labelledDigest(password, ":salt:", name)[:SaltSize]
	nonce := labelledDigest(password, ":iv:", name)[:NonceSize]

	key, err := DeriveKey(password, salt)
	if err != nil {
		return "", err
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Errorf("create GCM: %w", err)
	}

	out := make([]byte, 0, HeaderSize+len(name)+TagSize)
	out = append(out, Magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(name), nil)

	return nameEncoding.EncodeToString(out), nil
}

func labelledDigest(password, label, name string) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write([]byte(label))
	h.Write([]byte(name))
	return h.Sum(nil)
}

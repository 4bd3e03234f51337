package crypto

import (
	"bytes"
	"io"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// Header is the fixed prefix of an encrypted file: magic, salt and nonce.
type Header struct {
	Salt  [SaltSize]byte
	Nonce [NonceSize]byte
}

// NewHeader fills a header with fresh salt and nonce from rand.
func NewHeader(rand io.Reader) (*Header, error) {
	h := &Header{}
	if _, err := io.ReadFull(rand, h.Salt[:]); err != nil {
		return nil, errors.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand, h.Nonce[:]); err != nil {
		return nil, errors.Errorf("generate nonce: %w", err)
	}
	return h, nil
}

// MarshalBinary returns the HeaderSize bytes written before the ciphertext.
func (h *Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, HeaderSize)
	out = append(out, Magic...)
	out = append(out, h.Salt[:]...)
	out = append(out, h.Nonce[:]...)
	return out, nil
}

// UnmarshalBinary parses a header, rejecting a wrong length or magic.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return &models.FormatError{Reason: "truncated header"}
	}
	if !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return &models.FormatError{Reason: "bad magic"}
	}
	copy(h.Salt[:], data[len(Magic):len(Magic)+SaltSize])
	copy(h.Nonce[:], data[len(Magic)+SaltSize:])
	return nil
}

// ReadHeader reads exactly HeaderSize bytes from r.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &models.FormatError{Reason: "truncated header"}
		}
		return nil, errors.Errorf("read header: %w", err)
	}

	h := &Header{}
	if err := h.UnmarshalBinary(buf[:n]); err != nil {
		return nil, err
	}
	return h, nil
}

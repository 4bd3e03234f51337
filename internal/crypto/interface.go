package crypto

import (
	"context"
	"io"
)

// StreamCodec encrypts and decrypts whole files as streams.
type StreamCodec interface {
	// Encrypt writes the header, ciphertext and tag for everything read from r.
	Encrypt(ctx context.Context, r io.Reader, w io.Writer, password string, sizeHint int64, onBytes func(int64)) error

	// Decrypt reverses Encrypt. Plaintext written to w is only trustworthy
	// once Decrypt has returned nil.
	Decrypt(ctx context.Context, r io.Reader, w io.Writer, password string, sizeHint int64, onBytes func(int64)) error
}

var _ StreamCodec = (*Codec)(nil)

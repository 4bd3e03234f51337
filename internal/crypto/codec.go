package crypto

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// Chunk sizes picked from the expected input size.
const (
	SmallChunk  = 8 << 10
	MediumChunk = 256 << 10
	LargeChunk  = 1 << 20

	smallLimit  = 10 << 20
	mediumLimit = 100 << 20
)

// ChunkSize returns the read size for an input of the given length. A
// negative size means unknown.
func ChunkSize(size int64) int {
	switch {
	case size < 0:
		return LargeChunk
	case size < smallLimit:
		return SmallChunk
	case size < mediumLimit:
		return MediumChunk
	default:
		return LargeChunk
	}
}

// Codec implements the ENCV1 file format on top of streaming AES-256-GCM.
type Codec struct {
	rand io.Reader
}

// NewCodec creates a codec drawing salts and nonces from rand.
func NewCodec(rand io.Reader) *Codec {
	return &Codec{rand: rand}
}

// DefaultCodec uses crypto/rand.
func DefaultCodec() *Codec {
	return NewCodec(rand.Reader)
}

func report(onBytes func(int64), n int) {
	if onBytes != nil && n > 0 {
		onBytes(int64(n))
	}
}

// Encrypt writes header, ciphertext and tag for the contents of r.
func (c *Codec) Encrypt(ctx context.Context, r io.Reader, w io.Writer, password string, sizeHint int64, onBytes func(int64)) error {
	header, err := NewHeader(c.rand)
	if err != nil {
		return err
	}

	stream, err := c.newStream(password, header)
	if err != nil {
		return err
	}

	raw, _ := header.MarshalBinary()
	if _, err := w.Write(raw); err != nil {
		return errors.Errorf("write header: %w", err)
	}

	buf := make([]byte, ChunkSize(sizeHint))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if err := stream.seal(buf[:n], buf[:n]); err != nil {
				return err
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return errors.Errorf("write: %w", err)
			}
			report(onBytes, n)
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return errors.Errorf("read: %w", rerr)
		}
	}

	tag := stream.tag()
	if _, err := w.Write(tag[:]); err != nil {
		return errors.Errorf("write tag: %w", err)
	}

	return nil
}

// Decrypt reads an ENCV1 stream from r and writes the plaintext to w. The
// last TagSize bytes are held back across reads so the tag is never
// decrypted as content. A tag mismatch returns a *models.SecurityError after
// all plaintext has been written; callers must discard w in that case.
func (c *Codec) Decrypt(ctx context.Context, r io.Reader, w io.Writer, password string, sizeHint int64, onBytes func(int64)) error {
	header, err := ReadHeader(r)
	if err != nil {
		return err
	}
	report(onBytes, HeaderSize)

	stream, err := c.newStream(password, header)
	if err != nil {
		return err
	}

	chunk := ChunkSize(sizeHint)
	buf := make([]byte, chunk+TagSize)
	held := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := io.ReadFull(r, buf[held:])
		total := held + n

		if avail := total - TagSize; avail > 0 {
			if err := stream.open(buf[:avail], buf[:avail]); err != nil {
				return err
			}
			if _, err := w.Write(buf[:avail]); err != nil {
				return errors.Errorf("write: %w", err)
			}
			report(onBytes, avail)
			held = copy(buf, buf[avail:total])
		} else {
			held = total
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return errors.Errorf("read: %w", rerr)
		}
	}

	if held < TagSize {
		return &models.FormatError{Reason: "missing authentication tag"}
	}
	report(onBytes, TagSize)

	if !stream.verify(buf[:TagSize]) {
		return &models.SecurityError{Reason: "decrypt", Err: ErrAuthFailed}
	}

	return nil
}

// EncryptBytes encrypts an in-memory value.
func (c *Codec) EncryptBytes(plaintext []byte, password string) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(HeaderSize + len(plaintext) + TagSize)
	if err := c.Encrypt(context.Background(), bytes.NewReader(plaintext), &out, password, int64(len(plaintext)), nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DecryptBytes decrypts an in-memory value. Nothing is returned unless the
// tag verifies.
func (c *Codec) DecryptBytes(data []byte, password string) ([]byte, error) {
	var out bytes.Buffer
	if err := c.Decrypt(context.Background(), bytes.NewReader(data), &out, password, int64(len(data)), nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (c *Codec) newStream(password string, header *Header) (*gcmStream, error) {
	key, err := DeriveKey(password, header.Salt[:])
	if err != nil {
		return nil, &models.SecurityError{Reason: "derive key", Err: err}
	}
	defer clear(key)

	stream, err := newGCMStream(key, header.Nonce[:])
	if err != nil {
		return nil, &models.SecurityError{Reason: "init cipher", Err: err}
	}
	return stream, nil
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"

	"gitlab.com/tozd/go/errors"
)

// maxPlaintext is the GCM limit of 2^32-2 blocks.
const maxPlaintext = (1<<32 - 2) * gcmBlockSize

// gcmStream applies AES-GCM to data of unknown length. Its output is
// byte-for-byte what cipher.AEAD.Seal produces for the same key and nonce
// with no additional data. The table GHASH runs several times slower than
// the assembly one behind cipher.NewGCM, which has no streaming interface.
type gcmStream struct {
	ctr     cipher.Stream
	hash    *ghash
	tagMask [gcmBlockSize]byte
	n       uint64
}

func newGCMStream(key, nonce []byte) (*gcmStream, error) {
	if len(nonce) != NonceSize {
		return nil, errors.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Errorf("create cipher: %w", err)
	}

	var h [gcmBlockSize]byte
	block.Encrypt(h[:], h[:])

	var counter [gcmBlockSize]byte
	copy(counter[:], nonce)
	counter[gcmBlockSize-1] = 1

	s := &gcmStream{hash: newGHASH(h[:])}
	block.Encrypt(s.tagMask[:], counter[:])

	counter[gcmBlockSize-1] = 2
	s.ctr = cipher.NewCTR(block, counter[:])

	return s, nil
}

func (s *gcmStream) reserve(n int) error {
	if s.n+uint64(n) > maxPlaintext {
		return ErrTooLarge
	}
	s.n += uint64(n)
	return nil
}

// seal encrypts src into dst. dst and src may overlap entirely.
func (s *gcmStream) seal(dst, src []byte) error {
	if err := s.reserve(len(src)); err != nil {
		return err
	}
	s.ctr.XORKeyStream(dst, src)
	s.hash.write(dst[:len(src)])
	return nil
}

// open decrypts src into dst. dst and src may overlap entirely.
func (s *gcmStream) open(dst, src []byte) error {
	if err := s.reserve(len(src)); err != nil {
		return err
	}
	s.hash.write(src)
	s.ctr.XORKeyStream(dst, src)
	return nil
}

// tag finalizes the stream. It must be called once.
func (s *gcmStream) tag() [TagSize]byte {
	return s.hash.sum(s.tagMask[:])
}

// verify finalizes the stream and compares against the received tag in
// constant time.
func (s *gcmStream) verify(received []byte) bool {
	expected := s.tag()
	return subtle.ConstantTimeCompare(expected[:], received) == 1
}

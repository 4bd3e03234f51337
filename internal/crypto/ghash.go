// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.golang file.

// The table-driven GF(2^128) multiplication below is taken from the generic
// GCM implementation in Go's crypto/cipher/gcm.go. The streaming write and
// sum wrappers are local additions.

package crypto

import (
	"crypto/subtle"
	"encoding/binary"
)

const gcmBlockSize = 16

// fieldElement is an element of GF(2^128). low holds the first eight bytes
// of the block, high the last eight, both big-endian.
type fieldElement struct {
	low, high uint64
}

// ghash computes GHASH over a stream of ciphertext whose length is not known
// in advance. Partial blocks are buffered between writes.
type ghash struct {
	table [16]fieldElement
	y     fieldElement
	buf   [gcmBlockSize]byte
	nbuf  int
	n     uint64
}

func reverseBits(i int) int {
	i = ((i << 2) & 0xc) | ((i >> 2) & 0x3)
	i = ((i << 1) & 0xa) | ((i >> 1) & 0x5)
	return i
}

func gcmAdd(x, y *fieldElement) fieldElement {
	return fieldElement{x.low ^ y.low, x.high ^ y.high}
}

func gcmDouble(x *fieldElement) (double fieldElement) {
	msbSet := x.high&1 == 1

	double.high = x.high >> 1
	double.high |= x.low << 63
	double.low = x.low >> 1

	if msbSet {
		double.low ^= 0xe100000000000000
	}

	return
}

var gcmReductionTable = []uint16{
	0x0000, 0x1c20, 0x3840, 0x2460, 0x7080, 0x6ca0, 0x48c0, 0x54e0,
	0xe100, 0xfd20, 0xd940, 0xc560, 0x9180, 0x8da0, 0xa9c0, 0xb5e0,
}

func newGHASH(h []byte) *ghash {
	g := &ghash{}
	x := fieldElement{
		binary.BigEndian.Uint64(h[:8]),
		binary.BigEndian.Uint64(h[8:]),
	}
	g.table[reverseBits(1)] = x
	for i := 2; i < 16; i += 2 {
		g.table[reverseBits(i)] = gcmDouble(&g.table[reverseBits(i/2)])
		g.table[reverseBits(i+1)] = gcmAdd(&g.table[reverseBits(i)], &x)
	}
	return g
}

func (g *ghash) mul(y *fieldElement) {
	var z fieldElement

	for i := 0; i < 2; i++ {
		word := y.high
		if i == 1 {
			word = y.low
		}

		for j := 0; j < 64; j += 4 {
			msw := z.high & 0xf
			z.high >>= 4
			z.high |= z.low << 60
			z.low >>= 4
			z.low ^= uint64(gcmReductionTable[msw]) << 48

			t := &g.table[word&0xf]

			z.low ^= t.low
			z.high ^= t.high
			word >>= 4
		}
	}

	*y = z
}

func (g *ghash) block(b []byte) {
	g.y.low ^= binary.BigEndian.Uint64(b[:8])
	g.y.high ^= binary.BigEndian.Uint64(b[8:])
	g.mul(&g.y)
}

func (g *ghash) write(p []byte) {
	g.n += uint64(len(p))

	if g.nbuf > 0 {
		c := copy(g.buf[g.nbuf:], p)
		g.nbuf += c
		p = p[c:]
		if g.nbuf < gcmBlockSize {
			return
		}
		g.block(g.buf[:])
		g.nbuf = 0
	}

	for len(p) >= gcmBlockSize {
		g.block(p[:gcmBlockSize])
		p = p[gcmBlockSize:]
	}

	if len(p) > 0 {
		g.nbuf = copy(g.buf[:], p)
	}
}

// sum pads the final partial block, folds in the length block and masks the
// result. There is no additional data, so only the ciphertext bit length is
// hashed.
func (g *ghash) sum(mask []byte) [TagSize]byte {
	if g.nbuf > 0 {
		clear(g.buf[g.nbuf:])
		g.block(g.buf[:])
		g.nbuf = 0
	}

	g.y.high ^= g.n * 8
	g.mul(&g.y)

	var out [TagSize]byte
	binary.BigEndian.PutUint64(out[:8], g.y.low)
	binary.BigEndian.PutUint64(out[8:], g.y.high)
	subtle.XORBytes(out[:], out[:], mask)
	return out
}

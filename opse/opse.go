// Package opse provides a concrete stand-in for the order-preserving
// symmetric encryption primitive the SSE scheme treats as an external
// collaborator: a keyed map on non-negative integers that preserves order.
//
// This is not a faithful cryptographic OPE construction (see Boldyreva et
// al.) and makes no claim to their security properties. The scheme's own
// security argument only ever relies on the monotonicity property; nothing
// else about this package's internals is scheme-load-bearing.
package opse

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

// DefaultStride bounds the per-input keyed offset. Each n maps into its own
// window [n*stride, (n+1)*stride), so distinct plaintexts never share a
// window and their images are strictly ordered for any non-zero stride.
const DefaultStride = 1 << 16

// OPSE is a keyed monotone map ℕ→ℕ.
type OPSE struct {
	stride uint64
}

// New creates an OPSE instance with the given stride. A larger stride widens
// the gap between the images of consecutive integers, at the cost of larger
// output values.
func New(stride uint64) *OPSE {
	if stride == 0 {
		stride = DefaultStride
	}
	return &OPSE{stride: stride}
}

// Encrypt maps n to its OPSE image under key. For any fixed key, x <= y
// implies Encrypt(key, x) <= Encrypt(key, y).
func (o *OPSE) Encrypt(key []byte, n uint64) uint64 {
	offset := prf(key, n) % o.stride
	return n*o.stride + offset
}

// prf derives a keyed pseudorandom stride-sized offset for n by using AES in
// CTR mode as a keystream generator seeded by n, the same "keyed PRF built
// from a block cipher in stream mode" idiom used elsewhere in this scheme's
// ecosystem for deterministic per-input derivation.
func prf(key []byte, n uint64) uint64 {
	block, err := aes.NewCipher(padKey(key))
	if err != nil {
		return n
	}
	var iv [aes.BlockSize]byte
	binary.BigEndian.PutUint64(iv[aes.BlockSize-8:], n)
	stream := cipher.NewCTR(block, iv[:])
	var out [8]byte
	stream.XORKeyStream(out[:], out[:])
	return binary.BigEndian.Uint64(out[:])
}

// padKey stretches or truncates key to the 32 bytes AES-256 requires.
func padKey(key []byte) []byte {
	out := make([]byte, 32)
	copy(out, key)
	return out
}

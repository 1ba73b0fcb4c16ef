// Package libsearch implements the low-level cryptographic and combinatorial
// machinery shared by the client and multiuser packages: trapdoor
// derivation (spec.md §4.2.1), the legacy key-to-IV convention (spec.md §6,
// §9), the padding-target staircase and filler-bucket construction
// (spec.md §4.2.2), and the rejection-sampling shuffle.
package libsearch

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"math/bits"
)

// ErrWordTooLong is never actually returned: words longer than 28 bytes are
// truncated per spec.md §4.2.1 step 1, not rejected. Kept as a sentinel in
// case a future caller wants strict validation instead of truncation.
var ErrWordTooLong = errors.New("libsearch: word longer than 28 bytes")

// blockSize is the width of the block hashed to build a trapdoor or filler
// key: 28 bytes of word/zero padding plus a 4-byte big-endian slot index.
const blockSize = 32

// DeriveIV derives the AES-CBC initialization vector for a domain key using
// the scheme's pinned legacy convention: iv = MD5(MD5(key) || key). This
// reproduces the IV half of an OpenSSL EVP_BytesToKey-style password
// derivation (the "older cipher interface" spec.md §9 calls out), so two
// parties holding the same domain key always derive the same trapdoor. Any
// change to this function breaks interoperability with every other
// implementation of this scheme.
func DeriveIV(key [32]byte) [aes.BlockSize]byte {
	d1 := md5.Sum(key[:])
	var d2in [len(d1) + 32]byte
	copy(d2in[:], d1[:])
	copy(d2in[len(d1):], key[:])
	d2 := md5.Sum(d2in[:])
	var iv [aes.BlockSize]byte
	copy(iv[:], d2[:aes.BlockSize])
	return iv
}

// aesCBCEncrypt encrypts plaintext under key with AES-256-CBC using
// DeriveIV(key) and PKCS#7 padding, matching spec.md §4.2.1 step 4's
// "raw ciphertext" output (no length prefix, no authentication tag: the
// scheme's security argument tolerates this, per spec.md §9).
func aesCBCEncrypt(key [32]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	iv := DeriveIV(key)
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// buildBlock forms the 32-byte block B of spec.md §4.2.1 step 2: w (or its
// first 28 bytes) right-aligned in bytes 0..27, zero-filled, with slot as a
// big-endian uint32 in bytes 28..31.
func buildBlock(w []byte, slot uint32) [blockSize]byte {
	if len(w) > 28 {
		w = w[:28]
	}
	var b [blockSize]byte
	offset := 28 - len(w)
	copy(b[offset:28], w)
	binary.BigEndian.PutUint32(b[28:32], slot)
	return b
}

// Trapdoor computes the deterministic bucket key for (word, slot) under a
// domain key, per spec.md §4.2.1. This is the sole source of non-padding
// bucket keys used by both index building and query derivation.
func Trapdoor(word string, slot uint32, key [32]byte) (string, error) {
	b := buildBlock([]byte(word), slot)
	digest := sha256.Sum256(b[:])
	ciphertext, err := aesCBCEncrypt(key, digest[:16])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// fillerModulus bounds the dummy posting count attached to a filler bucket
// (spec.md §4.2.2 step 7).
const fillerModulus = 131072

// FillerBucket computes the bucket key and dummy count for the l-th filler
// bucket of a domain with docCount documents, per spec.md §4.2.2 step 7.
// The global filler counter n = docCount+l keeps filler slot indices
// disjoint from the real trapdoor slots [0, docCount) used by Trapdoor.
func FillerBucket(docCount, l int, key [32]byte) (bucketKey string, dummyCount uint64, err error) {
	b := buildBlock(nil, uint32(docCount+l))
	digest := sha256.Sum256(b[:])

	plaintext := make([]byte, 0, len(digest)+4)
	plaintext = append(plaintext, digest[:]...)
	plaintext = append(plaintext, 0, 0, 0, 0) // the spec's "00000000" hex suffix

	ciphertext, err := aesCBCEncrypt(key, plaintext)
	if err != nil {
		return "", 0, err
	}
	if len(ciphertext) < 36 {
		return "", 0, errors.New("libsearch: unexpectedly short filler ciphertext")
	}
	bucketKey = base64.StdEncoding.EncodeToString(ciphertext[:32])
	dummyCount = uint64(binary.BigEndian.Uint32(ciphertext[32:36])) % fillerModulus
	return bucketKey, dummyCount, nil
}

// paddingOne and paddingTwo are the two staircase vectors of spec.md
// §4.2.2 step 6: one[i] is the byte-size threshold of tier i, two[i] is
// the number of buckets tier i contributes.
var paddingOne = [3]uint64{256, 131072, 50331648}
var paddingTwo = [3]uint64{256, 65536, 16777216}

// paddingCeiling is one less than the cumulative sum of paddingOne: the
// largest max the staircase loop can consume without advancing its index
// past the top tier. spec.md §9 leaves "max beyond the top tier" an open
// question; this module resolves it by capping max here (see DESIGN.md).
var paddingCeiling = paddingOne[0] + paddingOne[1] + paddingOne[2] - 1

// PaddingTarget computes the target bucket count `sum` for a domain whose
// largest document is max bytes, per spec.md §4.2.2 step 6. The worked
// example in spec.md §8 (S2: max=100 -> sum=356) is the authoritative
// reference for this arithmetic.
func PaddingTarget(max uint64) uint64 {
	if max > paddingCeiling {
		max = paddingCeiling
	}

	var threshold, sum uint64
	i := 0
	for threshold <= max {
		threshold += paddingOne[i]
		sum += paddingTwo[i]
		i++
	}
	threshold -= paddingOne[i-1]
	sum += (max - threshold) / uint64(i)
	return sum
}

// ShuffleKeys returns a new slice containing keys in a cryptographically
// uniform random permutation, per spec.md §4.2.2 step 8. It draws unbiased
// indices in [0, len) by rejection sampling from ceil(log2(len)/8) random
// bytes, rejecting values >= len, the way a Fisher-Yates shuffle must when
// len is not a power of two.
func ShuffleKeys(keys []string) ([]string, error) {
	out := make([]string, len(keys))
	copy(out, keys)

	for i := len(out) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return nil, err
		}
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// randIndex draws a uniform random integer in [0, n) by rejection sampling
// from the minimum number of random bytes that can represent n-1.
func randIndex(n int) (int, error) {
	if n <= 1 {
		return 0, nil
	}
	numBytes := int(math.Ceil(float64(bits.Len(uint(n-1))) / 8.0))
	if numBytes < 1 {
		numBytes = 1
	}

	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:numBytes]); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint32(buf[:])
		if int(v) < n {
			return int(v), nil
		}
	}
}

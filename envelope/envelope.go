// Package envelope provides a concrete stand-in for the symmetric/asymmetric
// message envelope the SSE scheme treats as an external collaborator: an
// authenticated-encryption oracle over byte strings, with a keychain shaped
// {private: {name -> key}, public: {name -> key}}.
package envelope

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrAuthFailed is returned when an envelope cannot be opened under the
// given key(s). Per the scheme's error model this is fatal to the current
// call; the caller decides whether to re-authenticate.
var ErrAuthFailed = errors.New("envelope: authentication failed")

// Keychain names public and private keys the way spec.md's owner-side
// keyring names domains: by an opaque, caller-chosen string.
type Keychain struct {
	Private map[string]*[32]byte
	Public  map[string]*[32]byte
}

// NewKeychain returns an empty keychain ready for keys to be added.
func NewKeychain() *Keychain {
	return &Keychain{
		Private: make(map[string]*[32]byte),
		Public:  make(map[string]*[32]byte),
	}
}

// SealSymmetric seals plaintext under key using a fresh random nonce
// prepended to the ciphertext.
func SealSymmetric(key *[32]byte, plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, key)
	return sealed, nil
}

// OpenSymmetric opens a message produced by SealSymmetric.
func OpenSymmetric(key *[32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, ErrAuthFailed
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// SealAsymmetric seals plaintext once per recipient public key under
// senderPriv, so every recipient in recipients can open the result with
// their own private key. Segments are length-prefixed and concatenated;
// excluding a party from recipients is how packKeys/state keep that party
// from opening the envelope (spec.md §4.4.1).
func SealAsymmetric(recipients []*[32]byte, senderPub, senderPriv *[32]byte, plaintext []byte) ([]byte, error) {
	var out []byte
	for _, recipientPub := range recipients {
		var nonce [24]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return nil, err
		}
		sealed := box.Seal(nonce[:], plaintext, &nonce, recipientPub, senderPriv)

		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sealed)))
		out = append(out, lenBuf[:]...)
		out = append(out, sealed...)
	}
	return out, nil
}

// OpenAsymmetric tries each length-prefixed segment of sealed against
// (priv, senderPub) until one opens, returning ErrAuthFailed if none do.
func OpenAsymmetric(priv, senderPub *[32]byte, sealed []byte) ([]byte, error) {
	for len(sealed) >= 4 {
		segLen := binary.BigEndian.Uint32(sealed[:4])
		sealed = sealed[4:]
		if uint32(len(sealed)) < segLen {
			return nil, ErrAuthFailed
		}
		segment := sealed[:segLen]
		sealed = sealed[segLen:]

		if segLen < 24 {
			continue
		}
		var nonce [24]byte
		copy(nonce[:], segment[:24])
		plaintext, ok := box.Open(nil, segment[24:], &nonce, senderPub, priv)
		if ok {
			return plaintext, nil
		}
	}
	return nil, ErrAuthFailed
}

// GenerateKeypair generates a fresh nacl box keypair.
func GenerateKeypair() (pub, priv *[32]byte, err error) {
	return box.GenerateKey(rand.Reader)
}

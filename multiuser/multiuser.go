// Package multiuser implements the multi-user extension of the scheme
// (spec.md §4.4): it wraps every trapdoor in an owner-controlled CTR
// envelope gated by an ephemeral session key, and wraps the keyring itself
// in an asymmetric message envelope so only authorized readers can recover
// domain keys. Rotating the session key revokes every reader not named in
// the new envelope.
package multiuser

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/pbkdf2"

	"github.com/keybase/kbsse/chainhash"
	"github.com/keybase/kbsse/index"
	"github.com/keybase/kbsse/libsearch"
)

// ServerKeyName is the reserved keychain entry naming the server's public
// key. Owner.State seals to every entry in the keychain including this one
// (the server must be able to open a state); Owner.PackKeys seals to every
// entry except this one (spec.md §4.4.1: "excluding the server's own public
// key, the server must not be able to open the keyring").
const ServerKeyName = "__server__"

// ErrStateAuthFailed wraps an envelope authentication failure while opening
// a state or packed keyring (spec.md §7, "state authentication failure").
var ErrStateAuthFailed = errors.New("multiuser: failed to open envelope")

// ctrKeySalt is a fixed, public salt for stretching a session key into the
// AES-256-CTR key used to wrap trapdoors. It is not a secret: reader and
// server both hold S and must derive the identical wrapping key from it
// without any further coordination, so the salt is pinned rather than
// transmitted.
var ctrKeySalt = []byte("kbsse-multiuser-ctr-wrap-key-v1")

// deriveCTRKey stretches a 32-byte session key S into the AES-256 key used
// to wrap trapdoors, mirroring indexer/secure_index_builder.go's PBKDF2 key
// derivation. S is first run through chainhash.Chain (the scheme's external
// chained-hashing primitive, spec.md §6) to mix it before the PBKDF2 step,
// matching spec.md's "apply the hash n times" contract for that primitive.
func deriveCTRKey(s []byte) [32]byte {
	stretched := chainhash.Chain(s, 1, sha256.New)
	derived := pbkdf2.Key(stretched, ctrKeySalt, 4096, 32, sha256.New)
	var key [32]byte
	copy(key[:], derived)
	return key
}

// wrapTrapdoor re-encrypts a base64-encoded trapdoor with AES-256-CTR under
// the key derived from the session key, per spec.md §4.4.2. The same
// construction decrypts, since CTR is its own inverse; ctrTransform is used
// for both directions.
func wrapTrapdoor(trapdoor string, key [32]byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(trapdoor)
	if err != nil {
		return "", err
	}
	out, err := ctrTransform(key, raw)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// unwrapTrapdoor reverses wrapTrapdoor: base64-decode the outer wrapper,
// CTR-decrypt under key, base64-re-encode the recovered inner trapdoor
// bytes, per spec.md §4.4.3.
func unwrapTrapdoor(wrapped string, key [32]byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return "", err
	}
	out, err := ctrTransform(key, raw)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// ctrTransform runs AES-256-CTR over data under key, using the scheme's
// pinned key-to-IV convention (libsearch.DeriveIV) so that the wrapping and
// unwrapping parties, who never exchange a nonce, derive the same
// keystream from key alone (spec.md §6).
func ctrTransform(key [32]byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	iv := libsearch.DeriveIV(key)
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, data)
	return out, nil
}

// wireKeyringEntry is the JSON transport shape of one keyring entry: the
// domain key travels as base64 bytes since [32]byte does not round-trip
// through encoding/json on its own.
type wireKeyringEntry struct {
	DocCount int    `json:"docCount"`
	Key      string `json:"key"`
}

// marshalKeyring serializes a keyring snapshot (spec.md §4.4.1 packKeys).
func marshalKeyring(keyring map[string]index.KeyringEntry) ([]byte, error) {
	wire := make(map[string]wireKeyringEntry, len(keyring))
	for domain, entry := range keyring {
		wire[domain] = wireKeyringEntry{
			DocCount: entry.DocCount,
			Key:      base64.StdEncoding.EncodeToString(entry.Key[:]),
		}
	}
	return json.Marshal(wire)
}

// unmarshalKeyring reverses marshalKeyring, restoring domain keys from
// their transported byte form (spec.md §4.4.2 unpackKeys).
func unmarshalKeyring(data []byte) (map[string]index.KeyringEntry, error) {
	var wire map[string]wireKeyringEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	keyring := make(map[string]index.KeyringEntry, len(wire))
	for domain, w := range wire {
		raw, err := base64.StdEncoding.DecodeString(w.Key)
		if err != nil {
			return nil, err
		}
		var key [32]byte
		copy(key[:], raw)
		keyring[domain] = index.KeyringEntry{DocCount: w.DocCount, Key: key}
	}
	return keyring, nil
}

// generateSessionKey returns a fresh 32-byte session key S (spec.md §4.4.1).
func generateSessionKey() ([]byte, error) {
	s := make([]byte, 32)
	if _, err := rand.Read(s); err != nil {
		return nil, err
	}
	return s, nil
}

package multiuser

import (
	"github.com/keybase/kbsse/client"
	"github.com/keybase/kbsse/envelope"
)

// Reader wraps a single-user client.Client with the reader's own keypair
// and the owner's public key, per spec.md §4.4.2. A Reader's client keyring
// starts empty and is populated by UnpackKeys.
type Reader struct {
	cli      *client.Client
	pub      *[32]byte
	priv     *[32]byte
	ownerPub *[32]byte
}

// NewReader creates a Reader around cli with a fresh nacl box keypair. The
// returned public key must reach the owner (so they can AddReader it)
// before the reader can be included in a future State or PackKeys.
func NewReader(cli *client.Client) (*Reader, error) {
	pub, priv, err := envelope.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return &Reader{cli: cli, pub: pub, priv: priv}, nil
}

// PublicKey returns the reader's public key, for the owner to AddReader.
func (r *Reader) PublicKey() *[32]byte {
	return r.pub
}

// SetOwnerKey records the owner's public key, needed to open envelopes the
// owner seals (State, PackKeys).
func (r *Reader) SetOwnerKey(pub *[32]byte) {
	r.ownerPub = pub
}

// UnpackKeys opens packed (as produced by Owner.PackKeys) with the reader's
// private key and the owner's public key, then installs every recovered
// keyring entry — including the shared sorting key — into the reader's
// local client keyring, restoring domain keys from their transported byte
// form, per spec.md §4.4.2.
func (r *Reader) UnpackKeys(packed []byte) error {
	plaintext, err := envelope.OpenAsymmetric(r.priv, r.ownerPub, packed)
	if err != nil {
		return ErrStateAuthFailed
	}
	keyring, err := unmarshalKeyring(plaintext)
	if err != nil {
		return err
	}
	for domain, entry := range keyring {
		r.cli.InstallKeyringEntry(domain, entry)
	}
	return nil
}

// CreateQuery opens state (as produced by Owner.State) to recover the
// current session key S, computes the inner single-user query per
// spec.md §4.2.3, then re-encrypts every trapdoor under S with AES-256-CTR
// and re-encodes it as base64, per spec.md §4.4.2. A state not sealed to
// this reader fails to open here (ErrStateAuthFailed); a state that opens
// but is no longer the one installed on the server produces trapdoors that
// simply miss during Server.Search.
func (r *Reader) CreateQuery(state []byte, word string) (map[string][]string, error) {
	s, err := envelope.OpenAsymmetric(r.priv, r.ownerPub, state)
	if err != nil {
		return nil, ErrStateAuthFailed
	}

	inner, err := r.cli.CreateQuery(word)
	if err != nil {
		return nil, err
	}

	key := deriveCTRKey(s)
	wrapped := make(map[string][]string, len(inner))
	for domain, trapdoors := range inner {
		out := make([]string, len(trapdoors))
		for i, td := range trapdoors {
			w, err := wrapTrapdoor(td, key)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		wrapped[domain] = out
	}
	return wrapped, nil
}

package multiuser

import (
	"github.com/keybase/kbsse/client"
	"github.com/keybase/kbsse/envelope"
)

// Owner wraps a single-user client.Client with the owner's own keypair and
// a keychain of reader (and server) public keys, per spec.md §4.4.1. The
// keychain's membership is the access control list: State seals a fresh
// session key to every entry, and a reader not present cannot open it.
type Owner struct {
	cli      *client.Client
	pub      *[32]byte
	priv     *[32]byte
	keychain map[string]*[32]byte
}

// NewOwner creates an Owner around cli with a fresh nacl box keypair.
func NewOwner(cli *client.Client) (*Owner, error) {
	pub, priv, err := envelope.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return &Owner{
		cli:      cli,
		pub:      pub,
		priv:     priv,
		keychain: make(map[string]*[32]byte),
	}, nil
}

// PublicKey returns the owner's public key, for distribution to readers and
// the server so they can authenticate envelopes sealed by this Owner.
func (o *Owner) PublicKey() *[32]byte {
	return o.pub
}

// AddReader authorizes a reader under name by recording their public key in
// the keychain. Future State and PackKeys calls include this reader as a
// recipient until RemoveReader is called.
func (o *Owner) AddReader(name string, pub *[32]byte) {
	o.keychain[name] = pub
}

// RemoveReader revokes name from the keychain. Existing sealed states and
// packed keyrings already distributed are unaffected; calling State again
// produces a fresh session key excluding this reader.
func (o *Owner) RemoveReader(name string) {
	delete(o.keychain, name)
}

// SetServerKey records the server's public key under the reserved
// ServerKeyName entry, so State can include the server as a recipient while
// PackKeys can exclude it.
func (o *Owner) SetServerKey(pub *[32]byte) {
	o.keychain[ServerKeyName] = pub
}

// State generates a fresh 32-byte session key S and seals it under an
// asymmetric envelope to every entry currently in the keychain — every
// reader whose public key is present, plus the server — per spec.md
// §4.4.1. Publishing the sealed blob (passing it to readers and to
// Server.InstallState) is the owner's revocation primitive: a later call to
// State with a different keychain membership invalidates every
// outstanding reader query wrapped under the previous S.
func (o *Owner) State() ([]byte, error) {
	s, err := generateSessionKey()
	if err != nil {
		return nil, err
	}
	recipients := make([]*[32]byte, 0, len(o.keychain))
	for _, pub := range o.keychain {
		recipients = append(recipients, pub)
	}
	return envelope.SealAsymmetric(recipients, o.pub, o.priv, s)
}

// PackKeys serializes the client keyring as JSON and seals it under an
// asymmetric envelope to every keychain entry except the reserved
// ServerKeyName — the server must never be able to open the keyring,
// per spec.md §4.4.1.
func (o *Owner) PackKeys() ([]byte, error) {
	serialized, err := marshalKeyring(o.cli.Keyring())
	if err != nil {
		return nil, err
	}
	recipients := make([]*[32]byte, 0, len(o.keychain))
	for name, pub := range o.keychain {
		if name == ServerKeyName {
			continue
		}
		recipients = append(recipients, pub)
	}
	return envelope.SealAsymmetric(recipients, o.pub, o.priv, serialized)
}

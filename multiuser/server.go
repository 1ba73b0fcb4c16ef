package multiuser

import (
	"github.com/keybase/kbsse/envelope"
	"github.com/keybase/kbsse/index"
	"github.com/keybase/kbsse/server"
)

// Server wraps a single-user server.Server with the server's own keypair
// and the CTR key derived from the currently installed session key, per
// spec.md §4.4.3. It is a
// thin outer component that decrypts the outer CTR wrapper and delegates
// to the wrapped server's Search, not a reimplementation of it (spec.md §9,
// "express as a thin outer component that decrypts and delegates, not as
// implementation inheritance").
type Server struct {
	srv      *server.Server
	pub      *[32]byte
	priv     *[32]byte
	ownerPub *[32]byte
	stateKey [32]byte
	hasState bool
}

// NewServer wraps srv with a fresh nacl box keypair. The returned public
// key must reach the owner (so they can SetServerKey it) before any
// Owner.State will be openable here.
func NewServer(srv *server.Server) (*Server, error) {
	pub, priv, err := envelope.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return &Server{srv: srv, pub: pub, priv: priv}, nil
}

// PublicKey returns the server's public key, for the owner to SetServerKey.
func (s *Server) PublicKey() *[32]byte {
	return s.pub
}

// SetOwnerKey records the owner's public key, needed to open envelopes the
// owner seals (State).
func (s *Server) SetOwnerKey(pub *[32]byte) {
	s.ownerPub = pub
}

// InstallState opens sealed (as produced by Owner.State) with the server's
// private key and the owner's public key, and stores the CTR wrapping key
// derived from the recovered session key as the current state, per
// spec.md §4.4.3. On authentication failure
// the server's state is left unchanged (spec.md §7).
func (s *Server) InstallState(sealed []byte) error {
	plaintext, err := envelope.OpenAsymmetric(s.priv, s.ownerPub, sealed)
	if err != nil {
		return ErrStateAuthFailed
	}
	if len(plaintext) != 32 {
		return ErrStateAuthFailed
	}
	var key [32]byte
	copy(key[:], plaintext)
	s.stateKey = deriveCTRKey(key[:])
	s.hasState = true
	return nil
}

// Search decrypts every trapdoor in query with AES-256-CTR under the
// current state key, re-encodes it as base64, and delegates to the wrapped
// server's Search on the recovered inner query, per spec.md §4.4.3. If no
// state has ever been installed, every trapdoor in the query simply fails
// to decrypt to anything meaningful and the delegated search returns no
// results (there is no separate "no state" error: a query against a fresh
// server behaves the same as one wrapped under a since-rotated key).
func (s *Server) Search(query map[string][]string) []index.SecureEntry {
	inner := make(map[string][]string, len(query))
	for domain, trapdoors := range query {
		out := make([]string, 0, len(trapdoors))
		for _, td := range trapdoors {
			plain, err := unwrapTrapdoor(td, s.stateKey)
			if err != nil {
				continue
			}
			out = append(out, plain)
		}
		inner[domain] = out
	}
	return s.srv.Search(inner)
}

// Package chainhash provides a concrete stand-in for the chained-hashing
// helper the SSE scheme treats as an external collaborator: apply a hash
// function n times over its own output.
package chainhash

import (
	"crypto/sha512"
	"hash"
)

// Chain applies alg to value, then to the result, n times. n <= 0 is
// treated as 1; a nil alg defaults to SHA-512, matching spec.md §6.
func Chain(value []byte, n int, alg func() hash.Hash) []byte {
	if alg == nil {
		alg = sha512.New
	}
	if n <= 0 {
		n = 1
	}
	out := value
	for i := 0; i < n; i++ {
		h := alg()
		h.Write(out)
		out = h.Sum(nil)
	}
	return out
}

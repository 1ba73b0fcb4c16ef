// Package indexer implements the streaming tokeniser that turns a
// document's byte stream into a word-frequency sketch (spec.md §4.1).
package indexer

import (
	"strings"
	"unicode"

	"github.com/keybase/kbsse/index"
)

// Indexer is a byte-sink that accepts arbitrary-sized chunks and, on
// Finish, produces a Sketch plus the total byte count fed in. It is
// created per document, fed chunk by chunk, finished once, then discarded.
type Indexer struct {
	id      string
	list    map[string]uint32
	size    uint64
	residue string // trailing partial token carried across chunk boundaries
}

// New creates an Indexer for a document with the given caller-chosen id.
func New(id string) *Indexer {
	return &Indexer{
		id:   id,
		list: make(map[string]uint32),
	}
}

// Write feeds a chunk of the document's bytes into the indexer. Any
// trailing partial token is buffered and prepended to the next chunk, so
// tokenisation is agnostic to how the caller splits the byte stream into
// chunks (spec.md §8, property 7).
func (ix *Indexer) Write(chunk []byte) (int, error) {
	ix.size += uint64(len(chunk))

	text := ix.residue + string(chunk)
	fields := strings.FieldsFunc(text, unicode.IsSpace)

	if len(fields) == 0 {
		ix.residue = text
		return len(chunk), nil
	}

	// If text doesn't end in whitespace, the last field is a partial token
	// that must wait for the next chunk (or Finish) to complete.
	if !endsInSpace(text) {
		ix.residue = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	} else {
		ix.residue = ""
	}

	for _, field := range fields {
		ix.count(field)
	}

	return len(chunk), nil
}

// Finish finalises the indexer, flushing any buffered residue as a final
// token, and returns the completed sketch.
func (ix *Indexer) Finish() index.Sketch {
	if ix.residue != "" {
		ix.count(ix.residue)
		ix.residue = ""
	}
	return index.Sketch{ID: ix.id, List: ix.list, Size: ix.size}
}

// count normalizes token (lowercase, strip non [a-z0-9]) and, if the
// result is non-empty, increments its count in the sketch.
func (ix *Indexer) count(token string) {
	norm := normalize(token)
	if norm == "" {
		return
	}
	ix.list[norm]++
}

// normalize lowercases token and strips every character outside [a-z0-9].
func normalize(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// endsInSpace reports whether s ends in a whitespace codepoint, treating
// the empty string as not ending in whitespace.
func endsInSpace(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)
	return unicode.IsSpace(r[len(r)-1])
}

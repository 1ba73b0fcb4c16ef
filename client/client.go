// Package client implements the single-user Client of the scheme
// (spec.md §4.2): it holds a keyring, builds secure indexes from document
// sketches, derives per-domain trapdoors for queries, and lets the owner
// outdate domains it no longer wants to query.
package client

import (
	"crypto/rand"
	"errors"

	"github.com/keybase/kbsse/index"
	"github.com/keybase/kbsse/kblog"
	"github.com/keybase/kbsse/libsearch"
	"github.com/keybase/kbsse/opse"
)

// ErrReservedDomain is returned when a caller tries to build a secure index
// for a domain named after the reserved sorting-key entry.
var ErrReservedDomain = errors.New("client: domain name \"sorting\" is reserved")

// ErrDomainExists is returned when SecureIndex is called with a domain name
// already present in the keyring; the caller must Outdate it first or pick
// a fresh name.
var ErrDomainExists = errors.New("client: domain already present in keyring")

// Client holds a single owner's keyring: one 32-byte key per live domain,
// plus the shared OPSE sorting key used to encrypt posting counts across
// every domain the keyring knows about (spec.md §3 invariant 3).
type Client struct {
	keyring    map[string]index.KeyringEntry
	sortingKey [32]byte
	opseEngine *opse.OPSE
}

// New creates a Client with a fresh sorting key and an OPSE engine using
// opseStride (0 selects opse.DefaultStride).
func New(opseStride uint64) (*Client, error) {
	c := &Client{
		keyring:    make(map[string]index.KeyringEntry),
		opseEngine: opse.New(opseStride),
	}
	if _, err := rand.Read(c.sortingKey[:]); err != nil {
		return nil, err
	}
	return c, nil
}

// Keyring returns a snapshot of the client's keyring, including the
// reserved "sorting" entry, for multiuser.Owner.PackKeys to serialize.
func (c *Client) Keyring() map[string]index.KeyringEntry {
	snapshot := make(map[string]index.KeyringEntry, len(c.keyring)+1)
	for domain, entry := range c.keyring {
		snapshot[domain] = entry
	}
	snapshot[index.ReservedSortingDomain] = index.KeyringEntry{Key: c.sortingKey}
	return snapshot
}

// InstallKeyringEntry installs a single domain's keyring entry directly,
// restoring it from a transported byte form. multiuser.Reader.UnpackKeys
// uses this to rebuild a reader's keyring from a packed owner keyring.
func (c *Client) InstallKeyringEntry(domain string, entry index.KeyringEntry) {
	if domain == index.ReservedSortingDomain {
		c.sortingKey = entry.Key
		return
	}
	c.keyring[domain] = entry
}

// SecureIndex builds a secure index for domain from one or more document
// sketches and a stated max (the largest document size in bytes among
// them), per spec.md §4.2.2. domain must be fresh and must not equal the
// reserved "sorting" literal.
func (c *Client) SecureIndex(domain string, max uint64, sketches ...index.Sketch) (index.SecureIndex, error) {
	kblog.Start("client.SecureIndex")
	defer kblog.Log("client.SecureIndex")

	if domain == index.ReservedSortingDomain {
		return index.SecureIndex{}, ErrReservedDomain
	}
	if _, exists := c.keyring[domain]; exists {
		return index.SecureIndex{}, ErrDomainExists
	}

	var domainKey [32]byte
	if _, err := rand.Read(domainKey[:]); err != nil {
		return index.SecureIndex{}, err
	}

	words, inverted := mergeSketches(sketches)
	docs := dedupedDocs(sketches)

	sindex := make(map[string]index.SecureEntry)
	for _, word := range words {
		for n, entry := range inverted[word] {
			key, err := libsearch.Trapdoor(word, uint32(n), domainKey)
			if err != nil {
				return index.SecureIndex{}, err
			}
			sindex[key] = index.SecureEntry{
				ID:        entry.ID,
				OPSECount: c.opseEngine.Encrypt(c.sortingKey[:], uint64(entry.Count)),
			}
		}
	}

	sum := libsearch.PaddingTarget(max)
	if err := addFillers(sindex, docs, sum, domainKey); err != nil {
		return index.SecureIndex{}, err
	}

	order, err := libsearch.ShuffleKeys(mapKeys(sindex))
	if err != nil {
		return index.SecureIndex{}, err
	}

	c.keyring[domain] = index.KeyringEntry{DocCount: len(docs), Key: domainKey}

	return index.SecureIndex{Docs: docs, Index: sindex, Order: order}, nil
}

// CreateQuery derives, for every domain in the keyring except the reserved
// sorting entry, the full set of docCount trapdoors for word, per
// spec.md §4.2.3. Every known domain is always included so the server
// cannot infer which domain the word belongs to from the query shape.
func (c *Client) CreateQuery(word string) (map[string][]string, error) {
	query := make(map[string][]string, len(c.keyring))
	for domain, entry := range c.keyring {
		trapdoors := make([]string, entry.DocCount)
		for i := 0; i < entry.DocCount; i++ {
			td, err := libsearch.Trapdoor(word, uint32(i), entry.Key)
			if err != nil {
				return nil, err
			}
			trapdoors[i] = td
		}
		query[domain] = trapdoors
	}
	return query, nil
}

// Outdate removes the listed domains from the keyring. This is a local
// operation only (spec.md §4.2.4); the server's copy remains until
// replaced by a subsequent Update.
func (c *Client) Outdate(domains ...string) {
	for _, domain := range domains {
		delete(c.keyring, domain)
	}
}

// mergeSketches merges sketches into a plaintext inverted map word -> []Entry,
// preserving insertion order of (id, count) pairs per word and returning the
// words themselves in first-seen order.
func mergeSketches(sketches []index.Sketch) (words []string, inverted map[string][]index.Entry) {
	inverted = make(map[string][]index.Entry)
	for _, sketch := range sketches {
		for word, count := range sketch.List {
			if _, found := inverted[word]; !found {
				words = append(words, word)
			}
			inverted[word] = append(inverted[word], index.Entry{ID: sketch.ID, Count: count})
		}
	}
	return words, inverted
}

// dedupedDocs collects the deduplicated list of document ids in
// first-seen order across sketches.
func dedupedDocs(sketches []index.Sketch) []string {
	seen := make(map[string]bool)
	var docs []string
	for _, sketch := range sketches {
		if seen[sketch.ID] {
			continue
		}
		seen[sketch.ID] = true
		docs = append(docs, sketch.ID)
	}
	return docs
}

// addFillers injects sum-c-1 filler buckets for each document id in docs,
// where c is the number of entries already stored under that id, per
// spec.md §4.2.2 step 7. The filler counter runs globally across every
// document processed in this call, so filler block indices never collide
// across documents.
func addFillers(sindex map[string]index.SecureEntry, docs []string, sum uint64, domainKey [32]byte) error {
	l := 0
	for _, d := range docs {
		c := uint64(0)
		for _, entry := range sindex {
			if entry.ID == d {
				c++
			}
		}
		remaining := sum - c - 1
		for remaining > 0 {
			key, n, err := libsearch.FillerBucket(len(docs), l, domainKey)
			if err != nil {
				return err
			}
			sindex[key] = index.SecureEntry{ID: d, OPSECount: n}
			l++
			remaining--
		}
	}
	return nil
}

// mapKeys returns the keys of a secure-entry map in no particular order;
// ShuffleKeys imposes the cryptographically uniform order that actually
// matters.
func mapKeys(m map[string]index.SecureEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

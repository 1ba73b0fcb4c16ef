// Package index defines the data model shared by the client and server
// sides of the scheme: document sketches, plain and secure inverted
// entries, the secure index produced by the client, and the domain record
// the server stores it under.
package index

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Sketch is the per-document word-frequency output of the Indexer
// (spec.md §4.1). ID is opaque and caller-chosen; List maps normalized
// word tokens to their count within the document.
type Sketch struct {
	ID   string
	List map[string]uint32
	Size uint64
}

// Entry is a plain inverted posting for a word in one document:
// [id, count] in spec.md §3.
type Entry struct {
	ID    string
	Count uint32
}

// SecureEntry is the stored value of one bucket: [id, opse_count] in
// spec.md §3. The document id is kept in the clear; only the count is
// OPSE-encrypted.
type SecureEntry struct {
	ID        string
	OPSECount uint64
}

// SecureIndex is the client's output for one domain (spec.md §4.2.2):
// the deduplicated document list and the bucket map. Order records the
// shuffled key enumeration produced during the build and must be
// preserved by anything that serializes this value — spec.md §3
// invariant requires the shuffled enumeration order to survive transport.
type SecureIndex struct {
	Docs  []string
	Index map[string]SecureEntry
	Order []string
}

// wireSecureIndex is the JSON wire shape of a SecureIndex:
// {docs: [id, ...], index: [{key: base64BucketKey, value: {ID, OPSECount}}, ...]}.
// index is a JSON array of key/value pairs in Order's sequence, not a JSON
// object keyed by bucket key, and each value is a SecureEntry object rather
// than an [id, opseCount] array. A plain map would lose Order on
// re-encoding, so MarshalJSON/UnmarshalJSON walk Order explicitly.
type wireSecureIndex struct {
	Docs  []string          `json:"docs"`
	Index []wireBucketEntry `json:"index"`
}

type wireBucketEntry struct {
	Key   string      `json:"key"`
	Value SecureEntry `json:"value"`
}

// MarshalJSON implements json.Marshaler, walking Order rather than ranging
// Index so the shuffled enumeration order is preserved on the wire.
func (si SecureIndex) MarshalJSON() ([]byte, error) {
	w := wireSecureIndex{Docs: si.Docs, Index: make([]wireBucketEntry, 0, len(si.Order))}
	for _, k := range si.Order {
		entry, ok := si.Index[k]
		if !ok {
			return nil, errors.New("index: Order references a key missing from Index")
		}
		w.Index = append(w.Index, wireBucketEntry{Key: k, Value: entry})
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, restoring Order from the
// wire's array enumeration.
func (si *SecureIndex) UnmarshalJSON(data []byte) error {
	var w wireSecureIndex
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	si.Docs = w.Docs
	si.Index = make(map[string]SecureEntry, len(w.Index))
	si.Order = make([]string, 0, len(w.Index))
	for _, entry := range w.Index {
		si.Index[entry.Key] = entry.Value
		si.Order = append(si.Order, entry.Key)
	}
	return nil
}

// DomainRecord is the server-side storage shape for one domain name
// (spec.md §3): identical in content to SecureIndex, kept as a distinct
// type so the client's build-time value and the server's stored value
// don't silently alias each other's methods.
type DomainRecord struct {
	Docs  []string
	Index map[string]SecureEntry
	Order []string
}

// FromSecureIndex converts a client-built SecureIndex into the record
// shape the server stores.
func FromSecureIndex(si SecureIndex) DomainRecord {
	return DomainRecord{Docs: si.Docs, Index: si.Index, Order: si.Order}
}

// KeyringEntry is one non-reserved entry of a client keyring
// (spec.md §3): the document count recorded at build time, and the
// domain's 32-byte key.
type KeyringEntry struct {
	DocCount int
	Key      [32]byte
}

// ReservedSortingDomain is the client keyring's reserved entry name for
// the shared OPSE sorting key (spec.md §3). Domain names must never equal
// this literal.
const ReservedSortingDomain = "sorting"

// EncodeBucketKey base64-encodes a raw bucket key for wire/storage use.
func EncodeBucketKey(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeBucketKey reverses EncodeBucketKey.
func DecodeBucketKey(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

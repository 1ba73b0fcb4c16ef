package index

import (
	"encoding/json"
	"reflect"
	"testing"
)

// Tests that marshaling and unmarshaling a SecureIndex preserves the
// shuffled Order slice, not just the Index map's contents.
func TestSecureIndexJSONPreservesOrder(t *testing.T) {
	si := SecureIndex{
		Docs: []string{"doc1", "doc2"},
		Index: map[string]SecureEntry{
			"keyC": {ID: "doc1", OPSECount: 3},
			"keyA": {ID: "doc2", OPSECount: 1},
			"keyB": {ID: "doc1", OPSECount: 2},
		},
		Order: []string{"keyC", "keyA", "keyB"},
	}

	data, err := json.Marshal(si)
	if err != nil {
		t.Fatalf("marshal failed: %s", err)
	}

	var got SecureIndex
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %s", err)
	}

	if !reflect.DeepEqual(got.Order, si.Order) {
		t.Fatalf("order not preserved: got %v want %v", got.Order, si.Order)
	}
	if !reflect.DeepEqual(got.Index, si.Index) {
		t.Fatalf("index contents not preserved: got %v want %v", got.Index, si.Index)
	}
	if !reflect.DeepEqual(got.Docs, si.Docs) {
		t.Fatalf("docs not preserved: got %v want %v", got.Docs, si.Docs)
	}
}

// Tests that bucket key encoding round-trips.
func TestBucketKeyRoundTrip(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	encoded := EncodeBucketKey(raw)
	decoded, err := DecodeBucketKey(encoded)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if string(decoded) != string(raw) {
		t.Fatalf("round-trip mismatch: got %v want %v", decoded, raw)
	}
}

// Tests that FromSecureIndex copies all three fields into a DomainRecord.
func TestFromSecureIndex(t *testing.T) {
	si := SecureIndex{
		Docs:  []string{"doc1"},
		Index: map[string]SecureEntry{"k": {ID: "doc1", OPSECount: 9}},
		Order: []string{"k"},
	}
	rec := FromSecureIndex(si)
	if !reflect.DeepEqual(rec.Docs, si.Docs) || !reflect.DeepEqual(rec.Index, si.Index) || !reflect.DeepEqual(rec.Order, si.Order) {
		t.Fatalf("FromSecureIndex did not copy all fields faithfully")
	}
}

package client

import (
	"testing"

	"github.com/keybase/kbsse/index"
	"github.com/keybase/kbsse/libsearch"
)

func sketch(id string, words ...string) index.Sketch {
	list := make(map[string]uint32)
	for _, w := range words {
		list[w]++
	}
	return index.Sketch{ID: id, List: list, Size: uint64(len(words))}
}

// Tests scenario S1/S2 from spec.md §8: a single document sketch built into
// a secure index yields the worked-example padding target and contains a
// trapdoor that resolves to the document.
func TestSecureIndexScenarioS2(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatalf("New failed: %s", err)
	}

	sk := sketch("doc1", "hello", "hello", "world")
	si, err := c.SecureIndex("dA", 100, sk)
	if err != nil {
		t.Fatalf("SecureIndex failed: %s", err)
	}

	// PaddingTarget(100) is 356 (the worked example in spec.md §8), but the
	// filler loop injects sum-c-1 buckets per document id rather than sum-c
	// (spec.md §9's "filler counter overwrite" note, preserved deliberately),
	// so a single-document domain ends up with sum-1 total buckets.
	if got := libsearch.PaddingTarget(100); got != 356 {
		t.Fatalf("expected padding target 356 for max=100, got %d", got)
	}
	if len(si.Index) != 355 {
		t.Fatalf("expected 355 buckets for a single-document domain at max=100, got %d", len(si.Index))
	}
	if len(si.Docs) != 1 || si.Docs[0] != "doc1" {
		t.Fatalf("unexpected docs: %v", si.Docs)
	}
	if len(si.Order) != len(si.Index) {
		t.Fatalf("Order length %d does not match Index length %d", len(si.Order), len(si.Index))
	}
}

// Tests that SecureIndex rejects the reserved "sorting" domain name.
func TestSecureIndexRejectsReservedDomain(t *testing.T) {
	c, _ := New(0)
	_, err := c.SecureIndex(index.ReservedSortingDomain, 10, sketch("doc1", "hello"))
	if err != ErrReservedDomain {
		t.Fatalf("expected ErrReservedDomain, got %v", err)
	}
}

// Tests that SecureIndex rejects building the same domain name twice without
// an intervening Outdate.
func TestSecureIndexRejectsDuplicateDomain(t *testing.T) {
	c, _ := New(0)
	if _, err := c.SecureIndex("dA", 10, sketch("doc1", "hello")); err != nil {
		t.Fatalf("first SecureIndex failed: %s", err)
	}
	if _, err := c.SecureIndex("dA", 10, sketch("doc2", "world")); err != ErrDomainExists {
		t.Fatalf("expected ErrDomainExists, got %v", err)
	}

	c.Outdate("dA")
	if _, err := c.SecureIndex("dA", 10, sketch("doc2", "world")); err != nil {
		t.Fatalf("SecureIndex after Outdate failed: %s", err)
	}
}

// Tests that CreateQuery always includes every domain in the keyring, not
// only the domain the word happens to belong to (spec.md §4.2.3).
func TestCreateQueryIncludesAllDomains(t *testing.T) {
	c, _ := New(0)
	if _, err := c.SecureIndex("dA", 10, sketch("doc1", "hello")); err != nil {
		t.Fatalf("SecureIndex dA failed: %s", err)
	}
	if _, err := c.SecureIndex("dB", 10, sketch("doc2", "world")); err != nil {
		t.Fatalf("SecureIndex dB failed: %s", err)
	}

	query, err := c.CreateQuery("hello")
	if err != nil {
		t.Fatalf("CreateQuery failed: %s", err)
	}
	if _, ok := query["dA"]; !ok {
		t.Fatalf("expected dA in query")
	}
	if _, ok := query["dB"]; !ok {
		t.Fatalf("expected dB in query even though the word belongs to dA")
	}
	if _, ok := query[index.ReservedSortingDomain]; ok {
		t.Fatalf("query must never include the reserved sorting domain")
	}
}

// Tests determinism: the same (word, slot, domain key) produces the same
// trapdoor whether derived during SecureIndex or during CreateQuery
// (spec.md §8 property 1).
func TestTrapdoorMatchesBetweenBuildAndQuery(t *testing.T) {
	c, _ := New(0)
	si, err := c.SecureIndex("dA", 10, sketch("doc1", "hello"))
	if err != nil {
		t.Fatalf("SecureIndex failed: %s", err)
	}

	query, err := c.CreateQuery("hello")
	if err != nil {
		t.Fatalf("CreateQuery failed: %s", err)
	}
	trapdoors := query["dA"]
	if len(trapdoors) == 0 {
		t.Fatalf("expected at least one trapdoor for dA")
	}

	if _, found := si.Index[trapdoors[0]]; !found {
		t.Fatalf("query trapdoor for slot 0 does not resolve in the built index")
	}
}

// Tests that Outdate removes the domain from the keyring, so a later
// CreateQuery no longer includes it.
func TestOutdateRemovesFromKeyringOnly(t *testing.T) {
	c, _ := New(0)
	if _, err := c.SecureIndex("dA", 10, sketch("doc1", "hello")); err != nil {
		t.Fatalf("SecureIndex failed: %s", err)
	}
	c.Outdate("dA")

	query, err := c.CreateQuery("hello")
	if err != nil {
		t.Fatalf("CreateQuery failed: %s", err)
	}
	if _, ok := query["dA"]; ok {
		t.Fatalf("expected dA to be removed from the keyring after Outdate")
	}
}

// Tests that the sorting key is stable across Keyring snapshots, matching
// spec.md §3 invariant 3 (one OPSE sorting key shared by the whole keyring).
func TestKeyringSortingEntryStable(t *testing.T) {
	c, _ := New(0)
	snap1 := c.Keyring()
	snap2 := c.Keyring()
	if snap1[index.ReservedSortingDomain].Key != snap2[index.ReservedSortingDomain].Key {
		t.Fatalf("sorting key changed between Keyring snapshots")
	}
}

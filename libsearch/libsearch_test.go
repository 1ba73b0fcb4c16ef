package libsearch

import (
	"testing"
)

func randomKey() [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}

// Tests that Trapdoor is deterministic for a fixed (word, slot, key), and
// changes when any of the three inputs changes (spec.md §8 property 1).
func TestTrapdoorDeterminismAndSensitivity(t *testing.T) {
	key := randomKey()
	a, err := Trapdoor("hello", 0, key)
	if err != nil {
		t.Fatalf("trapdoor failed: %s", err)
	}
	b, err := Trapdoor("hello", 0, key)
	if err != nil {
		t.Fatalf("trapdoor failed: %s", err)
	}
	if a != b {
		t.Fatalf("trapdoor not deterministic: %s != %s", a, b)
	}

	diffWord, _ := Trapdoor("world", 0, key)
	if diffWord == a {
		t.Fatalf("changing word should change the trapdoor")
	}

	diffSlot, _ := Trapdoor("hello", 1, key)
	if diffSlot == a {
		t.Fatalf("changing slot should change the trapdoor")
	}

	otherKey := randomKey()
	otherKey[0] ^= 0xFF
	diffKey, _ := Trapdoor("hello", 0, otherKey)
	if diffKey == a {
		t.Fatalf("changing key should change the trapdoor")
	}
}

// Tests the scenario S2 worked example from spec.md §8: max=100 must
// produce a padding target of exactly 356 buckets.
func TestPaddingTargetScenarioS2(t *testing.T) {
	got := PaddingTarget(100)
	if got != 356 {
		t.Fatalf("expected padding target 356 for max=100, got %d", got)
	}
}

// Tests that PaddingTarget is a pure, repeatable function of max.
func TestPaddingTargetDeterministic(t *testing.T) {
	for _, max := range []uint64{0, 1, 100, 255, 256, 1000, 1 << 20} {
		a := PaddingTarget(max)
		b := PaddingTarget(max)
		if a != b {
			t.Fatalf("padding target not deterministic for max=%d: %d != %d", max, a, b)
		}
	}
}

// Tests that PaddingTarget never panics or indexes past the staircase
// table even for max values at or beyond the top tier (spec.md §9's open
// question: this module resolves it by capping).
func TestPaddingTargetCapsAtTopTier(t *testing.T) {
	for _, max := range []uint64{paddingCeiling, paddingCeiling + 1, paddingCeiling * 2, ^uint64(0)} {
		got := PaddingTarget(max)
		if got == 0 {
			t.Fatalf("expected a positive padding target for max=%d", max)
		}
	}
}

// Tests that FillerBucket produces deterministic output for a fixed
// (docCount, l, key) and a key whose dummy count is bounded by the
// fillerModulus.
func TestFillerBucketDeterministic(t *testing.T) {
	key := randomKey()
	k1, n1, err := FillerBucket(3, 0, key)
	if err != nil {
		t.Fatalf("filler bucket failed: %s", err)
	}
	k2, n2, err := FillerBucket(3, 0, key)
	if err != nil {
		t.Fatalf("filler bucket failed: %s", err)
	}
	if k1 != k2 || n1 != n2 {
		t.Fatalf("filler bucket not deterministic")
	}
	if n1 >= fillerModulus {
		t.Fatalf("dummy count %d not bounded by modulus %d", n1, fillerModulus)
	}

	k3, _, _ := FillerBucket(3, 1, key)
	if k3 == k1 {
		t.Fatalf("different filler counters should produce different bucket keys")
	}
}

// Tests that ShuffleKeys is a permutation: same length and same multiset
// of keys.
func TestShuffleKeysIsPermutation(t *testing.T) {
	keys := make([]string, 50)
	for i := range keys {
		keys[i] = string(rune('a' + i%26))
	}
	shuffled, err := ShuffleKeys(keys)
	if err != nil {
		t.Fatalf("shuffle failed: %s", err)
	}
	if len(shuffled) != len(keys) {
		t.Fatalf("shuffle changed length: got %d want %d", len(shuffled), len(keys))
	}

	counts := make(map[string]int)
	for _, k := range keys {
		counts[k]++
	}
	for _, k := range shuffled {
		counts[k]--
	}
	for k, c := range counts {
		if c != 0 {
			t.Fatalf("shuffle changed multiset of keys: key %q off by %d", k, c)
		}
	}
}

// Tests that DeriveIV is deterministic and AES-block-sized.
func TestDeriveIVDeterministic(t *testing.T) {
	key := randomKey()
	a := DeriveIV(key)
	b := DeriveIV(key)
	if a != b {
		t.Fatalf("DeriveIV not deterministic")
	}
	if len(a) != 16 {
		t.Fatalf("expected a 16-byte IV, got %d bytes", len(a))
	}
}

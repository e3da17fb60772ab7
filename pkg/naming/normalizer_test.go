package naming

import (
	"strings"
	"testing"
)

func TestNormalizeStripsDomainSuffix(t *testing.T) {
	n := NewNormalizer()

	got := n.Normalize(KindDevice, "site-1", "web01.internal.example.com", "/vm/web01")
	if got != "web01" {
		t.Errorf("expected web01, got %q", got)
	}
}

func TestNormalizeEmptyNameFallsBackToSourceID(t *testing.T) {
	n := NewNormalizer()

	got := n.Normalize(KindDevice, "site-1", "", "vm-abc123")
	if got != "vm-abc123" {
		t.Errorf("expected source id as name, got %q", got)
	}
}

func TestNormalizeTruncatesLongNames(t *testing.T) {
	n := NewNormalizer()

	raw := strings.Repeat("a", 200)
	got := n.Normalize(KindDevice, "site-1", raw, "/vm/long")
	if len(got) != 64 {
		t.Errorf("expected 64-char name, got %d chars", len(got))
	}
}

func TestNormalizeCollidingSiblingsGetDistinctNames(t *testing.T) {
	n := NewNormalizer()

	raw := strings.Repeat("x", 70) + "-one"
	raw2 := strings.Repeat("x", 70) + "-two"

	a := n.Normalize(KindDevice, "site-1", raw, "/vm/one")
	b := n.Normalize(KindDevice, "site-1", raw2, "/vm/two")

	if a == b {
		t.Fatalf("colliding siblings normalized to the same name %q", a)
	}
	if len(a) > 64 || len(b) > 64 {
		t.Errorf("names exceed limit: %d and %d chars", len(a), len(b))
	}
}

func TestNormalizeSameSourceIsStable(t *testing.T) {
	n := NewNormalizer()

	a := n.Normalize(KindInterface, "dev-1", "eth0", "/nic/1")
	b := n.Normalize(KindInterface, "dev-1", "eth0", "/nic/1")
	if a != b {
		t.Errorf("same source normalized differently: %q vs %q", a, b)
	}

	// A fresh normalizer, as on the next run, must reproduce the same result.
	m := NewNormalizer()
	c := m.Normalize(KindInterface, "dev-1", "eth0", "/nic/1")
	if c != a {
		t.Errorf("name not stable across runs: %q vs %q", c, a)
	}
}

func TestNormalizeDifferentParentsMayShareNames(t *testing.T) {
	n := NewNormalizer()

	a := n.Normalize(KindInterface, "dev-1", "eth0", "/nic/1")
	b := n.Normalize(KindInterface, "dev-2", "eth0", "/nic/2")
	if a != "eth0" || b != "eth0" {
		t.Errorf("uniqueness should be scoped per parent, got %q and %q", a, b)
	}
}

func TestNormalizeCollisionKeepsBaseNameWithFirstSibling(t *testing.T) {
	long := strings.Repeat("z", 80)

	n := NewNormalizer()
	a := n.Normalize(KindDevice, "s", long+"-one", "/vm/a")
	b := n.Normalize(KindDevice, "s", long+"-two", "/vm/b")

	if a != strings.Repeat("z", 64) {
		t.Errorf("first sibling lost the plain truncated name: %q", a)
	}
	if !strings.HasSuffix(b, disambiguator("/vm/b")) {
		t.Errorf("second sibling missing its source-derived suffix: %q", b)
	}

	// With enumeration order fixed upstream, a rerun hands the same form to
	// the same source.
	m := NewNormalizer()
	if got := m.Normalize(KindDevice, "s", long+"-one", "/vm/a"); got != a {
		t.Errorf("first sibling renamed across runs: %q vs %q", got, a)
	}
	if got := m.Normalize(KindDevice, "s", long+"-two", "/vm/b"); got != b {
		t.Errorf("second sibling renamed across runs: %q vs %q", got, b)
	}
}

func TestNormalizeDisambiguatorIsDeterministic(t *testing.T) {
	long := strings.Repeat("y", 80)

	n := NewNormalizer()
	n.Normalize(KindDevice, "s", long+"a", "/vm/a")
	first := n.Normalize(KindDevice, "s", long+"b", "/vm/b")

	m := NewNormalizer()
	m.Normalize(KindDevice, "s", long+"a", "/vm/a")
	second := m.Normalize(KindDevice, "s", long+"b", "/vm/b")

	if first != second {
		t.Errorf("disambiguated name differs across runs: %q vs %q", first, second)
	}
}

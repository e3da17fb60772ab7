// Package naming produces identifiers that satisfy the inventory system's
// length, charset, and per-parent uniqueness constraints. Normalization is
// deterministic: the same raw name and source identifier always yield the same
// final name, so repeated runs match existing records instead of duplicating
// them.
package naming

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Kind identifies the class of object being named. Each kind carries its own
// length limit in the target system.
type Kind string

const (
	// KindBlock names address-block (prefix) records.
	KindBlock Kind = "block"

	// KindDevice names device records.
	KindDevice Kind = "device"

	// KindInterface names interface records.
	KindInterface Kind = "interface"
)

// Length limits enforced by the target system per object kind.
const (
	maxBlockName     = 100
	maxDeviceName    = 64
	maxInterfaceName = 64
)

// suffixLen is the length of the deterministic disambiguator, a dash followed
// by six hex digits.
const suffixLen = 7

// Normalizer tracks names handed out during a single run so that siblings of
// the same kind under the same parent never collide. It is not safe for
// concurrent use; callers normalize while building the graph, before any
// parallel work starts.
type Normalizer struct {
	// used maps (kind, parent) to the set of names already assigned there.
	used map[scope]map[string]string

	// assigned memoizes the result per source identifier so the same object
	// always receives the same name within a run.
	assigned map[string]string
}

type scope struct {
	kind   Kind
	parent string
}

// NewNormalizer creates an empty normalizer for one run.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		used:     make(map[scope]map[string]string),
		assigned: make(map[string]string),
	}
}

// Normalize returns a valid, unique name for the object identified by sourceID
// among siblings of the same kind under parentKey. It is total: every input,
// including an empty raw name, yields a usable name.
func (n *Normalizer) Normalize(kind Kind, parentKey, raw, sourceID string) string {
	memoKey := string(kind) + "|" + parentKey + "|" + sourceID
	if name, ok := n.assigned[memoKey]; ok {
		return name
	}

	base := sanitize(raw)
	if base == "" {
		base = sanitize(sourceID)
	}
	if base == "" {
		base = "unnamed"
	}

	limit := maxLength(kind)
	name := truncate(base, limit)

	sc := scope{kind: kind, parent: parentKey}
	siblings := n.used[sc]
	if siblings == nil {
		siblings = make(map[string]string)
		n.used[sc] = siblings
	}

	if owner, taken := siblings[name]; taken && owner != sourceID {
		name = truncate(base, limit-suffixLen) + disambiguator(sourceID)
	}

	siblings[name] = sourceID
	n.assigned[memoKey] = name
	return name
}

// sanitize strips the domain-style tail and surrounding whitespace. Azure
// resource names frequently carry a DNS suffix after the first dot that the
// inventory system rejects.
func sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}

func truncate(s string, limit int) string {
	if limit < 1 {
		limit = 1
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// disambiguator derives a short stable suffix from the source identifier.
// Hashing the identifier rather than counting collisions keeps the result
// independent of discovery order.
func disambiguator(sourceID string) string {
	h := fnv.New32a()
	h.Write([]byte(sourceID))
	return fmt.Sprintf("-%06x", h.Sum32()&0xffffff)
}

func maxLength(kind Kind) int {
	switch kind {
	case KindDevice:
		return maxDeviceName
	case KindInterface:
		return maxInterfaceName
	default:
		return maxBlockName
	}
}

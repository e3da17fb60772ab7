package sync

import (
	"context"

	"github.com/azsync/azsync/pkg/netbox"
)

// Provenance tag applied to every object the sync touches.
const (
	TagName        = "azure-sync"
	TagSlug        = "azure-sync"
	TagDescription = "Synced from Azure"
)

// TagManager owns the provenance tag: it ensures the tag exists once per run
// and answers whether a given object already carries it.
type TagManager struct {
	store netbox.Store
	tag   *netbox.Tag
}

// NewTagManager creates a tag manager bound to the store.
func NewTagManager(store netbox.Store) *TagManager {
	return &TagManager{store: store}
}

// Ensure creates the provenance tag if it does not exist yet. It must be
// called before any reconciliation; a store that cannot even serve this call
// is treated as unavailable and aborts the run.
func (t *TagManager) Ensure(ctx context.Context) error {
	tag, err := t.store.EnsureTag(ctx, TagName, TagSlug, TagDescription)
	if err != nil {
		return NewAuthError("target store unavailable", err)
	}
	t.tag = tag
	return nil
}

// ID returns the provenance tag's identifier. Only valid after Ensure.
func (t *TagManager) ID() int64 {
	if t.tag == nil {
		return 0
	}
	return t.tag.ID
}

// Apply returns the tag set with the provenance tag present, preserving any
// tags already on the object.
func (t *TagManager) Apply(existing []int64) []int64 {
	if t.Has(existing) {
		return existing
	}
	out := make([]int64, 0, len(existing)+1)
	out = append(out, existing...)
	return append(out, t.ID())
}

// Has reports whether the provenance tag is already in the tag set.
func (t *TagManager) Has(ids []int64) bool {
	for _, id := range ids {
		if id == t.ID() {
			return true
		}
	}
	return false
}

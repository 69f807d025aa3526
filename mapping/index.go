package mapping

import (
	"sort"
	"sync"
)

// Index records the mapping entries discovered by a walk. It is safe for
// concurrent use; Put keeps the first value stored for a pair, and since the
// attributes for a pair are fixed by the registry a later Put is a no-op.
type Index struct {
	mu      sync.RWMutex
	entries map[Pair]Attributes
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[Pair]Attributes)}
}

// Put inserts attrs for p if p is absent and reports whether it was inserted.
func (i *Index) Put(p Pair, attrs Attributes) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.entries[p]; exists {
		return false
	}
	i.entries[p] = attrs
	return true
}

// Get returns the attributes for p.
func (i *Index) Get(p Pair) (Attributes, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	attrs, ok := i.entries[p]
	return attrs, ok
}

// Has reports whether p is present.
func (i *Index) Has(p Pair) bool {
	_, ok := i.Get(p)
	return ok
}

// Len returns the number of entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Pairs returns every key, ordered by owner, name, element kind and annotation.
func (i *Index) Pairs() []Pair {
	i.mu.RLock()
	pairs := make([]Pair, 0, len(i.entries))
	for p := range i.entries {
		pairs = append(pairs, p)
	}
	i.mu.RUnlock()

	sort.Slice(pairs, func(a, b int) bool {
		pa, pb := pairs[a], pairs[b]
		if oa, ob := ownerName(pa.Element), ownerName(pb.Element); oa != ob {
			return oa < ob
		}
		if pa.Element.Name != pb.Element.Name {
			return pa.Element.Name < pb.Element.Name
		}
		if pa.Element.Kind != pb.Element.Kind {
			return pa.Element.Kind < pb.Element.Kind
		}
		return pa.Annotation < pb.Annotation
	})
	return pairs
}

// Merge copies entries from other that are absent here and returns how many
// were added.
func (i *Index) Merge(other *Index) int {
	if other == nil || other == i {
		return 0
	}

	other.mu.RLock()
	snapshot := make(map[Pair]Attributes, len(other.entries))
	for p, a := range other.entries {
		snapshot[p] = a
	}
	other.mu.RUnlock()

	added := 0
	for p, a := range snapshot {
		if i.Put(p, a) {
			added++
		}
	}
	return added
}

func ownerName(e Element) string {
	if e.Owner == nil {
		return ""
	}
	return e.Owner.String()
}

package intake

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCapacity = 10000

// SeenFilter remembers recently processed message IDs so a message is
// handled at most once. Once full, the oldest ID is forgotten first;
// lookups never refresh an ID.
type SeenFilter struct {
	capacity int
	seen     *lru.Cache[string, struct{}]
}

func NewSeenFilter(capacity int) *SeenFilter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only fails for a non-positive size.
	seen, _ := lru.New[string, struct{}](capacity)
	return &SeenFilter{capacity: capacity, seen: seen}
}

// ShouldProcess returns true the first time id is seen and marks it.
func (f *SeenFilter) ShouldProcess(id string) bool {
	found, _ := f.seen.ContainsOrAdd(id, struct{}{})
	return !found
}

// Len returns the number of tracked IDs.
func (f *SeenFilter) Len() int {
	return f.seen.Len()
}

func (f *SeenFilter) Capacity() int {
	return f.capacity
}

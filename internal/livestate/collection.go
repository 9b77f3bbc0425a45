package livestate

import (
	"slices"
	"sort"
)

// Collection is an ordered set of records addressed by primary key. It is
// not safe for concurrent use; View guards it.
type Collection[K comparable, T any] struct {
	items []T
	keyOf func(T) K
	less  func(a, b T) bool
}

// NewCollection creates an empty collection. With a nil less, new records
// are appended.
func NewCollection[K comparable, T any](keyOf func(T) K, less func(a, b T) bool) *Collection[K, T] {
	return &Collection[K, T]{keyOf: keyOf, less: less}
}

// Reset replaces the contents. Duplicate keys keep the last occurrence.
func (c *Collection[K, T]) Reset(items []T) {
	seen := make(map[K]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := c.keyOf(item)
		if i, ok := seen[k]; ok {
			out[i] = item
			continue
		}
		seen[k] = len(out)
		out = append(out, item)
	}
	if c.less != nil {
		sort.SliceStable(out, func(i, j int) bool { return c.less(out[i], out[j]) })
	}
	c.items = out
}

func (c *Collection[K, T]) index(k K) int {
	for i, item := range c.items {
		if c.keyOf(item) == k {
			return i
		}
	}
	return -1
}

// Upsert replaces the record with the same key in place, or inserts it at
// its ordered position. It reports whether the record was new.
func (c *Collection[K, T]) Upsert(item T) bool {
	if i := c.index(c.keyOf(item)); i >= 0 {
		c.items[i] = item
		return false
	}
	pos := len(c.items)
	if c.less != nil {
		pos = sort.Search(len(c.items), func(i int) bool { return c.less(item, c.items[i]) })
	}
	c.items = slices.Insert(c.items, pos, item)
	return true
}

// Delete removes the record with key k. Absent keys are a no-op.
func (c *Collection[K, T]) Delete(k K) bool {
	i := c.index(k)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

// Get returns the record with key k
func (c *Collection[K, T]) Get(k K) (T, bool) {
	if i := c.index(k); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Items returns a copy of the records in order
func (c *Collection[K, T]) Items() []T {
	return slices.Clone(c.items)
}

func (c *Collection[K, T]) Len() int { return len(c.items) }

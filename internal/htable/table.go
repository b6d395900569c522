// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package htable is a string-keyed hash table with chained buckets and a
// bucket count fixed at construction.
//
// The table never resizes. Callers pick a size hint up front; the table
// rounds it up to the next entry of a prime ladder. Values are held, not
// owned: Free drops every bucket but does nothing to the values themselves.
//
// A Table is not safe for concurrent use.
package htable

// MaxKeyLen bounds stored keys. Longer keys are truncated on every
// operation, so two keys that agree on their first MaxKeyLen bytes are the
// same key.
const MaxKeyLen = 1024

// ladder holds the bucket counts a table can be built with, smallest first.
var ladder = []int{509, 1021, 2053, 4093, 8191, 16381, 32771, 65521, 101111, 152501, 250051}

type bucket[V any] struct {
	hash  uint32
	key   string
	value V
	next  *bucket[V]
}

// Table maps string keys to values of type V.
type Table[V any] struct {
	buckets []*bucket[V]
	count   int
}

// SizeFor returns the bucket count chosen for hint: the smallest ladder prime
// >= hint, or the largest ladder entry when hint exceeds them all.
func SizeFor(hint int) int {
	for _, p := range ladder {
		if p >= hint {
			return p
		}
	}
	return ladder[len(ladder)-1]
}

// New allocates a table with SizeFor(hint) empty chains.
func New[V any](hint int) *Table[V] {
	return &Table[V]{buckets: make([]*bucket[V], SizeFor(hint))}
}

// Size returns the number of chains.
func (t *Table[V]) Size() int {
	return len(t.buckets)
}

// Len returns the number of stored keys.
func (t *Table[V]) Len() int {
	return t.count
}

func truncate(key string) string {
	if len(key) > MaxKeyLen {
		return key[:MaxKeyLen]
	}
	return key
}

// find returns the bucket for key and the link that points at it.
func (t *Table[V]) find(key string) (h uint32, link **bucket[V]) {
	h = Hash(key)
	link = &t.buckets[h%uint32(len(t.buckets))]
	for *link != nil {
		b := *link
		// hash first; the string compare only rules out collisions
		if b.hash == h && b.key == key {
			return h, link
		}
		link = &b.next
	}
	return h, link
}

// Get returns the value stored under key.
func (t *Table[V]) Get(key string) (V, bool) {
	_, link := t.find(truncate(key))
	if b := *link; b != nil {
		return b.value, true
	}
	var zero V
	return zero, false
}

// Put stores value under key. When key was already present its value is
// overwritten and the previous value returned with true.
func (t *Table[V]) Put(key string, value V) (V, bool) {
	key = truncate(key)
	h, link := t.find(key)
	if b := *link; b != nil {
		prev := b.value
		b.value = value
		return prev, true
	}

	// new keys go to the head of their chain
	head := &t.buckets[h%uint32(len(t.buckets))]
	*head = &bucket[V]{
		hash:  h,
		key:   key,
		value: value,
		next:  *head,
	}
	t.count++

	var zero V
	return zero, false
}

// Remove unlinks key and returns its value. Removing an absent key is a no-op.
func (t *Table[V]) Remove(key string) (V, bool) {
	_, link := t.find(truncate(key))
	b := *link
	if b == nil {
		var zero V
		return zero, false
	}
	*link = b.next
	b.next = nil
	t.count--
	return b.value, true
}

// Range calls fn for every entry until fn returns false. Order is by chain,
// then most recent insertion first within a chain.
func (t *Table[V]) Range(fn func(key string, value V) bool) {
	for _, b := range t.buckets {
		for ; b != nil; b = b.next {
			if !fn(b.key, b.value) {
				return
			}
		}
	}
}

// Free drops every bucket. The table keeps its size and can be reused.
func (t *Table[V]) Free() {
	clear(t.buckets)
	t.count = 0
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package htable

// Set is a presence-only table.
type Set struct {
	t *Table[struct{}]
}

// NewSet allocates a set with SizeFor(hint) chains.
func NewSet(hint int) *Set {
	return &Set{t: New[struct{}](hint)}
}

// Add inserts key and reports whether it was newly added.
func (s *Set) Add(key string) bool {
	_, existed := s.t.Put(key, struct{}{})
	return !existed
}

func (s *Set) Contains(key string) bool {
	_, ok := s.t.Get(key)
	return ok
}

// Remove deletes key and reports whether it was present.
func (s *Set) Remove(key string) bool {
	_, ok := s.t.Remove(key)
	return ok
}

func (s *Set) Len() int {
	return s.t.Len()
}

func (s *Set) Size() int {
	return s.t.Size()
}

// Range calls fn for every key until fn returns false.
func (s *Set) Range(fn func(key string) bool) {
	s.t.Range(func(k string, _ struct{}) bool { return fn(k) })
}

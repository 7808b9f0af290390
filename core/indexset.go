// core/indexset.go
package core

import "sort"

// IndexSet is a set of action indices. The zero value is not usable; use
// NewIndexSet.
type IndexSet map[int]struct{}

// NewIndexSet builds a set from the given indices.
func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Add inserts an index.
func (s IndexSet) Add(i int) { s[i] = struct{}{} }

// Has reports membership.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Len returns the cardinality.
func (s IndexSet) Len() int { return len(s) }

// AddAll inserts every index from other.
func (s IndexSet) AddAll(other IndexSet) {
	for i := range other {
		s[i] = struct{}{}
	}
}

// Intersect returns a new set with the indices present in both s and other.
func (s IndexSet) Intersect(other IndexSet) IndexSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(IndexSet)
	for i := range small {
		if _, ok := large[i]; ok {
			out[i] = struct{}{}
		}
	}
	return out
}

// Sorted returns the indices in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// core/mask_store.go
package core

import "fmt"

// MaskUpdate is the atomic delta produced by one notification. The two
// sets are disjoint by construction, so application order within one
// delta never matters.
type MaskUpdate struct {
	Forbid IndexSet
	Allow  IndexSet
}

// Empty reports whether the delta carries no changes.
func (u MaskUpdate) Empty() bool {
	return u.Forbid.Len() == 0 && u.Allow.Len() == 0
}

// MaskStore owns the authoritative validity mask. It is single-writer:
// only the constraint manager mutates it, via Apply and Grow.
type MaskStore struct {
	mask []bool

	// noop is the permanently valid no-operation index, or -1.
	noop int

	// permanent holds indices that can never be unmasked (kinds that are
	// structurally inactive for this scenario).
	permanent IndexSet

	// valid is the running count of true bits, maintained so readers do
	// not rescan the mask.
	valid int
}

// NewMaskStore initializes a mask of the given size with every index
// False except the designated no-op index. Pass noop = -1 when the
// space has no no-op action.
func NewMaskStore(size, noop int) *MaskStore {
	s := &MaskStore{
		mask:      make([]bool, size),
		noop:      noop,
		permanent: make(IndexSet),
	}
	if noop >= 0 && noop < size {
		s.mask[noop] = true
		s.valid = 1
	}
	return s
}

// ValidCount returns the number of currently valid indices.
func (s *MaskStore) ValidCount() int { return s.valid }

// DisablePermanently marks indices that may never become valid in this
// scenario. Already-set bits are cleared.
func (s *MaskStore) DisablePermanently(indices IndexSet) {
	for i := range indices {
		if i >= 0 && i < len(s.mask) && i != s.noop {
			s.permanent.Add(i)
			if s.mask[i] {
				s.valid--
			}
			s.mask[i] = false
		}
	}
}

// Apply consumes one atomic delta. Permanently disabled indices are
// never unmasked; the no-op index is never masked. Out-of-range indices
// indicate a wiring bug upstream and are rejected.
func (s *MaskStore) Apply(u MaskUpdate) error {
	for i := range u.Forbid {
		if i < 0 || i >= len(s.mask) {
			return fmt.Errorf("mask apply: forbid index %d out of range [0,%d)", i, len(s.mask))
		}
	}
	for i := range u.Allow {
		if i < 0 || i >= len(s.mask) {
			return fmt.Errorf("mask apply: allow index %d out of range [0,%d)", i, len(s.mask))
		}
	}
	for i := range u.Forbid {
		if i != s.noop && s.mask[i] {
			s.mask[i] = false
			s.valid--
		}
	}
	for i := range u.Allow {
		if !s.permanent.Has(i) && !s.mask[i] {
			s.mask[i] = true
			s.valid++
		}
	}
	return nil
}

// Grow extends the mask to the new size. New entries start False:
// unknown is forbidden until the first relevant notification.
func (s *MaskStore) Grow(newSize int) error {
	if newSize < len(s.mask) {
		return fmt.Errorf("mask grow: size %d below current %d", newSize, len(s.mask))
	}
	for len(s.mask) < newSize {
		s.mask = append(s.mask, false)
	}
	return nil
}

// Size returns the current mask length.
func (s *MaskStore) Size() int { return len(s.mask) }

// Get reports the validity of one index; ok is false out of range.
func (s *MaskStore) Get(i int) (valid, ok bool) {
	if i < 0 || i >= len(s.mask) {
		return false, false
	}
	return s.mask[i], true
}

// PermanentlyDisabled reports whether the index can never be unmasked.
func (s *MaskStore) PermanentlyDisabled(i int) bool {
	return s.permanent.Has(i)
}

// Snapshot returns a read-only view over the live mask. The view is
// coherent as long as no mutation cycle is in flight, which the
// single-writer step discipline guarantees; use Mask.Clone for a copy
// that survives subsequent steps.
func (s *MaskStore) Snapshot() Mask {
	return Mask{bits: s.mask}
}

// Mask is a read-only view of the validity array.
type Mask struct {
	bits []bool
}

// Len returns the mask length.
func (m Mask) Len() int { return len(m.bits) }

// At reports the validity of index i; false out of range.
func (m Mask) At(i int) bool {
	if i < 0 || i >= len(m.bits) {
		return false
	}
	return m.bits[i]
}

// Clone copies the mask into a fresh boolean slice.
func (m Mask) Clone() []bool {
	return append([]bool(nil), m.bits...)
}

// CountValid returns the number of currently valid indices.
func (m Mask) CountValid() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

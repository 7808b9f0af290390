// Package agent projects the global action space into the smaller view
// a decision-making agent consumes: only the kinds the agent may choose,
// with a mask aligned to the projected indices.
package agent

import (
	"github.com/signalsfoundry/logistics-simulator/core"
)

// Subspace is a filtered view over the global bijection. Local indices
// are append-only, like the global ones: Refresh never reorders entries,
// it only extends the maps with actions appended since the last call.
type Subspace struct {
	masking *core.MaskingService
	kinds   map[core.KindID]bool

	localToGlobal []int
	globalToLocal map[int]int
	scanned       int
}

// NewSubspace builds a projection over the given kinds. With no kinds
// listed, the subspace defaults to every non-automatic kind in the
// catalog, which is the set an external agent is allowed to pick from.
func NewSubspace(masking *core.MaskingService, kinds ...core.KindID) *Subspace {
	filter := make(map[core.KindID]bool, len(kinds))
	if len(kinds) == 0 {
		for _, k := range masking.Catalog().All() {
			if !k.Automatic() {
				filter[k.ID()] = true
			}
		}
	} else {
		for _, k := range kinds {
			filter[k] = true
		}
	}

	s := &Subspace{
		masking:       masking,
		kinds:         filter,
		globalToLocal: make(map[int]int),
	}
	s.Refresh()
	return s
}

// Refresh extends the projection with actions appended to the global
// space since the last call. Existing local indices are stable.
func (s *Subspace) Refresh() {
	size := s.masking.ActionSpaceSize()
	for g := s.scanned; g < size; g++ {
		a, ok := s.masking.IndexToAction(g)
		if !ok {
			break
		}
		if !s.kinds[a.Kind] {
			continue
		}
		s.globalToLocal[g] = len(s.localToGlobal)
		s.localToGlobal = append(s.localToGlobal, g)
	}
	s.scanned = size
}

// Size returns the number of actions in the projection.
func (s *Subspace) Size() int { return len(s.localToGlobal) }

// GlobalIndex maps a local index to its global counterpart.
func (s *Subspace) GlobalIndex(local int) (int, bool) {
	if local < 0 || local >= len(s.localToGlobal) {
		return 0, false
	}
	return s.localToGlobal[local], true
}

// LocalIndex maps a global index into the projection; ok is false when
// the global action's kind is outside the agent's set.
func (s *Subspace) LocalIndex(global int) (int, bool) {
	l, ok := s.globalToLocal[global]
	return l, ok
}

// Action resolves a local index to its concrete action.
func (s *Subspace) Action(local int) (core.ConcreteAction, bool) {
	g, ok := s.GlobalIndex(local)
	if !ok {
		return core.ConcreteAction{}, false
	}
	return s.masking.IndexToAction(g)
}

// Mask projects the current global mask into the agent's view. The
// returned slice is aligned with local indices and owned by the caller.
func (s *Subspace) Mask() []bool {
	global := s.masking.CurrentMask()
	out := make([]bool, len(s.localToGlobal))
	for l, g := range s.localToGlobal {
		out[l] = global.At(g)
	}
	return out
}

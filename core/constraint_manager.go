// core/constraint_manager.go
package core

import "fmt"

// blockerKey identifies one (entity, rule) reason an index is forbidden.
type blockerKey struct {
	Entity EntityKey
	Rule   RuleName
}

// ConstraintManager routes entity change notifications to the rules
// registered for the entity's type and turns their verdicts into one
// atomic mask delta per notification.
//
// It keeps a per-index blocker ledger so that an index forbidden by one
// entity's rule is not resurrected by another entity's notification: an
// index unmaskes only when its last blocker is withdrawn. Deltas carry
// transitions only, so re-processing an unchanged entity yields an
// empty delta.
type ConstraintManager struct {
	rules *RuleSet
	ctx   evalContext
	index *ActionIndex
	store *MaskStore

	blockers map[int]map[blockerKey]struct{}
}

// NewConstraintManager wires the manager to its collaborators. All of
// them are owned by the enclosing masking service; the manager is the
// only writer of the store.
func NewConstraintManager(rules *RuleSet, world WorldView, catalog *Catalog, space *ActionSpace, index *ActionIndex, store *MaskStore) *ConstraintManager {
	return &ConstraintManager{
		rules:    rules,
		ctx:      evalContext{world: world, space: space, catalog: catalog},
		index:    index,
		store:    store,
		blockers: make(map[int]map[blockerKey]struct{}),
	}
}

// Process handles one EntityStateChanged notification: it re-derives
// the verdict of every rule registered for the entity's type over
// exactly the actions involving the entity, updates the blocker ledger,
// and applies one atomic delta. Work is proportional to the entity's
// action neighborhood, never to the full space.
func (m *ConstraintManager) Process(ref EntityRef) (MaskUpdate, error) {
	key := EntityKey{Type: ref.Type, ID: ref.ID}

	involving := make(IndexSet)
	involving.AddAll(m.index.ActionsOfEntity(key))
	if ref.Type == EntityOrder {
		if o, ok := m.ctx.world.Order(ref.ID); ok {
			involving.AddAll(m.index.ActionsOfEntity(NodePairKey(o.PickupNodeID, o.DeliveryNodeID)))
		}
	}

	// Bucket the neighborhood by kind once; per-rule responsibility sets
	// are then cheap intersections.
	buckets := make(map[KindID]IndexSet)
	for idx := range involving {
		a, ok := m.ctx.space.At(idx)
		if !ok {
			return MaskUpdate{}, fmt.Errorf("index %d missing from action space", idx)
		}
		b, ok := buckets[a.Kind]
		if !ok {
			b = make(IndexSet)
			buckets[a.Kind] = b
		}
		b.Add(idx)
	}

	touched := make(IndexSet)
	for _, rule := range m.rules.ForEntity(ref.Type) {
		responsibility := make(IndexSet)
		for _, k := range rule.Kinds() {
			responsibility.AddAll(buckets[k])
		}
		if responsibility.Len() == 0 {
			continue
		}
		forbidden, err := rule.Evaluate(&m.ctx, ref, responsibility)
		if err != nil {
			return MaskUpdate{}, fmt.Errorf("notification %s: %w", ref, err)
		}
		bk := blockerKey{Entity: key, Rule: rule.Name()}
		for idx := range responsibility {
			touched.Add(idx)
			if forbidden.Has(idx) {
				m.addBlocker(idx, bk)
			} else {
				m.removeBlocker(idx, bk)
			}
		}
	}

	// Constraint-free kinds are unconditionally allowed within the
	// entity's neighborhood; their indices leave the unknown=forbidden
	// initial state on the entity's first notification.
	for _, k := range m.rules.UnconstrainedKinds() {
		touched.AddAll(buckets[k])
	}

	delta := MaskUpdate{Forbid: make(IndexSet), Allow: make(IndexSet)}
	for idx := range touched {
		want := len(m.blockers[idx]) == 0 && !m.store.PermanentlyDisabled(idx)
		have, ok := m.store.Get(idx)
		if !ok {
			return MaskUpdate{}, fmt.Errorf("index %d outside mask of size %d", idx, m.store.Size())
		}
		switch {
		case want && !have:
			delta.Allow.Add(idx)
		case !want && have:
			delta.Forbid.Add(idx)
		}
	}

	if err := m.store.Apply(delta); err != nil {
		return MaskUpdate{}, err
	}
	return delta, nil
}

// BlockerCount reports how many (entity, rule) blockers currently pin
// an index False. Intended for tests and debugging.
func (m *ConstraintManager) BlockerCount(idx int) int {
	return len(m.blockers[idx])
}

func (m *ConstraintManager) addBlocker(idx int, bk blockerKey) {
	set, ok := m.blockers[idx]
	if !ok {
		set = make(map[blockerKey]struct{})
		m.blockers[idx] = set
	}
	set[bk] = struct{}{}
}

func (m *ConstraintManager) removeBlocker(idx int, bk blockerKey) {
	set, ok := m.blockers[idx]
	if !ok {
		return
	}
	delete(set, bk)
	if len(set) == 0 {
		delete(m.blockers, idx)
	}
}

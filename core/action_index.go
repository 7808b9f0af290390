// core/action_index.go
package core

import "fmt"

// VehicleResolver reports the concrete entity type (truck or drone)
// behind a vehicle-union parameter value.
type VehicleResolver func(id int64) (EntityType, bool)

// ActionIndex is the reverse index from kinds and entity keys to action
// indices. index_one is O(#params); lookups are map reads.
type ActionIndex struct {
	byKind   map[KindID]IndexSet
	byEntity map[EntityKey]IndexSet
}

// NewActionIndex returns an empty index.
func NewActionIndex() *ActionIndex {
	return &ActionIndex{
		byKind:   make(map[KindID]IndexSet),
		byEntity: make(map[EntityKey]IndexSet),
	}
}

// IndexOne registers the action under its kind and under every
// entity-bearing parameter. A node-pair parameter is indexed under the
// packed pair key and, explicitly, under each of its two nodes; the pair
// key remains the primary convention for route-scoped lookups.
func (x *ActionIndex) IndexOne(kind *ActionKind, a ConcreteAction, idx int, vehicles VehicleResolver) error {
	x.kindSet(a.Kind).Add(idx)

	slot := 0
	for _, p := range kind.Params() {
		switch p.Type {
		case ParamOrder:
			x.entitySet(EntityKey{Type: EntityOrder, ID: a.Params[slot]}).Add(idx)
		case ParamTruck:
			x.entitySet(EntityKey{Type: EntityTruck, ID: a.Params[slot]}).Add(idx)
		case ParamDrone:
			x.entitySet(EntityKey{Type: EntityDrone, ID: a.Params[slot]}).Add(idx)
		case ParamNode:
			x.entitySet(EntityKey{Type: EntityNode, ID: a.Params[slot]}).Add(idx)
		case ParamMicroHub:
			x.entitySet(EntityKey{Type: EntityMicroHub, ID: a.Params[slot]}).Add(idx)
		case ParamVehicle:
			t, ok := vehicles(a.Params[slot])
			if !ok {
				return errUnknownVehicle(a.Params[slot])
			}
			x.entitySet(EntityKey{Type: t, ID: a.Params[slot]}).Add(idx)
		case ParamNodePair:
			pickup, delivery := a.Params[slot], a.Params[slot+1]
			x.entitySet(NodePairKey(pickup, delivery)).Add(idx)
			x.entitySet(EntityKey{Type: EntityNode, ID: pickup}).Add(idx)
			x.entitySet(EntityKey{Type: EntityNode, ID: delivery}).Add(idx)
		case ParamLiteral:
			// literals carry no entity identity
		}
		slot += p.Type.slots()
	}
	return nil
}

// ActionsOfKinds returns the union of indices over the given kinds.
// The returned set is owned by the caller.
func (x *ActionIndex) ActionsOfKinds(kinds ...KindID) IndexSet {
	out := make(IndexSet)
	for _, k := range kinds {
		out.AddAll(x.byKind[k])
	}
	return out
}

// ActionsOfEntity returns the indices touching the given entity key.
// The returned set is shared; callers must not mutate it.
func (x *ActionIndex) ActionsOfEntity(key EntityKey) IndexSet {
	return x.byEntity[key]
}

// KindCount returns the number of indices issued for a kind.
func (x *ActionIndex) KindCount(k KindID) int {
	return len(x.byKind[k])
}

func (x *ActionIndex) kindSet(k KindID) IndexSet {
	s, ok := x.byKind[k]
	if !ok {
		s = make(IndexSet)
		x.byKind[k] = s
	}
	return s
}

func (x *ActionIndex) entitySet(key EntityKey) IndexSet {
	s, ok := x.byEntity[key]
	if !ok {
		s = make(IndexSet)
		x.byEntity[key] = s
	}
	return s
}

func errUnknownVehicle(id int64) error {
	return fmt.Errorf("vehicle parameter %d: %w", id, ErrUnknownEntity)
}

// core/entity.go
package core

import "fmt"

// EntityType identifies which population an entity ID belongs to.
type EntityType int

const (
	EntityOrder EntityType = iota
	EntityTruck
	EntityDrone
	EntityNode
	EntityMicroHub
	// EntityNodePair is a compound key grouping actions by an order's
	// (pickup, delivery) route rather than by a single entity.
	EntityNodePair
)

func (t EntityType) String() string {
	switch t {
	case EntityOrder:
		return "order"
	case EntityTruck:
		return "truck"
	case EntityDrone:
		return "drone"
	case EntityNode:
		return "node"
	case EntityMicroHub:
		return "micro_hub"
	case EntityNodePair:
		return "node_pair"
	default:
		return fmt.Sprintf("entity_type(%d)", int(t))
	}
}

// EntityRef names one live entity. It is the payload of change
// notifications and the subject handed to constraint evaluation.
type EntityRef struct {
	Type EntityType
	ID   int64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// EntityKey is the closed key type used by the reverse index. For plain
// entities ID is the entity ID; for EntityNodePair it is a packed
// (pickup, delivery) pair.
type EntityKey struct {
	Type EntityType
	ID   int64
}

// PackNodePair builds the EntityNodePair key ID for an ordered
// (pickup, delivery) route. Node IDs must fit in 31 bits.
func PackNodePair(pickup, delivery int64) int64 {
	return pickup<<32 | (delivery & 0xffffffff)
}

// UnpackNodePair splits a packed route key back into its node IDs.
func UnpackNodePair(packed int64) (pickup, delivery int64) {
	return packed >> 32, packed & 0xffffffff
}

// NodePairKey returns the index key for an ordered route.
func NodePairKey(pickup, delivery int64) EntityKey {
	return EntityKey{Type: EntityNodePair, ID: PackNodePair(pickup, delivery)}
}

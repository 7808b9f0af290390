// core/action_kind.go
package core

import "fmt"

// ParamType declares how one parameter slot of an action schema is
// resolved against the live entity population.
type ParamType int

const (
	ParamOrder ParamType = iota
	ParamTruck
	ParamDrone
	// ParamVehicle resolves to the union of truck and drone IDs.
	ParamVehicle
	ParamNode
	ParamMicroHub
	// ParamNodePair resolves to ordered pairs of distinct nodes and
	// occupies two parameter slots in the concrete action.
	ParamNodePair
	// ParamLiteral enumerates a fixed list of values from the schema.
	ParamLiteral
)

func (p ParamType) String() string {
	switch p {
	case ParamOrder:
		return "order"
	case ParamTruck:
		return "truck"
	case ParamDrone:
		return "drone"
	case ParamVehicle:
		return "vehicle"
	case ParamNode:
		return "node"
	case ParamMicroHub:
		return "micro_hub"
	case ParamNodePair:
		return "node_pair"
	case ParamLiteral:
		return "literal"
	default:
		return fmt.Sprintf("param_type(%d)", int(p))
	}
}

// slots returns how many parameter slots this type occupies in a
// concrete action.
func (p ParamType) slots() int {
	if p == ParamNodePair {
		return 2
	}
	return 1
}

// ParamSpec is one named, typed parameter of an action schema.
type ParamSpec struct {
	Name string
	Type ParamType
	// Literals holds the admissible values for ParamLiteral parameters.
	Literals []int64
}

// KindID is the dense identifier of an ActionKind, assigned in
// registration order.
type KindID int

// ActionKind is a parameterized template for one category of action.
// Kinds are immutable after registration.
type ActionKind struct {
	id          KindID
	name        string
	params      []ParamSpec
	automatic   bool
	handler     string
	constraints []RuleName
}

// ID returns the kind's dense identifier.
func (k *ActionKind) ID() KindID { return k.id }

// Name returns the kind's unique registered name.
func (k *ActionKind) Name() string { return k.name }

// Params returns the ordered parameter schema. Callers must not mutate it.
func (k *ActionKind) Params() []ParamSpec { return k.params }

// Automatic reports whether the kind is executed by the automatic logic
// loop rather than offered to the agent.
func (k *ActionKind) Automatic() bool { return k.automatic }

// Handler names the manager responsible for dispatching the kind.
func (k *ActionKind) Handler() string { return k.handler }

// Constraints returns the rules guarding this kind.
func (k *ActionKind) Constraints() []RuleName { return k.constraints }

// ParamSlots returns the total number of concrete-action slots the
// schema occupies.
func (k *ActionKind) ParamSlots() int {
	n := 0
	for _, p := range k.params {
		n += p.Type.slots()
	}
	return n
}

// maxActionSlots bounds the flattened parameter tuple of any kind.
const maxActionSlots = 3

// ConcreteAction is one fully parameterized instantiation of a kind.
// Parameters are flattened into fixed slots so the value is comparable
// and usable as a map key; a ParamNodePair parameter occupies two
// consecutive slots (pickup, delivery).
type ConcreteAction struct {
	Kind   KindID
	Params [maxActionSlots]int64
	// N is the number of slots in use.
	N uint8
}

// MakeAction builds a concrete action from a kind and flattened slot
// values. It panics if the slot count exceeds the fixed bound; schemas
// are validated against the bound at registration.
func MakeAction(kind KindID, params ...int64) ConcreteAction {
	if len(params) > maxActionSlots {
		panic(fmt.Sprintf("action kind %d: %d parameter slots exceeds limit %d", kind, len(params), maxActionSlots))
	}
	a := ConcreteAction{Kind: kind, N: uint8(len(params))}
	copy(a.Params[:], params)
	return a
}

// Slots returns the used parameter slots.
func (a ConcreteAction) Slots() []int64 {
	return a.Params[:a.N]
}

func (a ConcreteAction) String() string {
	return fmt.Sprintf("action(kind=%d params=%v)", a.Kind, a.Slots())
}

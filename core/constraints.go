// core/constraints.go
package core

import (
	"fmt"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// WorldView is the read-only window constraints get onto the entity
// layer. The core never writes to entities.
type WorldView interface {
	Order(id int64) (*model.Order, bool)
	Truck(id int64) (*model.Truck, bool)
	Drone(id int64) (*model.Drone, bool)
	Node(id int64) (*model.Node, bool)
	MicroHub(id int64) (*model.MicroHub, bool)

	// OrdersAssignedTo lists the orders currently assigned to a vehicle.
	OrdersAssignedTo(vehicleID int64) []*model.Order
	// PendingOrdersOnRoute counts open requests sharing an ordered
	// (pickup, delivery) route.
	PendingOrdersOnRoute(pickup, delivery int64) int
	// RouteDistanceKm estimates the pickup-to-delivery distance. Real
	// routing is an external collaborator; any admissible estimate works.
	RouteDistanceKm(from, to int64) float64
}

// RuleName identifies one rule of the closed constraint set.
type RuleName string

const (
	RuleVehicleAvailability       RuleName = "vehicle_availability"
	RuleVehicleAtPickup           RuleName = "vehicle_at_pickup"
	RuleVehicleAtDelivery         RuleName = "vehicle_at_delivery"
	RuleOrderAssignable           RuleName = "order_assignable"
	RuleVehicleCapacity           RuleName = "vehicle_capacity"
	RuleTripWithinRange           RuleName = "trip_within_range"
	RuleHubAvailability           RuleName = "hub_availability"
	RuleOrderRequestAssignability RuleName = "order_request_assignability"
	RuleVehicleRouting            RuleName = "vehicle_routing"
	RuleConsolidation             RuleName = "consolidation"
)

// evalContext bundles the read-only collaborators a rule may consult.
type evalContext struct {
	world   WorldView
	space   *ActionSpace
	catalog *Catalog
}

// evalFunc computes the forbidden subset of the responsibility set for
// one entity. Implementations are pure: total, deterministic, and
// non-mutating.
type evalFunc func(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error)

// Rule is one member of the closed constraint set, bound to its
// jurisdiction. The kind jurisdiction is derived from the catalog: every
// kind naming the rule in its constraint set is in scope.
type Rule struct {
	name        RuleName
	entityTypes map[EntityType]bool
	kinds       []KindID
	eval        evalFunc
}

// Name returns the rule identifier.
func (r *Rule) Name() RuleName { return r.name }

// Kinds returns the action kinds under this rule's jurisdiction.
func (r *Rule) Kinds() []KindID { return r.kinds }

// AppliesTo reports whether the entity type is inside the rule's
// jurisdiction.
func (r *Rule) AppliesTo(t EntityType) bool { return r.entityTypes[t] }

// Evaluate returns the forbidden subset of responsibility for the given
// entity. Invoking a rule outside its entity jurisdiction is a wiring
// bug and fails fast.
func (r *Rule) Evaluate(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	if !r.entityTypes[ref.Type] {
		return nil, fmt.Errorf("rule %s evaluated on %s: %w", r.name, ref, ErrTypeMismatch)
	}
	return r.eval(ctx, ref, responsibility)
}

// ruleDefs is the closed set of constraint rules with their entity
// jurisdictions. Kind jurisdictions come from the catalog at RuleSet
// construction.
func ruleDefs() map[RuleName]*Rule {
	vehicles := map[EntityType]bool{EntityTruck: true, EntityDrone: true}
	orders := map[EntityType]bool{EntityOrder: true}
	hubs := map[EntityType]bool{EntityMicroHub: true}
	drones := map[EntityType]bool{EntityDrone: true}

	return map[RuleName]*Rule{
		RuleVehicleAvailability: {
			name: RuleVehicleAvailability, entityTypes: vehicles, eval: evalVehicleAvailability,
		},
		RuleVehicleAtPickup: {
			name: RuleVehicleAtPickup, entityTypes: vehicles, eval: evalVehicleAtPickup,
		},
		RuleVehicleAtDelivery: {
			name: RuleVehicleAtDelivery, entityTypes: vehicles, eval: evalVehicleAtDelivery,
		},
		RuleOrderAssignable: {
			name: RuleOrderAssignable, entityTypes: orders, eval: evalOrderAssignable,
		},
		RuleVehicleCapacity: {
			name: RuleVehicleCapacity, entityTypes: vehicles, eval: evalVehicleCapacity,
		},
		RuleTripWithinRange: {
			name: RuleTripWithinRange, entityTypes: drones, eval: evalTripWithinRange,
		},
		RuleHubAvailability: {
			name: RuleHubAvailability, entityTypes: hubs, eval: evalHubAvailability,
		},
		RuleOrderRequestAssignability: {
			name: RuleOrderRequestAssignability, entityTypes: orders, eval: evalOrderRequestAssignability,
		},
		RuleVehicleRouting: {
			name: RuleVehicleRouting, entityTypes: vehicles, eval: evalVehicleRouting,
		},
		RuleConsolidation: {
			name: RuleConsolidation, entityTypes: vehicles, eval: evalConsolidation,
		},
	}
}

// vehicleOf resolves a truck or drone ref to its shared vehicle state.
// The drone pointer is nil for trucks.
func vehicleOf(ctx *evalContext, ref EntityRef) (*model.Vehicle, *model.Drone, error) {
	switch ref.Type {
	case EntityTruck:
		t, ok := ctx.world.Truck(ref.ID)
		if !ok {
			return nil, nil, fmt.Errorf("%s: %w", ref, ErrUnknownEntity)
		}
		return &t.Vehicle, nil, nil
	case EntityDrone:
		d, ok := ctx.world.Drone(ref.ID)
		if !ok {
			return nil, nil, fmt.Errorf("%s: %w", ref, ErrUnknownEntity)
		}
		return &d.Vehicle, d, nil
	default:
		return nil, nil, fmt.Errorf("%s is not a vehicle: %w", ref, ErrTypeMismatch)
	}
}

// orderParamSlot returns the flattened slot of the first order-typed
// parameter in the kind's schema, or -1.
func orderParamSlot(kind *ActionKind) int {
	slot := 0
	for _, p := range kind.Params() {
		if p.Type == ParamOrder {
			return slot
		}
		slot += p.Type.slots()
	}
	return -1
}

func evalVehicleAvailability(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	v, _, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	forbidden := make(IndexSet)
	if !v.Dispatchable() {
		forbidden.AddAll(responsibility)
	}
	return forbidden, nil
}

// evalVehicleAtPickup blanket-forbids load/launch actions on the vehicle
// with per-order exceptions: the vehicle must sit at the pickup node of
// an order assigned to it.
func evalVehicleAtPickup(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	v, _, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	forbidden := make(IndexSet)
	for idx := range responsibility {
		a, ok := ctx.space.At(idx)
		if !ok {
			continue
		}
		kind, _ := ctx.catalog.ByID(a.Kind)
		slot := orderParamSlot(kind)
		if slot < 0 {
			forbidden.Add(idx)
			continue
		}
		o, ok := ctx.world.Order(a.Params[slot])
		if !ok || o.AssignedVehicleID != v.ID || v.CurrentNodeID == 0 || v.CurrentNodeID != o.PickupNodeID {
			forbidden.Add(idx)
		}
	}
	return forbidden, nil
}

// evalVehicleAtDelivery mirrors evalVehicleAtPickup for unload/land
// actions: the order must be on board and the vehicle at its delivery
// node. Kinds without an order parameter (drone landing) are allowed
// when any carried order's delivery node matches.
func evalVehicleAtDelivery(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	v, _, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	atDeliveryOfAny := false
	for _, id := range v.CargoManifest {
		if o, ok := ctx.world.Order(id); ok && v.CurrentNodeID != 0 && o.DeliveryNodeID == v.CurrentNodeID {
			atDeliveryOfAny = true
			break
		}
	}
	forbidden := make(IndexSet)
	for idx := range responsibility {
		a, ok := ctx.space.At(idx)
		if !ok {
			continue
		}
		kind, _ := ctx.catalog.ByID(a.Kind)
		slot := orderParamSlot(kind)
		if slot < 0 {
			if !atDeliveryOfAny {
				forbidden.Add(idx)
			}
			continue
		}
		o, ok := ctx.world.Order(a.Params[slot])
		if !ok || !v.Carrying(o.ID) || v.CurrentNodeID == 0 || v.CurrentNodeID != o.DeliveryNodeID {
			forbidden.Add(idx)
		}
	}
	return forbidden, nil
}

func evalOrderAssignable(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	o, ok := ctx.world.Order(ref.ID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrUnknownEntity)
	}
	forbidden := make(IndexSet)
	if !o.Assignable() {
		forbidden.AddAll(responsibility)
	}
	return forbidden, nil
}

func evalVehicleCapacity(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	v, _, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	forbidden := make(IndexSet)
	if v.PayloadSlack() == 0 {
		forbidden.AddAll(responsibility)
	}
	return forbidden, nil
}

// evalTripWithinRange forbids drone assignments whose pickup-to-delivery
// distance exceeds the drone's remaining range.
func evalTripWithinRange(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	_, d, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("rule %s on %s: %w", RuleTripWithinRange, ref, ErrTypeMismatch)
	}
	forbidden := make(IndexSet)
	for idx := range responsibility {
		a, ok := ctx.space.At(idx)
		if !ok {
			continue
		}
		kind, _ := ctx.catalog.ByID(a.Kind)
		slot := orderParamSlot(kind)
		if slot < 0 {
			continue
		}
		o, ok := ctx.world.Order(a.Params[slot])
		if !ok {
			forbidden.Add(idx)
			continue
		}
		if ctx.world.RouteDistanceKm(o.PickupNodeID, o.DeliveryNodeID) > d.RangeRemainingKm {
			forbidden.Add(idx)
		}
	}
	return forbidden, nil
}

func evalHubAvailability(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	h, ok := ctx.world.MicroHub(ref.ID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrUnknownEntity)
	}
	forbidden := make(IndexSet)
	for idx := range responsibility {
		a, aok := ctx.space.At(idx)
		if !aok {
			continue
		}
		kind, _ := ctx.catalog.ByID(a.Kind)
		switch kind.Name() {
		case KindActivateHub:
			if h.Active {
				forbidden.Add(idx)
			}
		case KindDeactivateHub:
			if !h.Active {
				forbidden.Add(idx)
			}
		case KindQueueDroneForCharging:
			if !h.Active || h.FreeChargingSlots() == 0 {
				forbidden.Add(idx)
			}
		default:
			if !h.Active {
				forbidden.Add(idx)
			}
		}
	}
	return forbidden, nil
}

// evalOrderRequestAssignability gates route-level consolidation on the
// existence of at least one open request sharing the route.
func evalOrderRequestAssignability(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	o, ok := ctx.world.Order(ref.ID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrUnknownEntity)
	}
	forbidden := make(IndexSet)
	if ctx.world.PendingOrdersOnRoute(o.PickupNodeID, o.DeliveryNodeID) == 0 {
		forbidden.AddAll(responsibility)
	}
	return forbidden, nil
}

// evalVehicleRouting forbids re-routes on vehicles that are not en route
// and movement orders targeting the vehicle's current node.
func evalVehicleRouting(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	v, _, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	forbidden := make(IndexSet)
	for idx := range responsibility {
		a, ok := ctx.space.At(idx)
		if !ok {
			continue
		}
		kind, _ := ctx.catalog.ByID(a.Kind)
		switch kind.Name() {
		case KindRerouteTruckToNode, KindRerouteDroneToNode:
			if v.Status != model.TripEnRoute {
				forbidden.Add(idx)
			}
		case KindTruckToNode, KindDroneToNode:
			// destination is the second slot of (vehicle, node) schemas
			if a.N >= 2 && a.Params[1] == v.CurrentNodeID {
				forbidden.Add(idx)
			}
		}
	}
	return forbidden, nil
}

// evalConsolidation requires the vehicle to be parked at a node with at
// least one assigned order still awaiting pickup.
func evalConsolidation(ctx *evalContext, ref EntityRef, responsibility IndexSet) (IndexSet, error) {
	v, _, err := vehicleOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	ready := false
	if v.CurrentNodeID != 0 {
		for _, o := range ctx.world.OrdersAssignedTo(v.ID) {
			if !v.Carrying(o.ID) {
				ready = true
				break
			}
		}
	}
	forbidden := make(IndexSet)
	if !ready {
		forbidden.AddAll(responsibility)
	}
	return forbidden, nil
}

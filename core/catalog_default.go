// core/catalog_default.go
package core

import "fmt"

// Handler names used by the dispatcher. The masking core never calls
// into handlers; it only records the routing label.
const (
	HandlerSupplyChain = "supply_chain"
	HandlerResource    = "resource"
	HandlerNetwork     = "network"
)

// Kind names for the standard fleet catalog.
const (
	KindAcceptOrder         = "accept_order"
	KindPrioritizeOrder     = "prioritize_order"
	KindCancelOrder         = "cancel_order"
	KindFlagOrderRedelivery = "flag_order_re_delivery"
	KindAssignOrderToTruck  = "assign_order_to_truck"
	KindAssignOrderToDrone  = "assign_order_to_drone"
	KindAssignOrderToHub    = "assign_order_to_micro_hub"
	KindReassignOrder       = "reassign_order"
	KindConsolidateForTruck = "consolidate_for_truck"
	KindConsolidateForDrone = "consolidate_for_drone"
	KindConsolidateRoute    = "consolidate_route"

	KindLoadTruck             = "load_truck"
	KindUnloadTruck           = "unload_truck"
	KindLoadDrone             = "load_drone"
	KindUnloadDrone           = "unload_drone"
	KindChargeDrone           = "charge_drone"
	KindActivateHub           = "activate_micro_hub"
	KindDeactivateHub         = "deactivate_micro_hub"
	KindQueueDroneForCharging = "queue_drone_for_charging"
	KindFlagVehicleMaint      = "flag_vehicle_for_maintenance"
	KindFlagHubServiceDown    = "flag_hub_service_down"

	KindTruckToNode           = "truck_to_node"
	KindRerouteTruckToNode    = "re_route_truck_to_node"
	KindLaunchDrone           = "launch_drone"
	KindDroneToNode           = "drone_to_node"
	KindRerouteDroneToNode    = "re_route_drone_to_node"
	KindLandDrone             = "drone_landing"
	KindDroneToChargingPoint  = "drone_to_charging_station"
	KindNoOperation           = "no_operation"
)

// Literal domains shared by the standard catalog.
var (
	// PriorityLevels are the admissible order priorities (low..high).
	PriorityLevels = []int64{1, 2, 3}
	// ChargeDurations are the selectable drone charge durations in
	// simulation minutes.
	ChargeDurations = []int64{10, 30, 60}
	// HubServiceCodes index into model.HubServices.
	HubServiceCodes = []int64{0, 1, 2, 3}
)

// DefaultCatalog registers the standard fleet action kinds in their
// canonical order and returns the populated catalog.
func DefaultCatalog() (*Catalog, error) {
	c := NewCatalog()

	type kindDef struct {
		name        string
		params      []ParamSpec
		automatic   bool
		handler     string
		constraints []RuleName
	}

	order := ParamSpec{Name: "order_id", Type: ParamOrder}
	truck := ParamSpec{Name: "truck_id", Type: ParamTruck}
	drone := ParamSpec{Name: "drone_id", Type: ParamDrone}
	vehicle := ParamSpec{Name: "vehicle_id", Type: ParamVehicle}
	node := ParamSpec{Name: "destination_node_id", Type: ParamNode}
	hub := ParamSpec{Name: "micro_hub_id", Type: ParamMicroHub}
	route := ParamSpec{Name: "route", Type: ParamNodePair}

	defs := []kindDef{
		{KindAcceptOrder, []ParamSpec{order}, false, HandlerSupplyChain,
			[]RuleName{RuleOrderAssignable}},
		{KindPrioritizeOrder, []ParamSpec{order, {Name: "priority", Type: ParamLiteral, Literals: PriorityLevels}}, false, HandlerSupplyChain, nil},
		{KindCancelOrder, []ParamSpec{order}, false, HandlerSupplyChain, nil},
		{KindFlagOrderRedelivery, []ParamSpec{order}, false, HandlerSupplyChain, nil},
		{KindAssignOrderToTruck, []ParamSpec{order, truck}, false, HandlerSupplyChain,
			[]RuleName{RuleOrderAssignable, RuleVehicleAvailability, RuleVehicleCapacity}},
		{KindAssignOrderToDrone, []ParamSpec{order, drone}, false, HandlerSupplyChain,
			[]RuleName{RuleOrderAssignable, RuleVehicleAvailability, RuleVehicleCapacity, RuleTripWithinRange}},
		{KindAssignOrderToHub, []ParamSpec{order, hub}, false, HandlerSupplyChain,
			[]RuleName{RuleOrderAssignable, RuleHubAvailability}},
		{KindReassignOrder, []ParamSpec{order, vehicle}, false, HandlerSupplyChain,
			[]RuleName{RuleOrderAssignable, RuleVehicleAvailability, RuleVehicleCapacity}},
		{KindConsolidateForTruck, []ParamSpec{truck}, false, HandlerSupplyChain,
			[]RuleName{RuleVehicleAvailability, RuleConsolidation}},
		{KindConsolidateForDrone, []ParamSpec{drone}, false, HandlerSupplyChain,
			[]RuleName{RuleVehicleAvailability, RuleConsolidation}},
		{KindConsolidateRoute, []ParamSpec{route}, false, HandlerSupplyChain,
			[]RuleName{RuleOrderRequestAssignability}},

		{KindLoadTruck, []ParamSpec{truck, order}, true, HandlerResource,
			[]RuleName{RuleVehicleAvailability, RuleVehicleAtPickup, RuleVehicleCapacity}},
		{KindUnloadTruck, []ParamSpec{truck, order}, true, HandlerResource,
			[]RuleName{RuleVehicleAvailability, RuleVehicleAtDelivery}},
		{KindLoadDrone, []ParamSpec{drone, order}, true, HandlerResource,
			[]RuleName{RuleVehicleAvailability, RuleVehicleAtPickup, RuleVehicleCapacity}},
		{KindUnloadDrone, []ParamSpec{drone, order}, true, HandlerResource,
			[]RuleName{RuleVehicleAvailability, RuleVehicleAtDelivery}},
		{KindChargeDrone, []ParamSpec{drone, {Name: "duration", Type: ParamLiteral, Literals: ChargeDurations}}, true, HandlerResource,
			[]RuleName{RuleVehicleAvailability}},
		{KindActivateHub, []ParamSpec{hub}, false, HandlerResource,
			[]RuleName{RuleHubAvailability}},
		{KindDeactivateHub, []ParamSpec{hub}, false, HandlerResource,
			[]RuleName{RuleHubAvailability}},
		{KindQueueDroneForCharging, []ParamSpec{hub, drone}, true, HandlerResource,
			[]RuleName{RuleHubAvailability, RuleVehicleAvailability}},
		{KindFlagVehicleMaint, []ParamSpec{vehicle}, false, HandlerResource, nil},
		{KindFlagHubServiceDown, []ParamSpec{hub, {Name: "service", Type: ParamLiteral, Literals: HubServiceCodes}}, false, HandlerResource,
			[]RuleName{RuleHubAvailability}},

		{KindTruckToNode, []ParamSpec{truck, node}, true, HandlerNetwork,
			[]RuleName{RuleVehicleAvailability, RuleVehicleRouting}},
		{KindRerouteTruckToNode, []ParamSpec{truck, node}, false, HandlerNetwork,
			[]RuleName{RuleVehicleRouting}},
		{KindLaunchDrone, []ParamSpec{drone, order}, true, HandlerNetwork,
			[]RuleName{RuleVehicleAvailability, RuleVehicleAtPickup, RuleTripWithinRange}},
		{KindDroneToNode, []ParamSpec{drone, node}, true, HandlerNetwork,
			[]RuleName{RuleVehicleAvailability, RuleVehicleRouting}},
		{KindRerouteDroneToNode, []ParamSpec{drone, node}, false, HandlerNetwork,
			[]RuleName{RuleVehicleRouting}},
		{KindLandDrone, []ParamSpec{drone}, true, HandlerNetwork,
			[]RuleName{RuleVehicleAtDelivery}},
		{KindDroneToChargingPoint, []ParamSpec{drone, node}, true, HandlerNetwork,
			[]RuleName{RuleVehicleAvailability}},
		{KindNoOperation, nil, false, "", nil},
	}

	for _, d := range defs {
		if _, err := c.Register(d.name, d.params, d.automatic, d.handler, d.constraints); err != nil {
			return nil, fmt.Errorf("default catalog: %w", err)
		}
	}
	return c, nil
}

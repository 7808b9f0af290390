package kb

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventEntityAdded EventType = iota
	EventOrderUpdated
	EventVehicleUpdated
	EventHubUpdated
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Ref  core.EntityRef
}

// FleetKB is an in-memory, thread-safe store for the fleet entity layer:
// orders, trucks, drones, network nodes, and micro hubs. It satisfies
// both the read-only world view and the population enumeration the
// masking core consumes.
type FleetKB struct {
	mu sync.RWMutex

	orders map[int64]*model.Order
	trucks map[int64]*model.Truck
	drones map[int64]*model.Drone
	nodes  map[int64]*model.Node
	hubs   map[int64]*model.MicroHub

	subs    []subscription
	nextSub int
}

// subscription pairs a callback with an identity token so unsubscribing
// stays correct after earlier subscribers have already been removed.
type subscription struct {
	id int
	fn func(Event)
}

// NewFleetKB constructs an empty KB.
func NewFleetKB() *FleetKB {
	return &FleetKB{
		orders: make(map[int64]*model.Order),
		trucks: make(map[int64]*model.Truck),
		drones: make(map[int64]*model.Drone),
		nodes:  make(map[int64]*model.Node),
		hubs:   make(map[int64]*model.MicroHub),
	}
}

// AddNode adds a network node. It returns an error if the ID already exists.
func (kb *FleetKB) AddNode(n *model.Node) error {
	kb.mu.Lock()
	if _, exists := kb.nodes[n.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("node with ID %d already exists", n.ID)
	}
	kb.nodes[n.ID] = n
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventEntityAdded, Ref: core.EntityRef{Type: core.EntityNode, ID: n.ID}})
	return nil
}

// AddOrder adds a new order. It returns an error if the ID already exists
// or if either endpoint node is unknown.
func (kb *FleetKB) AddOrder(o *model.Order) error {
	kb.mu.Lock()
	if _, exists := kb.orders[o.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("order with ID %d already exists", o.ID)
	}
	if _, ok := kb.nodes[o.PickupNodeID]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("pickup node %d not found for order %d", o.PickupNodeID, o.ID)
	}
	if _, ok := kb.nodes[o.DeliveryNodeID]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("delivery node %d not found for order %d", o.DeliveryNodeID, o.ID)
	}
	// store pointer so that mutators can update in-place
	kb.orders[o.ID] = o
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventEntityAdded, Ref: core.EntityRef{Type: core.EntityOrder, ID: o.ID}})
	return nil
}

// AddTruck adds a truck. It returns an error if the ID is already taken
// by any vehicle.
func (kb *FleetKB) AddTruck(t *model.Truck) error {
	kb.mu.Lock()
	if err := kb.vehicleIDFree(t.ID); err != nil {
		kb.mu.Unlock()
		return err
	}
	kb.trucks[t.ID] = t
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventEntityAdded, Ref: core.EntityRef{Type: core.EntityTruck, ID: t.ID}})
	return nil
}

// AddDrone adds a drone. It returns an error if the ID is already taken
// by any vehicle.
func (kb *FleetKB) AddDrone(d *model.Drone) error {
	kb.mu.Lock()
	if err := kb.vehicleIDFree(d.ID); err != nil {
		kb.mu.Unlock()
		return err
	}
	kb.drones[d.ID] = d
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventEntityAdded, Ref: core.EntityRef{Type: core.EntityDrone, ID: d.ID}})
	return nil
}

// AddMicroHub adds a micro hub. It returns an error if the ID already
// exists or the co-located node is unknown.
func (kb *FleetKB) AddMicroHub(h *model.MicroHub) error {
	kb.mu.Lock()
	if _, exists := kb.hubs[h.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("micro hub with ID %d already exists", h.ID)
	}
	if _, ok := kb.nodes[h.NodeID]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("node %d not found for micro hub %d", h.NodeID, h.ID)
	}
	if h.Unavailable == nil {
		h.Unavailable = make(map[model.HubService]bool)
	}
	kb.hubs[h.ID] = h
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventEntityAdded, Ref: core.EntityRef{Type: core.EntityMicroHub, ID: h.ID}})
	return nil
}

// vehicleIDFree requires kb.mu held.
func (kb *FleetKB) vehicleIDFree(id int64) error {
	if _, exists := kb.trucks[id]; exists {
		return fmt.Errorf("vehicle with ID %d already exists", id)
	}
	if _, exists := kb.drones[id]; exists {
		return fmt.Errorf("vehicle with ID %d already exists", id)
	}
	return nil
}

// ---- Read side ----

// Order returns the order with the given ID.
func (kb *FleetKB) Order(id int64) (*model.Order, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	o, ok := kb.orders[id]
	return o, ok
}

// Truck returns the truck with the given ID.
func (kb *FleetKB) Truck(id int64) (*model.Truck, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	t, ok := kb.trucks[id]
	return t, ok
}

// Drone returns the drone with the given ID.
func (kb *FleetKB) Drone(id int64) (*model.Drone, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	d, ok := kb.drones[id]
	return d, ok
}

// Node returns the network node with the given ID.
func (kb *FleetKB) Node(id int64) (*model.Node, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n, ok := kb.nodes[id]
	return n, ok
}

// MicroHub returns the micro hub with the given ID.
func (kb *FleetKB) MicroHub(id int64) (*model.MicroHub, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	h, ok := kb.hubs[id]
	return h, ok
}

// VehicleType reports which fleet an ID belongs to.
func (kb *FleetKB) VehicleType(id int64) (core.EntityType, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.vehicleTypeLocked(id)
}

// OrdersAssignedTo lists the orders currently assigned to a vehicle.
func (kb *FleetKB) OrdersAssignedTo(vehicleID int64) []*model.Order {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	var res []*model.Order
	for _, o := range kb.orders {
		if o.AssignedVehicleID == vehicleID && vehicleID != 0 {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// PendingOrdersOnRoute counts open requests sharing an ordered
// (pickup, delivery) route.
func (kb *FleetKB) PendingOrdersOnRoute(pickup, delivery int64) int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n := 0
	for _, o := range kb.orders {
		if o.PickupNodeID == pickup && o.DeliveryNodeID == delivery && o.Assignable() {
			n++
		}
	}
	return n
}

// RouteDistanceKm estimates the travel distance between two nodes as the
// straight-line distance between their coordinates. Unknown nodes are
// treated as unreachable.
func (kb *FleetKB) RouteDistanceKm(from, to int64) float64 {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	a, ok := kb.nodes[from]
	if !ok {
		return math.Inf(1)
	}
	b, ok := kb.nodes[to]
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ---- Population enumeration ----

// OrderIDs returns all order IDs in ascending order.
func (kb *FleetKB) OrderIDs() []int64 { return sortedKeys(kb, kb.collectOrders) }

// TruckIDs returns all truck IDs in ascending order.
func (kb *FleetKB) TruckIDs() []int64 { return sortedKeys(kb, kb.collectTrucks) }

// DroneIDs returns all drone IDs in ascending order.
func (kb *FleetKB) DroneIDs() []int64 { return sortedKeys(kb, kb.collectDrones) }

// NodeIDs returns all node IDs in ascending order.
func (kb *FleetKB) NodeIDs() []int64 { return sortedKeys(kb, kb.collectNodes) }

// MicroHubIDs returns all micro hub IDs in ascending order.
func (kb *FleetKB) MicroHubIDs() []int64 { return sortedKeys(kb, kb.collectHubs) }

func (kb *FleetKB) collectOrders() []int64 {
	ids := make([]int64, 0, len(kb.orders))
	for id := range kb.orders {
		ids = append(ids, id)
	}
	return ids
}

func (kb *FleetKB) collectTrucks() []int64 {
	ids := make([]int64, 0, len(kb.trucks))
	for id := range kb.trucks {
		ids = append(ids, id)
	}
	return ids
}

func (kb *FleetKB) collectDrones() []int64 {
	ids := make([]int64, 0, len(kb.drones))
	for id := range kb.drones {
		ids = append(ids, id)
	}
	return ids
}

func (kb *FleetKB) collectNodes() []int64 {
	ids := make([]int64, 0, len(kb.nodes))
	for id := range kb.nodes {
		ids = append(ids, id)
	}
	return ids
}

func (kb *FleetKB) collectHubs() []int64 {
	ids := make([]int64, 0, len(kb.hubs))
	for id := range kb.hubs {
		ids = append(ids, id)
	}
	return ids
}

func sortedKeys(kb *FleetKB, collect func() []int64) []int64 {
	kb.mu.RLock()
	ids := collect()
	kb.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ---- Mutators ----

// SetOrderStatus updates an order's lifecycle status and notifies
// subscribers.
func (kb *FleetKB) SetOrderStatus(id int64, status model.OrderStatus) error {
	kb.mu.Lock()
	o, ok := kb.orders[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("order with ID %d not found", id)
	}
	o.Status = status
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventOrderUpdated, Ref: core.EntityRef{Type: core.EntityOrder, ID: id}})
	return nil
}

// AssignOrder binds an order to a vehicle and marks it assigned. The
// assignment is also an observable change on the vehicle side (its set
// of assigned orders), so both entities get an event.
func (kb *FleetKB) AssignOrder(orderID, vehicleID int64) error {
	kb.mu.Lock()
	o, ok := kb.orders[orderID]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("order with ID %d not found", orderID)
	}
	vt, ok := kb.vehicleTypeLocked(vehicleID)
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("vehicle with ID %d not found", vehicleID)
	}
	o.AssignedVehicleID = vehicleID
	o.Status = model.OrderAssigned
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventOrderUpdated, Ref: core.EntityRef{Type: core.EntityOrder, ID: orderID}})
	kb.emit(subs, Event{Type: EventVehicleUpdated, Ref: core.EntityRef{Type: vt, ID: vehicleID}})
	return nil
}

// AssignOrderToHub routes an order through a micro hub.
func (kb *FleetKB) AssignOrderToHub(orderID, hubID int64) error {
	kb.mu.Lock()
	o, ok := kb.orders[orderID]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("order with ID %d not found", orderID)
	}
	if _, ok := kb.hubs[hubID]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("micro hub with ID %d not found", hubID)
	}
	o.AssignedHubID = hubID
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventOrderUpdated, Ref: core.EntityRef{Type: core.EntityOrder, ID: orderID}})
	return nil
}

// SetVehicleStatus updates a truck's or drone's trip state.
func (kb *FleetKB) SetVehicleStatus(id int64, status model.TripState) error {
	return kb.mutateVehicle(id, func(v *model.Vehicle) { v.Status = status })
}

// SetVehicleAvailable flips the operator-level availability flag.
func (kb *FleetKB) SetVehicleAvailable(id int64, available bool) error {
	return kb.mutateVehicle(id, func(v *model.Vehicle) { v.Available = available })
}

// SetVehicleNode moves a vehicle to a node; zero means between nodes.
func (kb *FleetKB) SetVehicleNode(id, nodeID int64) error {
	return kb.mutateVehicle(id, func(v *model.Vehicle) { v.CurrentNodeID = nodeID })
}

// LoadCargo appends an order to a vehicle's cargo manifest.
func (kb *FleetKB) LoadCargo(vehicleID, orderID int64) error {
	return kb.mutateVehicle(vehicleID, func(v *model.Vehicle) {
		if !v.Carrying(orderID) {
			v.CargoManifest = append(v.CargoManifest, orderID)
		}
	})
}

// UnloadCargo removes an order from a vehicle's cargo manifest.
func (kb *FleetKB) UnloadCargo(vehicleID, orderID int64) error {
	return kb.mutateVehicle(vehicleID, func(v *model.Vehicle) {
		for i, id := range v.CargoManifest {
			if id == orderID {
				v.CargoManifest = append(v.CargoManifest[:i], v.CargoManifest[i+1:]...)
				return
			}
		}
	})
}

// SetDroneCharge updates a drone's battery fraction and remaining range.
func (kb *FleetKB) SetDroneCharge(id int64, battery, rangeKm float64) error {
	kb.mu.Lock()
	d, ok := kb.drones[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("drone with ID %d not found", id)
	}
	d.BatteryLevel = battery
	d.RangeRemainingKm = rangeKm
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventVehicleUpdated, Ref: core.EntityRef{Type: core.EntityDrone, ID: id}})
	return nil
}

// SetHubActive flips a micro hub's active flag.
func (kb *FleetKB) SetHubActive(id int64, active bool) error {
	return kb.mutateHub(id, func(h *model.MicroHub) { h.Active = active })
}

// SetHubService flags one hub service as available or withdrawn.
func (kb *FleetKB) SetHubService(id int64, service model.HubService, available bool) error {
	return kb.mutateHub(id, func(h *model.MicroHub) {
		if available {
			delete(h.Unavailable, service)
		} else {
			h.Unavailable[service] = true
		}
	})
}

// SetHubSlotsInUse updates a hub's charging slot occupancy.
func (kb *FleetKB) SetHubSlotsInUse(id int64, inUse int) error {
	return kb.mutateHub(id, func(h *model.MicroHub) { h.SlotsInUse = inUse })
}

func (kb *FleetKB) mutateVehicle(id int64, fn func(*model.Vehicle)) error {
	kb.mu.Lock()
	var (
		v *model.Vehicle
		t core.EntityType
	)
	if truck, ok := kb.trucks[id]; ok {
		v, t = &truck.Vehicle, core.EntityTruck
	} else if drone, ok := kb.drones[id]; ok {
		v, t = &drone.Vehicle, core.EntityDrone
	} else {
		kb.mu.Unlock()
		return fmt.Errorf("vehicle with ID %d not found", id)
	}
	fn(v)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventVehicleUpdated, Ref: core.EntityRef{Type: t, ID: id}})
	return nil
}

func (kb *FleetKB) mutateHub(id int64, fn func(*model.MicroHub)) error {
	kb.mu.Lock()
	h, ok := kb.hubs[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("micro hub with ID %d not found", id)
	}
	fn(h)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	kb.emit(subs, Event{Type: EventHubUpdated, Ref: core.EntityRef{Type: core.EntityMicroHub, ID: id}})
	return nil
}

// vehicleTypeLocked requires kb.mu held.
func (kb *FleetKB) vehicleTypeLocked(id int64) (core.EntityType, bool) {
	if _, ok := kb.trucks[id]; ok {
		return core.EntityTruck, true
	}
	if _, ok := kb.drones[id]; ok {
		return core.EntityDrone, true
	}
	return 0, false
}

// snapshotSubs requires kb.mu held.
func (kb *FleetKB) snapshotSubs() []func(Event) {
	fns := make([]func(Event), 0, len(kb.subs))
	for _, sub := range kb.subs {
		fns = append(fns, sub.fn)
	}
	return fns
}

// emit delivers the event outside the lock to avoid deadlocks.
func (kb *FleetKB) emit(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}

// Subscribe registers a callback for KB events. It returns an unsubscribe
// function.
func (kb *FleetKB) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs = append(kb.subs, subscription{id: id, fn: fn})

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		for i, sub := range kb.subs {
			if sub.id == id {
				kb.subs = append(kb.subs[:i], kb.subs[i+1:]...)
				return
			}
		}
	}
}

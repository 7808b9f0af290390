package core

import (
	"math"
	"sort"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// testWorld is an in-memory WorldView + Population used across the core
// tests. It mirrors the small fleet most tests reason about: two trucks,
// one drone, one micro hub, three nodes, two orders.
type testWorld struct {
	orders map[int64]*model.Order
	trucks map[int64]*model.Truck
	drones map[int64]*model.Drone
	nodes  map[int64]*model.Node
	hubs   map[int64]*model.MicroHub
}

func newTestWorld() *testWorld {
	return &testWorld{
		orders: make(map[int64]*model.Order),
		trucks: make(map[int64]*model.Truck),
		drones: make(map[int64]*model.Drone),
		nodes:  make(map[int64]*model.Node),
		hubs:   make(map[int64]*model.MicroHub),
	}
}

// standardWorld builds the default fixture:
//
//	nodes:  1 (0,0), 2 (0,3), 3 (4,0), all loadable
//	trucks: 101 idle at node 1 (capacity 2), 102 en route (capacity 1)
//	drone:  201 idle at node 2, range 10 km
//	hub:    301 at node 2, active, one charging slot
//	orders: 1001 pending 1->2, 1002 delivered 1->3
func standardWorld() *testWorld {
	w := newTestWorld()
	w.nodes[1] = &model.Node{ID: 1, Name: "depot", IsLoadable: true}
	w.nodes[2] = &model.Node{ID: 2, Name: "north", Y: 3, IsLoadable: true}
	w.nodes[3] = &model.Node{ID: 3, Name: "east", X: 4, IsLoadable: true}

	w.trucks[101] = &model.Truck{Vehicle: model.Vehicle{
		ID: 101, Status: model.TripIdle, Available: true, CurrentNodeID: 1, MaxPayload: 2,
	}}
	w.trucks[102] = &model.Truck{Vehicle: model.Vehicle{
		ID: 102, Status: model.TripEnRoute, Available: true, MaxPayload: 1,
	}}
	w.drones[201] = &model.Drone{
		Vehicle:          model.Vehicle{ID: 201, Status: model.TripIdle, Available: true, CurrentNodeID: 2, MaxPayload: 1},
		BatteryLevel:     1,
		RangeRemainingKm: 10,
	}
	w.hubs[301] = &model.MicroHub{ID: 301, NodeID: 2, Active: true, ChargingSlots: 1}

	w.orders[1001] = &model.Order{ID: 1001, PickupNodeID: 1, DeliveryNodeID: 2, Status: model.OrderPending}
	w.orders[1002] = &model.Order{ID: 1002, PickupNodeID: 1, DeliveryNodeID: 3, Status: model.OrderDelivered}
	return w
}

func (w *testWorld) Order(id int64) (*model.Order, bool)       { o, ok := w.orders[id]; return o, ok }
func (w *testWorld) Truck(id int64) (*model.Truck, bool)       { t, ok := w.trucks[id]; return t, ok }
func (w *testWorld) Drone(id int64) (*model.Drone, bool)       { d, ok := w.drones[id]; return d, ok }
func (w *testWorld) Node(id int64) (*model.Node, bool)         { n, ok := w.nodes[id]; return n, ok }
func (w *testWorld) MicroHub(id int64) (*model.MicroHub, bool) { h, ok := w.hubs[id]; return h, ok }

func (w *testWorld) OrdersAssignedTo(vehicleID int64) []*model.Order {
	var out []*model.Order
	for _, o := range w.orders {
		if vehicleID != 0 && o.AssignedVehicleID == vehicleID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *testWorld) PendingOrdersOnRoute(pickup, delivery int64) int {
	n := 0
	for _, o := range w.orders {
		if o.PickupNodeID == pickup && o.DeliveryNodeID == delivery && o.Assignable() {
			n++
		}
	}
	return n
}

func (w *testWorld) RouteDistanceKm(from, to int64) float64 {
	a, ok := w.nodes[from]
	if !ok {
		return math.Inf(1)
	}
	b, ok := w.nodes[to]
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func (w *testWorld) OrderIDs() []int64    { return sortedIDs(w.orders) }
func (w *testWorld) NodeIDs() []int64     { return sortedIDs(w.nodes) }
func (w *testWorld) MicroHubIDs() []int64 { return sortedIDs(w.hubs) }

func (w *testWorld) TruckIDs() []int64 {
	ids := make([]int64, 0, len(w.trucks))
	for id := range w.trucks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *testWorld) DroneIDs() []int64 {
	ids := make([]int64, 0, len(w.drones))
	for id := range w.drones {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// mustCatalog builds the default catalog or panics; test fixtures only.
func mustCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

package kb

import (
	"strings"
	"testing"

	"github.com/signalsfoundry/logistics-simulator/model"
)

const scenarioJSON = `{
  "nodes": [
    {"id": 1, "name": "depot"},
    {"id": 2, "name": "north", "y": 3, "is_loadable": false}
  ],
  "trucks": [
    {"id": 101, "start_node_id": 1, "max_payload": 2},
    {"id": 102, "status": "en_route", "available": false, "max_payload": 1}
  ],
  "drones": [
    {"id": 201, "start_node_id": 2, "max_payload": 1, "range_km": 12.5}
  ],
  "micro_hubs": [
    {"id": 301, "node_id": 2, "charging_slots": 2, "active": false}
  ],
  "orders": [
    {"id": 1001, "pickup_node_id": 1, "delivery_node_id": 2, "priority": 2},
    {"id": 1002, "pickup_node_id": 2, "delivery_node_id": 1, "status": "delivered"}
  ],
  "disabled_actions": ["launch_drone"]
}`

const scenarioYAML = `
nodes:
  - id: 1
    name: depot
  - id: 2
    name: north
    y: 3
trucks:
  - id: 101
    start_node_id: 1
    max_payload: 2
drones:
  - id: 201
    start_node_id: 2
    max_payload: 1
    range_km: 12.5
    battery_level: 0.4
orders:
  - id: 1001
    pickup_node_id: 1
    delivery_node_id: 2
disabled_actions:
  - drone_landing
`

func TestLoadScenarioJSON(t *testing.T) {
	fleet := NewFleetKB()
	scenario, err := LoadFleetScenarioJSON(fleet, strings.NewReader(scenarioJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(scenario.NodeIDs) != 2 || len(scenario.TruckIDs) != 2 || len(scenario.DroneIDs) != 1 ||
		len(scenario.MicroHubIDs) != 1 || len(scenario.OrderIDs) != 2 {
		t.Fatalf("summary = %+v", scenario)
	}
	if len(scenario.DisabledActions) != 1 || scenario.DisabledActions[0] != "launch_drone" {
		t.Fatalf("disabled = %v", scenario.DisabledActions)
	}

	// Optional fields fall back to their defaults.
	n1, _ := fleet.Node(1)
	if !n1.IsLoadable {
		t.Fatalf("is_loadable should default to true")
	}
	n2, _ := fleet.Node(2)
	if n2.IsLoadable {
		t.Fatalf("explicit is_loadable=false ignored")
	}

	t101, _ := fleet.Truck(101)
	if t101.Status != model.TripIdle || !t101.Available || t101.CurrentNodeID != 1 {
		t.Fatalf("truck 101 defaults wrong: %+v", t101.Vehicle)
	}
	t102, _ := fleet.Truck(102)
	if t102.Status != model.TripEnRoute || t102.Available {
		t.Fatalf("truck 102 explicit fields wrong: %+v", t102.Vehicle)
	}

	d, _ := fleet.Drone(201)
	if d.BatteryLevel != 1.0 || d.RangeRemainingKm != 12.5 {
		t.Fatalf("drone fields wrong: battery=%v range=%v", d.BatteryLevel, d.RangeRemainingKm)
	}

	h, _ := fleet.MicroHub(301)
	if h.Active || h.ChargingSlots != 2 {
		t.Fatalf("hub fields wrong: %+v", h)
	}

	o1, _ := fleet.Order(1001)
	if o1.Status != model.OrderPending || o1.Priority != 2 {
		t.Fatalf("order 1001 wrong: %+v", o1)
	}
	o2, _ := fleet.Order(1002)
	if o2.Status != model.OrderDelivered {
		t.Fatalf("order 1002 status = %s", o2.Status)
	}
}

func TestLoadScenarioYAML(t *testing.T) {
	fleet := NewFleetKB()
	scenario, err := LoadFleetScenarioYAML(fleet, strings.NewReader(scenarioYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scenario.NodeIDs) != 2 || len(scenario.TruckIDs) != 1 || len(scenario.DroneIDs) != 1 {
		t.Fatalf("summary = %+v", scenario)
	}
	if len(scenario.DisabledActions) != 1 || scenario.DisabledActions[0] != "drone_landing" {
		t.Fatalf("disabled = %v", scenario.DisabledActions)
	}

	d, _ := fleet.Drone(201)
	if d.BatteryLevel != 0.4 {
		t.Fatalf("explicit battery_level ignored: %v", d.BatteryLevel)
	}
}

func TestLoadScenarioRejectsDanglingReferences(t *testing.T) {
	fleet := NewFleetKB()
	const bad = `{
  "nodes": [{"id": 1}],
  "orders": [{"id": 1001, "pickup_node_id": 1, "delivery_node_id": 9}]
}`
	if _, err := LoadFleetScenarioJSON(fleet, strings.NewReader(bad)); err == nil {
		t.Fatalf("order referencing a missing node accepted")
	}
	// Nodes loaded before the failure remain; callers discard the KB on error.
	if _, ok := fleet.Node(1); !ok {
		t.Fatalf("node 1 should have been added before the failure")
	}
}

func TestLoadScenarioRejectsMalformedInput(t *testing.T) {
	if _, err := LoadFleetScenarioJSON(NewFleetKB(), strings.NewReader("{not json")); err == nil {
		t.Fatalf("malformed JSON accepted")
	}
	if _, err := LoadFleetScenarioYAML(NewFleetKB(), strings.NewReader("{unclosed: [")); err == nil {
		t.Fatalf("malformed YAML accepted")
	}
	if _, err := LoadFleetScenarioJSON(nil, strings.NewReader("{}")); err == nil {
		t.Fatalf("nil KB accepted")
	}
}

package kb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// FleetScenario is a small summary of what was loaded. It's mainly
// useful for logging or debugging from main().
type FleetScenario struct {
	NodeIDs     []int64
	TruckIDs    []int64
	DroneIDs    []int64
	MicroHubIDs []int64
	OrderIDs    []int64

	// DisabledActions lists action kind names the scenario declares
	// structurally inactive.
	DisabledActions []string
}

// internal wire shapes - keep them unexported so we're free to evolve them.
type fleetScenarioDoc struct {
	Nodes           []nodeDoc     `json:"nodes" yaml:"nodes"`
	Trucks          []vehicleDoc  `json:"trucks" yaml:"trucks"`
	Drones          []vehicleDoc  `json:"drones" yaml:"drones"`
	MicroHubs       []microHubDoc `json:"micro_hubs" yaml:"micro_hubs"`
	Orders          []orderDoc    `json:"orders" yaml:"orders"`
	DisabledActions []string      `json:"disabled_actions" yaml:"disabled_actions"`
}

type nodeDoc struct {
	ID                int64   `json:"id" yaml:"id"`
	Name              string  `json:"name" yaml:"name"`
	X                 float64 `json:"x" yaml:"x"`
	Y                 float64 `json:"y" yaml:"y"`
	IsLoadable        *bool   `json:"is_loadable" yaml:"is_loadable"` // optional; defaults to true
	IsChargingStation bool    `json:"is_charging_station" yaml:"is_charging_station"`
}

type vehicleDoc struct {
	ID          int64   `json:"id" yaml:"id"`
	StartNodeID int64   `json:"start_node_id" yaml:"start_node_id"`
	Status      string  `json:"status" yaml:"status"`       // optional; defaults to idle
	Available   *bool   `json:"available" yaml:"available"` // optional; defaults to true
	MaxPayload  int     `json:"max_payload" yaml:"max_payload"`
	MaxSpeed    float64 `json:"max_speed" yaml:"max_speed"`

	// drone-only fields, ignored for trucks
	BatteryLevel *float64 `json:"battery_level" yaml:"battery_level"` // optional; defaults to 1.0
	RangeKm      float64  `json:"range_km" yaml:"range_km"`
}

type microHubDoc struct {
	ID            int64  `json:"id" yaml:"id"`
	NodeID        int64  `json:"node_id" yaml:"node_id"`
	Name          string `json:"name" yaml:"name"`
	Active        *bool  `json:"active" yaml:"active"` // optional; defaults to true
	ChargingSlots int    `json:"charging_slots" yaml:"charging_slots"`
}

type orderDoc struct {
	ID             int64   `json:"id" yaml:"id"`
	PickupNodeID   int64   `json:"pickup_node_id" yaml:"pickup_node_id"`
	DeliveryNodeID int64   `json:"delivery_node_id" yaml:"delivery_node_id"`
	Status         string  `json:"status" yaml:"status"` // optional; defaults to pending
	Priority       int     `json:"priority" yaml:"priority"`
	TimeReceived   float64 `json:"time_received" yaml:"time_received"`
	SLADeadline    float64 `json:"sla_deadline" yaml:"sla_deadline"`
}

// LoadFleetScenarioFile loads a scenario file, picking the codec from the
// file extension: .yaml/.yml decode as YAML, everything else as JSON.
func LoadFleetScenarioFile(kb *FleetKB, path string) (*FleetScenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadFleetScenarioYAML(kb, f)
	default:
		return LoadFleetScenarioJSON(kb, f)
	}
}

// LoadFleetScenarioJSON reads a JSON scenario from r and populates the KB.
func LoadFleetScenarioJSON(kb *FleetKB, r io.Reader) (*FleetScenario, error) {
	var doc fleetScenarioDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scenario JSON: %w", err)
	}
	return applyScenario(kb, &doc)
}

// LoadFleetScenarioYAML reads a YAML scenario from r and populates the KB.
func LoadFleetScenarioYAML(kb *FleetKB, r io.Reader) (*FleetScenario, error) {
	var doc fleetScenarioDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scenario YAML: %w", err)
	}
	return applyScenario(kb, &doc)
}

// applyScenario populates the KB in dependency order: nodes first, so
// that order and hub references validate against them.
func applyScenario(kb *FleetKB, doc *fleetScenarioDoc) (*FleetScenario, error) {
	if kb == nil {
		return nil, fmt.Errorf("apply scenario: kb is nil")
	}

	result := &FleetScenario{DisabledActions: doc.DisabledActions}

	for _, n := range doc.Nodes {
		node := &model.Node{
			ID:                n.ID,
			Name:              n.Name,
			X:                 n.X,
			Y:                 n.Y,
			IsLoadable:        boolOr(n.IsLoadable, true),
			IsChargingStation: n.IsChargingStation,
		}
		if err := kb.AddNode(node); err != nil {
			return nil, fmt.Errorf("scenario node %d: %w", n.ID, err)
		}
		result.NodeIDs = append(result.NodeIDs, n.ID)
	}

	for _, v := range doc.Trucks {
		truck := &model.Truck{Vehicle: vehicleFromDoc(v)}
		if err := kb.AddTruck(truck); err != nil {
			return nil, fmt.Errorf("scenario truck %d: %w", v.ID, err)
		}
		result.TruckIDs = append(result.TruckIDs, v.ID)
	}

	for _, v := range doc.Drones {
		drone := &model.Drone{
			Vehicle:          vehicleFromDoc(v),
			BatteryLevel:     floatOr(v.BatteryLevel, 1.0),
			RangeRemainingKm: v.RangeKm,
		}
		if err := kb.AddDrone(drone); err != nil {
			return nil, fmt.Errorf("scenario drone %d: %w", v.ID, err)
		}
		result.DroneIDs = append(result.DroneIDs, v.ID)
	}

	for _, h := range doc.MicroHubs {
		hub := &model.MicroHub{
			ID:            h.ID,
			NodeID:        h.NodeID,
			Name:          h.Name,
			Active:        boolOr(h.Active, true),
			ChargingSlots: h.ChargingSlots,
		}
		if err := kb.AddMicroHub(hub); err != nil {
			return nil, fmt.Errorf("scenario micro hub %d: %w", h.ID, err)
		}
		result.MicroHubIDs = append(result.MicroHubIDs, h.ID)
	}

	for _, o := range doc.Orders {
		status := model.OrderStatus(o.Status)
		if o.Status == "" {
			status = model.OrderPending
		}
		order := &model.Order{
			ID:             o.ID,
			PickupNodeID:   o.PickupNodeID,
			DeliveryNodeID: o.DeliveryNodeID,
			Status:         status,
			Priority:       o.Priority,
			TimeReceived:   o.TimeReceived,
			SLADeadline:    o.SLADeadline,
		}
		if err := kb.AddOrder(order); err != nil {
			return nil, fmt.Errorf("scenario order %d: %w", o.ID, err)
		}
		result.OrderIDs = append(result.OrderIDs, o.ID)
	}

	return result, nil
}

func vehicleFromDoc(v vehicleDoc) model.Vehicle {
	status := model.TripState(v.Status)
	if v.Status == "" {
		status = model.TripIdle
	}
	return model.Vehicle{
		ID:            v.ID,
		Status:        status,
		Available:     boolOr(v.Available, true),
		CurrentNodeID: v.StartNodeID,
		MaxPayload:    v.MaxPayload,
		MaxSpeed:      v.MaxSpeed,
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

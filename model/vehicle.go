package model

// TripState enumerates the operational states shared by trucks and drones.
type TripState string

const (
	TripIdle        TripState = "idle"
	TripEnRoute     TripState = "en_route"
	TripCharging    TripState = "charging"
	TripMaintenance TripState = "maintenance"
	TripBrokenDown  TripState = "broken_down"
)

// Vehicle holds the state common to trucks and drones.
type Vehicle struct {
	ID     int64
	Status TripState
	// Available is an operator-level flag; a vehicle can be idle yet
	// withheld from dispatch.
	Available bool

	// CurrentNodeID is zero while the vehicle is between nodes.
	CurrentNodeID int64

	// CargoManifest lists the order IDs currently on board.
	CargoManifest []int64
	MaxPayload    int
	MaxSpeed      float64
}

// Dispatchable reports whether the vehicle can accept new work right now.
func (v *Vehicle) Dispatchable() bool {
	if !v.Available {
		return false
	}
	switch v.Status {
	case TripEnRoute, TripCharging, TripMaintenance, TripBrokenDown:
		return false
	default:
		return true
	}
}

// PayloadSlack returns the number of additional orders the vehicle can carry.
func (v *Vehicle) PayloadSlack() int {
	slack := v.MaxPayload - len(v.CargoManifest)
	if slack < 0 {
		return 0
	}
	return slack
}

// Carrying reports whether the given order is in the cargo manifest.
func (v *Vehicle) Carrying(orderID int64) bool {
	for _, id := range v.CargoManifest {
		if id == orderID {
			return true
		}
	}
	return false
}

// Truck is a road vehicle constrained to the edge network.
type Truck struct {
	Vehicle
}

// Drone is an aerial vehicle with a limited battery range.
type Drone struct {
	Vehicle

	// BatteryLevel is a 0..1 fraction of full charge.
	BatteryLevel float64
	// RangeRemainingKm is the flight distance still available on the
	// current charge.
	RangeRemainingKm float64
}

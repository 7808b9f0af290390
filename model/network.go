package model

// Node is a location in the delivery network. Routing between nodes is an
// external concern; the simulator only needs identities and coordinates.
type Node struct {
	ID   int64
	Name string
	X    float64
	Y    float64

	// IsLoadable marks nodes where cargo can be exchanged.
	IsLoadable bool
	// IsChargingStation marks nodes where drones can recharge outside
	// of micro hubs.
	IsChargingStation bool
}

// HubService enumerates the services a micro hub can offer or withdraw.
type HubService string

const (
	HubServiceChargingSlot HubService = "charging_slot"
	HubServiceSorting      HubService = "package_sorting"
	HubServiceLaunches     HubService = "launches"
	HubServiceRecoveries   HubService = "recoveries"
)

// HubServices is the fixed set of services in declaration order.
var HubServices = []HubService{
	HubServiceChargingSlot,
	HubServiceSorting,
	HubServiceLaunches,
	HubServiceRecoveries,
}

// MicroHub is an activatable consolidation and charging point co-located
// with a network node.
type MicroHub struct {
	ID     int64
	NodeID int64
	Name   string

	Active bool

	ChargingSlots int
	SlotsInUse    int

	// Unavailable records services currently flagged as withdrawn.
	Unavailable map[HubService]bool
}

// ServiceAvailable reports whether the hub currently offers the service.
func (h *MicroHub) ServiceAvailable(s HubService) bool {
	if !h.Active {
		return false
	}
	return !h.Unavailable[s]
}

// FreeChargingSlots returns the number of unoccupied charging slots.
func (h *MicroHub) FreeChargingSlots() int {
	free := h.ChargingSlots - h.SlotsInUse
	if free < 0 {
		return 0
	}
	return free
}

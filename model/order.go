package model

// OrderStatus enumerates the lifecycle states of a delivery order.
type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderAccepted          OrderStatus = "accepted"
	OrderAssigned          OrderStatus = "assigned"
	OrderInTransit         OrderStatus = "in_transit"
	OrderDelivered         OrderStatus = "delivered"
	OrderCancelled         OrderStatus = "cancelled"
	OrderFlaggedRedelivery OrderStatus = "flagged_re_delivery"
)

// Order is a single delivery request moving through the node network.
type Order struct {
	ID             int64
	PickupNodeID   int64
	DeliveryNodeID int64
	Status         OrderStatus
	Priority       int

	// AssignedVehicleID is zero while the order is unassigned.
	AssignedVehicleID int64
	// AssignedHubID is zero unless the order was routed through a micro hub.
	AssignedHubID int64

	TimeReceived float64
	SLADeadline  float64
}

// Assignable reports whether the order may still be matched to a vehicle
// or hub. Delivered, cancelled, and already-assigned orders are not.
func (o *Order) Assignable() bool {
	switch o.Status {
	case OrderAssigned, OrderInTransit, OrderDelivered, OrderCancelled:
		return false
	default:
		return true
	}
}

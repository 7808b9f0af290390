// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/model"
)

var (
	// ErrOrderNotFound indicates a requested order was not found.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVehicleNotFound indicates a requested vehicle was not found.
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrHubNotFound indicates a requested micro hub was not found.
	ErrHubNotFound = errors.New("micro hub not found")
	// ErrOrderInvalid indicates an input order failed validation.
	ErrOrderInvalid = errors.New("invalid order")
	// ErrActionForbidden indicates an action index is currently masked.
	ErrActionForbidden = errors.New("action is forbidden by the current mask")
	// ErrActionOutOfRange indicates an action index past the space size.
	ErrActionOutOfRange = errors.New("action index out of range")
)

const tracerName = "logistics-simulator/state"

// ScenarioState coordinates the fleet knowledge base and the masking
// service. All entity mutation flows through it, so every observable
// attribute change is followed by a synchronous mask propagation before
// the mutator returns.
type ScenarioState struct {
	// mu is the coarse scenario-level lock. Take this before touching the
	// KB to maintain the global lock ordering of ScenarioState -> KB locks.
	mu sync.RWMutex

	fleet   *kb.FleetKB
	masking *core.MaskingService

	log     logging.Logger
	metrics ScenarioMetricsRecorder
	tracer  trace.Tracer

	unsubscribe func()
}

// ScenarioMetricsRecorder receives count updates for core scenario entities.
type ScenarioMetricsRecorder interface {
	SetScenarioCounts(orders, trucks, drones, nodes, hubs int)
}

// ScenarioStateOption customises ScenarioState construction.
type ScenarioStateOption func(*ScenarioState)

// WithMetricsRecorder attaches an optional metrics recorder for entity counts.
func WithMetricsRecorder(m ScenarioMetricsRecorder) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.metrics = m
	}
}

// NewScenarioState wires the fleet KB to the masking service: KB change
// events are forwarded into the masking notification queue, and mutators
// drain that queue before returning.
func NewScenarioState(fleet *kb.FleetKB, masking *core.MaskingService, log logging.Logger, opts ...ScenarioStateOption) *ScenarioState {
	if log == nil {
		log = logging.Noop()
	}
	s := &ScenarioState{
		fleet:   fleet,
		masking: masking,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.subscribeLocked()
	s.updateMetricsLocked()
	return s
}

// subscribeLocked forwards KB change events into the masking queue. The
// closure captures the current fleet and masking pair so a scenario
// reset can swap both atomically.
func (s *ScenarioState) subscribeLocked() {
	masking, log := s.masking, s.log
	s.unsubscribe = s.fleet.Subscribe(func(e kb.Event) {
		// Entity registration grows the action space and is handled by
		// the Create* mutators; only attribute changes feed the mask.
		if e.Type == kb.EventEntityAdded {
			return
		}
		if err := masking.Notify(core.EntityChange{Ref: e.Ref}); err != nil {
			log.Error(context.Background(), "drop mask notification", logging.Err(err))
		}
	})
}

// Close detaches the KB subscription.
func (s *ScenarioState) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// FleetKB exposes the underlying knowledge base for read-only use.
func (s *ScenarioState) FleetKB() *kb.FleetKB { return s.fleet }

// Masking exposes the masking service for read-only use.
func (s *ScenarioState) Masking() *core.MaskingService { return s.masking }

// ---- Snapshot ----

// ScenarioSnapshot captures a consistent view of the scenario: the
// entity populations plus a cloned validity mask aligned with the
// bijection at snapshot time.
type ScenarioSnapshot struct {
	OrderIDs    []int64
	TruckIDs    []int64
	DroneIDs    []int64
	NodeIDs     []int64
	MicroHubIDs []int64

	ActionSpaceSize int
	// Mask is a frozen copy of the validity mask, aligned with the
	// action space indices at snapshot time.
	Mask []bool
}

// Snapshot returns a coherent view of the current scenario state.
func (s *ScenarioState) Snapshot() *ScenarioSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &ScenarioSnapshot{
		OrderIDs:        s.fleet.OrderIDs(),
		TruckIDs:        s.fleet.TruckIDs(),
		DroneIDs:        s.fleet.DroneIDs(),
		NodeIDs:         s.fleet.NodeIDs(),
		MicroHubIDs:     s.fleet.MicroHubIDs(),
		ActionSpaceSize: s.masking.ActionSpaceSize(),
		Mask:            s.masking.CurrentMask().Clone(),
	}
}

// CurrentMask returns the validity mask as of the last completed
// propagation cycle.
func (s *ScenarioState) CurrentMask() core.Mask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masking.CurrentMask()
}

// Resync pushes a change notification for every entity, bringing the
// mask in line with current KB state. Called once after scenario load.
func (s *ScenarioState) Resync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "state.Resync")
	defer span.End()

	return s.masking.Resync(ctx, s.fleet)
}

// ResetScenario replaces the running scenario wholesale with a freshly
// populated fleet and a masking core rebuilt over it. The action space
// is append-only, so loading a new population means a new space rather
// than clearing the old one. The new mask is primed before returning.
func (s *ScenarioState) ResetScenario(ctx context.Context, fleet *kb.FleetKB, masking *core.MaskingService) error {
	if fleet == nil || masking == nil {
		return fmt.Errorf("reset scenario: fleet and masking service are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "state.ResetScenario")
	defer span.End()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.fleet = fleet
	s.masking = masking
	s.subscribeLocked()

	s.log.Info(ctx, "scenario reset",
		logging.Int("orders", len(fleet.OrderIDs())),
		logging.Int("trucks", len(fleet.TruckIDs())),
		logging.Int("drones", len(fleet.DroneIDs())),
		logging.Int("micro_hubs", len(fleet.MicroHubIDs())),
		logging.Int("actions", masking.ActionSpaceSize()),
	)

	s.updateMetricsLocked()
	return s.masking.Resync(ctx, s.fleet)
}

// ---- Reads ----

// Order returns a scenario order. The pointer is owned by the KB and
// must be treated as read-only.
func (s *ScenarioState) Order(id int64) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.fleet.Order(id)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return o, nil
}

// Truck returns a scenario truck, read-only.
func (s *ScenarioState) Truck(id int64) (*model.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.fleet.Truck(id)
	if !ok {
		return nil, fmt.Errorf("truck %d: %w", id, ErrVehicleNotFound)
	}
	return t, nil
}

// Drone returns a scenario drone, read-only.
func (s *ScenarioState) Drone(id int64) (*model.Drone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.fleet.Drone(id)
	if !ok {
		return nil, fmt.Errorf("drone %d: %w", id, ErrVehicleNotFound)
	}
	return d, nil
}

// MicroHub returns a scenario micro hub, read-only.
func (s *ScenarioState) MicroHub(id int64) (*model.MicroHub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.fleet.MicroHub(id)
	if !ok {
		return nil, fmt.Errorf("micro hub %d: %w", id, ErrHubNotFound)
	}
	return h, nil
}

// ValidateAction resolves an agent-selected index and checks it against
// the current mask. A masked index returns ErrActionForbidden together
// with the resolved action so callers can log what was attempted.
func (s *ScenarioState) ValidateAction(idx int) (core.ConcreteAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.masking.IndexToAction(idx)
	if !ok {
		return core.ConcreteAction{}, fmt.Errorf("index %d of %d: %w", idx, s.masking.ActionSpaceSize(), ErrActionOutOfRange)
	}
	if !s.masking.CurrentMask().At(idx) {
		return a, fmt.Errorf("index %d (%s): %w", idx, a, ErrActionForbidden)
	}
	return a, nil
}

// ---- Dynamic entities ----

// CreateOrder registers a new order mid-episode: the KB gains the entity,
// the action space grows by exactly the combinations the order introduces,
// and one change notification primes its mask entries.
func (s *ScenarioState) CreateOrder(ctx context.Context, o *model.Order) error {
	if o == nil || o.ID == 0 {
		return fmt.Errorf("%w: empty order", ErrOrderInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "state.CreateOrder",
		trace.WithAttributes(attribute.Int64("order.id", o.ID)))
	defer span.End()

	if err := s.fleet.AddOrder(o); err != nil {
		return err
	}
	if _, err := s.masking.HandleEntityRegistered(ctx, core.EntityOrder, o.ID); err != nil {
		return err
	}
	if err := s.notifyAndDrainLocked(ctx, core.EntityRef{Type: core.EntityOrder, ID: o.ID}); err != nil {
		return err
	}

	s.updateMetricsLocked()
	return nil
}

// CreateTruck registers a new truck mid-episode.
func (s *ScenarioState) CreateTruck(ctx context.Context, t *model.Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "state.CreateTruck",
		trace.WithAttributes(attribute.Int64("truck.id", t.ID)))
	defer span.End()

	if err := s.fleet.AddTruck(t); err != nil {
		return err
	}
	if _, err := s.masking.HandleEntityRegistered(ctx, core.EntityTruck, t.ID); err != nil {
		return err
	}
	if err := s.notifyAndDrainLocked(ctx, core.EntityRef{Type: core.EntityTruck, ID: t.ID}); err != nil {
		return err
	}

	s.updateMetricsLocked()
	return nil
}

// CreateDrone registers a new drone mid-episode.
func (s *ScenarioState) CreateDrone(ctx context.Context, d *model.Drone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "state.CreateDrone",
		trace.WithAttributes(attribute.Int64("drone.id", d.ID)))
	defer span.End()

	if err := s.fleet.AddDrone(d); err != nil {
		return err
	}
	if _, err := s.masking.HandleEntityRegistered(ctx, core.EntityDrone, d.ID); err != nil {
		return err
	}
	if err := s.notifyAndDrainLocked(ctx, core.EntityRef{Type: core.EntityDrone, ID: d.ID}); err != nil {
		return err
	}

	s.updateMetricsLocked()
	return nil
}

// ---- Attribute mutators ----
//
// Each mutator applies the KB change, which emits a change event into
// the masking queue via the subscription, then drains the queue so the
// mask is consistent before the mutator returns.

// SetOrderStatus updates an order's lifecycle status.
func (s *ScenarioState) SetOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	return s.mutate(ctx, "state.SetOrderStatus", func() error {
		return s.fleet.SetOrderStatus(id, status)
	})
}

// AssignOrder binds an order to a vehicle and marks it assigned.
func (s *ScenarioState) AssignOrder(ctx context.Context, orderID, vehicleID int64) error {
	return s.mutate(ctx, "state.AssignOrder", func() error {
		return s.fleet.AssignOrder(orderID, vehicleID)
	})
}

// AssignOrderToHub routes an order through a micro hub.
func (s *ScenarioState) AssignOrderToHub(ctx context.Context, orderID, hubID int64) error {
	return s.mutate(ctx, "state.AssignOrderToHub", func() error {
		return s.fleet.AssignOrderToHub(orderID, hubID)
	})
}

// SetVehicleStatus updates a truck's or drone's trip state.
func (s *ScenarioState) SetVehicleStatus(ctx context.Context, id int64, status model.TripState) error {
	return s.mutate(ctx, "state.SetVehicleStatus", func() error {
		return s.fleet.SetVehicleStatus(id, status)
	})
}

// SetVehicleAvailable flips the operator-level availability flag.
func (s *ScenarioState) SetVehicleAvailable(ctx context.Context, id int64, available bool) error {
	return s.mutate(ctx, "state.SetVehicleAvailable", func() error {
		return s.fleet.SetVehicleAvailable(id, available)
	})
}

// SetVehicleNode moves a vehicle to a node.
func (s *ScenarioState) SetVehicleNode(ctx context.Context, id, nodeID int64) error {
	return s.mutate(ctx, "state.SetVehicleNode", func() error {
		return s.fleet.SetVehicleNode(id, nodeID)
	})
}

// LoadCargo puts an order on board a vehicle.
func (s *ScenarioState) LoadCargo(ctx context.Context, vehicleID, orderID int64) error {
	return s.mutate(ctx, "state.LoadCargo", func() error {
		return s.fleet.LoadCargo(vehicleID, orderID)
	})
}

// UnloadCargo removes an order from a vehicle.
func (s *ScenarioState) UnloadCargo(ctx context.Context, vehicleID, orderID int64) error {
	return s.mutate(ctx, "state.UnloadCargo", func() error {
		return s.fleet.UnloadCargo(vehicleID, orderID)
	})
}

// SetDroneCharge updates a drone's battery fraction and remaining range.
func (s *ScenarioState) SetDroneCharge(ctx context.Context, id int64, battery, rangeKm float64) error {
	return s.mutate(ctx, "state.SetDroneCharge", func() error {
		return s.fleet.SetDroneCharge(id, battery, rangeKm)
	})
}

// SetHubActive flips a micro hub's active flag.
func (s *ScenarioState) SetHubActive(ctx context.Context, id int64, active bool) error {
	return s.mutate(ctx, "state.SetHubActive", func() error {
		return s.fleet.SetHubActive(id, active)
	})
}

// SetHubService flags one hub service as available or withdrawn.
func (s *ScenarioState) SetHubService(ctx context.Context, id int64, service model.HubService, available bool) error {
	return s.mutate(ctx, "state.SetHubService", func() error {
		return s.fleet.SetHubService(id, service, available)
	})
}

// SetHubSlotsInUse updates a hub's charging slot occupancy.
func (s *ScenarioState) SetHubSlotsInUse(ctx context.Context, id int64, inUse int) error {
	return s.mutate(ctx, "state.SetHubSlotsInUse", func() error {
		return s.fleet.SetHubSlotsInUse(id, inUse)
	})
}

func (s *ScenarioState) mutate(ctx context.Context, span string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, sp := s.tracer.Start(ctx, span)
	defer sp.End()

	if err := fn(); err != nil {
		return err
	}
	return s.masking.Drain(ctx)
}

// notifyAndDrainLocked pushes one change notification and propagates it.
// Caller must hold s.mu.
func (s *ScenarioState) notifyAndDrainLocked(ctx context.Context, ref core.EntityRef) error {
	if err := s.masking.Notify(core.EntityChange{Ref: ref}); err != nil {
		return err
	}
	return s.masking.Drain(ctx)
}

// updateMetricsLocked pushes entity counts. Caller must hold s.mu.
func (s *ScenarioState) updateMetricsLocked() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetScenarioCounts(
		len(s.fleet.OrderIDs()),
		len(s.fleet.TruckIDs()),
		len(s.fleet.DroneIDs()),
		len(s.fleet.NodeIDs()),
		len(s.fleet.MicroHubIDs()),
	)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/model"
	"github.com/signalsfoundry/logistics-simulator/timectrl"
)

// TestIntegration_OrderDeliveryLifecycle drives a tiny end-to-end-style
// simulation: one truck delivers one order over a scripted sequence of
// ticks, and the validity mask is checked at each step of the lifecycle.
func TestIntegration_OrderDeliveryLifecycle(t *testing.T) {
	fleet := kb.NewFleetKB()

	for _, n := range []*model.Node{
		{ID: 1, Name: "depot", IsLoadable: true},
		{ID: 2, Name: "customer", Y: 3, IsLoadable: true},
	} {
		if err := fleet.AddNode(n); err != nil {
			t.Fatalf("AddNode error: %v", err)
		}
	}
	truck := &model.Truck{Vehicle: model.Vehicle{ID: 101, Status: model.TripIdle, Available: true, CurrentNodeID: 1, MaxPayload: 2}}
	if err := fleet.AddTruck(truck); err != nil {
		t.Fatalf("AddTruck error: %v", err)
	}
	if err := fleet.AddOrder(&model.Order{ID: 1001, PickupNodeID: 1, DeliveryNodeID: 2, Status: model.OrderPending}); err != nil {
		t.Fatalf("AddOrder error: %v", err)
	}

	catalog, err := core.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog error: %v", err)
	}
	masking, err := core.NewMaskingService(catalog, fleet, fleet)
	if err != nil {
		t.Fatalf("NewMaskingService error: %v", err)
	}
	sim := state.NewScenarioState(fleet, masking, logging.Noop())
	defer sim.Close()

	ctx := context.Background()
	if err := sim.Resync(ctx); err != nil {
		t.Fatalf("Resync error: %v", err)
	}

	mustIndex := func(kindName string, params ...int64) int {
		kind, ok := catalog.ByName(kindName)
		if !ok {
			t.Fatalf("kind %s not in catalog", kindName)
		}
		idx, ok := masking.ActionToIndex(core.MakeAction(kind.ID(), params...))
		if !ok {
			t.Fatalf("action %s%v not in space", kindName, params)
		}
		return idx
	}
	assign := mustIndex("assign_order_to_truck", 1001, 101)
	load := mustIndex("load_truck", 101, 1001)
	unload := mustIndex("unload_truck", 101, 1001)

	engine := core.NewSimulationEngine(masking)
	tc := timectrl.NewTimeController(time.Now().UTC(), time.Millisecond, timectrl.Accelerated)

	// The listener runs off the test goroutine, so failures are
	// collected and reported after the run finishes.
	var failures []error
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Errorf(format, args...))
	}
	stop := make(chan struct{})
	ticks := 0

	tc.AddListener(func(simTime time.Time) {
		ticks++
		if err := engine.Step(ctx, ticks); err != nil {
			fail("tick %d: Step error: %v", ticks, err)
			return
		}
		switch ticks {
		case 1:
			if _, err := sim.ValidateAction(assign); err != nil {
				fail("tick 1: assign should be valid: %v", err)
			}
			if err := sim.AssignOrder(ctx, 1001, 101); err != nil {
				fail("tick 1: AssignOrder error: %v", err)
			}
		case 2:
			if _, err := sim.ValidateAction(assign); !errors.Is(err, state.ErrActionForbidden) {
				fail("tick 2: assign after assignment: err = %v, want forbidden", err)
			}
			if _, err := sim.ValidateAction(load); err != nil {
				fail("tick 2: load at pickup should be valid: %v", err)
			}
			if err := sim.LoadCargo(ctx, 101, 1001); err != nil {
				fail("tick 2: LoadCargo error: %v", err)
			}
			if err := sim.SetOrderStatus(ctx, 1001, model.OrderInTransit); err != nil {
				fail("tick 2: SetOrderStatus error: %v", err)
			}
		case 3:
			if _, err := sim.ValidateAction(unload); !errors.Is(err, state.ErrActionForbidden) {
				fail("tick 3: unload away from delivery: err = %v, want forbidden", err)
			}
			if err := sim.SetVehicleNode(ctx, 101, 2); err != nil {
				fail("tick 3: SetVehicleNode error: %v", err)
			}
		case 4:
			if _, err := sim.ValidateAction(unload); err != nil {
				fail("tick 4: unload at delivery should be valid: %v", err)
			}
			if err := sim.UnloadCargo(ctx, 101, 1001); err != nil {
				fail("tick 4: UnloadCargo error: %v", err)
			}
			if err := sim.SetOrderStatus(ctx, 1001, model.OrderDelivered); err != nil {
				fail("tick 4: SetOrderStatus error: %v", err)
			}
		case 5:
			if _, err := sim.ValidateAction(unload); !errors.Is(err, state.ErrActionForbidden) {
				fail("tick 5: unload after delivery: err = %v, want forbidden", err)
			}
			close(stop)
		}
	})

	done := tc.Start(0, stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("simulation did not finish, reached tick %d", ticks)
	}

	for _, err := range failures {
		t.Errorf("%v", err)
	}
	if t.Failed() {
		t.FailNow()
	}

	if ticks < 5 {
		t.Fatalf("expected at least 5 ticks, got %d", ticks)
	}
	delivered, err := sim.Order(1001)
	if err != nil {
		t.Fatalf("Order error: %v", err)
	}
	if delivered.Status != model.OrderDelivered {
		t.Fatalf("order status = %s, want %s", delivered.Status, model.OrderDelivered)
	}
	if truck.Carrying(1001) {
		t.Fatalf("truck still carries order 1001 after delivery")
	}
}

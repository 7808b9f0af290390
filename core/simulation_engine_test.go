package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/logistics-simulator/model"
)

func TestEngineStepDrainsBeforeListeners(t *testing.T) {
	w := standardWorld()
	s := newService(t, w)
	ctx := context.Background()
	if err := s.Resync(ctx, w); err != nil {
		t.Fatalf("resync: %v", err)
	}

	kind, _ := s.Catalog().ByName(KindTruckToNode)
	move, _ := s.ActionToIndex(MakeAction(kind.ID(), 101, 2))

	w.trucks[101].Status = model.TripBrokenDown
	if err := s.Notify(EntityChange{Ref: EntityRef{Type: EntityTruck, ID: 101}}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	engine := NewSimulationEngine(s)
	var observedValid bool
	engine.RegisterTickListener(func(int) {
		observedValid = s.CurrentMask().At(move)
	})

	if err := engine.Step(ctx, 0); err != nil {
		t.Fatalf("step: %v", err)
	}
	if observedValid {
		t.Fatalf("listener observed a stale mask")
	}
}

func TestEngineRunInvokesListenersPerTick(t *testing.T) {
	w := standardWorld()
	s := newService(t, w)
	engine := NewSimulationEngine(s)

	var ticks []int
	engine.RegisterTickListener(func(tick int) { ticks = append(ticks, tick) })

	if err := engine.Run(context.Background(), 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ticks) != 3 || ticks[0] != 0 || ticks[2] != 2 {
		t.Fatalf("ticks = %v", ticks)
	}
}

func TestEngineStepSurfacesDrainError(t *testing.T) {
	w := standardWorld()
	s := newService(t, w)
	engine := NewSimulationEngine(s)

	// A notification for an entity the world cannot resolve fails during
	// the drain, and the step must report it.
	delete(w.trucks, 102)
	if err := s.Notify(EntityChange{Ref: EntityRef{Type: EntityTruck, ID: 102}}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := engine.Step(context.Background(), 0); err == nil {
		t.Fatalf("step swallowed the drain error")
	}
}

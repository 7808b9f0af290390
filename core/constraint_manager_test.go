package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/logistics-simulator/model"
)

type managerFixture struct {
	w     *testWorld
	c     *Catalog
	b     *SpaceBuilder
	store *MaskStore
	m     *ConstraintManager
}

func newManagerFixture(t *testing.T, w *testWorld) *managerFixture {
	t.Helper()
	c := mustCatalog()
	b, err := NewSpaceBuilder(c, w)
	if err != nil {
		t.Fatalf("build space: %v", err)
	}
	rs, err := NewRuleSet(c)
	if err != nil {
		t.Fatalf("build rules: %v", err)
	}

	noop := -1
	if kind, ok := c.ByName(KindNoOperation); ok {
		if idx, found := b.Space().IndexOf(MakeAction(kind.ID())); found {
			noop = idx
		}
	}
	store := NewMaskStore(b.Space().Size(), noop)
	return &managerFixture{
		w: w, c: c, b: b, store: store,
		m: NewConstraintManager(rs, w, c, b.Space(), b.Index(), store),
	}
}

func (f *managerFixture) index(t *testing.T, kindName string, params ...int64) int {
	t.Helper()
	kind, ok := f.c.ByName(kindName)
	if !ok {
		t.Fatalf("kind %s not in catalog", kindName)
	}
	idx, ok := f.b.Space().IndexOf(MakeAction(kind.ID(), params...))
	if !ok {
		t.Fatalf("action %s%v not in space", kindName, params)
	}
	return idx
}

func (f *managerFixture) process(t *testing.T, ref EntityRef) MaskUpdate {
	t.Helper()
	delta, err := f.m.Process(ref)
	if err != nil {
		t.Fatalf("process %s: %v", ref, err)
	}
	return delta
}

func TestManagerAllowsHealthyVehicleNeighborhood(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	delta := f.process(t, EntityRef{Type: EntityTruck, ID: 101})

	if delta.Forbid.Len() != 0 {
		t.Fatalf("first notification produced forbids: %v", delta.Forbid.Sorted())
	}
	for _, idx := range []int{
		f.index(t, KindTruckToNode, 101, 2),
		f.index(t, KindTruckToNode, 101, 3),
		f.index(t, KindFlagVehicleMaint, 101),
	} {
		if !delta.Allow.Has(idx) {
			t.Fatalf("index %d missing from allow delta", idx)
		}
	}
	// Moving to the current node stays forbidden.
	if delta.Allow.Has(f.index(t, KindTruckToNode, 101, 1)) {
		t.Fatalf("move to current node was allowed")
	}
}

func TestManagerSecondNotificationIsEmpty(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	ref := EntityRef{Type: EntityTruck, ID: 101}

	first := f.process(t, ref)
	if first.Empty() {
		t.Fatalf("first notification should carry changes")
	}
	second := f.process(t, ref)
	if !second.Empty() {
		t.Fatalf("unchanged entity produced a delta: allow %v forbid %v",
			second.Allow.Sorted(), second.Forbid.Sorted())
	}
}

func TestManagerCrossEntityBlockerIsNotResurrected(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	assign := f.index(t, KindAssignOrderToTruck, 1001, 102)
	accept := f.index(t, KindAcceptOrder, 1001)

	// Truck 102 is en route: its availability blocks the assignment.
	f.process(t, EntityRef{Type: EntityTruck, ID: 102})
	if got := f.m.BlockerCount(assign); got != 1 {
		t.Fatalf("blocker count = %d, want 1", got)
	}

	// The order is fine; its notification must not lift the truck's block.
	delta := f.process(t, EntityRef{Type: EntityOrder, ID: 1001})
	if delta.Allow.Has(assign) {
		t.Fatalf("blocked assignment resurrected by the order's notification")
	}
	if !delta.Allow.Has(accept) {
		t.Fatalf("accept_order should be allowed for a pending order")
	}

	// Once the truck recovers, its own notification lifts the block.
	f.w.trucks[102].Status = model.TripIdle
	f.w.trucks[102].CurrentNodeID = 2
	delta = f.process(t, EntityRef{Type: EntityTruck, ID: 102})
	if !delta.Allow.Has(assign) {
		t.Fatalf("assignment not released after the truck recovered")
	}
	if got := f.m.BlockerCount(assign); got != 0 {
		t.Fatalf("blocker count = %d after recovery, want 0", got)
	}
}

func TestManagerUnconstrainedKindsLeaveUnknownState(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	cancel := f.index(t, KindCancelOrder, 1001)

	if valid, _ := f.store.Get(cancel); valid {
		t.Fatalf("unnotified action started valid")
	}
	delta := f.process(t, EntityRef{Type: EntityOrder, ID: 1001})
	if !delta.Allow.Has(cancel) {
		t.Fatalf("constraint-free kind not released on first notification")
	}
	for _, lvl := range PriorityLevels {
		if !delta.Allow.Has(f.index(t, KindPrioritizeOrder, 1001, lvl)) {
			t.Fatalf("prioritize at level %d not released", lvl)
		}
	}
}

func TestManagerOrderNotificationCoversRouteActions(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	openRoute := f.index(t, KindConsolidateRoute, 1, 2)
	deadRoute := f.index(t, KindConsolidateRoute, 1, 3)

	delta := f.process(t, EntityRef{Type: EntityOrder, ID: 1001})
	if !delta.Allow.Has(openRoute) {
		t.Fatalf("route with a pending order not released")
	}

	f.process(t, EntityRef{Type: EntityOrder, ID: 1002})
	if valid, _ := f.store.Get(deadRoute); valid {
		t.Fatalf("route of a delivered order became valid")
	}
	if got := f.m.BlockerCount(deadRoute); got != 1 {
		t.Fatalf("dead route blocker count = %d, want 1", got)
	}
}

func TestManagerForbidsOnStateRegression(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	move := f.index(t, KindTruckToNode, 101, 2)

	f.process(t, EntityRef{Type: EntityTruck, ID: 101})
	if valid, _ := f.store.Get(move); !valid {
		t.Fatalf("move not valid for a healthy truck")
	}

	f.w.trucks[101].Status = model.TripBrokenDown
	delta := f.process(t, EntityRef{Type: EntityTruck, ID: 101})
	if !delta.Forbid.Has(move) {
		t.Fatalf("breakdown did not forbid the move")
	}
	if delta.Allow.Has(move) {
		t.Fatalf("delta allows and forbids the same index")
	}
}

func TestManagerRespectsPermanentDisable(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	move := f.index(t, KindTruckToNode, 101, 2)
	f.store.DisablePermanently(NewIndexSet(move))

	delta := f.process(t, EntityRef{Type: EntityTruck, ID: 101})
	if delta.Allow.Has(move) {
		t.Fatalf("permanently disabled index appeared in an allow delta")
	}
	if valid, _ := f.store.Get(move); valid {
		t.Fatalf("permanently disabled index became valid")
	}
}

func TestManagerUnknownEntityFails(t *testing.T) {
	f := newManagerFixture(t, standardWorld())
	// The ref must have a non-empty neighborhood for rules to run, so use
	// a real truck's ID after removing it from the world.
	delete(f.w.trucks, 102)
	_, err := f.m.Process(EntityRef{Type: EntityTruck, ID: 102})
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("err = %v, want ErrUnknownEntity", err)
	}
}

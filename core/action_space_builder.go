// core/action_space_builder.go
package core

import (
	"fmt"
	"sort"
)

// Population supplies the live entity IDs the builder expands schemas
// against. Implementations must return deterministic (sorted) slices.
type Population interface {
	OrderIDs() []int64
	TruckIDs() []int64
	DroneIDs() []int64
	NodeIDs() []int64
	MicroHubIDs() []int64
}

// SpaceBuilder expands a catalog against a population into the dense
// action bijection and its reverse index, and grows both incrementally
// as entities register mid-episode.
type SpaceBuilder struct {
	catalog *Catalog
	space   *ActionSpace
	index   *ActionIndex

	// domains holds the current value domain per entity-backed parameter
	// type. Node pairs are kept packed.
	domains map[ParamType][]int64

	// vehicleTypes resolves vehicle-union parameter values to their
	// concrete entity type.
	vehicleTypes map[int64]EntityType
}

// NewSpaceBuilder builds the initial action space from the population.
// Kinds whose parameter domains are empty contribute zero actions; they
// are revisited when growth gives the domain its first member.
func NewSpaceBuilder(catalog *Catalog, pop Population) (*SpaceBuilder, error) {
	b := &SpaceBuilder{
		catalog:      catalog,
		space:        NewActionSpace(),
		index:        NewActionIndex(),
		domains:      make(map[ParamType][]int64),
		vehicleTypes: make(map[int64]EntityType),
	}

	orders := sortedCopy(pop.OrderIDs())
	trucks := sortedCopy(pop.TruckIDs())
	drones := sortedCopy(pop.DroneIDs())
	nodes := sortedCopy(pop.NodeIDs())
	hubs := sortedCopy(pop.MicroHubIDs())

	b.domains[ParamOrder] = orders
	b.domains[ParamTruck] = trucks
	b.domains[ParamDrone] = drones
	b.domains[ParamNode] = nodes
	b.domains[ParamMicroHub] = hubs

	vehicles := make([]int64, 0, len(trucks)+len(drones))
	vehicles = append(vehicles, trucks...)
	vehicles = append(vehicles, drones...)
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i] < vehicles[j] })
	b.domains[ParamVehicle] = vehicles
	for _, id := range trucks {
		b.vehicleTypes[id] = EntityTruck
	}
	for _, id := range drones {
		b.vehicleTypes[id] = EntityDrone
	}

	pairs := make([]int64, 0, len(nodes)*(len(nodes)-1))
	for _, p := range nodes {
		for _, d := range nodes {
			if p != d {
				pairs = append(pairs, PackNodePair(p, d))
			}
		}
	}
	b.domains[ParamNodePair] = pairs

	for _, kind := range catalog.All() {
		if _, err := b.emitAll(kind); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Space returns the bijection the builder populates.
func (b *SpaceBuilder) Space() *ActionSpace { return b.space }

// Index returns the reverse index the builder populates.
func (b *SpaceBuilder) Index() *ActionIndex { return b.index }

// ResolveVehicle reports the concrete type behind a vehicle-union ID.
func (b *SpaceBuilder) ResolveVehicle(id int64) (EntityType, bool) {
	t, ok := b.vehicleTypes[id]
	return t, ok
}

// AddEntity extends the space with exactly the combinations the new
// entity introduces. Work is proportional to the new combinations, never
// to the current space size. It returns the newly issued indices in
// emission order.
func (b *SpaceBuilder) AddEntity(t EntityType, id int64) ([]int, error) {
	added := make(map[ParamType][]int64)

	switch t {
	case EntityOrder:
		added[ParamOrder] = []int64{id}
	case EntityTruck:
		added[ParamTruck] = []int64{id}
		added[ParamVehicle] = []int64{id}
	case EntityDrone:
		added[ParamDrone] = []int64{id}
		added[ParamVehicle] = []int64{id}
	case EntityMicroHub:
		added[ParamMicroHub] = []int64{id}
	case EntityNode:
		added[ParamNode] = []int64{id}
		oldNodes := b.domains[ParamNode]
		pairs := make([]int64, 0, 2*len(oldNodes))
		for _, other := range oldNodes {
			pairs = append(pairs, PackNodePair(id, other))
		}
		for _, other := range oldNodes {
			pairs = append(pairs, PackNodePair(other, id))
		}
		added[ParamNodePair] = pairs
	default:
		return nil, fmt.Errorf("add entity %s/%d: unsupported entity type", t, id)
	}

	// Trucks and drones share the vehicle ID namespace, so their
	// duplicate check covers the union domain, not just their own.
	primary := map[EntityType]ParamType{
		EntityOrder: ParamOrder, EntityTruck: ParamVehicle, EntityDrone: ParamVehicle,
		EntityNode: ParamNode, EntityMicroHub: ParamMicroHub,
	}[t]
	if containsAny(b.domains[primary], id) {
		return nil, fmt.Errorf("add entity %s/%d: already present in domain", t, id)
	}
	// The resolver entry is registered only after the duplicate check,
	// so a rejected add leaves no stale entry. It must precede emission,
	// which indexes the new actions through ResolveVehicle.
	switch t {
	case EntityTruck, EntityDrone:
		b.vehicleTypes[id] = t
	}

	old := make(map[ParamType][]int64, len(added))
	for pt := range added {
		old[pt] = b.domains[pt]
	}
	for pt, vals := range added {
		b.domains[pt] = append(b.domains[pt], vals...)
	}

	var newIndices []int
	for _, kind := range b.catalog.All() {
		var issued []int
		var err error
		if b.index.KindCount(kind.ID()) == 0 {
			// The kind emitted nothing at build time (some domain was
			// empty). Now that the domain may have its first member,
			// enumerate the full product; it is still empty if any other
			// domain remains empty.
			issued, err = b.emitAll(kind)
		} else if kindReferences(kind, added) {
			issued, err = b.emitNewCombos(kind, old, added)
		}
		if err != nil {
			return nil, fmt.Errorf("grow %s for %s/%d: %w", kind.Name(), t, id, err)
		}
		newIndices = append(newIndices, issued...)
	}
	return newIndices, nil
}

// emitAll enumerates the full cartesian product for a kind against the
// current domains. Kinds with an empty domain contribute nothing.
func (b *SpaceBuilder) emitAll(kind *ActionKind) ([]int, error) {
	domains := make([][]int64, len(kind.Params()))
	for i, p := range kind.Params() {
		d := b.domainOf(p)
		if len(d) == 0 {
			return nil, nil
		}
		domains[i] = d
	}
	return b.emitProduct(kind, domains)
}

// emitNewCombos enumerates only the combinations that contain at least
// one newly added value. For each parameter position bound to an
// affected type, positions to the left use the old domain and positions
// to the right use the grown domain, so the union over positions is
// disjoint and complete.
func (b *SpaceBuilder) emitNewCombos(kind *ActionKind, old, added map[ParamType][]int64) ([]int, error) {
	params := kind.Params()
	var out []int
	for j, pj := range params {
		addedVals, affected := added[pj.Type]
		if !affected {
			continue
		}
		domains := make([][]int64, len(params))
		empty := false
		for i, pi := range params {
			switch {
			case i == j:
				domains[i] = addedVals
			case i < j:
				if prior, wasAffected := old[pi.Type]; wasAffected {
					domains[i] = prior
				} else {
					domains[i] = b.domainOf(pi)
				}
			default:
				domains[i] = b.domainOf(pi)
			}
			if len(domains[i]) == 0 {
				empty = true
			}
		}
		if empty {
			continue
		}
		issued, err := b.emitProduct(kind, domains)
		if err != nil {
			return nil, err
		}
		out = append(out, issued...)
	}
	return out, nil
}

// emitProduct walks the cartesian product of the per-parameter domains
// in odometer order, appending and indexing one concrete action per
// combination.
func (b *SpaceBuilder) emitProduct(kind *ActionKind, domains [][]int64) ([]int, error) {
	params := kind.Params()
	cursor := make([]int, len(domains))
	slots := make([]int64, 0, maxActionSlots)
	var out []int

	for {
		slots = slots[:0]
		for i, p := range params {
			v := domains[i][cursor[i]]
			if p.Type == ParamNodePair {
				pickup, delivery := UnpackNodePair(v)
				slots = append(slots, pickup, delivery)
			} else {
				slots = append(slots, v)
			}
		}
		a := MakeAction(kind.ID(), slots...)
		idx, err := b.space.Append(a)
		if err != nil {
			return nil, err
		}
		if err := b.index.IndexOne(kind, a, idx, b.ResolveVehicle); err != nil {
			return nil, err
		}
		out = append(out, idx)

		// advance odometer, least significant position last
		pos := len(cursor) - 1
		for pos >= 0 {
			cursor[pos]++
			if cursor[pos] < len(domains[pos]) {
				break
			}
			cursor[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out, nil
}

func (b *SpaceBuilder) domainOf(p ParamSpec) []int64 {
	if p.Type == ParamLiteral {
		return p.Literals
	}
	return b.domains[p.Type]
}

func kindReferences(kind *ActionKind, added map[ParamType][]int64) bool {
	for _, p := range kind.Params() {
		if _, ok := added[p.Type]; ok {
			return true
		}
	}
	return false
}

func sortedCopy(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containsAny(domain []int64, v int64) bool {
	for _, d := range domain {
		if d == v {
			return true
		}
	}
	return false
}

// core/action_catalog.go
package core

import "fmt"

// Catalog is the write-once registry of action kinds. It is built
// explicitly at startup and injected where needed; there is no package
// level singleton.
type Catalog struct {
	kinds  []*ActionKind
	byName map[string]*ActionKind
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*ActionKind)}
}

// Register adds a kind to the catalog. Registration order is the
// canonical kind order: two catalogs registered identically produce
// identical action spaces for the same population.
func (c *Catalog) Register(name string, params []ParamSpec, automatic bool, handler string, constraints []RuleName) (*ActionKind, error) {
	if name == "" {
		return nil, fmt.Errorf("register action kind: empty name")
	}
	if _, exists := c.byName[name]; exists {
		return nil, fmt.Errorf("register action kind %q: %w", name, ErrDuplicateKind)
	}

	slots := 0
	for _, p := range params {
		switch p.Type {
		case ParamOrder, ParamTruck, ParamDrone, ParamVehicle, ParamNode, ParamMicroHub, ParamNodePair:
		case ParamLiteral:
			if len(p.Literals) == 0 {
				return nil, fmt.Errorf("register action kind %q: literal parameter %q has no values", name, p.Name)
			}
		default:
			return nil, fmt.Errorf("register action kind %q, parameter %q: %w", name, p.Name, ErrUnknownParamType)
		}
		slots += p.Type.slots()
	}
	if slots > maxActionSlots {
		return nil, fmt.Errorf("register action kind %q: %d parameter slots exceeds limit %d", name, slots, maxActionSlots)
	}

	kind := &ActionKind{
		id:          KindID(len(c.kinds)),
		name:        name,
		params:      append([]ParamSpec(nil), params...),
		automatic:   automatic,
		handler:     handler,
		constraints: append([]RuleName(nil), constraints...),
	}
	c.kinds = append(c.kinds, kind)
	c.byName[name] = kind
	return kind, nil
}

// All returns every kind in registration order.
func (c *Catalog) All() []*ActionKind {
	return c.kinds
}

// Len returns the number of registered kinds.
func (c *Catalog) Len() int { return len(c.kinds) }

// ByName looks a kind up by its registered name.
func (c *Catalog) ByName(name string) (*ActionKind, bool) {
	k, ok := c.byName[name]
	return k, ok
}

// ByID looks a kind up by its dense identifier.
func (c *Catalog) ByID(id KindID) (*ActionKind, bool) {
	if id < 0 || int(id) >= len(c.kinds) {
		return nil, false
	}
	return c.kinds[id], true
}

// ByHandler returns the kinds routed to the named handler, in
// registration order. This is a read filter for the dispatcher; masking
// never consults it.
func (c *Catalog) ByHandler(handler string) []*ActionKind {
	var out []*ActionKind
	for _, k := range c.kinds {
		if k.handler == handler {
			out = append(out, k)
		}
	}
	return out
}

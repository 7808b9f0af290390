// core/masking_service.go
package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
)

// EntityChange is the typed message entities push when an observable
// attribute used by any constraint changes.
type EntityChange struct {
	Ref EntityRef
}

// MaskingMetricsRecorder receives masking statistics. Implementations
// live in internal/observability; a nil recorder disables recording.
type MaskingMetricsRecorder interface {
	SetActionSpace(size, valid int)
	ObserveNotification(entityType string, deltaSize int)
	AddGrowth(actions int)
}

// MaskingServiceOption customises MaskingService construction.
type MaskingServiceOption func(*MaskingService)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) MaskingServiceOption {
	return func(s *MaskingService) { s.log = log }
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MaskingMetricsRecorder) MaskingServiceOption {
	return func(s *MaskingService) { s.metrics = m }
}

// WithDisabledKinds marks kinds as structurally inactive for this
// scenario; their indices join the permanent-disable set and can never
// be unmasked.
func WithDisabledKinds(names ...string) MaskingServiceOption {
	return func(s *MaskingService) { s.disabledKinds = names }
}

// WithQueueCapacity sizes the notification queue.
func WithQueueCapacity(n int) MaskingServiceOption {
	return func(s *MaskingService) {
		if n > 0 {
			s.queueCap = n
		}
	}
}

// MaskingService is the facade over the action-masking core: it owns
// the bijection, the reverse index, the rule set, the constraint
// manager, and the mask store, and exposes the read surface the
// simulation and agent layers consume.
//
// The service is single-writer. Entities push typed change messages via
// Notify; the owning step loop drains them synchronously, so a
// mutate -> notify -> propagate cycle completes before the next
// mutation begins. Snapshot reads are safe between cycles.
type MaskingService struct {
	catalog *Catalog
	world   WorldView
	builder *SpaceBuilder
	space   *ActionSpace
	index   *ActionIndex
	rules   *RuleSet
	manager *ConstraintManager
	store   *MaskStore

	noop int

	log           logging.Logger
	metrics       MaskingMetricsRecorder
	disabledKinds []string
	queueCap      int
	pending       chan EntityChange
}

// NewMaskingService builds the action space from the population,
// derives the jurisdiction tables, and initializes the mask: every
// index False except the no-op bit, with the permanent-disable set
// applied. Scenario 0 of any episode is exactly this state.
func NewMaskingService(catalog *Catalog, world WorldView, pop Population, opts ...MaskingServiceOption) (*MaskingService, error) {
	s := &MaskingService{
		catalog:  catalog,
		world:    world,
		log:      logging.Noop(),
		queueCap: 1024,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	builder, err := NewSpaceBuilder(catalog, pop)
	if err != nil {
		return nil, fmt.Errorf("build action space: %w", err)
	}
	s.builder = builder
	s.space = builder.Space()
	s.index = builder.Index()

	rules, err := NewRuleSet(catalog)
	if err != nil {
		return nil, fmt.Errorf("build rule set: %w", err)
	}
	s.rules = rules

	s.noop = -1
	if noopKind, ok := catalog.ByName(KindNoOperation); ok {
		if idx, ok := s.space.IndexOf(MakeAction(noopKind.ID())); ok {
			s.noop = idx
		}
	}
	s.store = NewMaskStore(s.space.Size(), s.noop)

	if len(s.disabledKinds) > 0 {
		disabled := make(IndexSet)
		for _, name := range s.disabledKinds {
			kind, ok := catalog.ByName(name)
			if !ok {
				return nil, fmt.Errorf("disabled kind %q: %w", name, ErrUnknownKind)
			}
			disabled.AddAll(s.index.ActionsOfKinds(kind.ID()))
		}
		s.store.DisablePermanently(disabled)
	}

	s.manager = NewConstraintManager(rules, world, catalog, s.space, s.index, s.store)
	s.pending = make(chan EntityChange, s.queueCap)

	if s.metrics != nil {
		s.metrics.SetActionSpace(s.space.Size(), s.store.ValidCount())
	}
	return s, nil
}

// Catalog returns the injected action catalog.
func (s *MaskingService) Catalog() *Catalog { return s.catalog }

// NoOpIndex returns the permanently valid no-operation index, or -1.
func (s *MaskingService) NoOpIndex() int { return s.noop }

// ActionSpaceSize returns the current size of the bijection.
func (s *MaskingService) ActionSpaceSize() int { return s.space.Size() }

// CurrentMask returns a read-only view of the validity mask, aligned
// index-for-index with the bijection.
func (s *MaskingService) CurrentMask() Mask { return s.store.Snapshot() }

// IndexToAction resolves an index; ok is false past the current size.
func (s *MaskingService) IndexToAction(i int) (ConcreteAction, bool) {
	return s.space.At(i)
}

// ActionToIndex resolves a concrete action to its index.
func (s *MaskingService) ActionToIndex(a ConcreteAction) (int, bool) {
	return s.space.IndexOf(a)
}

// ActionsOfEntity exposes the reverse index's entity lookup.
func (s *MaskingService) ActionsOfEntity(key EntityKey) IndexSet {
	return s.index.ActionsOfEntity(key)
}

// Notify enqueues one entity change message. It never blocks; a full
// queue means the step loop is not draining and is reported as an error.
func (s *MaskingService) Notify(change EntityChange) error {
	select {
	case s.pending <- change:
		return nil
	default:
		return fmt.Errorf("notification queue full (capacity %d), dropping %s", s.queueCap, change.Ref)
	}
}

// PendingCount returns the number of queued, unprocessed notifications.
func (s *MaskingService) PendingCount() int { return len(s.pending) }

// Drain synchronously processes every queued change message. The caller
// guarantees no entity mutation is in flight while draining.
func (s *MaskingService) Drain(ctx context.Context) error {
	for {
		select {
		case change := <-s.pending:
			if err := s.HandleEntityChanged(ctx, change.Ref); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// HandleEntityChanged runs one notification through the constraint
// manager and records the resulting delta.
func (s *MaskingService) HandleEntityChanged(ctx context.Context, ref EntityRef) error {
	delta, err := s.manager.Process(ref)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveNotification(ref.Type.String(), delta.Forbid.Len()+delta.Allow.Len())
		s.metrics.SetActionSpace(s.space.Size(), s.store.ValidCount())
	}
	if !delta.Empty() {
		s.log.Debug(ctx, "mask delta applied",
			logging.String("entity", ref.String()),
			logging.Int("forbid", delta.Forbid.Len()),
			logging.Int("allow", delta.Allow.Len()),
		)
	}
	return nil
}

// HandleEntityRegistered grows the action space with exactly the
// combinations the new entity introduces. New indices start False until
// the entity's first change notification.
func (s *MaskingService) HandleEntityRegistered(ctx context.Context, t EntityType, id int64) (int, error) {
	newIndices, err := s.builder.AddEntity(t, id)
	if err != nil {
		return 0, err
	}
	if err := s.store.Grow(s.space.Size()); err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.AddGrowth(len(newIndices))
		s.metrics.SetActionSpace(s.space.Size(), s.store.ValidCount())
	}
	s.log.Info(ctx, "action space grown",
		logging.String("entity", EntityRef{Type: t, ID: id}.String()),
		logging.Int("new_actions", len(newIndices)),
		logging.Int("size", s.space.Size()),
	)
	return len(newIndices), nil
}

// Resync pushes one change notification for every entity in the
// population, bringing a freshly built mask in line with current entity
// state. Scenario resets call this once after loading.
func (s *MaskingService) Resync(ctx context.Context, pop Population) error {
	notify := func(t EntityType, ids []int64) error {
		for _, id := range ids {
			if err := s.HandleEntityChanged(ctx, EntityRef{Type: t, ID: id}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := notify(EntityOrder, pop.OrderIDs()); err != nil {
		return err
	}
	if err := notify(EntityTruck, pop.TruckIDs()); err != nil {
		return err
	}
	if err := notify(EntityDrone, pop.DroneIDs()); err != nil {
		return err
	}
	return notify(EntityMicroHub, pop.MicroHubIDs())
}

// Manager exposes the constraint manager for white-box tests.
func (s *MaskingService) Manager() *ConstraintManager { return s.manager }

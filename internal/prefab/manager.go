// Package prefab multiplexes instance pools by template.
//
// A Manager owns one pool.Pool per template and remembers, for every entity
// its pools build, which template produced it, so Despawn only needs the
// entity. Managers are explicit values: create one per scene or subsystem.
// Like the pools underneath, a Manager must only be used from one goroutine.
package prefab

import (
	"errors"
	"fmt"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
	"github.com/l1jgo/spawnpool/internal/core/event"
	"github.com/l1jgo/spawnpool/internal/pool"
	"go.uber.org/zap"
)

// Entity is a live scene instance addressable by a stable handle.
type Entity interface {
	EntityID() ecs.EntityID
}

// Host is the engine collaborator that builds and toggles entities.
// Alive reports whether the instance's handle still refers to a live entity.
type Host[K comparable, T Entity] interface {
	CreateInstance(template K) (T, error)
	Alive(instance T) bool
	Activate(instance T)
	Deactivate(instance T)
	ApplyPlacement(instance T, at pool.Placement)
}

// binding is recorded when an instance is built and lives as long as the
// manager owns the instance. active is false while it sits in a reservoir.
type binding[K comparable] struct {
	template K
	active   bool
}

// Manager is the template-keyed pool registry. K is compared by ==, so it
// must carry identity (a pointer or a handle): two templates with equal
// contents but different identity get different pools.
type Manager[K comparable, T Entity] struct {
	host     Host[K, T]
	pools    map[K]*pool.Pool[T]
	bindings map[ecs.EntityID]binding[K]
	active   int
	queue    []T

	capacity int
	bus      *event.Bus
	log      *zap.Logger
}

type options struct {
	log      *zap.Logger
	bus      *event.Bus
	capacity int
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithBus makes the manager emit PoolCreated, InstanceSpawned and
// InstanceDespawned events.
func WithBus(bus *event.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithInitialCapacity presizes each new pool's reservoir.
func WithInitialCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func NewManager[K comparable, T Entity](host Host[K, T], opts ...Option) *Manager[K, T] {
	o := options{capacity: 16}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return &Manager[K, T]{
		host:     host,
		pools:    make(map[K]*pool.Pool[T]),
		bindings: make(map[ecs.EntityID]binding[K], 256),
		queue:    make([]T, 0, 64),
		capacity: o.capacity,
		bus:      o.bus,
		log:      o.log,
	}
}

// GetPool returns the pool for template, creating it on first use.
func (m *Manager[K, T]) GetPool(template K) *pool.Pool[T] {
	if p, ok := m.pools[template]; ok {
		return p
	}
	p := pool.NewWithCapacity(
		func() (T, error) {
			inst, err := m.host.CreateInstance(template)
			if err != nil {
				return inst, err
			}
			m.bindings[inst.EntityID()] = binding[K]{template: template}
			return inst, nil
		},
		pool.Hooks[T]{
			Activate:   m.host.Activate,
			Deactivate: m.host.Deactivate,
			Place:      m.host.ApplyPlacement,
		},
		m.capacity,
	)
	m.pools[template] = p
	m.log.Debug("pool created", zap.Any("template", template), zap.Int("pools", len(m.pools)))
	event.Emit(m.bus, event.PoolCreated{Template: template})
	return p
}

// Spawn hands out an instance of template, reusing a despawned one when the
// template's reservoir is not empty.
func (m *Manager[K, T]) Spawn(template K) (T, error) {
	return m.spawn(template, nil)
}

// SpawnAt is Spawn with a scene placement applied before activation.
func (m *Manager[K, T]) SpawnAt(template K, at pool.Placement) (T, error) {
	return m.spawn(template, &at)
}

func (m *Manager[K, T]) spawn(template K, at *pool.Placement) (T, error) {
	p := m.GetPool(template)
	reused := p.Reuses()

	var (
		inst T
		err  error
	)
	if at != nil {
		inst, err = p.SpawnAt(*at)
	} else {
		inst, err = p.Spawn()
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("spawn %v: %w", template, err)
	}

	id := inst.EntityID()
	m.bindings[id] = binding[K]{template: template, active: true}
	m.active++
	event.Emit(m.bus, event.InstanceSpawned{EntityID: id, Template: template, Reused: reused})
	return inst, nil
}

// Despawn returns instance to its template's reservoir. The argument is
// untyped so callers holding arbitrary scene objects get a checked error
// instead of a silent no-op; on any error no pool is touched.
func (m *Manager[K, T]) Despawn(instance any) error {
	if _, ok := instance.(pool.Poolable); !ok {
		m.log.Warn("despawn rejected: not poolable", zap.String("type", fmt.Sprintf("%T", instance)))
		return fmt.Errorf("%w: %T does not implement pool.Poolable", ErrInvalidOperation, instance)
	}
	inst, ok := instance.(T)
	if !ok {
		m.log.Warn("despawn rejected: foreign entity kind", zap.String("type", fmt.Sprintf("%T", instance)))
		return fmt.Errorf("%w: %T is not a managed entity kind", ErrInvalidOperation, instance)
	}

	id := inst.EntityID()
	b, ok := m.bindings[id]
	if !ok {
		m.log.Warn("despawn rejected: untracked entity", zap.Uint64("entity", uint64(id)))
		return fmt.Errorf("%w: entity %d", ErrUntracked, id)
	}
	if !m.host.Alive(inst) {
		// destroyed behind the manager's back; forget it so it never re-enters a reservoir
		delete(m.bindings, id)
		if b.active {
			m.active--
		}
		m.log.Warn("despawn rejected: entity destroyed", zap.Uint64("entity", uint64(id)))
		return fmt.Errorf("%w: entity %d is no longer alive", ErrInvalidOperation, id)
	}
	if !b.active {
		m.log.Warn("despawn rejected: double despawn", zap.Uint64("entity", uint64(id)))
		return fmt.Errorf("%w: entity %d", ErrAlreadyDespawned, id)
	}

	b.active = false
	m.bindings[id] = b
	m.active--
	m.pools[b.template].Despawn(inst)
	event.Emit(m.bus, event.InstanceDespawned{EntityID: id, Template: b.template})
	return nil
}

// MarkForDespawn queues instance for FlushDespawnQueue. Systems iterating
// scene stores use this so the stores are not modified mid-iteration.
func (m *Manager[K, T]) MarkForDespawn(instance T) {
	m.queue = append(m.queue, instance)
}

// FlushDespawnQueue despawns every queued instance and returns the joined
// errors of the ones that failed.
func (m *Manager[K, T]) FlushDespawnQueue() error {
	var errs []error
	for i, inst := range m.queue {
		if err := m.Despawn(inst); err != nil {
			errs = append(errs, err)
		}
		var zero T
		m.queue[i] = zero
	}
	m.queue = m.queue[:0]
	return errors.Join(errs...)
}

// Owns reports whether instance was built by one of this manager's pools,
// whether it is spawned or waiting in a reservoir.
func (m *Manager[K, T]) Owns(instance T) bool {
	_, ok := m.bindings[instance.EntityID()]
	return ok
}

// Release hands a spawned instance over to the caller for good: the manager
// forgets it and the host may destroy it. Instances waiting in a reservoir
// cannot be released.
func (m *Manager[K, T]) Release(instance T) error {
	id := instance.EntityID()
	b, ok := m.bindings[id]
	if !ok {
		return fmt.Errorf("%w: entity %d", ErrUntracked, id)
	}
	if !b.active {
		return fmt.Errorf("release: %w: entity %d", ErrAlreadyDespawned, id)
	}
	delete(m.bindings, id)
	m.active--
	m.log.Debug("instance released", zap.Any("template", b.template), zap.Uint64("entity", uint64(id)))
	return nil
}

// GetPrefab reports the template that produced instance while it is spawned.
func (m *Manager[K, T]) GetPrefab(instance T) (K, bool) {
	b, ok := m.bindings[instance.EntityID()]
	if !ok || !b.active {
		var zero K
		return zero, false
	}
	return b.template, true
}

// Prewarm fills template's reservoir with n inactive instances.
func (m *Manager[K, T]) Prewarm(template K, n int) error {
	if err := m.GetPool(template).Prewarm(n); err != nil {
		return fmt.Errorf("prewarm %v: %w", template, err)
	}
	m.log.Debug("pool prewarmed", zap.Any("template", template), zap.Int("count", n))
	return nil
}

// EachPool visits every pool in unspecified order.
func (m *Manager[K, T]) EachPool(fn func(K, *pool.Pool[T])) {
	for k, p := range m.pools {
		fn(k, p)
	}
}

// Len returns the number of pools.
func (m *Manager[K, T]) Len() int { return len(m.pools) }

// Active returns the number of spawned, not yet despawned instances.
func (m *Manager[K, T]) Active() int { return m.active }

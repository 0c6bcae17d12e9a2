// Package pool implements a single-kind instance reservoir.
//
// A Pool never destroys what it creates: instances cycle between the caller
// and the reservoir forever. Reuse is LIFO so the most recently despawned
// (warmest) instance is handed out first. Pools are not safe for concurrent
// use; they are meant to be driven from the game loop goroutine.
package pool

import "fmt"

// Factory builds a brand-new instance when the reservoir is empty.
type Factory[T any] func() (T, error)

// Hooks are the host callbacks a Pool drives. Every field is optional.
type Hooks[T any] struct {
	Activate   func(T)            // reused instance re-enters the scene
	Deactivate func(T)            // instance leaves the scene on despawn/prewarm
	Place      func(T, Placement) // applied before activation by SpawnAt
}

// Stats are cumulative counters for one pool.
type Stats struct {
	Created   int // cold creations on spawn (reservoir was empty)
	Prewarmed int // creations by Prewarm
	Reused    int // spawns served from the reservoir
	Despawned int
	Available int // current reservoir size
}

// Total returns every instance this pool has ever built.
func (s Stats) Total() int { return s.Created + s.Prewarmed }

// Active returns instances currently handed out.
func (s Stats) Active() int { return s.Total() - s.Available }

type Pool[T any] struct {
	available []T
	factory   Factory[T]
	hooks     Hooks[T]
	notify    notifyMode
	stats     Stats
}

func New[T any](factory Factory[T], hooks Hooks[T]) *Pool[T] {
	return NewWithCapacity(factory, hooks, 0)
}

// NewWithCapacity preallocates room for capacity reservoir entries.
func NewWithCapacity[T any](factory Factory[T], hooks Hooks[T], capacity int) *Pool[T] {
	if factory == nil {
		panic("pool: nil factory")
	}
	return &Pool[T]{
		available: make([]T, 0, capacity),
		factory:   factory,
		hooks:     hooks,
		notify:    notifyModeFor[T](),
	}
}

// Spawn returns a reused or newly created instance. A factory error is
// returned wrapped and the reservoir is left unchanged.
func (p *Pool[T]) Spawn() (T, error) {
	return p.spawn(nil)
}

// SpawnAt is Spawn with the placement applied before activation.
func (p *Pool[T]) SpawnAt(at Placement) (T, error) {
	return p.spawn(&at)
}

// Reuses reports whether the next Spawn will come from the reservoir.
func (p *Pool[T]) Reuses() bool {
	return len(p.available) > 0
}

func (p *Pool[T]) spawn(at *Placement) (T, error) {
	var v T
	if n := len(p.available); n > 0 {
		v = p.available[n-1]
		var zero T
		p.available[n-1] = zero
		p.available = p.available[:n-1]
		p.place(v, at)
		if p.hooks.Activate != nil {
			p.hooks.Activate(v)
		}
		p.stats.Reused++
	} else {
		var err error
		v, err = p.factory()
		if err != nil {
			var zero T
			return zero, fmt.Errorf("pool factory: %w", err)
		}
		p.place(v, at)
		p.stats.Created++
	}
	if ps, ok := p.poolable(v); ok {
		ps.OnSpawn()
	}
	return v, nil
}

func (p *Pool[T]) place(v T, at *Placement) {
	if at != nil && p.hooks.Place != nil {
		p.hooks.Place(v, *at)
	}
}

// Despawn returns v to the reservoir. v must have come from this pool (or be
// an equivalent instance of the same kind) and must not already be in the
// reservoir; neither is checked here.
func (p *Pool[T]) Despawn(v T) {
	if ps, ok := p.poolable(v); ok {
		ps.OnDespawn()
	}
	if p.hooks.Deactivate != nil {
		p.hooks.Deactivate(v)
	}
	p.available = append(p.available, v)
	p.stats.Despawned++
}

// Prewarm builds n instances ahead of demand and parks them, inactive, in
// the reservoir. No Poolable notifications fire. Stops at the first factory
// error; instances built before it are kept.
func (p *Pool[T]) Prewarm(n int) error {
	for i := 0; i < n; i++ {
		v, err := p.factory()
		if err != nil {
			return fmt.Errorf("pool prewarm %d/%d: %w", i+1, n, err)
		}
		if p.hooks.Deactivate != nil {
			p.hooks.Deactivate(v)
		}
		p.available = append(p.available, v)
		p.stats.Prewarmed++
	}
	return nil
}

func (p *Pool[T]) Available() int {
	return len(p.available)
}

func (p *Pool[T]) Stats() Stats {
	s := p.stats
	s.Available = len(p.available)
	return s
}

func (p *Pool[T]) poolable(v T) (Poolable, bool) {
	switch p.notify {
	case notifyAlways:
		return any(v).(Poolable), true
	case notifyDynamic:
		ps, ok := any(v).(Poolable)
		return ps, ok
	}
	return nil, false
}

package ecs

// World is the top-level ECS container. It owns the handle allocator, the
// store registry, and a deferred destruction queue flushed by CleanupSystem
// at the end of each tick.
type World struct {
	alloc        *Allocator
	stores       []Removable
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		alloc:        NewAllocator(),
		stores:       make([]Removable, 0, 8),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

// Register adds a component store so destroyed entities are cleared from it.
func (w *World) Register(store Removable) {
	w.stores = append(w.stores, store)
}

func (w *World) CreateEntity() EntityID {
	return w.alloc.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.alloc.Alive(id)
}

// Live returns the number of entities not yet destroyed.
func (w *World) Live() int {
	return w.alloc.Live()
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Returns how many entities were actually destroyed.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if !w.alloc.Alive(id) {
			continue // queued twice
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.alloc.Destroy(id)
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

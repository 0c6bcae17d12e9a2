package event

import "github.com/l1jgo/spawnpool/internal/core/ecs"

// Pool lifecycle events. Template carries the pool key as given to the
// manager; hosts that want readable labels make it a fmt.Stringer.

type PoolCreated struct {
	Template any
}

type InstanceSpawned struct {
	EntityID ecs.EntityID
	Template any
	Reused   bool // false = cold creation through the factory
}

type InstanceDespawned struct {
	EntityID ecs.EntityID
	Template any
}

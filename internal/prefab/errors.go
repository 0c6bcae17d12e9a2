package prefab

import "errors"

var (
	// ErrInvalidOperation: the despawn target is not Poolable or is not an
	// entity kind this manager handles.
	ErrInvalidOperation = errors.New("prefab: invalid operation")

	// ErrUntracked: the entity was never spawned through this manager.
	ErrUntracked = errors.New("prefab: entity not tracked by this manager")

	// ErrAlreadyDespawned: the entity is already back in its reservoir.
	ErrAlreadyDespawned = errors.New("prefab: entity already despawned")
)

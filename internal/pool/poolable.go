package pool

import (
	"reflect"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
)

// Poolable is the optional lifecycle capability of a pooled type.
// OnSpawn runs after an instance leaves the reservoir (or is freshly built)
// and before it reaches the caller. OnDespawn runs before it re-enters the
// reservoir. Both are called synchronously on the game loop.
type Poolable interface {
	OnSpawn()
	OnDespawn()
}

var poolableType = reflect.TypeOf((*Poolable)(nil)).Elem()

// notifyMode is resolved once per Pool from T's static type.
type notifyMode uint8

const (
	notifyNever   notifyMode = iota // T cannot implement Poolable
	notifyAlways                    // T implements Poolable
	notifyDynamic                   // T is an interface; check each value
)

func notifyModeFor[T any]() notifyMode {
	t := reflect.TypeOf((*T)(nil)).Elem()
	switch {
	case t.Implements(poolableType):
		return notifyAlways
	case t.Kind() == reflect.Interface:
		return notifyDynamic
	default:
		return notifyNever
	}
}

type Vec3 struct{ X, Y, Z float32 }

// Quat is a rotation quaternion. The zero value is treated as identity.
type Quat struct{ X, Y, Z, W float32 }

var Identity = Quat{W: 1}

// Placement positions a spawned instance in the scene.
type Placement struct {
	Position Vec3
	Rotation Quat
	Parent   ecs.EntityID // zero = scene root
}

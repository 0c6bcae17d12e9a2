package scene

import (
	"errors"
	"time"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
	"github.com/l1jgo/spawnpool/internal/pool"
)

var (
	// ErrUnknownBehaviour is returned by a BehaviourSource for names it does not know.
	ErrUnknownBehaviour = errors.New("unknown behaviour")
	// ErrPooled is returned by Destroy for nodes a pool manager still owns.
	ErrPooled = errors.New("node is owned by a pool")
)

// Prefab is the static template a Node is built from. Prefabs are compared
// by pointer, so each loaded entry is its own pool key.
type Prefab struct {
	Name        string
	Kind        string
	MaxHP       int32
	Lifetime    time.Duration // 0 = until explicitly despawned
	Behaviours  []string
	Fingerprint [32]byte
}

func (p *Prefab) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.Name
}

// Behaviour reacts to a node entering or leaving play. Implementations reset
// per-use state here (timers, health, visuals).
type Behaviour interface {
	OnSpawn(n *Node)
	OnDespawn(n *Node)
}

// BehaviourSource resolves behaviour names listed on a prefab.
type BehaviourSource interface {
	Behaviour(name string) (Behaviour, error)
}

type Transform struct {
	Position pool.Vec3
	Rotation pool.Quat
	Parent   ecs.EntityID // zero = scene root
}

// Lifetime counts down while the node is active. A node is reported as
// expired once per use, even if Remaining starts at or below zero.
type Lifetime struct {
	Total     time.Duration
	Remaining time.Duration
	expired   bool
}

// Node is one scene instance. Accessed only from the game loop goroutine.
type Node struct {
	id        ecs.EntityID
	Name      string
	Kind      string
	Transform Transform
	HP        int32
	MaxHP     int32

	lifetime   *Lifetime
	active     bool
	behaviours []Behaviour
}

// EntityID is safe on a nil node and returns the zero handle.
func (n *Node) EntityID() ecs.EntityID {
	if n == nil {
		return 0
	}
	return n.id
}

func (n *Node) Active() bool { return n.active }

// Lifetime returns the node's countdown, or nil for nodes that live until
// despawned.
func (n *Node) Lifetime() *Lifetime { return n.lifetime }

// OnSpawn resets health and lifetime, then runs behaviours in prefab order.
func (n *Node) OnSpawn() {
	n.HP = n.MaxHP
	if n.lifetime != nil {
		n.lifetime.Remaining = n.lifetime.Total
		n.lifetime.expired = false
	}
	for _, b := range n.behaviours {
		b.OnSpawn(n)
	}
}

// OnDespawn runs behaviours in reverse prefab order.
func (n *Node) OnDespawn() {
	for i := len(n.behaviours) - 1; i >= 0; i-- {
		n.behaviours[i].OnDespawn(n)
	}
}

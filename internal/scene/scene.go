// Package scene is the reference host for prefab pooling: it builds Nodes
// from Prefabs on top of the ECS world and toggles them in and out of play.
package scene

import (
	"fmt"
	"time"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
	"github.com/l1jgo/spawnpool/internal/pool"
	"github.com/l1jgo/spawnpool/internal/prefab"
	"go.uber.org/zap"
)

// Scene owns every node and the stores systems query. It implements
// prefab.Host[*Prefab, *Node].
type Scene struct {
	world      *ecs.World
	nodes      *ecs.Store[Node]
	active     *ecs.Store[Node]
	lifetimes  *ecs.Store[Lifetime]
	behaviours BehaviourSource
	owner      interface{ Owns(*Node) bool }
	log        *zap.Logger
}

// New creates a scene on world. src may be nil when no prefab lists behaviours.
func New(world *ecs.World, src BehaviourSource, log *zap.Logger) *Scene {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scene{
		world:      world,
		nodes:      ecs.NewStore[Node](),
		active:     ecs.NewStore[Node](),
		lifetimes:  ecs.NewStore[Lifetime](),
		behaviours: src,
		log:        log,
	}
	world.Register(s.nodes)
	world.Register(s.active)
	world.Register(s.lifetimes)
	return s
}

// CreateInstance builds a new, active node from p.
func (s *Scene) CreateInstance(p *Prefab) (*Node, error) {
	if p == nil {
		return nil, fmt.Errorf("create instance: nil prefab")
	}

	behaviours := make([]Behaviour, 0, len(p.Behaviours))
	for _, name := range p.Behaviours {
		if s.behaviours == nil {
			return nil, fmt.Errorf("create %s: behaviour %q: %w", p.Name, name, ErrUnknownBehaviour)
		}
		b, err := s.behaviours.Behaviour(name)
		if err != nil {
			return nil, fmt.Errorf("create %s: behaviour %q: %w", p.Name, name, err)
		}
		behaviours = append(behaviours, b)
	}

	n := &Node{
		id:         s.world.CreateEntity(),
		Name:       p.Name,
		Kind:       p.Kind,
		Transform:  Transform{Rotation: pool.Identity},
		HP:         p.MaxHP,
		MaxHP:      p.MaxHP,
		active:     true,
		behaviours: behaviours,
	}
	s.nodes.Set(n.id, n)
	s.active.Set(n.id, n)
	if p.Lifetime > 0 {
		n.lifetime = &Lifetime{Total: p.Lifetime, Remaining: p.Lifetime}
		s.lifetimes.Set(n.id, n.lifetime)
	}
	return n, nil
}

// Alive reports whether n belongs to this scene and has not been destroyed.
func (s *Scene) Alive(n *Node) bool {
	return n != nil && s.world.Alive(n.id) && s.nodes.Has(n.id)
}

func (s *Scene) Activate(n *Node) {
	n.active = true
	s.active.Set(n.id, n)
}

// Deactivate takes n out of play, detaches it from its parent and parks it
// at the origin.
func (s *Scene) Deactivate(n *Node) {
	n.active = false
	n.Transform = Transform{Rotation: pool.Identity}
	s.active.Remove(n.id)
}

func (s *Scene) ApplyPlacement(n *Node, at pool.Placement) {
	n.Transform.Position = at.Position
	n.Transform.Rotation = at.Rotation
	if at.Rotation == (pool.Quat{}) {
		n.Transform.Rotation = pool.Identity
	}
	n.Transform.Parent = 0
	if !at.Parent.IsZero() {
		if !s.world.Alive(at.Parent) {
			s.log.Warn("placement parent is gone, attaching to root",
				zap.String("node", n.Name), zap.Uint64("parent", uint64(at.Parent)))
			return
		}
		n.Transform.Parent = at.Parent
	}
}

// Destroy permanently removes n at the end of the tick. Nodes owned by the
// scene's pool manager are refused with ErrPooled; Release them first.
func (s *Scene) Destroy(n *Node) error {
	if s.owner != nil && s.owner.Owns(n) {
		return fmt.Errorf("destroy %s: %w", n.Name, ErrPooled)
	}
	n.active = false
	s.active.Remove(n.id)
	s.world.MarkForDestruction(n.id)
	return nil
}

func (s *Scene) Node(id ecs.EntityID) (*Node, bool) {
	return s.nodes.Get(id)
}

func (s *Scene) ActiveCount() int { return s.active.Len() }

func (s *Scene) NodeCount() int { return s.nodes.Len() }

// Advance counts down lifetimes of active nodes by dt and calls expired once
// for each node whose lifetime ran out, including nodes that entered play with
// nothing left. expired must not modify the scene; queue the node for later
// instead.
func (s *Scene) Advance(dt time.Duration, expired func(*Node)) {
	ecs.Each2(s.active, s.lifetimes, func(_ ecs.EntityID, n *Node, lt *Lifetime) {
		if lt.expired {
			return
		}
		lt.Remaining -= dt
		if lt.Remaining <= 0 {
			lt.Remaining = 0
			lt.expired = true
			expired(n)
		}
	})
}

// Pools is the prefab manager specialised for this host.
type Pools = prefab.Manager[*Prefab, *Node]

// NewPools creates a prefab manager backed by s. A scene has at most one
// manager; its nodes are protected from Destroy while it owns them.
func NewPools(s *Scene, opts ...prefab.Option) *Pools {
	m := prefab.NewManager[*Prefab, *Node](s, opts...)
	s.owner = m
	return m
}

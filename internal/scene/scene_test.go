package scene

import (
	"fmt"
	"testing"
	"time"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
	"github.com/l1jgo/spawnpool/internal/pool"
	"github.com/l1jgo/spawnpool/internal/prefab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ prefab.Host[*Prefab, *Node] = (*Scene)(nil)

type traceBehaviour struct {
	name  string
	trace *[]string
}

func (b traceBehaviour) OnSpawn(n *Node)   { *b.trace = append(*b.trace, b.name+":spawn") }
func (b traceBehaviour) OnDespawn(n *Node) { *b.trace = append(*b.trace, b.name+":despawn") }

type mapSource map[string]Behaviour

// drain leaves a node no time to live.
type drain struct{}

func (drain) OnSpawn(n *Node)   { n.Lifetime().Remaining = 0 }
func (drain) OnDespawn(n *Node) {}

func (m mapSource) Behaviour(name string) (Behaviour, error) {
	b, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownBehaviour)
	}
	return b, nil
}

func newTestScene(trace *[]string) (*Scene, *ecs.World) {
	w := ecs.NewWorld()
	src := mapSource{
		"glow":  traceBehaviour{"glow", trace},
		"sound": traceBehaviour{"sound", trace},
		"drain": drain{},
	}
	return New(w, src, nil), w
}

func TestCreateInstanceBuildsActiveNode(t *testing.T) {
	var trace []string
	s, w := newTestScene(&trace)

	n, err := s.CreateInstance(&Prefab{Name: "fireball", Kind: "projectile", MaxHP: 3, Lifetime: time.Second})
	require.NoError(t, err)
	assert.True(t, n.Active())
	assert.True(t, w.Alive(n.EntityID()))
	assert.Equal(t, int32(3), n.HP)
	require.NotNil(t, n.Lifetime())
	assert.Equal(t, time.Second, n.Lifetime().Remaining)
	assert.Equal(t, pool.Identity, n.Transform.Rotation)
	assert.Equal(t, 1, s.ActiveCount())

	got, ok := s.Node(n.EntityID())
	require.True(t, ok)
	assert.Same(t, n, got)
}

func TestCreateInstanceFailsOnUnknownBehaviour(t *testing.T) {
	var trace []string
	s, _ := newTestScene(&trace)

	_, err := s.CreateInstance(&Prefab{Name: "bad", Behaviours: []string{"missing"}})
	assert.ErrorIs(t, err, ErrUnknownBehaviour)

	_, err = s.CreateInstance(nil)
	assert.Error(t, err)
	assert.Equal(t, 0, s.NodeCount())

	bare := New(ecs.NewWorld(), nil, nil)
	_, err = bare.CreateInstance(&Prefab{Name: "bad", Behaviours: []string{"glow"}})
	assert.ErrorIs(t, err, ErrUnknownBehaviour)
}

func TestBehaviourOrder(t *testing.T) {
	var trace []string
	s, _ := newTestScene(&trace)
	m := prefab.NewManager[*Prefab, *Node](s)
	p := &Prefab{Name: "orb", Behaviours: []string{"glow", "sound"}}

	n, err := m.Spawn(p)
	require.NoError(t, err)
	require.NoError(t, m.Despawn(n))

	assert.Equal(t, []string{"glow:spawn", "sound:spawn", "sound:despawn", "glow:despawn"}, trace)
}

func TestPooledNodeIsResetOnReuse(t *testing.T) {
	var trace []string
	s, w := newTestScene(&trace)
	m := prefab.NewManager[*Prefab, *Node](s)
	p := &Prefab{Name: "slime", MaxHP: 10, Lifetime: 2 * time.Second}

	parent, err := s.CreateInstance(&Prefab{Name: "spawner"})
	require.NoError(t, err)

	n, err := m.SpawnAt(p, pool.Placement{Position: pool.Vec3{X: 4, Y: 2}, Parent: parent.EntityID()})
	require.NoError(t, err)
	assert.Equal(t, parent.EntityID(), n.Transform.Parent)

	n.HP = 1
	n.Lifetime().Remaining = time.Millisecond
	require.NoError(t, m.Despawn(n))
	assert.False(t, n.Active())
	assert.True(t, n.Transform.Parent.IsZero(), "despawn detaches")
	assert.Equal(t, 1, s.ActiveCount())

	again, err := m.Spawn(p)
	require.NoError(t, err)
	assert.Same(t, n, again)
	assert.True(t, again.Active())
	assert.Equal(t, int32(10), again.HP)
	assert.Equal(t, 2*time.Second, again.Lifetime().Remaining)
	assert.True(t, w.Alive(again.EntityID()), "pooled nodes are never destroyed")
}

func TestPlacementIgnoresDeadParent(t *testing.T) {
	var trace []string
	s, w := newTestScene(&trace)

	parent, err := s.CreateInstance(&Prefab{Name: "tower"})
	require.NoError(t, err)
	child, err := s.CreateInstance(&Prefab{Name: "arrow"})
	require.NoError(t, err)

	require.NoError(t, s.Destroy(parent))
	w.FlushDestroyQueue()

	s.ApplyPlacement(child, pool.Placement{Position: pool.Vec3{Z: 1}, Parent: parent.EntityID()})
	assert.True(t, child.Transform.Parent.IsZero())
	assert.Equal(t, float32(1), child.Transform.Position.Z)
	_, ok := s.Node(parent.EntityID())
	assert.False(t, ok)
}

func TestAdvanceReportsExpiredActiveNodes(t *testing.T) {
	var trace []string
	s, _ := newTestScene(&trace)

	short, _ := s.CreateInstance(&Prefab{Name: "spark", Lifetime: 200 * time.Millisecond})
	long, _ := s.CreateInstance(&Prefab{Name: "smoke", Lifetime: time.Second})
	_, _ = s.CreateInstance(&Prefab{Name: "wall"})
	parked, _ := s.CreateInstance(&Prefab{Name: "spark", Lifetime: 100 * time.Millisecond})
	s.Deactivate(parked)

	var expired []*Node
	s.Advance(200*time.Millisecond, func(n *Node) { expired = append(expired, n) })
	assert.Equal(t, []*Node{short}, expired)

	expired = nil
	s.Advance(200*time.Millisecond, func(n *Node) { expired = append(expired, n) })
	assert.Empty(t, expired, "already expired nodes are reported once")
	assert.Equal(t, 600*time.Millisecond, long.Lifetime().Remaining)
}

func TestDestroyRefusesPooledNodes(t *testing.T) {
	var trace []string
	s, w := newTestScene(&trace)
	pools := NewPools(s)
	p := &Prefab{Name: "arrow"}

	require.NoError(t, pools.Prewarm(p, 1))
	n, err := pools.Spawn(p)
	require.NoError(t, err)
	parked, err := pools.Spawn(p)
	require.NoError(t, err)
	require.NoError(t, pools.Despawn(parked))

	assert.ErrorIs(t, s.Destroy(n), ErrPooled)
	assert.ErrorIs(t, s.Destroy(parked), ErrPooled)
	w.FlushDestroyQueue()
	assert.True(t, s.Alive(n))
	assert.True(t, s.Alive(parked))

	require.NoError(t, pools.Release(n))
	require.NoError(t, s.Destroy(n))
	w.FlushDestroyQueue()
	assert.False(t, s.Alive(n))
	assert.Equal(t, 0, pools.Active())

	again, err := pools.Spawn(p)
	require.NoError(t, err)
	assert.Same(t, parked, again)
}

func TestDespawnOfDestroyedNodeNeverReachesReservoir(t *testing.T) {
	var trace []string
	s, w := newTestScene(&trace)
	// a manager the scene does not know about, so Destroy is not guarded
	m := prefab.NewManager[*Prefab, *Node](s)
	p := &Prefab{Name: "arrow"}

	n, err := m.Spawn(p)
	require.NoError(t, err)
	require.NoError(t, s.Destroy(n))
	w.FlushDestroyQueue()

	assert.ErrorIs(t, m.Despawn(n), prefab.ErrInvalidOperation)
	assert.Equal(t, 0, m.GetPool(p).Available())
	assert.Equal(t, 0, m.Active())

	next, err := m.Spawn(p)
	require.NoError(t, err)
	assert.NotSame(t, n, next)
	assert.True(t, s.Alive(next))
	assert.Equal(t, 1, s.NodeCount())
}

func TestAdvanceExpiresNodesSpawnedWithoutTimeLeft(t *testing.T) {
	var trace []string
	s, _ := newTestScene(&trace)
	pools := NewPools(s)
	p := &Prefab{Name: "flash", Lifetime: time.Second, Behaviours: []string{"drain"}}

	n, err := pools.Spawn(p)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), n.Lifetime().Remaining)

	expired := 0
	for i := 0; i < 5; i++ {
		s.Advance(200*time.Millisecond, func(*Node) { expired++ })
	}
	assert.Equal(t, 1, expired)

	require.NoError(t, pools.Despawn(n))
	again, err := pools.Spawn(p)
	require.NoError(t, err)
	require.Same(t, n, again)
	s.Advance(200*time.Millisecond, func(*Node) { expired++ })
	assert.Equal(t, 2, expired, "each use expires once")
}

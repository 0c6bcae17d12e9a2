package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bullet struct {
	serial   int
	active   bool
	at       Placement
	events   []string
	spawns   int
	despawns int
}

func (b *bullet) OnSpawn() {
	b.spawns++
	b.events = append(b.events, "spawn")
}

func (b *bullet) OnDespawn() {
	b.despawns++
	b.events = append(b.events, "despawn")
}

type plain struct{ serial int }

func newBulletPool() (*Pool[*bullet], *int) {
	made := 0
	p := New(func() (*bullet, error) {
		made++
		return &bullet{serial: made, active: true}, nil
	}, Hooks[*bullet]{
		Activate: func(b *bullet) {
			b.active = true
			b.events = append(b.events, "activate")
		},
		Deactivate: func(b *bullet) {
			b.active = false
			b.events = append(b.events, "deactivate")
		},
		Place: func(b *bullet, at Placement) {
			b.at = at
			b.events = append(b.events, "place")
		},
	})
	return p, &made
}

func TestSpawnDespawnSpawnReusesSameInstance(t *testing.T) {
	p, made := newBulletPool()

	first, err := p.Spawn()
	require.NoError(t, err)
	p.Despawn(first)

	second, err := p.Spawn()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, *made)
	assert.True(t, second.active)
}

func TestReservoirIsLIFO(t *testing.T) {
	p, _ := newBulletPool()

	a, _ := p.Spawn()
	b, _ := p.Spawn()
	c, _ := p.Spawn()
	require.NotSame(t, a, b)
	require.NotSame(t, b, c)

	p.Despawn(a)
	p.Despawn(b)

	next, _ := p.Spawn()
	assert.Same(t, b, next)
	next, _ = p.Spawn()
	assert.Same(t, a, next)
	assert.Equal(t, 0, p.Available())
}

func TestNotificationOrdering(t *testing.T) {
	p, _ := newBulletPool()

	b, err := p.Spawn()
	require.NoError(t, err)
	assert.Equal(t, []string{"spawn"}, b.events, "cold spawn skips activate")

	p.Despawn(b)
	assert.Equal(t, []string{"spawn", "despawn", "deactivate"}, b.events)

	b.events = nil
	_, err = p.SpawnAt(Placement{Position: Vec3{X: 1, Y: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"place", "activate", "spawn"}, b.events)
	assert.Equal(t, Vec3{X: 1, Y: 2}, b.at.Position)
	assert.Equal(t, 2, b.spawns)
	assert.Equal(t, 1, b.despawns)
}

func TestFactoryFailurePropagates(t *testing.T) {
	boom := errors.New("template missing mesh")
	p := New(func() (*bullet, error) { return nil, boom }, Hooks[*bullet]{})

	v, err := p.Spawn()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, v)
	assert.Equal(t, Stats{}, p.Stats())
}

func TestNonPoolableTypeIsPooledSilently(t *testing.T) {
	n := 0
	p := New(func() (*plain, error) {
		n++
		return &plain{serial: n}, nil
	}, Hooks[*plain]{})

	a, err := p.Spawn()
	require.NoError(t, err)
	p.Despawn(a)
	b, err := p.Spawn()
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, notifyNever, p.notify)
}

func TestInterfaceTypedPoolChecksEachValue(t *testing.T) {
	flip := 0
	p := New(func() (any, error) {
		flip++
		if flip%2 == 1 {
			return &bullet{}, nil
		}
		return &plain{}, nil
	}, Hooks[any]{})
	require.Equal(t, notifyDynamic, p.notify)

	first, err := p.Spawn()
	require.NoError(t, err)
	second, err := p.Spawn()
	require.NoError(t, err)

	assert.Equal(t, 1, first.(*bullet).spawns)
	assert.IsType(t, &plain{}, second)
}

func TestStatsNeverLoseInstances(t *testing.T) {
	p, made := newBulletPool()

	var live []*bullet
	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			b, err := p.Spawn()
			require.NoError(t, err)
			live = append(live, b)
		}
		for _, b := range live[:2] {
			p.Despawn(b)
		}
		live = live[2:]
	}

	s := p.Stats()
	assert.Equal(t, *made, s.Created, "every factory call is a cold spawn")
	assert.Equal(t, s.Total(), s.Active()+s.Available)
	assert.Equal(t, len(live), s.Active())
	assert.Equal(t, 15, s.Created+s.Reused)
	assert.Equal(t, 10, s.Despawned)
}

func TestPrewarmFillsReservoirWithoutNotifications(t *testing.T) {
	p, made := newBulletPool()

	require.NoError(t, p.Prewarm(3))
	assert.Equal(t, 3, p.Available())
	assert.Equal(t, 3, *made)

	b, err := p.Spawn()
	require.NoError(t, err)
	assert.Equal(t, []string{"deactivate", "activate", "spawn"}, b.events)

	s := p.Stats()
	assert.Equal(t, 0, s.Created)
	assert.Equal(t, 3, s.Prewarmed)
	assert.Equal(t, 1, s.Reused)
}

func TestPrewarmStopsAtFactoryError(t *testing.T) {
	n := 0
	p := New(func() (*plain, error) {
		n++
		if n == 3 {
			return nil, errors.New("out of meshes")
		}
		return &plain{serial: n}, nil
	}, Hooks[*plain]{})

	err := p.Prewarm(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3/5")
	assert.Equal(t, 2, p.Available())
}

package system

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
	"github.com/l1jgo/spawnpool/internal/core/event"
	coresys "github.com/l1jgo/spawnpool/internal/core/system"
	"github.com/l1jgo/spawnpool/internal/data"
	"github.com/l1jgo/spawnpool/internal/metrics"
	"github.com/l1jgo/spawnpool/internal/persist"
	"github.com/l1jgo/spawnpool/internal/prefab"
	"github.com/l1jgo/spawnpool/internal/scene"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tick = 200 * time.Millisecond

type fakeSaver struct {
	calls [][]persist.PoolStat
	err   error
}

func (f *fakeSaver) Save(_ context.Context, stats []persist.PoolStat) error {
	f.calls = append(f.calls, stats)
	return f.err
}

type harness struct {
	world   *ecs.World
	scene   *scene.Scene
	pools   *scene.Pools
	runner  *coresys.Runner
	spawner *SpawnerSystem
	stats   *StatsSystem
	saver   *fakeSaver
	reg     *prometheus.Registry
}

func newHarness(t *testing.T, prefabYAML, spawnYAML string) *harness {
	t.Helper()
	log := zap.NewNop()

	prefabs, err := data.ParsePrefabTable([]byte(prefabYAML), "")
	require.NoError(t, err)
	spawns, err := data.ParseSpawnList([]byte(spawnYAML))
	require.NoError(t, err)

	h := &harness{world: ecs.NewWorld(), saver: &fakeSaver{}, reg: prometheus.NewRegistry()}
	bus := event.NewBus()
	collector, err := metrics.NewCollector(h.reg)
	require.NoError(t, err)
	collector.Subscribe(bus)

	h.scene = scene.New(h.world, nil, log)
	h.pools = scene.NewPools(h.scene, prefab.WithBus(bus), prefab.WithLogger(log))
	h.spawner = NewSpawnerSystem(h.pools, prefabs, spawns, rand.New(rand.NewSource(1)), log)
	h.stats = NewStatsSystem(h.pools, collector, h.saver, 5, log)

	h.runner = coresys.NewRunner()
	h.runner.Register(NewCleanupSystem(h.world, h.pools, log))
	h.runner.Register(h.stats)
	h.runner.Register(h.spawner)
	h.runner.Register(NewLifetimeSystem(h.scene, h.pools))
	h.runner.Register(NewDispatchSystem(bus))
	return h
}

const arrowPrefab = `
prefabs:
  - name: arrow
    kind: projectile
    max_hp: 1
    lifetime: 400ms
`

func TestSteadyStateRecyclesInstances(t *testing.T) {
	h := newHarness(t, arrowPrefab, `
spawns:
  - prefab: arrow
    interval: 200ms
    count: 2
    x: 10
    spread: 3
`)
	for i := 0; i < 10; i++ {
		h.runner.Tick(tick)
	}

	require.Equal(t, 1, h.pools.Len())
	st := h.stats.Snapshot()
	require.Len(t, st, 1)
	assert.Equal(t, "arrow", st[0].Prefab)
	assert.Equal(t, int64(6), st[0].Created, "three ticks of cold spawns, then recycling only")
	assert.Equal(t, int64(14), st[0].Reused)
	assert.Equal(t, int64(16), st[0].Despawned)
	assert.Equal(t, int32(2), st[0].Available)

	assert.Equal(t, 4, h.pools.Active())
	assert.Equal(t, 4, h.scene.ActiveCount())
	assert.Equal(t, 6, h.world.Live(), "nothing is ever destroyed")

	require.Len(t, h.saver.calls, 2, "stats flushed every 5 ticks")
	n, err := testutil.GatherAndCount(h.reg, "spawnpool_available")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSpawnerSpreadStaysInBounds(t *testing.T) {
	h := newHarness(t, `
prefabs:
  - name: rock
`, `
spawns:
  - prefab: rock
    interval: 200ms
    count: 20
    x: 100
    y: 50
    z: 7
    spread: 2
`)
	h.runner.Tick(tick)

	assert.Equal(t, 20, h.scene.ActiveCount())
	for i := 1; i <= 20; i++ {
		n, ok := h.scene.Node(ecs.NewEntityID(uint32(i), 0))
		require.True(t, ok)
		p := n.Transform.Position
		assert.InDelta(t, 100, p.X, 2)
		assert.InDelta(t, 50, p.Y, 2)
		assert.Equal(t, float32(7), p.Z)
	}
}

func TestSpawnerSkipsUnknownPrefabAndPrewarms(t *testing.T) {
	h := newHarness(t, arrowPrefab, `
spawns:
  - prefab: ghost
    interval: 1s
  - prefab: arrow
    interval: 1s
    prewarm: 8
`)
	assert.Equal(t, 1, h.spawner.Len())

	n, err := h.spawner.Prewarm()
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, 0, h.scene.ActiveCount(), "prewarmed nodes stay inactive")

	for i := 0; i < 5; i++ {
		h.runner.Tick(tick)
	}
	st := h.stats.Snapshot()
	require.Len(t, st, 1)
	assert.Equal(t, int64(0), st[0].Created)
	assert.Equal(t, int64(8), st[0].Prewarmed)
	assert.Equal(t, int64(1), st[0].Reused)
}

func TestStatsFlushLogsSaveErrors(t *testing.T) {
	h := newHarness(t, arrowPrefab, "spawns: []\n")
	h.saver.err = errors.New("db down")

	_, err := h.pools.Spawn(arrow(t))
	require.NoError(t, err)
	assert.NotPanics(t, h.stats.Flush)
	assert.Len(t, h.saver.calls, 1)
}

func TestCleanupDespawnsQueuedNodesOnce(t *testing.T) {
	h := newHarness(t, arrowPrefab, "spawns: []\n")
	p := arrow(t)

	n, err := h.pools.Spawn(p)
	require.NoError(t, err)
	h.pools.MarkForDespawn(n)
	h.pools.MarkForDespawn(n)

	h.runner.Tick(tick)
	assert.False(t, n.Active())
	assert.Equal(t, 1, h.pools.GetPool(p).Available())
}

func arrow(t *testing.T) *scene.Prefab {
	t.Helper()
	tbl, err := data.ParsePrefabTable([]byte(arrowPrefab), "")
	require.NoError(t, err)
	return tbl.Get("arrow")
}

package system

import (
	"fmt"
	"math/rand"
	"time"

	coresys "github.com/l1jgo/spawnpool/internal/core/system"
	"github.com/l1jgo/spawnpool/internal/data"
	"github.com/l1jgo/spawnpool/internal/pool"
	"github.com/l1jgo/spawnpool/internal/scene"
	"go.uber.org/zap"
)

type spawnPlan struct {
	entry   data.SpawnEntry
	prefab  *scene.Prefab
	elapsed time.Duration
}

// SpawnerSystem spawns prefabs on a fixed schedule from the spawn list.
// Phase 2 (PostUpdate).
type SpawnerSystem struct {
	pools *scene.Pools
	plans []spawnPlan
	rng   *rand.Rand
	log   *zap.Logger
}

// NewSpawnerSystem resolves every spawn entry against prefabs. Entries naming
// an unknown prefab are logged and skipped.
func NewSpawnerSystem(pools *scene.Pools, prefabs *data.PrefabTable, spawns []data.SpawnEntry, rng *rand.Rand, log *zap.Logger) *SpawnerSystem {
	s := &SpawnerSystem{
		pools: pools,
		plans: make([]spawnPlan, 0, len(spawns)),
		rng:   rng,
		log:   log,
	}
	for _, e := range spawns {
		p := prefabs.Get(e.Prefab)
		if p == nil {
			log.Warn("spawner: unknown prefab", zap.String("prefab", e.Prefab))
			continue
		}
		s.plans = append(s.plans, spawnPlan{entry: e, prefab: p})
	}
	return s
}

func (s *SpawnerSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// Len returns the number of active spawn plans.
func (s *SpawnerSystem) Len() int { return len(s.plans) }

// Prewarm fills each plan's pool with its configured prewarm count and
// returns the number of instances built.
func (s *SpawnerSystem) Prewarm() (int, error) {
	total := 0
	for i := range s.plans {
		pl := &s.plans[i]
		if pl.entry.Prewarm == 0 {
			continue
		}
		if err := s.pools.Prewarm(pl.prefab, pl.entry.Prewarm); err != nil {
			return total, fmt.Errorf("spawner prewarm: %w", err)
		}
		total += pl.entry.Prewarm
	}
	return total, nil
}

func (s *SpawnerSystem) Update(dt time.Duration) {
	for i := range s.plans {
		pl := &s.plans[i]
		pl.elapsed += dt
		for pl.elapsed >= pl.entry.Interval {
			pl.elapsed -= pl.entry.Interval
			s.fire(pl)
		}
	}
}

func (s *SpawnerSystem) fire(pl *spawnPlan) {
	for n := 0; n < pl.entry.Count; n++ {
		at := pool.Placement{
			Position: pool.Vec3{
				X: pl.entry.X + s.jitter(pl.entry.Spread),
				Y: pl.entry.Y + s.jitter(pl.entry.Spread),
				Z: pl.entry.Z,
			},
			Rotation: pool.Identity,
		}
		if _, err := s.pools.SpawnAt(pl.prefab, at); err != nil {
			// 同一排程本 tick 不再重試
			s.log.Error("spawner: spawn failed", zap.String("prefab", pl.prefab.Name), zap.Error(err))
			return
		}
	}
}

func (s *SpawnerSystem) jitter(spread float32) float32 {
	if spread <= 0 {
		return 0
	}
	return (s.rng.Float32()*2 - 1) * spread
}

package system

import (
	"time"

	"github.com/l1jgo/spawnpool/internal/core/ecs"
	coresys "github.com/l1jgo/spawnpool/internal/core/system"
	"github.com/l1jgo/spawnpool/internal/scene"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred despawn queue, then the entity
// destruction queue. Phase 4 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	pools *scene.Pools
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, pools *scene.Pools, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, pools: pools, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if err := s.pools.FlushDespawnQueue(); err != nil {
		s.log.Warn("deferred despawn failed", zap.Error(err))
	}
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.log.Debug("entities destroyed", zap.Int("count", n))
	}
}

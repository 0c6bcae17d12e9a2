package system

import (
	"time"

	coresys "github.com/l1jgo/spawnpool/internal/core/system"
	"github.com/l1jgo/spawnpool/internal/scene"
)

// LifetimeSystem counts down node lifetimes and queues expired nodes for
// despawn at tick end. Phase 1 (Update).
type LifetimeSystem struct {
	scene *scene.Scene
	pools *scene.Pools
}

func NewLifetimeSystem(sc *scene.Scene, pools *scene.Pools) *LifetimeSystem {
	return &LifetimeSystem{scene: sc, pools: pools}
}

func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *LifetimeSystem) Update(dt time.Duration) {
	s.scene.Advance(dt, s.pools.MarkForDespawn)
}

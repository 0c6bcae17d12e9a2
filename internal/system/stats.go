package system

import (
	"context"
	"sort"
	"time"

	coresys "github.com/l1jgo/spawnpool/internal/core/system"
	"github.com/l1jgo/spawnpool/internal/metrics"
	"github.com/l1jgo/spawnpool/internal/persist"
	"github.com/l1jgo/spawnpool/internal/pool"
	"github.com/l1jgo/spawnpool/internal/scene"
	"go.uber.org/zap"
)

// StatsSaver is the persistence side of StatsSystem (persist.StatsRepo).
type StatsSaver interface {
	Save(ctx context.Context, stats []persist.PoolStat) error
}

// StatsSystem snapshots every pool each interval ticks, updates gauges and
// saves the snapshot. Collector and saver are both optional.
// Phase 3 (Persist).
type StatsSystem struct {
	pools     *scene.Pools
	collector *metrics.Collector
	saver     StatsSaver
	interval  int
	counter   int
	log       *zap.Logger
}

func NewStatsSystem(pools *scene.Pools, collector *metrics.Collector, saver StatsSaver, interval int, log *zap.Logger) *StatsSystem {
	return &StatsSystem{
		pools:     pools,
		collector: collector,
		saver:     saver,
		interval:  interval,
		log:       log,
	}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *StatsSystem) Update(_ time.Duration) {
	s.counter++
	if s.counter < s.interval {
		return
	}
	s.counter = 0
	s.Flush()
}

// Snapshot returns one row per pool, sorted by prefab name.
func (s *StatsSystem) Snapshot() []persist.PoolStat {
	now := time.Now()
	out := make([]persist.PoolStat, 0, s.pools.Len())
	s.pools.EachPool(func(p *scene.Prefab, pl *pool.Pool[*scene.Node]) {
		st := pl.Stats()
		if s.collector != nil {
			s.collector.Observe(p.Name, st)
		}
		out = append(out, persist.PoolStat{
			Prefab:      p.Name,
			Fingerprint: p.Fingerprint,
			Created:     int64(st.Created),
			Prewarmed:   int64(st.Prewarmed),
			Reused:      int64(st.Reused),
			Despawned:   int64(st.Despawned),
			Available:   int32(st.Available),
			UpdatedAt:   now,
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Prefab < out[j].Prefab })
	return out
}

// Flush takes a snapshot and saves it immediately. Also called on shutdown.
func (s *StatsSystem) Flush() {
	snap := s.Snapshot()
	if s.saver == nil || len(snap) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saver.Save(ctx, snap); err != nil {
		s.log.Error("pool stats save failed", zap.Error(err))
		return
	}
	s.log.Debug("pool stats saved", zap.Int("pools", len(snap)))
}

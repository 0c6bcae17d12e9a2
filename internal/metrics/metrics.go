// Package metrics exposes pool activity as Prometheus collectors.
//
// Counters are fed from the event bus (one increment per spawn/despawn
// event); gauges are set from periodic pool.Stats snapshots.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/l1jgo/spawnpool/internal/core/event"
	"github.com/l1jgo/spawnpool/internal/pool"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spawnpool"

type Collector struct {
	spawns       *prometheus.CounterVec
	despawns     *prometheus.CounterVec
	poolsCreated prometheus.Counter
	available    *prometheus.GaugeVec
	active       *prometheus.GaugeVec
	created      *prometheus.GaugeVec
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		spawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Instances handed out, split by whether they came from the reservoir.",
		}, []string{"prefab", "reused"}),
		despawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "despawns_total",
			Help:      "Instances returned to their reservoir.",
		}, []string{"prefab"}),
		poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pools_created_total",
			Help:      "Pools created on first use of a template.",
		}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available",
			Help:      "Inactive instances waiting in the reservoir.",
		}, []string{"prefab"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active",
			Help:      "Instances currently in play.",
		}, []string{"prefab"}),
		created: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "created",
			Help:      "Instances ever built for the template (cold spawns plus prewarm).",
		}, []string{"prefab"}),
	}
	for _, col := range []prometheus.Collector{
		c.spawns, c.despawns, c.poolsCreated, c.available, c.active, c.created,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// Subscribe wires the counters to the event bus.
func (c *Collector) Subscribe(bus *event.Bus) {
	event.Subscribe(bus, func(event.PoolCreated) {
		c.poolsCreated.Inc()
	})
	event.Subscribe(bus, func(ev event.InstanceSpawned) {
		c.spawns.WithLabelValues(Label(ev.Template), strconv.FormatBool(ev.Reused)).Inc()
	})
	event.Subscribe(bus, func(ev event.InstanceDespawned) {
		c.despawns.WithLabelValues(Label(ev.Template)).Inc()
	})
}

// Observe sets the gauges for one prefab from a stats snapshot.
func (c *Collector) Observe(prefab string, s pool.Stats) {
	c.available.WithLabelValues(prefab).Set(float64(s.Available))
	c.active.WithLabelValues(prefab).Set(float64(s.Active()))
	c.created.WithLabelValues(prefab).Set(float64(s.Total()))
}

// Label renders a pool key for use as a metric label.
func Label(template any) string {
	if s, ok := template.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(template)
}

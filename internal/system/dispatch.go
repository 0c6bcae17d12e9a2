package system

import (
	"time"

	"github.com/l1jgo/spawnpool/internal/core/event"
	coresys "github.com/l1jgo/spawnpool/internal/core/system"
)

// DispatchSystem delivers last tick's events. Phase 0 (PreUpdate).
type DispatchSystem struct {
	bus *event.Bus
}

func NewDispatchSystem(bus *event.Bus) *DispatchSystem {
	return &DispatchSystem{bus: bus}
}

func (s *DispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *DispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

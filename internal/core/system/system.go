package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhasePreUpdate  Phase = iota // 0: dispatch last tick's events
	PhaseUpdate                  // 1: lifetimes, game logic
	PhasePostUpdate              // 2: spawners
	PhasePersist                 // 3: stats snapshot + DB flush
	PhaseCleanup                 // 4: deferred despawn, destroy queue
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

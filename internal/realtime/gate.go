package realtime

import (
	"sync"
	"time"
)

// GateState is the phase of a WarmupGate.
type GateState string

const (
	GateWarming GateState = "warming"
	GateOpen    GateState = "open"
)

// WarmupGate filters a stream of ids so that only ids occurring after a
// warm-up window are announced. Ids delivered with the initial snapshot, or
// occurring during the window, are remembered and never announced.
type WarmupGate struct {
	mu     sync.Mutex
	now    func() time.Time
	openAt time.Time
	known  map[string]struct{}
}

// NewWarmupGate starts the window at now(). A nil now uses time.Now.
func NewWarmupGate(window time.Duration, now func() time.Time) *WarmupGate {
	if now == nil {
		now = time.Now
	}
	return &WarmupGate{
		now:    now,
		openAt: now().Add(window),
		known:  make(map[string]struct{}),
	}
}

// Seed marks ids as already known.
func (g *WarmupGate) Seed(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.known[id] = struct{}{}
	}
}

// Admit reports whether id, which occurred at the given time, should be
// announced: it is new and did not occur inside the window. Either way id is
// known afterwards.
func (g *WarmupGate) Admit(id string, at time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.known[id]; seen {
		return false
	}
	g.known[id] = struct{}{}
	return !at.Before(g.openAt)
}

// State returns the current phase.
func (g *WarmupGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.now().Before(g.openAt) {
		return GateWarming
	}
	return GateOpen
}

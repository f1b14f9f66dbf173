package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestWarmupGate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	gate := NewWarmupGate(2*time.Second, clock.Now)
	gate.Seed("m1", "m2")

	start := clock.t
	assert.Equal(t, GateWarming, gate.State())
	assert.False(t, gate.Admit("m1", start.Add(time.Hour)), "seeded ids are never announced")
	assert.False(t, gate.Admit("m3", start.Add(time.Second)), "ids inside the window are suppressed")

	clock.t = clock.t.Add(2 * time.Second)
	assert.Equal(t, GateOpen, gate.State())
	assert.False(t, gate.Admit("m3", clock.t), "ids seen during warm-up stay known")
	assert.False(t, gate.Admit("m5", start.Add(time.Second)), "late delivery of an early id is suppressed")
	assert.True(t, gate.Admit("m4", clock.t))
	assert.False(t, gate.Admit("m4", clock.t), "an id is announced once")
}

func TestWarmupGateZeroWindowIsOpen(t *testing.T) {
	gate := NewWarmupGate(0, nil)
	assert.Equal(t, GateOpen, gate.State())
	assert.True(t, gate.Admit("x", time.Now()))
}

package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck_DetectsAndRestores(t *testing.T) {
	live := map[string]float64{}
	var events []Tamper
	g := New(live, func(tp Tamper) { events = append(events, tp) }).
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })

	g.Register("bankBalance", 100)

	// Bypass the guarded setter.
	live["bankBalance"] = 1_000_000

	detected := g.Check()
	assert.Len(t, detected, 1)
	assert.Equal(t, "bankBalance", detected[0].Field)
	assert.Equal(t, 1_000_000.0, detected[0].Observed)
	assert.Equal(t, 100.0, detected[0].Restored)
	assert.Equal(t, 100.0, live["bankBalance"], "visible value forced back to shadow")
	assert.Len(t, events, 1)
}

func TestCheck_DetectsDeletion(t *testing.T) {
	live := map[string]float64{}
	g := New(live, nil)
	g.Register("balance", 50)

	delete(live, "balance")

	detected := g.Check()
	assert.Len(t, detected, 1)
	assert.Equal(t, 50.0, live["balance"])
}

func TestSet_IsLegitimate(t *testing.T) {
	live := map[string]float64{}
	g := New(live, nil)
	g.Register("balance", 50)

	g.Set("balance", 75)

	assert.Empty(t, g.Check(), "guarded mutations never trip the check")
	assert.Equal(t, 75.0, g.Get("balance"))
	assert.Equal(t, 75.0, live["balance"])
}

func TestStartStop(t *testing.T) {
	live := map[string]float64{}
	g := New(live, nil)
	g.Register("balance", 1)

	g.Start(time.Millisecond)
	defer g.Stop()

	live["balance"] = 999
	assert.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return live["balance"] == 1
	}, time.Second, 5*time.Millisecond, "ticker check restores the shadow value")

	g.Stop()
	g.Stop() // idempotent
}

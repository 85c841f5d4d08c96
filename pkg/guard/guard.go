// Package guard watches protected in-memory fields for mutations that
// bypass the guarded setters. It keeps a shadow copy of every registered
// field and periodically reconciles the externally visible state against
// it: on divergence the visible value is forced back and a tamper event is
// raised.
//
// This defends only against unsophisticated in-place patching of the
// running instance. A modified copy of the program is caught by server-side
// progression validation, not here.
package guard

import (
	"sync"
	"time"
)

// Tamper records one detected divergence.
type Tamper struct {
	Field      string
	Observed   float64
	Restored   float64
	DetectedAt time.Time
}

// Guard monitors a live state map handed to the embedding game. All
// legitimate mutations must go through Set.
type Guard struct {
	mu       sync.Mutex
	live     map[string]float64
	shadow   map[string]float64
	onTamper func(Tamper)
	clock    func() time.Time

	done chan struct{}
}

// New creates a guard over live. onTamper may be nil.
func New(live map[string]float64, onTamper func(Tamper)) *Guard {
	return &Guard{
		live:     live,
		shadow:   make(map[string]float64),
		onTamper: onTamper,
		clock:    time.Now,
	}
}

// WithClock overrides the clock for testing.
func (g *Guard) WithClock(clock func() time.Time) *Guard {
	g.clock = clock
	return g
}

// Register begins protecting a field at an initial value.
func (g *Guard) Register(field string, value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live[field] = value
	g.shadow[field] = value
}

// Set is the guarded setter: the only legitimate mutation path.
func (g *Guard) Set(field string, value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live[field] = value
	g.shadow[field] = value
}

// Get returns the authoritative (shadow) value.
func (g *Guard) Get(field string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shadow[field]
}

// Snapshot returns a copy of all authoritative values.
func (g *Guard) Snapshot() map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]float64, len(g.shadow))
	for field, value := range g.shadow {
		out[field] = value
	}
	return out
}

// Check reconciles the live map against the shadow copy once. Divergent
// fields are restored to the shadow value and reported.
func (g *Guard) Check() []Tamper {
	g.mu.Lock()

	var detected []Tamper
	for field, want := range g.shadow {
		got, ok := g.live[field]
		if ok && got == want {
			continue
		}
		detected = append(detected, Tamper{
			Field:      field,
			Observed:   got,
			Restored:   want,
			DetectedAt: g.clock(),
		})
		g.live[field] = want
	}
	cb := g.onTamper
	g.mu.Unlock()

	if cb != nil {
		for _, tp := range detected {
			cb(tp)
		}
	}
	return detected
}

// Start runs Check on a fixed interval until Stop is called.
//
// The periodic check reads the live map from its own goroutine. Out-of-band
// writers, by definition, do not hold the guard's mutex, so Start is only
// safe where the embedding runtime is effectively single-threaded (the
// single-writer-per-device contract). Embedders that cannot guarantee that
// must call Check from the game loop instead.
func (g *Guard) Start(interval time.Duration) {
	g.mu.Lock()
	if g.done != nil {
		g.mu.Unlock()
		return
	}
	done := make(chan struct{})
	g.done = done
	g.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Check()
			case <-done:
				return
			}
		}
	}()
}

// Stop halts the periodic check.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done != nil {
		close(g.done)
		g.done = nil
	}
}

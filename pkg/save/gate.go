package save

import (
	"context"
	"fmt"
	"time"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
)

// DefaultSubmitInterval is the minimum gap between submissions per device.
const DefaultSubmitInterval = 30 * time.Second

// GateDecision is the outcome of a submission gate check.
type GateDecision struct {
	OK      bool
	RetryIn time.Duration // set when OK is false
}

// SubmitGate throttles how often a device submits for server-side
// validation. Advisory on the producing side only: a hostile client can
// skip it entirely, so the validating side never assumes it ran.
type SubmitGate struct {
	store    baseline.Store
	interval time.Duration
	clock    func() time.Time
}

func NewSubmitGate(store baseline.Store, interval time.Duration) *SubmitGate {
	if interval <= 0 {
		interval = DefaultSubmitInterval
	}
	return &SubmitGate{store: store, interval: interval, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (g *SubmitGate) WithClock(clock func() time.Time) *SubmitGate {
	g.clock = clock
	return g
}

// CanSubmit checks the persisted lastSubmissionAt stamp. When the window is
// open it stamps the current time and persists before returning.
func (g *SubmitGate) CanSubmit(ctx context.Context, deviceID string) (GateDecision, error) {
	b, err := g.store.Get(ctx, deviceID)
	if err != nil {
		return GateDecision{}, fmt.Errorf("load baseline: %w", err)
	}
	if b == nil {
		b = baseline.New(deviceID)
	}

	now := g.clock()
	elapsed := now.Sub(time.UnixMilli(b.LastSubmissionAt))
	if b.LastSubmissionAt > 0 && elapsed < g.interval {
		return GateDecision{OK: false, RetryIn: g.interval - elapsed}, nil
	}

	b.LastSubmissionAt = now.UnixMilli()
	if err := g.store.Put(ctx, b); err != nil {
		return GateDecision{}, fmt.Errorf("stamp submission: %w", err)
	}
	return GateDecision{OK: true}, nil
}

// Package baseline tracks the last-attempted progression state per device.
// Velocity checks measure attempt-to-attempt deltas against this record, so
// it always advances on every save attempt, accepted or not — repeated
// failed submissions cannot reset it.
package baseline

import (
	"context"

	"github.com/lumen-arcade/saveguard/pkg/envelope"
)

// Baseline is the per-device record. Created zeroed on first use; mutated
// only after a save attempt is assessed; deleted only on explicit reset.
type Baseline struct {
	DeviceID          string                      `json:"deviceId"`
	LastSaveAt        int64                       `json:"lastSaveAt"` // unix milliseconds
	LastBankBalance   float64                     `json:"lastBankBalance"`
	LastTotalEarnings float64                     `json:"lastTotalEarnings"`
	LastBalance       float64                     `json:"lastBalance"`
	LastSubmissionAt  int64                       `json:"lastSubmissionAt"`
	Flagged           bool                        `json:"flagged"`
	Flags             []envelope.FlagEntry        `json:"flags,omitempty"`
	Transactions      []envelope.TransactionEntry `json:"transactions,omitempty"`
}

// New returns a zeroed baseline for a device.
func New(deviceID string) *Baseline {
	return &Baseline{DeviceID: deviceID}
}

// Store persists baselines. Implementations must treat "not found" as a nil
// result, not an error; the caller initializes.
type Store interface {
	// Get returns the baseline for a device, or nil when none exists.
	Get(ctx context.Context, deviceID string) (*Baseline, error)
	// Put upserts the baseline.
	Put(ctx context.Context, b *Baseline) error
	// Reset deletes the baseline for a device.
	Reset(ctx context.Context, deviceID string) error
}

// Package ledger is the durable flag & quarantine record for a device:
// bounded append-only flag and transaction logs persisted with the baseline.
// Flags are accumulated for review, never removed except by truncation when
// the bound is exceeded (oldest dropped first).
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/envelope"
)

// TransactionFlag is the transaction type mirrored for every raised flag.
const TransactionFlag = "flag"

// Ledger appends flags and transactions to a device's baseline record.
type Ledger struct {
	store baseline.Store
	clock func() time.Time
}

func New(store baseline.Store) *Ledger {
	return &Ledger{store: store, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// AddFlag appends a flag, marks the device flagged, mirrors a "flag"
// transaction and persists the baseline.
func (l *Ledger) AddFlag(ctx context.Context, deviceID, reason string, details map[string]any) (envelope.FlagEntry, error) {
	b, err := l.load(ctx, deviceID)
	if err != nil {
		return envelope.FlagEntry{}, err
	}

	now := l.clock()
	entry := envelope.FlagEntry{
		Reason:    reason,
		Timestamp: now.UnixMilli(),
		Details:   details,
	}

	b.Flagged = true
	b.Flags = envelope.TrimFlags(append(b.Flags, entry), envelope.MaxLocalFlags)
	txn := envelope.NewTransaction(TransactionFlag, now, map[string]any{"reason": reason})
	b.Transactions = envelope.TrimTransactions(append(b.Transactions, txn), envelope.MaxLocalTransactions)

	if err := l.store.Put(ctx, b); err != nil {
		return envelope.FlagEntry{}, fmt.Errorf("persist flag: %w", err)
	}
	return entry, nil
}

// LogTransaction appends a gameplay event (win, loss, purchase) to the
// bounded transaction log. The log doubles as corroborating evidence when a
// reviewer distinguishes a legitimate windfall from tampering.
func (l *Ledger) LogTransaction(ctx context.Context, deviceID, txType string, details map[string]any) (envelope.TransactionEntry, error) {
	b, err := l.load(ctx, deviceID)
	if err != nil {
		return envelope.TransactionEntry{}, err
	}

	txn := envelope.NewTransaction(txType, l.clock(), details)
	b.Transactions = envelope.TrimTransactions(append(b.Transactions, txn), envelope.MaxLocalTransactions)

	if err := l.store.Put(ctx, b); err != nil {
		return envelope.TransactionEntry{}, fmt.Errorf("persist transaction: %w", err)
	}
	return txn, nil
}

func (l *Ledger) load(ctx context.Context, deviceID string) (*baseline.Baseline, error) {
	b, err := l.store.Get(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	if b == nil {
		b = baseline.New(deviceID)
	}
	return b, nil
}

package save

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/crypto"
	"github.com/lumen-arcade/saveguard/pkg/envelope"
	"github.com/lumen-arcade/saveguard/pkg/progression"
)

// Preparer binds save data to a security envelope and signs it.
//
// Validation failure is advisory here: the preparer reports issues but never
// blocks a save. Hard rejection is the validating side's job.
type Preparer struct {
	deviceID  string
	signer    crypto.Signer // nil when the device has no signing capability
	validator *progression.Validator
	store     baseline.Store
	clock     func() time.Time

	warnedLegacy bool
}

// NewPreparer builds a preparer. signer may be nil; the preparer then emits
// legacy (unsigned) payloads.
func NewPreparer(deviceID string, signer crypto.Signer, validator *progression.Validator, store baseline.Store) *Preparer {
	return &Preparer{
		deviceID:  deviceID,
		signer:    signer,
		validator: validator,
		store:     store,
		clock:     time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (p *Preparer) WithClock(clock func() time.Time) *Preparer {
	p.clock = clock
	return p
}

// Prepare validates data against the device baseline, builds and signs the
// envelope, and advances the baseline to the attempted state regardless of
// the validation outcome.
func (p *Preparer) Prepare(ctx context.Context, data map[string]any) (*SignedPayload, progression.Result, error) {
	now := p.clock()
	nowMillis := now.UnixMilli()

	base, err := p.store.Get(ctx, p.deviceID)
	if err != nil {
		return nil, progression.Result{}, fmt.Errorf("load baseline: %w", err)
	}

	snap := SnapshotFrom(data, nowMillis)
	result := p.validator.Validate(snap, base)

	if base == nil {
		base = baseline.New(p.deviceID)
	}

	env := envelope.SecurityEnvelope{
		SchemaVersion: envelope.SchemaVersion,
		DeviceID:      p.deviceID,
		SignedAt:      nowMillis,
		Flagged:       base.Flagged,
		Flags:         envelope.TrimFlags(base.Flags, envelope.MaxEmbeddedFlags),
		Legacy:        data[SecurityField] == nil,
	}

	if p.signer != nil {
		env.SignatureAlgorithm = p.signer.Algorithm()
		payload, err := SignableBytes(data, env)
		if err != nil {
			return nil, progression.Result{}, err
		}
		sig, err := p.signer.Sign(payload)
		if err != nil {
			return nil, progression.Result{}, fmt.Errorf("sign payload: %w", err)
		}
		env.Signature = sig
		env.PublicKey = p.signer.PublicKey()
	} else {
		env.SignatureAlgorithm = ""
		if !p.warnedLegacy {
			slog.Warn("no signing capability, submitting unsigned", "device", p.deviceID)
			p.warnedLegacy = true
		}
	}

	// Audit visibility: issues and the trailing transaction slice ride
	// along outside the signed byte range.
	env.ValidationIssues = result.Issues
	env.RecentTransactions = envelope.TrimTransactions(base.Transactions, envelope.MaxEmbeddedTxns)

	// The baseline advances to "last attempted", not "last accepted", so
	// velocity checks measure attempt-to-attempt deltas and repeated failed
	// submissions cannot reset them.
	base.LastSaveAt = nowMillis
	base.LastBankBalance = snap.BankBalance
	base.LastTotalEarnings = snap.TotalEarnings
	base.LastBalance = snap.Balance
	if err := p.store.Put(ctx, base); err != nil {
		return nil, progression.Result{}, fmt.Errorf("advance baseline: %w", err)
	}

	return &SignedPayload{Data: data, Envelope: env}, result, nil
}

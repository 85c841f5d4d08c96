package save

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/crypto"
	"github.com/lumen-arcade/saveguard/pkg/guard"
	"github.com/lumen-arcade/saveguard/pkg/ledger"
	"github.com/lumen-arcade/saveguard/pkg/progression"
)

// TamperReason is the flag reason recorded when the in-memory guard catches
// a protected field mutated outside its setter.
const TamperReason = "guarded field mutated outside setter"

// Session is the device-side facade the embedding game holds for the
// lifetime of a play session. It composes the tamper guard, the flag
// ledger, the submit gate and the signing preparer over one shared
// baseline store, so a tamper caught by the guard becomes a local flag
// that rides inside the next signed envelope.
type Session struct {
	deviceID string
	live     map[string]float64
	guard    *guard.Guard
	flags    *ledger.Ledger
	preparer *Preparer
	gate     *SubmitGate
}

// NewSession builds a session over the device baseline store. signer may be
// nil for devices without signing capability.
func NewSession(deviceID string, signer crypto.Signer, validator *progression.Validator, store baseline.Store) *Session {
	flags := ledger.New(store)
	s := &Session{
		deviceID: deviceID,
		live:     make(map[string]float64),
		flags:    flags,
		preparer: NewPreparer(deviceID, signer, validator, store),
		gate:     NewSubmitGate(store, DefaultSubmitInterval),
	}
	s.guard = guard.New(s.live, func(tp guard.Tamper) {
		_, err := flags.AddFlag(context.Background(), deviceID, TamperReason, map[string]any{
			"field":    tp.Field,
			"observed": tp.Observed,
			"restored": tp.Restored,
		})
		if err != nil {
			slog.Warn("record tamper flag", "device", deviceID, "field", tp.Field, "error", err)
		}
	})
	return s
}

// Track begins protecting a progression field at an initial value.
func (s *Session) Track(field string, value float64) { s.guard.Register(field, value) }

// Set is the guarded mutation path for a tracked field.
func (s *Session) Set(field string, value float64) { s.guard.Set(field, value) }

// Get returns the authoritative value of a tracked field.
func (s *Session) Get(field string) float64 { return s.guard.Get(field) }

// Live returns the live state map handed to the embedding game. All
// legitimate writes must go through Set; the guard reconciles everything
// else away.
func (s *Session) Live() map[string]float64 { return s.live }

// LogTransaction records a gameplay event in the device transaction log.
func (s *Session) LogTransaction(ctx context.Context, txType string, details map[string]any) error {
	_, err := s.flags.LogTransaction(ctx, s.deviceID, txType, details)
	return err
}

// StartGuard begins periodic tamper checks; StopGuard halts them.
func (s *Session) StartGuard(interval time.Duration) { s.guard.Start(interval) }
func (s *Session) StopGuard()                        { s.guard.Stop() }

// CheckIntegrity reconciles tracked fields once, flagging any divergence.
func (s *Session) CheckIntegrity() []guard.Tamper { return s.guard.Check() }

// Prepare overlays the authoritative tracked values onto data, then binds
// and signs the envelope. Tracked fields always win over whatever the
// caller passed for the same keys.
func (s *Session) Prepare(ctx context.Context, data map[string]any) (*SignedPayload, progression.Result, error) {
	s.guard.Check()
	for field, value := range s.guard.Snapshot() {
		data[field] = value
	}
	return s.preparer.Prepare(ctx, data)
}

// CanSubmit consults the persisted submission gate.
func (s *Session) CanSubmit(ctx context.Context) (GateDecision, error) {
	return s.gate.CanSubmit(ctx, s.deviceID)
}

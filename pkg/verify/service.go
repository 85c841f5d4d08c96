package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/lumen-arcade/saveguard/pkg/archive"
	"github.com/lumen-arcade/saveguard/pkg/audit"
	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/crypto"
	"github.com/lumen-arcade/saveguard/pkg/docstore"
	"github.com/lumen-arcade/saveguard/pkg/ledger"
	"github.com/lumen-arcade/saveguard/pkg/policy"
	"github.com/lumen-arcade/saveguard/pkg/progression"
	"github.com/lumen-arcade/saveguard/pkg/save"
)

// Assessment is the outcome of evaluating one submission.
//
// Issues are diagnostic and stay server-side; the HTTP layer maps a
// non-accepted assessment to a generic failed-precondition problem.
type Assessment struct {
	Accepted    bool
	Issues      []string
	Flagged     bool
	FlagReasons []string
	EvidenceRef string
}

// ServiceConfig wires the evaluation pipeline. Rules, Evidence and Trail
// are optional; everything else is required.
type ServiceConfig struct {
	Schema           string // JSON Schema override, DefaultSchema when empty
	Validator        *progression.Validator
	Baselines        baseline.Store
	Documents        docstore.Store
	Flags            *ledger.Ledger
	Rules            *policy.Engine
	Evidence         archive.Archive
	Trail            *audit.Logger
	SignatureFormat  crypto.SignatureFormat
	MinClientVersion string // semver; empty disables the version gate
}

// Service runs the validating-side pipeline for submitted saves.
type Service struct {
	gate       *SchemaGate
	validator  *progression.Validator
	baselines  baseline.Store
	documents  docstore.Store
	flags      *ledger.Ledger
	rules      *policy.Engine
	evidence   archive.Archive
	trail      *audit.Logger
	format     crypto.SignatureFormat
	minVersion *semver.Version
	clock      func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	gate, err := NewSchemaGate(cfg.Schema)
	if err != nil {
		return nil, err
	}
	format := cfg.SignatureFormat
	if format == "" {
		format = crypto.FormatP1363
	}
	var minVersion *semver.Version
	if cfg.MinClientVersion != "" {
		minVersion, err = semver.NewVersion(cfg.MinClientVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum client version %q: %w", cfg.MinClientVersion, err)
		}
	}
	return &Service{
		gate:       gate,
		validator:  cfg.Validator,
		baselines:  cfg.Baselines,
		documents:  cfg.Documents,
		flags:      cfg.Flags,
		rules:      cfg.Rules,
		evidence:   cfg.Evidence,
		trail:      cfg.Trail,
		format:     format,
		minVersion: minVersion,
		clock:      time.Now,
	}, nil
}

// WithClock overrides the clock for deterministic testing.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Evaluate runs the full pipeline for one submission:
//
//	structural gate → trust check → progression validation → client
//	version gate → stale-timestamp flag → policy rules → flag ledger →
//	baseline advance → merged persist → evidence archive.
//
// Structurally invalid documents are rejected without persisting. All
// other outcomes persist the document; suspicion flags it rather than
// discarding the evidence.
func (s *Service) Evaluate(ctx context.Context, ownerID string, doc map[string]any) (*Assessment, error) {
	a := &Assessment{Accepted: true}

	if err := s.gate.Validate(doc); err != nil {
		a.Accepted = false
		a.Issues = append(a.Issues, err.Error())
		return a, nil
	}

	env, err := save.ParseEnvelope(doc)
	if err != nil {
		a.Accepted = false
		a.Issues = append(a.Issues, err.Error())
		return a, nil
	}

	// Trust check. Unsigned legacy saves pass; a signature that is present
	// but wrong is a hard failure, half-present signature material violates
	// the presence invariant, and an envelope claiming non-legacy without
	// any signature at all is the cheapest tamper path (strip both fields,
	// keep the rest).
	if env != nil && env.Signed() {
		if !VerifySignature(doc, s.format) {
			a.Accepted = false
			a.Issues = append(a.Issues, "signature verification failed")
			a.FlagReasons = append(a.FlagReasons, "signature verification failed")
		}
	} else if hasPartialSignature(env) {
		a.FlagReasons = append(a.FlagReasons, "incomplete signature material")
	} else if env != nil && !env.Legacy {
		a.FlagReasons = append(a.FlagReasons, "unsigned non-legacy envelope")
	}

	deviceID := ownerID
	signedAt := s.clock().UnixMilli()
	if env != nil {
		if env.DeviceID != "" {
			deviceID = env.DeviceID
		}
		if env.SignedAt > 0 {
			signedAt = env.SignedAt
		}
	}

	base, err := s.baselines.Get(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	snap := save.SnapshotFrom(doc, signedAt)
	result := s.validator.Validate(snap, base)
	if !result.OK {
		a.Accepted = false
		a.Issues = append(a.Issues, result.Issues...)
		a.FlagReasons = append(a.FlagReasons, result.Issues...)
	}

	if issue := s.versionIssue(doc); issue != "" {
		a.Accepted = false
		a.Issues = append(a.Issues, issue)
	}

	// Replay is out of scope; a timestamp behind the baseline is only a
	// soft signal for review.
	if base != nil && env != nil && env.SignedAt > 0 && env.SignedAt < base.LastSaveAt {
		a.FlagReasons = append(a.FlagReasons, "stale timestamp: signedAt predates last recorded save")
	}

	if s.rules != nil {
		for _, name := range s.rules.Evaluate(doc, base, signedAt) {
			a.FlagReasons = append(a.FlagReasons, "policy rule tripped: "+name)
		}
	}

	a.Flagged = len(a.FlagReasons) > 0
	if a.Flagged {
		details := flagDetails(snap, base, signedAt)
		for _, reason := range a.FlagReasons {
			if _, err := s.flags.AddFlag(ctx, deviceID, reason, details); err != nil {
				return nil, fmt.Errorf("record flag: %w", err)
			}
		}
	}

	if err := s.advanceBaseline(ctx, deviceID, snap, signedAt); err != nil {
		return nil, err
	}

	if err := s.documents.Put(ctx, ownerID, doc, a.Flagged); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	if a.Flagged && s.evidence != nil {
		blob, err := json.Marshal(doc)
		if err == nil {
			ref, err := s.evidence.Store(ctx, blob)
			if err != nil {
				slog.Error("failed to archive evidence", "owner", ownerID, "error", err)
			} else {
				a.EvidenceRef = ref
			}
		}
	}

	if s.trail != nil {
		details := map[string]any{"accepted": a.Accepted, "flagged": a.Flagged}
		if len(a.FlagReasons) > 0 {
			details["flagReasons"] = a.FlagReasons
		}
		if a.EvidenceRef != "" {
			details["evidenceRef"] = a.EvidenceRef
		}
		if err := s.trail.Record(audit.KindSubmission, ownerID, deviceID, "submit", details); err != nil {
			slog.Error("failed to record audit entry", "owner", ownerID, "error", err)
		}
	}

	return a, nil
}

// advanceBaseline moves the device baseline to the attempted state. It
// always runs, accepted or not, so repeated failed submissions cannot
// reset the velocity reference point.
func (s *Service) advanceBaseline(ctx context.Context, deviceID string, snap progression.Snapshot, signedAt int64) error {
	base, err := s.baselines.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("reload baseline: %w", err)
	}
	if base == nil {
		base = baseline.New(deviceID)
	}
	base.LastSaveAt = signedAt
	base.LastBankBalance = snap.BankBalance
	base.LastTotalEarnings = snap.TotalEarnings
	base.LastBalance = snap.Balance
	if err := s.baselines.Put(ctx, base); err != nil {
		return fmt.Errorf("advance baseline: %w", err)
	}
	return nil
}

// flagDetails captures the observed numbers and the baseline reference
// point so a reviewer sees what tripped without replaying the submission.
// Non-finite observations are stringified to keep the record encodable.
func flagDetails(snap progression.Snapshot, base *baseline.Baseline, signedAt int64) map[string]any {
	d := map[string]any{
		"balance":       encodable(snap.Balance),
		"bankBalance":   encodable(snap.BankBalance),
		"totalEarnings": encodable(snap.TotalEarnings),
		"signedAt":      signedAt,
	}
	if base != nil {
		d["lastBankBalance"] = base.LastBankBalance
		d["lastTotalEarnings"] = base.LastTotalEarnings
		d["lastSaveAt"] = base.LastSaveAt
	}
	return d
}

func encodable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("%v", v)
	}
	return v
}

func (s *Service) versionIssue(doc map[string]any) string {
	if s.minVersion == nil {
		return ""
	}
	raw, _ := doc["clientVersion"].(string)
	if raw == "" {
		return "client version missing"
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return "client version invalid"
	}
	if v.LessThan(s.minVersion) {
		return "client version below minimum"
	}
	return ""
}

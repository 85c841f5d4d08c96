// Package save implements the producing side of the save pipeline: binding
// a payload to its security envelope, signing the canonical bytes and
// gating submission frequency.
package save

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/lumen-arcade/saveguard/pkg/canonical"
	"github.com/lumen-arcade/saveguard/pkg/envelope"
	"github.com/lumen-arcade/saveguard/pkg/progression"
)

// SecurityField is the reserved top-level key holding the envelope.
const SecurityField = "security"

// SignedPayload is a save document bound to its finished envelope.
type SignedPayload struct {
	Data     map[string]any
	Envelope envelope.SecurityEnvelope
}

// Document merges gameplay fields and the envelope into the wire form.
func (p *SignedPayload) Document() map[string]any {
	doc := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		if k == SecurityField {
			continue
		}
		doc[k] = v
	}
	doc[SecurityField] = p.Envelope
	return doc
}

// MarshalJSON encodes the merged document.
func (p *SignedPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Document())
}

// SignableBytes returns the exact bytes covered by the signature: the
// document with the envelope reduced to its signing view, canonically
// encoded. Signer and verifier must call this with identical inputs or
// every signature breaks.
func SignableBytes(data map[string]any, env envelope.SecurityEnvelope) ([]byte, error) {
	doc := make(map[string]any, len(data)+1)
	for k, v := range data {
		if k == SecurityField {
			continue
		}
		doc[k] = v
	}
	doc[SecurityField] = env.SigningView()
	return canonical.Encode(doc)
}

// SnapshotFrom extracts the tracked numeric fields from a payload.
// Missing fields read as zero; non-numeric values read as NaN so the range
// check reports them instead of silently passing.
func SnapshotFrom(data map[string]any, timestampMillis int64) progression.Snapshot {
	return progression.Snapshot{
		Balance:         numberAt(data, "balance"),
		BankBalance:     numberAt(data, "bankBalance"),
		TotalEarnings:   numberAt(data, "totalEarnings"),
		TotalSpent:      numberAt(data, "totalSpent"),
		RoundsCompleted: numberAt(data, "roundsCompleted"),
		Timestamp:       timestampMillis,
	}
}

func numberAt(data map[string]any, key string) float64 {
	v, ok := data[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// ParseEnvelope extracts the security envelope from a decoded document.
// Returns nil when the document has no envelope (a legacy save).
func ParseEnvelope(doc map[string]any) (*envelope.SecurityEnvelope, error) {
	raw, ok := doc[SecurityField]
	if !ok || raw == nil {
		return nil, nil
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode security block: %w", err)
	}
	var env envelope.SecurityEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("malformed security block: %w", err)
	}
	return &env, nil
}
